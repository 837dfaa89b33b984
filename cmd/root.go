package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/rhythmbox/internal/config"
)

var (
	configPath string
	logPath    string
	debug      bool

	cfg config.Config
	log *slog.Logger
	// logFile is closed after the command finishes.
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "rhythmbox",
	Short: "A TUI step sequencer and drum machine",
	Long: `rhythmbox is a Terminal User Interface (TUI) step sequencer built with Bubbletea.

It plays a grid of kick, snare, hi-hat and bass steps through the sound card,
renders patterns to WAV or MIDI files, and can be played live over MIDI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.Path(); err != nil {
				return err
			}
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		if err := setupLogging(); err != nil {
			return err
		}
		log.Debug("config loaded", "path", path, "bpm", cfg.BPM, "tracks", len(cfg.Tracks))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/rhythmbox/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
}

// setupLogging sends logs to a file since the terminal belongs to the TUI.
func setupLogging() error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if logPath == "" {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		slog.SetDefault(log)
		return nil
	}

	f, err := tea.LogToFile(logPath, "rhythmbox")
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	logFile = f
	log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
