package cmd

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/rhythmbox/internal/audio"
	"github.com/icco/rhythmbox/internal/engine"
	"github.com/icco/rhythmbox/internal/tui"
)

var (
	headless bool
	playBPM  int
	loadPath string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the interactive step sequencer",
	Long: `Start the step sequencer with an interactive TUI interface.

Steps are toggled on a grid of tracks and played through the sound card in a
loop. If no audio device is available the grid still works for editing and
export.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&headless, "headless", false, "render audio without a sound card")
	playCmd.Flags().IntVar(&playBPM, "bpm", 0, "tempo in beats per minute (default from config)")
	playCmd.Flags().StringVar(&loadPath, "load", "", "MIDI file to load into the pattern")
	rootCmd.AddCommand(playCmd)
}

func newEngine() (*engine.Engine, error) {
	opts := []engine.Option{engine.WithLogger(log)}
	if headless {
		opts = append(opts, engine.WithHeadless())
	}
	e := engine.New(cfg, opts...)
	if playBPM != 0 {
		if err := e.SetBPM(playBPM); err != nil {
			return nil, err
		}
	}
	if loadPath != "" {
		if err := e.LoadMIDI(loadPath); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Start(cmd.Context()); err != nil {
		if !errors.Is(err, audio.ErrNoDevice) {
			return err
		}
		log.Warn("audio disabled", "error", err)
	}

	p := tea.NewProgram(tui.New(e, cfg.Export.Loops), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
