package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// fileBrowser picks a MIDI file to load into the pattern.
type fileBrowser struct {
	currentDir  string
	files       []fileInfo
	cursor      int
	viewportTop int
	message     string
}

type fileInfo struct {
	name  string
	path  string
	isDir bool
}

func newFileBrowser(dir string) fileBrowser {
	if dir == "" {
		dir = "."
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return fileBrowser{currentDir: dir}
}

func (fb *fileBrowser) loadFiles() {
	fb.files = nil

	if parent := filepath.Dir(fb.currentDir); parent != fb.currentDir {
		fb.files = append(fb.files, fileInfo{
			name:  "..",
			path:  parent,
			isDir: true,
		})
	}

	entries, err := os.ReadDir(fb.currentDir)
	if err != nil {
		fb.message = fmt.Sprintf("Error reading directory: %v", err)
		return
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || strings.HasSuffix(name, ".mid") || strings.HasSuffix(name, ".midi") {
			fb.files = append(fb.files, fileInfo{
				name:  entry.Name(),
				path:  filepath.Join(fb.currentDir, entry.Name()),
				isDir: entry.IsDir(),
			})
		}
	}

	if fb.cursor >= len(fb.files) {
		fb.cursor = max(len(fb.files)-1, 0)
	}
	fb.viewportTop = min(fb.viewportTop, fb.cursor)
}

// visibleLines is how many entries fit under the header and help lines.
func visibleLines(height int) int {
	return max(height-9, 5)
}

func (m Model) updateFileBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fb := &m.browser
	visible := visibleLines(m.height)

	switch msg.String() {
	case "q", "esc":
		m.mode = sequencerMode
	case "up", "k":
		if fb.cursor > 0 {
			fb.cursor--
		}
		if fb.cursor < fb.viewportTop {
			fb.viewportTop = fb.cursor
		}
	case "down", "j":
		if fb.cursor < len(fb.files)-1 {
			fb.cursor++
		}
		if fb.cursor >= fb.viewportTop+visible {
			fb.viewportTop = fb.cursor - visible + 1
		}
	case "enter":
		if len(fb.files) == 0 {
			return m, nil
		}
		selected := fb.files[fb.cursor]
		if selected.isDir {
			fb.currentDir = selected.path
			fb.cursor = 0
			fb.viewportTop = 0
			fb.message = ""
			fb.loadFiles()
			return m, nil
		}
		if err := m.engine.LoadMIDI(selected.path); err != nil {
			fb.message = fmt.Sprintf("Error loading MIDI: %v", err)
			return m, nil
		}
		m.mode = sequencerMode
		m.say("Loaded " + selected.name)
		m.refresh()
	}
	return m, nil
}

func (m Model) viewFileBrowser() string {
	fb := m.browser

	var b strings.Builder
	b.WriteString(titleStyle.Render("Load MIDI File") + "\n\n")
	fmt.Fprintf(&b, "Current Directory: %s\n\n", fb.currentDir)

	if len(fb.files) == 0 {
		b.WriteString("No MIDI files or directories found.\n")
	} else {
		end := min(fb.viewportTop+visibleLines(m.height), len(fb.files))
		for i := fb.viewportTop; i < end; i++ {
			file := fb.files[i]
			cursor := " "
			if i == fb.cursor {
				cursor = ">"
			}

			name := midiStyle.Render(file.name)
			if file.isDir {
				name = dirStyle.Render(file.name + "/")
			}

			if i == fb.cursor {
				b.WriteString(selectedStyle.Render(fmt.Sprintf("%s %s", cursor, name)) + "\n")
			} else {
				fmt.Fprintf(&b, "%s %s\n", cursor, name)
			}
		}
	}

	b.WriteString("\n")
	if fb.message != "" {
		b.WriteString(errorStyle.Render(fb.message) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: open • q/esc: back"))
	return b.String()
}
