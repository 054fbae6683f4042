package ui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// PickerItem is one entry shown in the interactive picker.
type PickerItem struct {
	Label    string // wallet name
	SubLabel string // shown dimmed, usually the address
	Value    string // returned on selection
}

type pickerModel struct {
	title    string
	items    []PickerItem
	cursor   int
	selected *PickerItem
	quitting bool
}

func newPicker(title string, items []PickerItem) pickerModel {
	return pickerModel{title: title, items: items}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.items) - 1
	case "enter", " ":
		return m.choose(m.cursor)
	default:
		// 1-9 pick a row directly.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.items) {
				return m.choose(i)
			}
		}
	}
	return m, nil
}

func (m pickerModel) choose(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.items) {
		return m, nil
	}
	item := m.items[i]
	m.cursor = i
	m.selected = &item
	return m, tea.Quit
}

func (m pickerModel) View() string {
	if m.quitting || m.selected != nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render(m.title) + "\n")

	for i, item := range m.items {
		line := fmt.Sprintf("%d  %s", i+1, item.Label)
		if item.SubLabel != "" {
			line += "  " + item.SubLabel
		}
		if i == m.cursor {
			sb.WriteString(StyleSelected.Render("▸ "+line) + "\n")
		} else {
			sb.WriteString("  " + StyleValue.Render(line) + "\n")
		}
	}

	sb.WriteString("\n" + StyleMeta.Render("↑/↓ navigate · 1-9 jump · Enter select · q cancel") + "\n")
	return sb.String()
}

// PickItem runs an interactive list picker on stderr and returns the selected
// item's Value. It returns ("", nil) if the user cancels.
func PickItem(title string, items []PickerItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("no items to pick from")
	}

	final, err := tea.NewProgram(newPicker(title, items), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}

	fm := final.(pickerModel)
	if fm.quitting || fm.selected == nil {
		return "", nil
	}
	return fm.selected.Value, nil
}
