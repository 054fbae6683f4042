package ui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

// ErrWizardCancelled is returned when the user quits the wizard early.
var ErrWizardCancelled = errors.New("setup cancelled")

// WizardResult holds the sale parameters collected by the setup wizard.
type WizardResult struct {
	Authority     string
	MaxSupply     uint64
	EarlyCap      uint64
	MaxPerRequest uint64
	UnitPrice     string // ether
	Overpayment   string
	Backend       string
}

// WizardDefaults pre-fills the wizard's answers.
type WizardDefaults struct {
	Authority     string
	MaxSupply     uint64
	EarlyCap      uint64
	MaxPerRequest uint64
	UnitPrice     string
}

// wizardStep is one question. Steps with choices render a menu, the rest a
// text input whose empty answer falls back to def.
type wizardStep struct {
	title   string
	def     string
	choices []string
	apply   func(r *WizardResult, answer string) error
}

type wizardModel struct {
	steps     []wizardStep
	step      int
	cursor    int
	input     string
	err       string
	result    WizardResult
	cancelled bool
}

func parseCount(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("enter a positive whole number")
	}
	return n, nil
}

func saleSteps(d WizardDefaults) []wizardStep {
	u := func(n uint64) string {
		if n == 0 {
			return ""
		}
		return strconv.FormatUint(n, 10)
	}
	return []wizardStep{
		{
			title: "Authority address (the only wallet that can pause, advance or grant):",
			def:   d.Authority,
			apply: func(r *WizardResult, a string) error {
				if !common.IsHexAddress(a) {
					return fmt.Errorf("%q is not an address", a)
				}
				r.Authority = common.HexToAddress(a).Hex()
				return nil
			},
		},
		{
			title: "Maximum supply:",
			def:   u(d.MaxSupply),
			apply: func(r *WizardResult, a string) (err error) {
				r.MaxSupply, err = parseCount(a)
				return err
			},
		},
		{
			title: "Early phase cap:",
			def:   u(d.EarlyCap),
			apply: func(r *WizardResult, a string) (err error) {
				if r.EarlyCap, err = parseCount(a); err != nil {
					return err
				}
				if r.EarlyCap > r.MaxSupply {
					return fmt.Errorf("early cap cannot exceed max supply %d", r.MaxSupply)
				}
				return nil
			},
		},
		{
			title: "Maximum tokens per request:",
			def:   u(d.MaxPerRequest),
			apply: func(r *WizardResult, a string) (err error) {
				r.MaxPerRequest, err = parseCount(a)
				return err
			},
		},
		{
			title: "Unit price in ether:",
			def:   d.UnitPrice,
			apply: func(r *WizardResult, a string) error {
				if _, err := strconv.ParseFloat(a, 64); err != nil || strings.HasPrefix(a, "-") {
					return fmt.Errorf("%q is not an ether amount", a)
				}
				r.UnitPrice = a
				return nil
			},
		},
		{
			title:   "When a buyer overpays:",
			choices: []string{"keep", "refund"},
			apply: func(r *WizardResult, a string) error {
				r.Overpayment = a
				return nil
			},
		},
		{
			title:   "Store sale state in:",
			choices: []string{"json", "sqlite"},
			apply: func(r *WizardResult, a string) error {
				r.Backend = a
				return nil
			},
		},
	}
}

func newWizard(d WizardDefaults) wizardModel {
	return wizardModel{steps: saleSteps(d)}
}

func (m wizardModel) done() bool { return m.step >= len(m.steps) }

func (m wizardModel) Init() tea.Cmd { return nil }

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || m.done() {
		return m, nil
	}
	cur := m.steps[m.step]

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.cancelled = true
		return m, tea.Quit
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(cur.choices)-1 {
			m.cursor++
		}
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		if cur.choices == nil {
			m.input += string(key.Runes)
		}
	case tea.KeyEnter:
		answer := strings.TrimSpace(m.input)
		if cur.choices != nil {
			answer = cur.choices[m.cursor]
		} else if answer == "" {
			answer = cur.def
		}
		if err := cur.apply(&m.result, answer); err != nil {
			m.err, m.input = err.Error(), ""
			return m, nil
		}
		m.step++
		m.cursor, m.input, m.err = 0, "", ""
		if m.done() {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m wizardModel) View() string {
	if m.cancelled {
		return ""
	}
	if m.done() {
		return Success("Sale configured") + "\n"
	}

	cur := m.steps[m.step]
	s := StyleMeta.Render(fmt.Sprintf("step %d of %d", m.step+1, len(m.steps))) + "\n"
	if cur.choices != nil {
		s += renderMenu(cur.title, cur.choices, m.cursor)
	} else {
		s += StyleTitle.Render(cur.title) + "\n"
		s += "> " + StyleAddress.Render(m.input) + "█\n"
		if cur.def != "" {
			s += StyleMeta.Render("Enter keeps "+cur.def) + "\n"
		}
	}
	if m.err != "" {
		s += "\n" + Err(m.err)
	}
	return StyleBorder.Render(s) + "\n"
}

func renderMenu(title string, items []string, cursor int) string {
	s := StyleTitle.Render(title) + "\n"
	for i, item := range items {
		icon := "  "
		style := lipgloss.NewStyle().Foreground(ColorValue)
		if i == cursor {
			icon = "▸ "
			style = StyleSelected
		}
		s += icon + style.Render(item) + "\n"
	}
	s += "\n" + StyleMeta.Render("↑/↓ navigate · Enter select · Esc quit")
	return s
}

// RunWizard asks for the sale parameters interactively.
func RunWizard(d WizardDefaults) (*WizardResult, error) {
	final, err := tea.NewProgram(newWizard(d), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}
	fm := final.(wizardModel)
	if fm.cancelled || !fm.done() {
		return nil, ErrWizardCancelled
	}
	return &fm.result, nil
}
