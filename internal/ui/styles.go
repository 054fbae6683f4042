package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	ColorSuccess   = lipgloss.Color("#00D26A") // green: admitted, success
	ColorWarning   = lipgloss.Color("#FFB800") // yellow: paused, warning
	ColorError     = lipgloss.Color("#FF4444") // red: rejected, danger
	ColorAddress   = lipgloss.Color("#00B4D8") // cyan: addresses, roots
	ColorValue     = lipgloss.Color("#FFFFFF") // white bold: counts, amounts
	ColorMeta      = lipgloss.Color("#555555") // dim gray: metadata
	ColorBorder    = lipgloss.Color("#1E3A5F") // dark blue: UI chrome
	ColorPhase     = lipgloss.Color("#9B5DE5") // purple: phase names
	ColorHighlight = lipgloss.Color("#F15BB5") // pink: selected rows
	ColorInfo      = lipgloss.Color("#4EA8DE") // light blue: info lines
)

// Base styles.
var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleAddress = lipgloss.NewStyle().Foreground(ColorAddress)
	StyleValue   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	StyleMeta    = lipgloss.NewStyle().Foreground(ColorMeta)
	StylePhase   = lipgloss.NewStyle().Foreground(ColorPhase).Bold(true)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorHighlight).
			Foreground(lipgloss.Color("#000000")).
			Bold(true)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorPhase).
			Bold(true).
			MarginBottom(1)
)

// Banner returns the w3mint banner.
func Banner(version string) string {
	art := `
  ┬ ┬┌─┐┌┬┐┬┌┐┌┌┬┐
  │││ ─┤│││││││ │
  └┴┘└─┘┴ ┴┴┘└┘ ┴ `

	tagline := StyleMeta.Render("  capped-supply mint admission  ·  v" + version)
	return StylePhase.Render(art) + "\n" + tagline + "\n"
}

// Success formats a success message.
func Success(msg string) string { return StyleSuccess.Render("✓ " + msg) }

// Warn formats a warning message.
func Warn(msg string) string { return StyleWarning.Render("⚠ " + msg) }

// Err formats an error message.
func Err(msg string) string { return StyleError.Render("✗ " + msg) }

// Info formats an informational message.
func Info(msg string) string { return StyleInfo.Render("ℹ " + msg) }

// Hint formats a suggestion for the next command to run.
func Hint(msg string) string { return StyleMeta.Render("→ " + msg) }

// Addr formats an address or hash.
func Addr(a string) string { return StyleAddress.Render(a) }

// Val formats a value.
func Val(v string) string { return StyleValue.Render(v) }

// Meta formats metadata text.
func Meta(m string) string { return StyleMeta.Render(m) }

// PhaseName formats a phase name.
func PhaseName(p string) string { return StylePhase.Render(p) }

// Status formats a sale status, paused in the warning color.
func Status(s string) string {
	if s == "paused" {
		return StyleWarning.Render(s)
	}
	return StyleSuccess.Render(s)
}

// Reason formats a rejection message with its stable code.
func Reason(code, msg string) string {
	return Err(msg) + " " + StyleMeta.Render("["+code+"]")
}

// TruncateAddr shortens an address for display: 0x1234…5678.
func TruncateAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
