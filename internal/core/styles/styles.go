// Package styles provides shared lipgloss styles for CLI and TUI
// components.
package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.TerminalColor
	Secondary  lipgloss.TerminalColor
	Foreground lipgloss.TerminalColor
	Muted      lipgloss.TerminalColor
	Background lipgloss.TerminalColor
	Surface    lipgloss.TerminalColor
	Success    lipgloss.TerminalColor
	Warning    lipgloss.TerminalColor
	Error      lipgloss.TerminalColor
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

// themes holds the built-in named palettes.
var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    lipgloss.Color("#7aa2f7"),
		Secondary:  lipgloss.Color("#7dcfff"),
		Foreground: lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Background: lipgloss.Color("#1a1b26"),
		Surface:    lipgloss.Color("#3b4261"),
		Success:    lipgloss.Color("#9ece6a"),
		Warning:    lipgloss.Color("#e0af68"),
		Error:      lipgloss.Color("#f7768e"),
	},
	"gruvbox": {
		Primary:    lipgloss.Color("#83a598"),
		Secondary:  lipgloss.Color("#8ec07c"),
		Foreground: lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#665c54"),
		Background: lipgloss.Color("#282828"),
		Surface:    lipgloss.Color("#3c3836"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fabd2f"),
		Error:      lipgloss.Color("#fb4934"),
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Exported color aliases for convenience.
var (
	ColorPrimary    lipgloss.TerminalColor
	ColorSecondary  lipgloss.TerminalColor
	ColorForeground lipgloss.TerminalColor
	ColorMuted      lipgloss.TerminalColor
	ColorBackground lipgloss.TerminalColor
	ColorSurface    lipgloss.TerminalColor
	ColorSuccess    lipgloss.TerminalColor
	ColorWarning    lipgloss.TerminalColor
	ColorError      lipgloss.TerminalColor
)

// Style exports.
var (
	// CLI styles.
	CommandHeaderStyle lipgloss.Style
	CommandStyle       lipgloss.Style
	DividerStyle       lipgloss.Style

	// Toast styles, one per severity.
	ToastSuccessStyle lipgloss.Style
	ToastInfoStyle    lipgloss.Style
	ToastWarningStyle lipgloss.Style
	ToastErrorStyle   lipgloss.Style

	// Notification panel styles.
	PanelTitleStyle   lipgloss.Style
	BadgeStyle        lipgloss.Style
	ItemUnreadStyle   lipgloss.Style
	ItemReadStyle     lipgloss.Style
	ItemSelectedStyle lipgloss.Style
	ItemTimeStyle     lipgloss.Style

	// Connection status styles.
	StatusConnectedStyle    lipgloss.Style
	StatusReconnectingStyle lipgloss.Style
	StatusOfflineStyle      lipgloss.Style

	HelpStyle lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorForeground = p.Foreground
	ColorMuted = p.Muted
	ColorBackground = p.Background
	ColorSurface = p.Surface
	ColorSuccess = p.Success
	ColorWarning = p.Warning
	ColorError = p.Error

	CommandHeaderStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	CommandStyle = lipgloss.NewStyle().
		Foreground(ColorForeground)
	DividerStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)

	toastBase := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	ToastSuccessStyle = toastBase.BorderForeground(ColorSuccess)
	ToastInfoStyle = toastBase.BorderForeground(ColorPrimary)
	ToastWarningStyle = toastBase.BorderForeground(ColorWarning)
	ToastErrorStyle = toastBase.BorderForeground(ColorError)

	PanelTitleStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	BadgeStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorError).
		Foreground(ColorBackground).
		Bold(true)
	ItemUnreadStyle = lipgloss.NewStyle().
		Foreground(ColorForeground).
		Bold(true)
	ItemReadStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
	ItemSelectedStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	ItemTimeStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)

	StatusConnectedStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	StatusReconnectingStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	StatusOfflineStyle = lipgloss.NewStyle().Foreground(ColorError)

	HelpStyle = lipgloss.NewStyle().Foreground(ColorMuted)
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}
