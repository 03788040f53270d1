// Package themes holds the color schemes of the notification center.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Normal      lipgloss.Style
	Bold        lipgloss.Style
	Selected    lipgloss.Style
	Panel       lipgloss.Style
	ToastBox    lipgloss.Style
	StatusBar   lipgloss.Style
	Badge       lipgloss.Style
	Primary     lipgloss.Color
	Muted       lipgloss.Color
	Border      lipgloss.Color
	Success     lipgloss.Color
	Warning     lipgloss.Color
	Error       lipgloss.Color
	Info        lipgloss.Color
	GradientLow string
	GradientHi  string
}

// Default is the default theme.
var Default = Theme{
	Primary:     lipgloss.Color("#2ecc71"),
	Muted:       lipgloss.Color("#737373"),
	Border:      lipgloss.Color("#404040"),
	Success:     lipgloss.Color("#10b981"),
	Warning:     lipgloss.Color("#f59e0b"),
	Error:       lipgloss.Color("#ef4444"),
	Info:        lipgloss.Color("#3b82f6"),
	GradientLow: "#ef4444",
	GradientHi:  "#2ecc71",

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#fafafa")),
	Bold: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#2ecc71")).
		Foreground(lipgloss.Color("#1a1a1a")).
		Bold(true),
	Panel: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
	ToastBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1),
	StatusBar: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")).
		Background(lipgloss.Color("#262626")).
		Padding(0, 1),
	Badge: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#1a1a1a")).
		Background(lipgloss.Color("#ef4444")).
		Bold(true).
		Padding(0, 1),
}

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = Theme{
	Primary:     lipgloss.Color("#a6e3a1"),
	Muted:       lipgloss.Color("#6c7086"),
	Border:      lipgloss.Color("#45475a"),
	Success:     lipgloss.Color("#a6e3a1"),
	Warning:     lipgloss.Color("#f9e2af"),
	Error:       lipgloss.Color("#f38ba8"),
	Info:        lipgloss.Color("#89dceb"),
	GradientLow: "#f38ba8",
	GradientHi:  "#a6e3a1",

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#cdd6f4")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a6adc8")),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#cdd6f4")),
	Bold: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#cdd6f4")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#a6e3a1")).
		Foreground(lipgloss.Color("#1e1e2e")).
		Bold(true),
	Panel: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#45475a")).
		Padding(0, 1),
	ToastBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1),
	StatusBar: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a6adc8")).
		Background(lipgloss.Color("#313244")).
		Padding(0, 1),
	Badge: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#1e1e2e")).
		Background(lipgloss.Color("#f38ba8")).
		Bold(true).
		Padding(0, 1),
}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

// CategoryIcons maps notification categories to emoji icons.
var CategoryIcons = map[string]string{
	"budget":      "💰",
	"goal":        "🎯",
	"transaction": "💳",
	"reminder":    "⏰",
	"report":      "📊",
	"system":      "⚙️",
	"insight":     "💡",
	"achievement": "🏆",
}

// GetCategoryIcon returns an icon for a category.
func GetCategoryIcon(category string) string {
	if icon, ok := CategoryIcons[category]; ok {
		return icon
	}
	return "🔔"
}
