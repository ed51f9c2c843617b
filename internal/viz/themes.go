package viz

import "github.com/charmbracelet/lipgloss"

// Theme colors the live view by body state.
type Theme struct {
	Name      string
	Title     lipgloss.Color
	Accent    lipgloss.Color
	Static    lipgloss.Color
	Kinematic lipgloss.Color
	Dynamic   lipgloss.Color
	Sleeping  lipgloss.Color
	Contact   lipgloss.Color
}

// Canvas ink indices.
const (
	InkNone = iota
	InkStatic
	InkKinematic
	InkDynamic
	InkSleeping
	InkContact
)

// Palette maps canvas ink indices to styles.
func (t Theme) Palette() []lipgloss.Style {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return []lipgloss.Style{
		InkNone:      lipgloss.NewStyle(),
		InkStatic:    fg(t.Static),
		InkKinematic: fg(t.Kinematic),
		InkDynamic:   fg(t.Dynamic),
		InkSleeping:  fg(t.Sleeping),
		InkContact:   fg(t.Contact).Bold(true),
	}
}

var (
	ThemeCyberpunk = Theme{
		Name:      "cyberpunk",
		Title:     lipgloss.Color("#00ffff"),
		Accent:    lipgloss.Color("#ff00ff"),
		Static:    lipgloss.Color("#666666"),
		Kinematic: lipgloss.Color("#ffff00"),
		Dynamic:   lipgloss.Color("#00ff88"),
		Sleeping:  lipgloss.Color("#335544"),
		Contact:   lipgloss.Color("#ff0000"),
	}

	ThemeRetroGreen = Theme{
		Name:      "retro",
		Title:     lipgloss.Color("#00ff00"),
		Accent:    lipgloss.Color("#88ff88"),
		Static:    lipgloss.Color("#005500"),
		Kinematic: lipgloss.Color("#00cc00"),
		Dynamic:   lipgloss.Color("#00ff00"),
		Sleeping:  lipgloss.Color("#003300"),
		Contact:   lipgloss.Color("#ffff00"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Title:     lipgloss.Color("#e0f0ff"),
		Accent:    lipgloss.Color("#ffd700"),
		Static:    lipgloss.Color("#4488aa"),
		Kinematic: lipgloss.Color("#00a8cc"),
		Dynamic:   lipgloss.Color("#00ff88"),
		Sleeping:  lipgloss.Color("#224455"),
		Contact:   lipgloss.Color("#ff4444"),
	}

	ThemeSunset = Theme{
		Name:      "sunset",
		Title:     lipgloss.Color("#fff5f5"),
		Accent:    lipgloss.Color("#ff9ff3"),
		Static:    lipgloss.Color("#8b6b8c"),
		Kinematic: lipgloss.Color("#feca57"),
		Dynamic:   lipgloss.Color("#ff6b6b"),
		Sleeping:  lipgloss.Color("#4d3b4e"),
		Contact:   lipgloss.Color("#ff4757"),
	}

	// Default theme
	CurrentTheme = ThemeCyberpunk

	// All available themes
	Themes = []Theme{
		ThemeCyberpunk,
		ThemeRetroGreen,
		ThemeOcean,
		ThemeSunset,
	}
)

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeCyberpunk
}

// SetTheme changes the current theme
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = Themes[0]
}

// ThemeNames returns list of available theme names
func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
