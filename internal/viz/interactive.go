package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/world"
)

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	descStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#444455"))
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

const (
	stateMenu = iota
	stateConfig
	stateSim
)

// param is one editable scene field on the config screen.
type param struct {
	name string
	step float64
	get  func(*config.Scene) float64
	set  func(*config.Scene, float64)
}

var params = []param{
	{"dt", 0.001,
		func(s *config.Scene) float64 { return s.Dt },
		func(s *config.Scene, v float64) { s.Dt = v }},
	{"gravity", 0.5,
		func(s *config.Scene) float64 { return s.World.Gravity[1] },
		func(s *config.Scene, v float64) { s.World.Gravity[1] = v }},
	{"jitter", 0.01,
		func(s *config.Scene) float64 { return s.Jitter },
		func(s *config.Scene, v float64) { s.Jitter = max(v, 0) }},
	{"seed", 1,
		func(s *config.Scene) float64 { return float64(s.Seed) },
		func(s *config.Scene, v float64) { s.Seed = int64(v) }},
	{"workers", 1,
		func(s *config.Scene) float64 { return float64(s.World.Workers) },
		func(s *config.Scene, v float64) { s.World.Workers = max(int(v), 0) }},
}

type model struct {
	state, cursor int
	presets       []string
	scene         *config.Scene
	paramCursor   int
	editing       bool
	editBuf       string
	liveModel     Model
	err           error
}

// NewInteractiveApp lists every preset as family/name.
func NewInteractiveApp() *model {
	m := &model{state: stateMenu}
	for _, fam := range config.Families() {
		for _, name := range config.ListPresets(fam) {
			m.presets = append(m.presets, fam+"/"+name)
		}
	}
	return m
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		if m.state == stateSim {
			newLive, cmd := m.liveModel.Update(msg)
			m.liveModel = newLive.(Model)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		newLive, cmd := m.liveModel.Update(msg)
		m.liveModel = newLive.(Model)
		return m, cmd
	}
	return m, nil
}

func splitPreset(s string) (string, string) {
	fam, name, _ := strings.Cut(s, "/")
	return fam, name
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.presets) == 0 {
			return m, nil
		}
		m.scene = config.GetPreset(splitPreset(m.presets[m.cursor]))
		m.state, m.paramCursor, m.err = stateConfig, 0, nil
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	p := params[m.paramCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%f", &val); err == nil {
				p.set(m.scene, val)
			}
			m.editing, m.editBuf = false, ""
		case "esc":
			m.editing, m.editBuf = false, ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing, m.editBuf = true, fmt.Sprintf("%g", p.get(m.scene))
	case "s":
		cmd := m.start()
		return m, cmd
	case "left", "h":
		p.set(m.scene, p.get(m.scene)-p.step)
	case "right", "l":
		p.set(m.scene, p.get(m.scene)+p.step)
	}
	return m, nil
}

func (m *model) start() tea.Cmd {
	if err := m.scene.Validate(); err != nil {
		m.err = err
		return nil
	}
	sc := m.scene.Clone()
	build := func() (*world.World, map[string]world.BodyID, error) {
		return sc.Build(logr.Discard())
	}
	live, err := NewModel(sc.Name, build, sc.Dt)
	if err != nil {
		m.err = err
		return nil
	}
	m.liveModel = live
	m.state = stateSim
	return m.liveModel.Init()
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.liveModel.View()
	}
	return ""
}

func hints(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteString(keyStyle.Render(pairs[i]) + idleStyle.Render(" "+pairs[i+1]+"  "))
	}
	return b.String()
}

func (m model) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText("RIGIDSIM", CurrentTheme.Title, CurrentTheme.Accent) + "\n    " + Subtle.Render("rigid body physics engine") + "\n    " + Separator(25) + "\n\n")
	for i, name := range m.presets {
		desc := ""
		if sc := config.GetPreset(splitPreset(name)); sc != nil {
			desc = sc.Description
		}
		if len(desc) > 32 {
			desc = desc[:29] + "..."
		}
		if i == m.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-18s", name)), descStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", idleStyle.Render(fmt.Sprintf("  %-18s", name)), dimStyle.Render(desc)))
		}
	}
	b.WriteString("\n    " + hints("j/k", "navigate", "enter", "select", "q", "quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText(strings.ToUpper(m.scene.Name), CurrentTheme.Title, CurrentTheme.Accent) + "\n    " + Subtle.Render(m.scene.Description) + "\n    " + Separator(25) + "\n\n")
	for i, p := range params {
		valStr := fmt.Sprintf("%8.3f", p.get(m.scene))
		if m.editing && i == m.paramCursor {
			valStr = fmt.Sprintf("%8s", m.editBuf+"_")
		}
		if i == m.paramCursor {
			b.WriteString(fmt.Sprintf("    %s %s %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-10s", p.name)), descStyle.Bold(true).Render(valStr)))
		} else {
			b.WriteString(fmt.Sprintf("    %s %s\n", idleStyle.Render(fmt.Sprintf("  %-10s", p.name)), dimStyle.Render(valStr)))
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + StatusError.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + hints("j/k", "select", "h/l", "adjust", "s", "start", "esc", "back") + "\n")
	return b.String()
}

// RunInteractive opens the preset browser.
func RunInteractive() error {
	_, err := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen()).Run()
	return err
}
