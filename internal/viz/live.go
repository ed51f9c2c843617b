package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	kickSpeed       = 4.0
)

// Builder creates a fresh world for the live view. It is called again on
// reset.
type Builder func() (*world.World, map[string]world.BodyID, error)

// Snapshot stores one step for replay.
type Snapshot struct {
	Frame    sim.Frame
	Contacts []mgl64.Vec3
	Energy   float64
}

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model steps a world on every tick and draws it as a braille wireframe.
type Model struct {
	title          string
	build          Builder
	sim            *sim.Simulator
	bodies         map[string]world.BodyID
	t, dt          float64
	canvas         *Canvas
	wire           *Wireframe
	camera         *Camera
	running        bool
	showAxes       bool
	showHelp       bool
	energyHistory  []float64
	contactHistory []float64
	history        []Snapshot
	playHead       int
	err            error
}

// NewModel builds the first world and frames the camera on it.
func NewModel(title string, build Builder, dt float64) (Model, error) {
	m := Model{
		title:          title,
		build:          build,
		dt:             dt,
		canvas:         NewCanvas(width, height),
		wire:           NewWireframe(),
		camera:         NewCamera(),
		running:        true,
		energyHistory:  make([]float64, 0, historyCapacity),
		contactHistory: make([]float64, 0, historyCapacity),
		history:        make([]Snapshot, 0, historyCapacity),
		playHead:       -1,
	}
	if err := m.load(); err != nil {
		return Model{}, err
	}
	m.frameCamera()
	return m, nil
}

func (m *Model) load() error {
	w, bodies, err := m.build()
	if err != nil {
		return err
	}
	m.sim = sim.New(w, bodies)
	m.bodies = bodies
	m.t = 0
	m.record()
	return nil
}

func (m *Model) world() *world.World { return m.sim.World() }

func (m *Model) frameCamera() {
	var box geom.AABB
	first := true
	for _, id := range m.bodies {
		b, ok := m.world().Body(id)
		if !ok || b.Kind() == world.Static {
			continue
		}
		for _, cid := range b.Colliders() {
			c, _ := m.world().Collider(cid)
			if first {
				box, first = c.AABB(), false
			} else {
				box = box.Merge(c.AABB())
			}
		}
	}
	if !first {
		m.camera.Frame(box)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.world().Destroy()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "b":
			m.kick()
		case "a":
			m.showAxes = !m.showAxes
		case "?":
			m.showHelp = !m.showHelp
		case "t":
			NextTheme()
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

// step advances the world one fixed step. A step error pauses the view.
func (m *Model) step() {
	if m.err != nil {
		return
	}
	if err := m.world().Update(m.dt); err != nil {
		m.err = err
		m.running = false
		return
	}
	m.t += m.dt
	m.record()
}

func (m *Model) record() {
	f := m.sim.Capture()
	f.Time = m.t

	var points []mgl64.Vec3
	for _, ev := range m.world().Contacts() {
		for _, p := range ev.Points {
			points = append(points, p.Position)
		}
	}

	energy := metrics.KineticEnergy(m.world())
	m.energyHistory = appendCapped(m.energyHistory, energy)
	m.contactHistory = appendCapped(m.contactHistory, float64(f.Stats.ContactPoints))
	m.history = appendCapped(m.history, Snapshot{Frame: f, Contacts: points, Energy: energy})
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

// kick launches every dynamic body upward and wakes it.
func (m *Model) kick() {
	for _, id := range m.bodies {
		b, ok := m.world().Body(id)
		if !ok || b.Kind() != world.Dynamic {
			continue
		}
		b.ApplyImpulse(mgl64.Vec3{0, b.Mass() * kickSpeed, 0}, b.CenterOfMass())
		b.Wake()
	}
}

// scrub changes the playback position in history.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) > 0 {
			m.playHead = len(m.history) - 1
			m.running = false
		} else {
			return
		}
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset rebuilds the world from scratch.
func (m *Model) reset() {
	m.world().Destroy()
	m.energyHistory = m.energyHistory[:0]
	m.contactHistory = m.contactHistory[:0]
	m.history = m.history[:0]
	m.playHead = -1
	m.err = nil
	if err := m.load(); err != nil {
		m.err = err
		m.running = false
	}
}

func (m *Model) current() *Snapshot {
	if len(m.history) == 0 {
		return nil
	}
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return &m.history[m.playHead]
	}
	return &m.history[len(m.history)-1]
}

func bodyInk(b sim.BodyState) int {
	switch {
	case b.Sleeping:
		return InkSleeping
	case b.Kind == world.Static:
		return InkStatic
	case b.Kind == world.Kinematic:
		return InkKinematic
	}
	return InkDynamic
}

// draw renders a snapshot. Collider shapes come from the live world, poses
// from the snapshot, so replay shows recorded positions.
func (m *Model) draw(snap *Snapshot) {
	m.canvas.Clear()
	if snap == nil {
		return
	}
	cw, ch := m.canvas.Width*2, m.canvas.Height*4

	if m.showAxes {
		m.canvas.Pen = InkNone
		m.wire.Clear()
		m.wire.AddAxes(1)
		Render3D(m.canvas, m.wire, m.camera)
	}

	for _, bs := range snap.Frame.Bodies {
		b, ok := m.world().Body(m.bodies[bs.Name])
		if !ok {
			continue
		}
		pose := geom.NewTransform(bs.Position, bs.Orientation)
		m.wire.Clear()
		for _, cid := range b.Colliders() {
			c, _ := m.world().Collider(cid)
			m.wire.AddShape(c.Shape(), pose.Mul(c.Local()))
		}
		m.canvas.Pen = bodyInk(bs)
		Render3D(m.canvas, m.wire, m.camera)
	}

	m.canvas.Pen = InkContact
	for _, p := range snap.Contacts {
		if x, y, _, ok := m.camera.Project(p, cw, ch); ok {
			m.canvas.Set(x, y)
			m.canvas.Label(x, y, '•')
		}
	}
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return StatusError.Render("ERROR: " + m.err.Error())
	case m.playHead != -1:
		ago := m.history[m.playHead].Frame.Time - m.history[len(m.history)-1].Frame.Time
		if m.running {
			return StatusPaused.Render(fmt.Sprintf("REPLAYING (%.1fs)", ago))
		}
		return StatusPaused.Render(fmt.Sprintf("REPLAY PAUSED (%.1fs)", ago))
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("RUNNING")
}

func row(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// View renders the TUI interface.
func (m Model) View() string {
	snap := m.current()
	m.draw(snap)
	canvasView := canvasStyle.Render(m.canvas.Render(CurrentTheme.Palette()))

	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.title), CurrentTheme.Title, CurrentTheme.Accent) + "\n")
	s.WriteString(m.status() + "\n\n")

	energy := m.energyHistory
	if m.playHead >= 0 && m.playHead < len(energy) {
		energy = energy[:m.playHead+1]
	}
	if len(energy) > 1 {
		chart := asciigraph.Plot(energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	if snap != nil {
		st := snap.Frame.Stats
		s.WriteString(row("Time", fmt.Sprintf("%.2fs", snap.Frame.Time)))
		s.WriteString(row("Step", fmt.Sprintf("%d", snap.Frame.Step)))
		s.WriteString(row("Energy", fmt.Sprintf("%.3f J", snap.Energy)))
		s.WriteString(row("Islands", fmt.Sprintf("%d", st.Islands)))
		s.WriteString(row("Pairs", fmt.Sprintf("%d / %d", st.Manifolds, st.Pairs)))
		s.WriteString(row("Penetration", fmt.Sprintf("%.4f", st.MaxPenetration)))
		if n := len(st.Residuals); n > 0 {
			s.WriteString(row("Residual", fmt.Sprintf("%.2e", st.Residuals[n-1])))
		}
		if total := st.AwakeBodies + st.SleepingBodies; total > 0 {
			ratio := float64(st.SleepingBodies) / float64(total)
			s.WriteString(MetricLabel.Render("Asleep") + ProgressBar(ratio, 20) + fmt.Sprintf(" %d/%d\n", st.SleepingBodies, total))
		}
		s.WriteString(MetricLabel.Render("Contacts") + SparklineChart(m.contactHistory, 30) + "\n")
	}

	s.WriteString(helpStyle.Render("\n" + Separator(24) + "\nSP:Pause R:Reset Q:Quit\nT:Theme  B:Kick   ?:Help\n[ ]:Time-Travel xy:Orbit"))
	statsView := statsStyle.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  R        - Rebuild the scene        ║
║  Q        - Quit                     ║
║  B        - Kick dynamic bodies up   ║
║  X/x Y/y  - Orbit camera             ║
║  +/-      - Zoom                     ║
║  A        - Toggle axes              ║
║  [        - Rewind (time travel)     ║
║  ]        - Forward (time travel)    ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// Run starts the live view in the alternate screen.
func Run(title string, build Builder, dt float64) error {
	m, err := NewModel(title, build, dt)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
