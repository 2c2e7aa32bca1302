package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/ascent/internal/astro"
	"github.com/san-kum/ascent/internal/pvg"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	historyLen   = 60
	barWidth     = 24
	profileCells = 40
)

// ProgressMsg carries one optimizer report.
type ProgressMsg pvg.Progress

// DoneMsg ends the solve.
type DoneMsg struct {
	Solution *pvg.Solution
	Err      error
}

type TickMsg time.Time

// Model follows a single solve.
type Model struct {
	title   string
	maxIter int

	last    pvg.Progress
	reports int
	history []float64

	frame    int
	start    time.Time
	elapsed  time.Duration
	done     bool
	canceled bool
	sol      *pvg.Solution
	err      error
}

func NewModel(title string, maxIter int) Model {
	return Model{title: title, maxIter: maxIter, start: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.canceled = !m.done
			return m, tea.Quit
		}
	case ProgressMsg:
		m.last = pvg.Progress(msg)
		m.reports++
		if msg.Znorm > 0 && !math.IsInf(msg.Znorm, 0) {
			m.history = append(m.history, math.Log10(msg.Znorm))
			if len(m.history) > historyLen {
				m.history = m.history[len(m.history)-historyLen:]
			}
		}
	case DoneMsg:
		m.done = true
		m.sol, m.err = msg.Solution, msg.Err
		m.elapsed = time.Since(m.start)
		return m, tea.Quit
	case TickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		m.elapsed = time.Since(m.start)
		return m, tick()
	}
	return m, nil
}

// Canceled reports whether the user quit before the solve finished.
func (m Model) Canceled() bool { return m.canceled }

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.title)) + "\n\n")

	switch {
	case m.done && m.err == nil:
		s.WriteString(StatusConverged.Render("✓ converged") + "\n\n")
	case m.done:
		s.WriteString(StatusFailed.Render("✗ "+m.err.Error()) + "\n\n")
	case m.canceled:
		s.WriteString(StatusFailed.Render("canceled") + "\n\n")
	default:
		stage := m.last.Stage
		if stage == "" {
			stage = "bootstrap"
		}
		s.WriteString(StatusRunning.Render(Spinner(m.frame)+" solving, "+stage+" stage") + "\n\n")
	}

	frac := 0.0
	if m.maxIter > 0 {
		frac = float64(m.last.Iteration) / float64(m.maxIter)
	}
	s.WriteString(Row("Iteration", fmt.Sprintf("%d / %d ", m.last.Iteration, m.maxIter)) + ProgressBar(frac, barWidth) + "\n")
	s.WriteString(Row("Residual", fmt.Sprintf("%.3e", m.last.Znorm)) + "\n")
	s.WriteString(Row("Damping", fmt.Sprintf("%.1e", m.last.Lambda)) + "\n")
	s.WriteString(Row("Elapsed", m.elapsed.Round(10*time.Millisecond).String()) + "\n")

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history,
			asciigraph.Height(6), asciigraph.Width(historyLen), asciigraph.Caption("log10 residual"))
		s.WriteString("\n" + chart + "\n")
	}

	if m.sol != nil {
		s.WriteString("\n" + Separator(historyLen) + "\n\n")
		s.WriteString(Summary(m.sol))
		s.WriteString("\n" + Subtle.Render("altitude vs downrange") + "\n")
		s.WriteString(Profile(m.sol.Samples(120), m.sol.BodyRadius(), profileCells, 8))
	}

	s.WriteString("\n" + KeyHint.Render("q: quit"))
	return GlassPanel.Render(s.String())
}

// Summary lists the burnout orbit of sol.
func Summary(sol *pvg.Solution) string {
	el := sol.Elements()
	rows := []string{
		Row("Terminal", sol.Terminal()),
		Row("Iterations", fmt.Sprintf("%d", sol.Iterations())),
		Row("Residual", fmt.Sprintf("%.3e", sol.Znorm())),
		Row("Burnout", fmt.Sprintf("T+%.1f s", sol.Tf()-sol.T0())),
		Row("Vgo", fmt.Sprintf("%.1f m/s", sol.Vgo(sol.T0()))),
		Row("SMA", fmt.Sprintf("%.1f km", el.SMA/1e3)),
		Row("Ecc", fmt.Sprintf("%.6f", el.Ecc)),
		Row("Inc", fmt.Sprintf("%.4f°", astro.Rad2Deg(el.Inc))),
		Row("LAN", fmt.Sprintf("%.4f°", astro.Rad2Deg(el.LAN))),
		Row("ArgP", fmt.Sprintf("%.4f°", astro.Rad2Deg(el.ArgP))),
	}
	for i := 0; i < sol.NumPhases(); i++ {
		kind := "burn"
		if sol.Phase(i).Coast {
			kind = "coast"
		}
		rows = append(rows, Row(fmt.Sprintf("Phase %d", i),
			fmt.Sprintf("%-5s %7.1f s", kind, sol.PhaseEnd(i)-sol.PhaseStart(i))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

// Profile draws altitude against downrange distance on a Braille canvas.
func Profile(samples []pvg.Sample, rbody float64, w, h int) string {
	if len(samples) == 0 {
		return ""
	}
	r0 := samples[0].R
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		angle := math.Atan2(r3.Norm(r3.Cross(r0, s.R)), r3.Dot(r0, s.R))
		xs[i] = angle * rbody
		ys[i] = r3.Norm(s.R) - rbody
	}
	c := NewCanvas(w, h)
	c.Plot(xs, ys)
	return c.String()
}

// Solve runs solve while a Model shows its progress. Quitting the program
// cancels the context handed to solve.
func Solve(ctx context.Context, title string, maxIter int,
	solve func(ctx context.Context, observe func(pvg.Progress)) (*pvg.Solution, error),
	opts ...tea.ProgramOption) (*pvg.Solution, error) {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, maxIter), opts...)

	var (
		sol  *pvg.Solution
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		sol, err = solve(ctx, func(pr pvg.Progress) { p.Send(ProgressMsg(pr)) })
		p.Send(DoneMsg{Solution: sol, Err: err})
	}()

	_, runErr := p.Run()
	cancel()
	<-done
	if runErr != nil {
		return nil, runErr
	}
	return sol, err
}
