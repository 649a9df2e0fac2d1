// Package tui renders task progress in the terminal.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vidflow/task"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

const maxBarWidth = 60

// SnapshotMsg delivers a new snapshot to the model.
type SnapshotMsg task.Snapshot

// DoneMsg ends the program with the outcome of the work.
type DoneMsg struct {
	Err error
}

// Model is a single-task progress view.
type Model struct {
	title       string
	bar         progress.Model
	snap        task.Snapshot
	seen        bool
	done        bool
	err         error
	interrupted bool
}

// New creates a progress view titled title.
func New(title string) Model {
	return Model{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-4, maxBarWidth), 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case SnapshotMsg:
		m.snap = task.Snapshot(msg)
		m.seen = true
		return m, nil
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	if !m.seen {
		b.WriteString(mutedStyle.Render("submitting..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.bar.ViewAs(m.snap.Progress / 100))
	b.WriteString("  ")
	b.WriteString(stateLabel(m.snap.State))
	if m.snap.Step != "" {
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render(m.snap.Step))
	}
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.snap.State == task.StateFailure:
		b.WriteString(errorStyle.Render("error: " + m.snap.Err))
		b.WriteString("\n")
	case m.done:
		b.WriteString(okStyle.Render("done"))
		b.WriteString("\n")
	}
	return b.String()
}

// Snapshot returns the last snapshot the model received.
func (m Model) Snapshot() task.Snapshot { return m.snap }

// Interrupted reports whether the user quit before the work finished.
func (m Model) Interrupted() bool { return m.interrupted }

func stateLabel(s task.State) string {
	switch s {
	case task.StateSuccess:
		return okStyle.Render(s.String())
	case task.StateFailure:
		return errorStyle.Render(s.String())
	default:
		return mutedStyle.Render(s.String())
	}
}

// Work is a long running operation reporting snapshots through update.
type Work func(ctx context.Context, update func(task.Snapshot)) error

// Run shows a progress view on out while work runs. Quitting the view cancels
// the work's context. The work's error is returned.
func Run(ctx context.Context, title string, out io.Writer, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(title), tea.WithOutput(out), tea.WithContext(ctx))
	result := make(chan error, 1)
	go func() {
		err := work(ctx, func(s task.Snapshot) { p.Send(SnapshotMsg(s)) })
		result <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-result
		return fmt.Errorf("progress view: %w", err)
	}
	cancel()
	return <-result
}

// LineWriter prints one line per snapshot, for output that is not a terminal.
// Repeated snapshots with the same state, progress and step are skipped.
type LineWriter struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewLineWriter creates a LineWriter on out.
func NewLineWriter(out io.Writer) *LineWriter {
	return &LineWriter{out: out}
}

// Update prints snap if it differs from the previous line.
func (w *LineWriter) Update(snap task.Snapshot) {
	line := Line(snap)
	w.mu.Lock()
	defer w.mu.Unlock()
	if line == w.last {
		return
	}
	w.last = line
	fmt.Fprintln(w.out, line)
}

// Line formats a snapshot as a single status line.
func Line(snap task.Snapshot) string {
	line := fmt.Sprintf("%-8s %3.0f%%", snap.State, snap.Progress)
	if snap.Step != "" {
		line += "  " + snap.Step
	}
	if snap.State == task.StateFailure && snap.Err != "" {
		line += "  error: " + snap.Err
	}
	return line
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
