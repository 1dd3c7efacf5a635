// Package progressui draws the progress of a preload queue in the terminal
// with Bubble Tea.
package progressui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Lundis/go-gameassets/preload"
)

const (
	padding  = 2
	maxWidth = 80
	// maxErrors failures are listed below the bar.
	maxErrors = 5
)

// ProgressMsg carries the aggregate progress of the queue.
type ProgressMsg float64

// FileMsg reports one finished item. Err is nil for loaded items.
type FileMsg struct {
	ID  string
	Err error
}

// DoneMsg ends the program once the queue completed.
type DoneMsg struct{}

// StoppedMsg ends the program when a failure paused the queue.
type StoppedMsg struct {
	ID  string
	Err error
}

// Sender is implemented by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Watch forwards the events of q to s until detach is called. A queue
// created with StopOnError never completes after a failure, so stopOnError
// makes the first error end the program.
func Watch(s Sender, q *preload.Queue, stopOnError bool) (detach func()) {
	offs := []func(){
		q.On(preload.EventProgress, func(ev preload.Event) { s.Send(ProgressMsg(ev.Progress)) }),
		q.On(preload.EventFileLoad, func(ev preload.Event) { s.Send(FileMsg{ID: ev.Item.ID}) }),
		q.On(preload.EventFileError, func(ev preload.Event) { s.Send(FileMsg{ID: ev.Item.ID, Err: ev.Err}) }),
		q.On(preload.EventComplete, func(preload.Event) { s.Send(DoneMsg{}) }),
	}
	if stopOnError {
		offs = append(offs, q.On(preload.EventError, func(ev preload.Event) {
			s.Send(StoppedMsg{ID: ev.Item.ID, Err: ev.Err})
		}))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
)

// Model is the Bubble Tea model of the progress screen.
type Model struct {
	title    string
	bar      progress.Model
	percent  float64
	loaded   int
	failed   []FileMsg
	done     bool
	stopped  error
	quitting bool
}

func New(title string) Model {
	return Model{
		title: title,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-padding*2, maxWidth)
		return m, nil

	case ProgressMsg:
		m.percent = float64(msg)
		return m, nil

	case FileMsg:
		if msg.Err != nil {
			m.failed = append(m.failed, msg)
		} else {
			m.loaded++
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.percent = 1
		return m, tea.Quit

	case StoppedMsg:
		m.stopped = fmt.Errorf("%s: %w", msg.ID, msg.Err)
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	pad := strings.Repeat(" ", padding)
	var b strings.Builder
	b.WriteString("\n" + pad + titleStyle.Render(m.title) + "\n\n")
	b.WriteString(pad + m.bar.ViewAs(m.percent) + "\n\n")
	b.WriteString(pad + mutedStyle.Render(fmt.Sprintf("%d loaded, %d failed", m.loaded, len(m.failed))) + "\n")
	for i, f := range m.failed {
		if i == maxErrors {
			b.WriteString(pad + errorStyle.Render(fmt.Sprintf("... and %d more", len(m.failed)-maxErrors)) + "\n")
			break
		}
		b.WriteString(pad + errorStyle.Render(fmt.Sprintf("%s: %v", f.ID, f.Err)) + "\n")
	}
	switch {
	case m.done:
		b.WriteString("\n" + pad + "done\n")
	case m.stopped != nil:
		b.WriteString("\n" + pad + errorStyle.Render("stopped: "+m.stopped.Error()) + "\n")
	}
	return b.String()
}

// Done reports whether the queue completed, as opposed to the user quitting.
func (m Model) Done() bool {
	return m.done && !m.quitting
}

// Stopped returns the failure that paused the queue, if any.
func (m Model) Stopped() error {
	return m.stopped
}

// Failed returns the items that could not be loaded.
func (m Model) Failed() []FileMsg {
	return m.failed
}
