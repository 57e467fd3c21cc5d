// Package ui is the terminal front end of a live transcription session: a
// recording indicator with the elapsed timer, the growing transcript with the
// live partial line, and key bindings for start/stop, clear and save.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/livescribe/internal/session"
	"github.com/MrWong99/livescribe/internal/transcript"
)

// actionTimeout bounds a single start, stop or clear issued from the UI.
const actionTimeout = 30 * time.Second

// Controller is the part of *session.Controller the UI drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	recordingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	listeningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	idleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("160")).Padding(0, 1)
	partialStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	flashStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
)

// Option configures a [Model].
type Option func(*Model)

// WithSaveDir sets where the s key writes the transcript. Default: ".".
func WithSaveDir(dir string) Option {
	return WithSaveDirFunc(func() string { return dir })
}

// WithSaveDirFunc resolves the save directory on every save, so a reloaded
// configuration takes effect without restarting the UI.
func WithSaveDirFunc(dir func() string) Option {
	return func(m *Model) {
		if dir != nil {
			m.saveDir = dir
		}
	}
}

// WithClock overrides the clock used for export file names.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// Model is the bubbletea model for the recording screen.
type Model struct {
	ctrl    Controller
	saveDir func() string
	now     func() time.Time

	viewport viewport.Model
	ready    bool
	snap     session.Snapshot
	flash    string
}

// changedMsg carries a fresh snapshot after the controller published one.
type changedMsg struct{ snap session.Snapshot }

// actionMsg reports the result of an asynchronous controller call.
type actionMsg struct {
	op  string
	err error
}

// New returns the recording screen bound to ctrl.
func New(ctrl Controller, opts ...Option) Model {
	m := Model{
		ctrl:    ctrl,
		saveDir: func() string { return "." },
		now:     time.Now,
		snap:    ctrl.Snapshot(),
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForChange(m.ctrl)
}

func waitForChange(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Changes()
		return changedMsg{snap: ctrl.Snapshot()}
	}
}

func (m Model) do(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionMsg{op: op, err: fn(ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "space", "r":
			m.flash = ""
			if m.snap.State.Active() {
				cmds = append(cmds, m.do("stop", m.ctrl.Stop))
			} else {
				cmds = append(cmds, m.do("start", m.ctrl.Start))
			}
		case "c":
			m.flash = ""
			cmds = append(cmds, m.do("clear", m.ctrl.Clear))
		case "s":
			m.flash = m.save()
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		height := max(1, msg.Height-headerHeight-footerHeight)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()

	case changedMsg:
		m.snap = msg.snap
		m.refresh()
		cmds = append(cmds, waitForChange(m.ctrl))

	case actionMsg:
		// Failures of start show up as the Errored snapshot; the rest are
		// refusals worth a short note.
		if msg.err != nil && msg.op != "start" {
			m.flash = fmt.Sprintf("%s: %v", msg.op, msg.err)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// save writes the finalized transcript and returns the status line to show.
func (m Model) save() string {
	path, err := transcript.WriteFile(m.saveDir(), m.now(), m.snap.Transcript.Text())
	if err != nil {
		return "save: " + err.Error()
	}
	return "Saved " + path
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcriptView())
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m Model) headerView() string {
	title := titleStyle.Render("livescribe")
	status := " " + m.statusView()
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)-lipgloss.Width(status)-1))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, status, " ", line)
}

// statusView renders the recording indicator. A failed session replaces it
// with the error message.
func (m Model) statusView() string {
	elapsed := m.snap.ElapsedDisplay()
	switch m.snap.State {
	case session.StateStarting:
		return listeningStyle.Render("Listening… " + elapsed)
	case session.StateRecording:
		return recordingStyle.Render("● REC " + elapsed)
	case session.StateStopping:
		return idleStyle.Render("Stopping… " + elapsed)
	case session.StateErrored:
		return errorStyle.Render(m.snap.Message())
	default:
		return idleStyle.Render("○ Ready " + elapsed)
	}
}

func (m Model) transcriptView() string {
	var b strings.Builder
	for _, seg := range m.snap.Transcript.Segments {
		b.WriteString(seg)
		b.WriteString("\n")
	}
	if p := m.snap.Transcript.Partial; p != "" {
		b.WriteString(partialStyle.Render(p))
		b.WriteString("\n")
	}
	if b.Len() == 0 && m.snap.State == session.StateIdle {
		return helpStyle.Render("Press space to start recording.")
	}
	return b.String()
}

func (m Model) footerView() string {
	var action string
	switch {
	case m.snap.State.Active():
		action = "space stop"
	case m.snap.State == session.StateErrored:
		action = "space retry"
	default:
		action = "space start"
	}
	help := helpStyle.Render(action + " • c clear • s save • q quit")
	if m.flash != "" {
		help = flashStyle.Render(m.flash) + "  " + help
	}
	return help
}
