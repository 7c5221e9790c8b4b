package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Controller is the part of a viewer session the watch view drives.
// *viewer.Session implements it.
type Controller interface {
	Snapshot() viewer.Snapshot
	Watch(ctx context.Context) <-chan viewer.Snapshot
	RequestTrajectory(ctx context.Context, req domain.TrajectoryRequest) error
	ClearTrajectory(ctx context.Context) error
	RetryTrajectory() error
	RetryStructure() error
}

var (
	accent  = lipgloss.AdaptiveColor{Light: "#0369a1", Dark: "#38bdf8"}
	muted   = lipgloss.AdaptiveColor{Light: "#64748b", Dark: "#94a3b8"}
	success = lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"}
	warning = lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#facc15"}
	failure = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(12)
	helpStyle  = lipgloss.NewStyle().Foreground(muted)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

type snapshotMsg viewer.Snapshot

type closedMsg struct{}

type actionErrMsg struct {
	err error
}

// WatchModel is a live view of one viewer session.
type WatchModel struct {
	ctx      context.Context
	ctrl     Controller
	updates  <-chan viewer.Snapshot
	snap     viewer.Snapshot
	err      error
	width    int
	quitting bool
}

// NewWatchModel subscribes to ctrl until ctx is done.
func NewWatchModel(ctx context.Context, ctrl Controller) *WatchModel {
	return &WatchModel{
		ctx:     ctx,
		ctrl:    ctrl,
		updates: ctrl.Watch(ctx),
		snap:    ctrl.Snapshot(),
	}
}

// Snapshot returns the last snapshot received.
func (m *WatchModel) Snapshot() viewer.Snapshot {
	return m.snap
}

// Init starts listening for snapshots.
func (m *WatchModel) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(ch <-chan viewer.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(s)
	}
}

// Update handles messages
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "t":
			return m, m.act(func() error {
				return m.ctrl.RequestTrajectory(m.ctx, domain.TrajectoryRequest{})
			})
		case "c":
			return m, m.act(func() error { return m.ctrl.ClearTrajectory(m.ctx) })
		case "r":
			return m, m.act(m.ctrl.RetryTrajectory)
		case "s":
			return m, m.act(m.ctrl.RetryStructure)
		}

	case snapshotMsg:
		m.snap = viewer.Snapshot(msg)
		return m, waitForSnapshot(m.updates)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case actionErrMsg:
		m.err = msg.err
	}

	return m, nil
}

func (m *WatchModel) act(fn func() error) tea.Cmd {
	m.err = nil
	return func() tea.Msg {
		if err := fn(); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

// View renders the session
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap

	var b strings.Builder
	subject := string(s.Subject)
	if subject == "" {
		subject = "no subject"
	}
	b.WriteString(titleStyle.Render(subject) + "\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Source", string(s.Source.Kind))
	row("Status", statusText(s.Status))
	structure := "ready"
	switch {
	case s.StructureError != "":
		structure = lipgloss.NewStyle().Foreground(failure).Render(s.StructureError)
	case s.StructureLoading:
		structure = lipgloss.NewStyle().Foreground(warning).Render("loading")
	case s.Source.Kind == domain.SourceNone:
		structure = "-"
	}
	row("Structure", structure)
	if s.Request != nil {
		row("Frames", orDash(s.Request.FrameRange))
		row("Selection", orDash(s.Request.Selection))
	}
	if c := s.Source.Coordinates; c != nil {
		row("Coordinates", fmt.Sprintf("%s, %d bytes", c.Label, c.Size))
	}
	if m.err != nil {
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(failure).Render(m.err.Error()) + "\n")
	}

	box := boxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	return box.Render(b.String()) + "\n" +
		helpStyle.Render("t trajectory • c clear • r retry trajectory • s retry structure • q quit") + "\n"
}

func statusText(s domain.ViewerStatus) string {
	switch s.Status {
	case domain.StatusLoading:
		return lipgloss.NewStyle().Foreground(warning).Render("loading")
	case domain.StatusError:
		return lipgloss.NewStyle().Foreground(failure).Render("error: " + s.Message)
	}
	return lipgloss.NewStyle().Foreground(success).Render(string(s.Status))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunWatch shows ctrl in the alternate screen until the user quits or ctx is done.
func RunWatch(ctx context.Context, ctrl Controller) error {
	p := tea.NewProgram(NewWatchModel(ctx, ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
