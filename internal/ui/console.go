package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tsabaia/headunit-revived-sub000/internal/session"
)

// RefreshInterval is how often the console polls session counters.
const RefreshInterval = 500 * time.Millisecond

// Controller is the part of a session the console drives.
type Controller interface {
	Stats() session.Stats
	SendKey(keycode int, down bool) error
	ForceKeyframe() error
	Night() bool
	Done() <-chan struct{}
	Err() error
	Stop() error
}

// Messages for async operations
type tickMsg time.Time

type keySentMsg struct {
	name string
	err  error
}

type sessionDoneMsg struct {
	err error
}

// Console is the interactive status view for one running session. Keys
// typed into the terminal are forwarded to the phone as press and release
// pairs, since a terminal reports no release events.
type Console struct {
	ctrl   Controller
	header *Header

	keys    consoleKeyMap
	help    help.Model
	spinner spinner.Model

	stats    session.Stats
	night    bool
	last     string
	lastErr  error
	stopping bool
	done     bool
	reason   error
	started  time.Time

	Width  int
	Height int
}

// NewConsole creates a console for ctrl. title and params fill the header.
func NewConsole(ctrl Controller, title, command string, params map[string]string) Console {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()
	return Console{
		ctrl:    ctrl,
		header:  NewHeader(title, command, params),
		keys:    newConsoleKeyMap(),
		help:    help.New(),
		spinner: s,
		stats:   ctrl.Stats(),
		night:   ctrl.Night(),
		started: time.Now(),
		Width:   width,
		Height:  height,
	}
}

// Init implements tea.Model
func (m Console) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), waitDone(m.ctrl))
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitDone(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Done()
		return sessionDoneMsg{err: ctrl.Err()}
	}
}

// Update implements tea.Model
func (m Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		m.stats = m.ctrl.Stats()
		m.night = m.ctrl.Night()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case keySentMsg:
		m.last = msg.name
		m.lastErr = msg.err
		m.night = m.ctrl.Night()
		return m, nil

	case sessionDoneMsg:
		m.done = true
		m.reason = msg.err
		m.stats = m.ctrl.Stats()
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Console) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.stopping || m.done {
			return m, tea.Quit
		}
		m.stopping = true
		m.last = "stopping"
		ctrl := m.ctrl
		return m, func() tea.Msg {
			_ = ctrl.Stop()
			return nil
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Keyframe):
		return m, m.run("keyframe", m.ctrl.ForceKeyframe)
	}

	if m.stopping || m.done {
		return m, nil
	}
	if action, ok := m.keys.action(msg); ok {
		return m, m.pressKey(action)
	}
	return m, nil
}

// pressKey sends the down and up transitions for one keystroke.
func (m Console) pressKey(action keyAction) tea.Cmd {
	ctrl := m.ctrl
	return m.run(action.name, func() error {
		if err := ctrl.SendKey(action.keycode, true); err != nil {
			return err
		}
		return ctrl.SendKey(action.keycode, false)
	})
}

func (m Console) run(name string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return keySentMsg{name: name, err: fn()}
	}
}

// View implements tea.Model
func (m Console) View() string {
	width := clampWidth(m.Width, nil)

	sections := []string{m.header.SetWidth(width).Render(), ""}
	sections = append(sections, m.statusLine())
	if m.stats.State == session.StateConnecting {
		sections = append(sections, "  "+m.spinner.View()+" Waiting for the phone...")
	}
	sections = append(sections, "", m.renderStats(), "")

	if m.last != "" {
		line := "last: " + m.last
		if m.lastErr != nil {
			line += " (" + m.lastErr.Error() + ")"
			sections = append(sections, ErrorMessageStyle.PaddingLeft(2).Render(line))
		} else {
			sections = append(sections, LastActionStyle.Render(line))
		}
	}

	if m.done {
		sections = append(sections, "", m.renderResult(width))
	} else {
		sections = append(sections, "", lipgloss.NewStyle().PaddingLeft(2).Render(m.help.View(m.keys)))
	}
	return strings.Join(sections, "\n")
}

func (m Console) statusLine() string {
	state := m.stats.State.String()
	mode := "day"
	if m.night {
		mode = "night"
	}
	uptime := time.Since(m.started).Truncate(time.Second)
	return fmt.Sprintf("  %s %s   %s   up %s",
		StateStyle(state).Render(ActiveMarker),
		StateStyle(state).Render(state),
		StatValueStyle.Render(mode),
		StatValueStyle.Render(uptime.String()),
	)
}

func (m Console) renderStats() string {
	st := m.stats
	row := func(label string, value uint64) string {
		return StatKeyStyle.Render(label) + StatValueStyle.Render(fmt.Sprintf("%d", value))
	}

	inbound := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Inbound"),
		row("frames", st.Inbound.Frames),
		row("bytes", st.Inbound.Bytes),
		row("dropped", st.Inbound.Dropped),
		row("resets", st.Inbound.Resets),
		row("unknown", st.UnknownDropped),
	)
	outbound := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Outbound"),
		row("frames", st.FramesOut),
		row("bytes", st.BytesOut),
		row("send errors", st.SendErrors),
		row("mic chunks", st.MicChunks),
		row("sensor events", st.SensorEvents),
	)
	media := lipgloss.JoinVertical(lipgloss.Left,
		SectionTitleStyle.Render("Media"),
		row("video frames", st.VideoFrames),
		row("video dropped", st.VideoDropped),
		row("audio chunks", st.AudioChunks),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, inbound, outbound, media)
}

func (m Console) renderResult(width int) string {
	details := map[string]string{
		"Video frames": fmt.Sprintf("%d", m.stats.VideoFrames),
		"Audio chunks": fmt.Sprintf("%d", m.stats.AudioChunks),
	}
	if m.reason == nil || errors.Is(m.reason, session.ErrByeBye) {
		return NewSuccessResult("Session ended", details).SetWidth(width).Render()
	}
	r := NewFailureResult("Session ended", m.reason, troubleshootingFor(m.reason))
	r.Details = details
	return r.SetWidth(width).Render()
}

func troubleshootingFor(err error) []string {
	switch {
	case errors.Is(err, session.ErrPeerClosed):
		return []string{"The phone closed the connection", "Check the USB cable or Wi-Fi link"}
	case errors.Is(err, session.ErrVideoStopped):
		return []string{"The phone took video focus back", "Reopen projection on the phone"}
	default:
		return nil
	}
}

// Stopped reports whether the session ended while the console ran.
func (m Console) Stopped() bool {
	return m.done
}

// Reason returns why the session ended.
func (m Console) Reason() error {
	return m.reason
}

// RunConsole runs the console until the session ends or the user quits,
// and returns the session end reason.
func RunConsole(ctrl Controller, title, command string, params map[string]string) error {
	p := tea.NewProgram(NewConsole(ctrl, title, command, params), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if c, ok := final.(Console); ok {
		return c.Reason()
	}
	return nil
}
