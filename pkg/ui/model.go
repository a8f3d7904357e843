// Package ui mounts a widget into a Bubble Tea program: a launcher line with
// the welcome teaser while closed, and a chat panel while open.
package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/webchat-embed/pkg/transcript"
	"github.com/go-go-golems/webchat-embed/pkg/widget"
	"github.com/rs/zerolog/log"
)

const inputPlaceholder = "Type a message..."

var (
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// actionDoneMsg reports the end of a background widget call.
type actionDoneMsg struct {
	op  string
	err error
}

type Model struct {
	ctx      context.Context
	widget   *widget.Widget
	renderer *transcript.Renderer

	snap     widget.Snapshot
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	selected int

	width  int
	height int
}

func NewModel(ctx context.Context, w *widget.Widget, r *transcript.Renderer) Model {
	in := textinput.New()
	in.Placeholder = inputPlaceholder
	in.Prompt = "› "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(r.Config().PrimaryColor))

	m := Model{
		ctx:      ctx,
		widget:   w,
		renderer: r,
		viewport: viewport.New(80, 10),
		input:    in,
		spinner:  sp,
		selected: -1,
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = ev.Width
		m.height = ev.Height
		m.refresh()
		return m, nil

	case WidgetEventMsg:
		m.refresh()
		return m, nil

	case actionDoneMsg:
		if ev.err != nil {
			log.Debug().Err(ev.err).Str("op", ev.op).Msg("widget action failed")
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(ev)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(ev)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+o":
		open := m.widget.Toggle()
		m.refresh()
		if open {
			return m, m.ensureSession()
		}
		return m, nil
	}

	if !m.snap.Open {
		return m, nil
	}

	switch k.String() {
	case "tab":
		m.cycleSuggestion(1)
		return m, nil
	case "shift+tab":
		m.cycleSuggestion(-1)
		return m, nil
	case "enter":
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(k)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	// the footer stays disabled until a session exists
	if !m.snap.SessionReady {
		return m, nil
	}
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		bar := m.snap.View().Suggestions
		if bar == nil || m.selected < 0 || m.selected >= len(bar.Suggestions) {
			return m, nil
		}
		text = bar.Suggestions[m.selected]
	}
	m.input.Reset()
	m.selected = -1
	return m, m.send(text)
}

func (m *Model) cycleSuggestion(delta int) {
	bar := m.snap.View().Suggestions
	if bar == nil || len(bar.Suggestions) == 0 {
		m.selected = -1
		return
	}
	n := len(bar.Suggestions)
	if m.selected < 0 {
		if delta > 0 {
			m.selected = 0
		} else {
			m.selected = n - 1
		}
	} else {
		m.selected = (m.selected + delta + n) % n
	}
	m.refresh()
}

func (m Model) ensureSession() tea.Cmd {
	ctx, w := m.ctx, m.widget
	return func() tea.Msg {
		return actionDoneMsg{op: "ensure-session", err: w.EnsureSession(ctx)}
	}
}

func (m Model) send(text string) tea.Cmd {
	ctx, w := m.ctx, m.widget
	return func() tea.Msg {
		return actionDoneMsg{op: "send", err: w.Send(ctx, text)}
	}
}

// refresh re-reads the widget state and lays the panel out again.
func (m *Model) refresh() {
	m.snap = m.widget.Snapshot()
	if bar := m.snap.View().Suggestions; bar == nil || m.selected >= len(bar.Suggestions) {
		m.selected = -1
	}

	inner := m.innerWidth()
	m.input.Width = max(inner-4, 1)
	m.viewport.Width = inner
	m.viewport.Height = m.transcriptHeight()
	m.viewport.SetContent(m.renderer.Transcript(m.snap.View(), inner))
	m.viewport.GotoBottom()
}

func (m Model) panelWidth() int {
	return m.renderer.PopupWidth(m.width)
}

func (m Model) innerWidth() int {
	return max(m.panelWidth()-panelStyle.GetHorizontalFrameSize(), 10)
}

func (m Model) panelHeight() int {
	// one line stays free for the launcher under the panel
	return max(min(m.renderer.Config().ChatPopupHeight, m.height-1), 8)
}

func (m Model) transcriptHeight() int {
	inner := m.innerWidth()
	chrome := lipgloss.Height(m.renderer.Header(inner)) +
		m.suggestionsHeight(inner) +
		1 + // input
		1 + // powered by
		panelStyle.GetVerticalFrameSize()
	return max(m.panelHeight()-chrome, 1)
}

func (m Model) suggestionsHeight(width int) int {
	s := m.renderer.Suggestions(m.snap.View().Suggestions, m.selected, width)
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}

func (m Model) View() string {
	if !m.snap.Open {
		return m.closedView()
	}
	inner := m.innerWidth()
	parts := []string{
		m.renderer.Header(inner),
		m.viewport.View(),
	}
	if s := m.renderer.Suggestions(m.snap.View().Suggestions, m.selected, inner); s != "" {
		parts = append(parts, s)
	}
	parts = append(parts, m.footerView(), m.renderer.Footer(inner))
	panel := panelStyle.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.JoinVertical(lipgloss.Right,
		lipgloss.PlaceHorizontal(m.width, lipgloss.Right, panel),
		lipgloss.PlaceHorizontal(m.width, lipgloss.Right, m.renderer.Trigger()),
	)
}

func (m Model) footerView() string {
	switch {
	case m.snap.SessionError != "":
		return disabledStyle.Render(inputPlaceholder)
	case !m.snap.SessionReady:
		return m.spinner.View() + " " + disabledStyle.Render("connecting…")
	default:
		return m.input.View()
	}
}

func (m Model) closedView() string {
	row := m.renderer.Trigger()
	if m.snap.Teaser != "" {
		teaser := m.renderer.Teaser(m.snap.Teaser, m.width/2)
		row = lipgloss.JoinHorizontal(lipgloss.Center, teaser, " ", row)
	}
	help := helpStyle.Render("ctrl+o open chat · ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Right,
		lipgloss.PlaceHorizontal(m.width, lipgloss.Right, row),
		lipgloss.PlaceHorizontal(m.width, lipgloss.Right, help),
	)
}
