package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/config"
)

const (
	PoweredBy   = "powered by Eldramatic"
	avatarWidth = 5
)

var (
	mutedColor = lipgloss.Color("245")
	errorColor = lipgloss.Color("196")
)

// Renderer draws a View with the colors and name of one embed configuration.
type Renderer struct {
	cfg config.EmbedConfig

	header     lipgloss.Style
	avatar     lipgloss.Style
	botBubble  lipgloss.Style
	userBubble lipgloss.Style
	command    lipgloss.Style
	cardTitle  lipgloss.Style
	cardButton lipgloss.Style
	link       lipgloss.Style
	suggestion lipgloss.Style
	selected   lipgloss.Style
	errorLine  lipgloss.Style
	muted      lipgloss.Style
}

func NewRenderer(cfg config.EmbedConfig) *Renderer {
	primary := lipgloss.Color(cfg.PrimaryColor)
	foreground := lipgloss.Color(cfg.ForegroundColor)

	bubble := lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	return &Renderer{
		cfg:        cfg,
		header:     lipgloss.NewStyle().Background(primary).Foreground(foreground).Padding(0, 1),
		avatar:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		botBubble:  bubble.BorderForeground(mutedColor),
		userBubble: bubble.BorderForeground(primary).Background(primary).Foreground(foreground),
		command:    bubble.BorderForeground(mutedColor).Foreground(mutedColor).Italic(true),
		cardTitle:  lipgloss.NewStyle().Bold(true),
		cardButton: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(primary).Padding(0, 1),
		link:       lipgloss.NewStyle().Foreground(mutedColor).Underline(true),
		suggestion: lipgloss.NewStyle().Foreground(primary).Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1),
		selected:   lipgloss.NewStyle().Background(primary).Foreground(foreground).Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1),
		errorLine:  lipgloss.NewStyle().Foreground(errorColor),
		muted:      lipgloss.NewStyle().Foreground(mutedColor),
	}
}

func (r *Renderer) Config() config.EmbedConfig { return r.cfg }

// PopupWidth is the panel width for a host that is hostWidth cells wide.
func (r *Renderer) PopupWidth(hostWidth int) int {
	if r.cfg.FullWidth() || r.cfg.ChatPopupWidth > hostWidth || r.cfg.ChatPopupWidth <= 0 {
		return hostWidth
	}
	return r.cfg.ChatPopupWidth
}

// Initials are shown where the web widget shows the logo.
func (r *Renderer) Initials() string {
	return TwoLetters(r.cfg.Name)
}

// Header renders the bot name, description and the minimize hint.
func (r *Renderer) Header(width int) string {
	const hint = "ctrl+o ▾"
	title := fmt.Sprintf("(%s) %s", r.Initials(), r.cfg.Name)
	gap := max(width-r.header.GetHorizontalPadding()-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	lines := []string{title + strings.Repeat(" ", gap) + hint}
	if r.cfg.Description != "" {
		lines = append(lines, strings.Repeat(" ", avatarWidth)+r.cfg.Description)
	}
	return r.header.Width(width).Render(strings.Join(lines, "\n"))
}

// Trigger renders the collapsed launcher.
func (r *Renderer) Trigger() string {
	size := max(r.cfg.ChatTriggerSize, 1)
	return r.header.Padding(size/2, size).Render("💬 " + r.Initials())
}

// Teaser renders the welcome bubble shown next to the closed launcher.
func (r *Renderer) Teaser(text string, width int) string {
	return r.botBubble.MaxWidth(max(width, 10)).Render(text)
}

// Transcript renders the bubbles of v, or only its error.
func (r *Renderer) Transcript(v View, width int) string {
	if v.Error != "" {
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, r.errorLine.Render(v.Error))
	}
	blocks := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		blocks = append(blocks, r.Entry(e, width))
	}
	return strings.Join(blocks, "\n")
}

// Entry renders one bubble with its avatar column.
func (r *Renderer) Entry(e Entry, width int) string {
	bubbleWidth := max(width*3/4, 12)
	left := e.Position == PositionLeft
	if left {
		bubbleWidth = max(min(bubbleWidth, width-avatarWidth), 8)
	}

	style := r.bubbleStyle(e.Message, left)
	content := r.content(e.Message)
	w := min(lipgloss.Width(content)+style.GetHorizontalPadding(), bubbleWidth-style.GetHorizontalBorderSize())
	body := style.Width(w).Render(content)

	if !left {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, body)
	}
	avatar := strings.Repeat(" ", avatarWidth)
	if !e.HideAvatar {
		avatar = r.avatar.Width(avatarWidth).Render("(" + r.Initials() + ")")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, avatar, body)
}

func (r *Renderer) bubbleStyle(m chat.Message, left bool) lipgloss.Style {
	switch m.Type() {
	case chat.ActionMessage, chat.ActionImage, chat.ActionCard:
		if left {
			return r.botBubble
		}
		return r.userBubble
	default:
		return r.command
	}
}

func (r *Renderer) content(m chat.Message) string {
	if m.Action == nil {
		return unknownMarker("")
	}
	v := &styledContent{r: r}
	m.Action.Accept(v)
	return v.out
}

// Suggestions renders the quick replies, highlighting index selected (-1 for none).
func (r *Renderer) Suggestions(bar *SuggestionsBar, selected int, width int) string {
	if bar == nil || len(bar.Suggestions) == 0 {
		return ""
	}
	var rows []string
	var row []string
	rowWidth := 0
	for i, s := range bar.Suggestions {
		style := r.suggestion
		if i == selected {
			style = r.selected
		}
		chip := style.Render(fmt.Sprintf("%d %s", i+1, s))
		w := lipgloss.Width(chip)
		if rowWidth > 0 && rowWidth+w+1 > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		if rowWidth > 0 {
			row = append(row, " ")
			rowWidth++
		}
		row = append(row, chip)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// Footer renders the "powered by" line.
func (r *Renderer) Footer(width int) string {
	return r.muted.Width(width).Align(lipgloss.Right).Render(PoweredBy)
}

type styledContent struct {
	r   *Renderer
	out string
}

var _ chat.ActionVisitor = &styledContent{}

func (s *styledContent) VisitMessage(a *chat.MessageAction) {
	s.out = a.Text()
}

func (s *styledContent) VisitImage(a *chat.ImageAction) {
	s.out = "🖼  image\n" + s.r.link.Render(a.URL)
}

func (s *styledContent) VisitCard(a *chat.CardAction) {
	var parts []string
	if a.Image != nil && *a.Image != "" {
		parts = append(parts, "🖼  "+s.r.link.Render(*a.Image))
	}
	if a.Title != nil && *a.Title != "" {
		parts = append(parts, s.r.cardTitle.Render(*a.Title))
	}
	if a.Description != nil && *a.Description != "" {
		parts = append(parts, *a.Description)
	}
	for _, b := range a.Buttons {
		parts = append(parts, s.r.cardButton.Render(b.Label+" → "+b.URL))
	}
	s.out = lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (s *styledContent) VisitWait(a *chat.WaitAction) {
	s.out = unknownMarker(a.Type())
}

func (s *styledContent) VisitAI(a *chat.AIAction) {
	s.out = unknownMarker(a.Type())
}

func (s *styledContent) VisitSuggestions(a *chat.SuggestionsAction) {
	s.out = unknownMarker(a.Type())
}

func (s *styledContent) VisitUnknown(a *chat.UnknownAction) {
	s.out = unknownMarker(a.Type())
}

func unknownMarker(t chat.ActionType) string {
	return "UNKNOWN! " + string(t)
}
