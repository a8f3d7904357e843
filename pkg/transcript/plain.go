package transcript

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
)

// Plain renders m as uncolored text lines for line-oriented output.
// Suggestions are listed as numbered quick replies.
func Plain(m chat.Message, botName string) string {
	who := botName
	if m.Sender == chat.SenderUser {
		who = "You"
	}
	if m.Action == nil {
		return fmt.Sprintf("%s: %s", who, unknownMarker(""))
	}
	v := &plainContent{}
	m.Action.Accept(v)
	return fmt.Sprintf("%s: %s", who, v.out)
}

type plainContent struct {
	out string
}

var _ chat.ActionVisitor = &plainContent{}

func (p *plainContent) VisitMessage(a *chat.MessageAction) { p.out = a.Text() }
func (p *plainContent) VisitImage(a *chat.ImageAction)     { p.out = "[image] " + a.URL }
func (p *plainContent) VisitWait(a *chat.WaitAction)       { p.out = unknownMarker(a.Type()) }
func (p *plainContent) VisitAI(a *chat.AIAction)           { p.out = unknownMarker(a.Type()) }
func (p *plainContent) VisitUnknown(a *chat.UnknownAction) { p.out = unknownMarker(a.Type()) }

func (p *plainContent) VisitSuggestions(a *chat.SuggestionsAction) {
	var b strings.Builder
	b.WriteString("quick replies:")
	for i, s := range a.Suggestions {
		fmt.Fprintf(&b, "\n  %d) %s", i+1, s)
	}
	p.out = b.String()
}

func (p *plainContent) VisitCard(a *chat.CardAction) {
	var lines []string
	if a.Title != nil && *a.Title != "" {
		lines = append(lines, "[card] "+*a.Title)
	} else {
		lines = append(lines, "[card]")
	}
	if a.Description != nil && *a.Description != "" {
		lines = append(lines, "  "+*a.Description)
	}
	if a.Image != nil && *a.Image != "" {
		lines = append(lines, "  image: "+*a.Image)
	}
	for _, b := range a.Buttons {
		lines = append(lines, fmt.Sprintf("  - %s <%s>", b.Label, b.URL))
	}
	p.out = strings.Join(lines, "\n")
}
