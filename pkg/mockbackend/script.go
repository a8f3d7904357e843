package mockbackend

import (
	"strings"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
)

// Script decides what the automation says.
type Script interface {
	Greeting() []chat.Message
	Reply(text string) []chat.Message
}

type demoScript struct{}

// DemoScript greets with quick replies and answers a few keywords with
// cards and images, echoing anything else.
func DemoScript() Script { return demoScript{} }

func (demoScript) Greeting() []chat.Message {
	return []chat.Message{
		text("greet-1", "Hi! I'm the demo assistant."),
		text("greet-2", "What can I do for you today?"),
		suggestions("greet-3", "Opening hours", "Book a visit", "Show me the place"),
	}
}

func (demoScript) Reply(in string) []chat.Message {
	q := strings.ToLower(in)
	switch {
	case strings.Contains(q, "hour"):
		return []chat.Message{
			text("hours-1", "We're open Monday to Friday, 9am to 6pm."),
			text("hours-2", "Saturdays we close at 2pm."),
			suggestions("hours-3", "Book a visit", "Thanks!"),
		}
	case strings.Contains(q, "book"):
		title, desc := "Book a visit", "Pick a slot that suits you."
		return []chat.Message{
			{
				Sender: chat.SenderAutomation,
				NodeID: "book-1",
				Action: &chat.CardAction{
					ID:          "book-1",
					Title:       &title,
					Description: &desc,
					Buttons: []chat.Button{
						{Label: "Open calendar", URL: "https://example.com/book"},
						{Label: "Call us", URL: "tel:+15550100"},
					},
				},
			},
		}
	case strings.Contains(q, "place") || strings.Contains(q, "photo"):
		return []chat.Message{
			{
				Sender: chat.SenderAutomation,
				NodeID: "img-1",
				Action: &chat.ImageAction{ID: "img-1", URL: "https://example.com/lobby.jpg"},
			},
			text("img-2", "That's our lobby."),
		}
	case strings.Contains(q, "think"):
		return []chat.Message{
			{
				Sender: chat.SenderAutomation,
				NodeID: "ai-1",
				Action: &chat.AIAction{ID: "ai-1", ResponseType: chat.AIResponseKnowledgeBase},
			},
		}
	default:
		return []chat.Message{text("echo", "You said: "+in)}
	}
}

func text(node, s string) chat.Message {
	return chat.Message{
		Sender: chat.SenderAutomation,
		NodeID: node,
		Action: &chat.MessageAction{ID: node, Messages: []string{s}},
	}
}

func suggestions(node string, items ...string) chat.Message {
	return chat.Message{
		Sender: chat.SenderAutomation,
		NodeID: node,
		Action: &chat.SuggestionsAction{ID: node, Suggestions: items},
	}
}
