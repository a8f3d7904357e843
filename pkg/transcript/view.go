// Package transcript turns the ordered message list of a widget into what is
// shown: bubbles with avatars, a typing placeholder, the error line and the
// quick-reply bar of the latest bot turn.
package transcript

import (
	"strings"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
)

// TypingPlaceholder is the text of the synthetic message shown while the bot is typing.
const TypingPlaceholder = "..."

type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
)

// Entry is one visible bubble.
type Entry struct {
	Message    chat.Message
	Position   Position
	HideAvatar bool
	// Placeholder marks the typing indicator. It is never part of the stored transcript.
	Placeholder bool
}

// SuggestionsBar holds the quick replies of the trailing suggestions message.
type SuggestionsBar struct {
	NodeID      string
	Suggestions []string
}

// View is the renderable state of a transcript. When Error is set nothing else is shown.
type View struct {
	Entries     []Entry
	Suggestions *SuggestionsBar
	Error       string
}

// Build computes the View of messages.
//
// Suggestions messages never become bubbles. Only when the last message is a
// suggestions message does it become the suggestions bar, so older quick
// replies disappear as soon as anything follows them.
func Build(messages []chat.Message, isTyping bool, sessionError string) View {
	if sessionError != "" {
		return View{Error: sessionError}
	}

	v := View{}
	var prev chat.Sender
	for i, m := range messages {
		if s, ok := m.Action.(*chat.SuggestionsAction); ok {
			if i == len(messages)-1 {
				v.Suggestions = &SuggestionsBar{
					NodeID:      m.NodeID,
					Suggestions: append([]string(nil), s.Suggestions...),
				}
			}
			continue
		}
		v.Entries = append(v.Entries, Entry{
			Message:    m,
			Position:   positionOf(m.Sender),
			HideAvatar: len(v.Entries) > 0 && prev == m.Sender,
		})
		prev = m.Sender
	}

	if isTyping {
		v.Entries = append(v.Entries, Entry{
			Message:     typingMessage(),
			Position:    PositionLeft,
			Placeholder: true,
		})
	}
	return v
}

func positionOf(s chat.Sender) Position {
	if s == chat.SenderUser {
		return PositionRight
	}
	return PositionLeft
}

func typingMessage() chat.Message {
	return chat.Message{
		Sender: chat.SenderAutomation,
		NodeID: chat.SyntheticNodeID,
		Action: &chat.MessageAction{ID: chat.SyntheticNodeID, Messages: []string{TypingPlaceholder}},
	}
}

// TwoLetters returns the upper-cased first two characters of s, used as avatar initials.
func TwoLetters(s string) string {
	r := []rune(s)
	if len(r) > 2 {
		r = r[:2]
	}
	return strings.ToUpper(string(r))
}
