package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/rs/zerolog/log"
)

// WidgetEventMsg carries a widget event into the Bubble Tea program.
type WidgetEventMsg struct {
	Event  events.Event
	Cursor events.Cursor
}

// Sender is the part of *tea.Program the forwarder uses.
type Sender interface {
	Send(msg tea.Msg)
}

var _ Sender = &tea.Program{}

// ForwardFunc returns a consumer callback that injects widget events into p.
func ForwardFunc(p Sender) func(events.Event, events.Cursor) {
	return func(e events.Event, cur events.Cursor) {
		log.Trace().Str("component", "ui").Str("type", string(e.Type())).Uint64("seq", cur.Seq).Msg("dispatching event to UI")
		p.Send(WidgetEventMsg{Event: e, Cursor: cur})
	}
}
