// Package events carries widget state changes over a watermill bus, so a
// terminal shell, a log mirror or a Redis stream can follow one widget.
package events

import (
	"encoding/json"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type EventType string

const (
	EventTypeOpenChanged     EventType = "open-changed"
	EventTypeTeaser          EventType = "teaser"
	EventTypeSessionReady    EventType = "session-ready"
	EventTypeSessionError    EventType = "session-error"
	EventTypeMessageAppended EventType = "message-appended"
	EventTypeTypingChanged   EventType = "typing-changed"
	EventTypeDisposed        EventType = "disposed"
)

type Metadata struct {
	ID       uuid.UUID `json:"id"`
	WidgetID string    `json:"widget_id"`
	Time     time.Time `json:"time"`
}

func NewMetadata(widgetID string) Metadata {
	return Metadata{ID: uuid.New(), WidgetID: widgetID, Time: time.Now()}
}

type Event interface {
	Type() EventType
	Metadata() Metadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType `json:"type"`
	Metadata_ Metadata  `json:"meta"`

	payload []byte
}

func (e *EventImpl) Type() EventType    { return e.Type_ }
func (e *EventImpl) Metadata() Metadata { return e.Metadata_ }
func (e *EventImpl) Payload() []byte    { return e.payload }

type EventOpenChanged struct {
	EventImpl
	Open bool `json:"open"`
}

func NewOpenChanged(m Metadata, open bool) *EventOpenChanged {
	return &EventOpenChanged{EventImpl: EventImpl{Type_: EventTypeOpenChanged, Metadata_: m}, Open: open}
}

// EventTeaser toggles the welcome bubble next to the closed launcher.
type EventTeaser struct {
	EventImpl
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
}

func NewTeaser(m Metadata, visible bool, text string) *EventTeaser {
	return &EventTeaser{EventImpl: EventImpl{Type_: EventTypeTeaser, Metadata_: m}, Visible: visible, Text: text}
}

type EventSessionReady struct {
	EventImpl
	SessionID string `json:"session_id"`
}

func NewSessionReady(m Metadata, sessionID string) *EventSessionReady {
	return &EventSessionReady{EventImpl: EventImpl{Type_: EventTypeSessionReady, Metadata_: m}, SessionID: sessionID}
}

type EventSessionError struct {
	EventImpl
	ErrorString string `json:"error"`
}

func NewSessionError(m Metadata, msg string) *EventSessionError {
	return &EventSessionError{EventImpl: EventImpl{Type_: EventTypeSessionError, Metadata_: m}, ErrorString: msg}
}

// EventMessageAppended reports a message that became visible at Index of the transcript.
type EventMessageAppended struct {
	EventImpl
	Index   int          `json:"index"`
	Message chat.Message `json:"message"`
}

func NewMessageAppended(m Metadata, index int, msg chat.Message) *EventMessageAppended {
	return &EventMessageAppended{EventImpl: EventImpl{Type_: EventTypeMessageAppended, Metadata_: m}, Index: index, Message: msg}
}

type EventTypingChanged struct {
	EventImpl
	Typing bool `json:"typing"`
}

func NewTypingChanged(m Metadata, typing bool) *EventTypingChanged {
	return &EventTypingChanged{EventImpl: EventImpl{Type_: EventTypeTypingChanged, Metadata_: m}, Typing: typing}
}

type EventDisposed struct {
	EventImpl
}

func NewDisposed(m Metadata) *EventDisposed {
	return &EventDisposed{EventImpl: EventImpl{Type_: EventTypeDisposed, Metadata_: m}}
}

// NewEventFromJSON decodes an event published by a Notifier.
func NewEventFromJSON(b []byte) (Event, error) {
	var head EventImpl
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, errors.Wrap(err, "decode event")
	}

	var (
		e   Event
		err error
	)
	switch head.Type_ {
	case EventTypeOpenChanged:
		e, err = decodeInto[EventOpenChanged](b)
	case EventTypeTeaser:
		e, err = decodeInto[EventTeaser](b)
	case EventTypeSessionReady:
		e, err = decodeInto[EventSessionReady](b)
	case EventTypeSessionError:
		e, err = decodeInto[EventSessionError](b)
	case EventTypeMessageAppended:
		e, err = decodeInto[EventMessageAppended](b)
	case EventTypeTypingChanged:
		e, err = decodeInto[EventTypingChanged](b)
	case EventTypeDisposed:
		e, err = decodeInto[EventDisposed](b)
	default:
		return nil, errors.Errorf("unknown event type %q", head.Type_)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

type eventPtr[T any] interface {
	*T
	Event
	setPayload([]byte)
}

func (e *EventImpl) setPayload(b []byte) { e.payload = b }

func decodeInto[T any, P eventPtr[T]](b []byte) (Event, error) {
	var v T
	p := P(&v)
	if err := json.Unmarshal(b, p); err != nil {
		return nil, errors.Wrapf(err, "decode %T", v)
	}
	p.setPayload(b)
	return p, nil
}
