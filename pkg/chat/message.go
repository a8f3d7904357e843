// Package chat holds the transcript data model shared by the widget: messages,
// their senders and the closed set of action variants a bot turn can carry.
package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Sender string

const (
	SenderUser       Sender = "user"
	SenderAutomation Sender = "automation"
)

// SyntheticNodeID marks messages created on the client side (user input,
// welcome message, typing placeholder).
const SyntheticNodeID = "-1"

// Message is one transcript entry. Messages are values and are never mutated
// once appended to a transcript.
type Message struct {
	Sender Sender
	NodeID string
	Action Action
}

// NewUserMessage builds the message appended locally when the user sends text.
func NewUserMessage(text string) Message {
	return Message{
		Sender: SenderUser,
		NodeID: SyntheticNodeID,
		Action: &MessageAction{ID: SyntheticNodeID, Messages: []string{text}},
	}
}

// NewAutomationText builds a client-side automation text message.
func NewAutomationText(text string) Message {
	return Message{
		Sender: SenderAutomation,
		NodeID: SyntheticNodeID,
		Action: &MessageAction{ID: "1", Messages: []string{text}},
	}
}

// Type returns the action type of the message, or "" when it carries no action.
func (m Message) Type() ActionType {
	if m.Action == nil {
		return ""
	}
	return m.Action.Type()
}

type wireMessage struct {
	Sender Sender          `json:"sender"`
	NodeID string          `json:"nodeId"`
	Action json.RawMessage `json:"action"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if m.Action != nil {
		b, err := MarshalAction(m.Action)
		if err != nil {
			return nil, err
		}
		raw = b
	} else {
		raw = json.RawMessage("null")
	}
	return json.Marshal(wireMessage{Sender: m.Sender, NodeID: m.NodeID, Action: raw})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return errors.Wrap(err, "decode message")
	}
	m.Sender = w.Sender
	m.NodeID = w.NodeID
	m.Action = nil
	if len(w.Action) == 0 || string(w.Action) == "null" {
		return nil
	}
	a, err := UnmarshalAction(w.Action)
	if err != nil {
		return errors.Wrapf(err, "decode action of node %q", w.NodeID)
	}
	m.Action = a
	return nil
}
