package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type ActionType string

const (
	ActionMessage     ActionType = "message"
	ActionWait        ActionType = "wait"
	ActionAI          ActionType = "ai"
	ActionSuggestions ActionType = "suggestions"
	ActionImage       ActionType = "image"
	ActionCard        ActionType = "card"
)

type AIResponseType string

const (
	AIResponseKnowledgeBase AIResponseType = "knowledge_base"
	AIResponseGeneral       AIResponseType = "general"
)

// Action is the payload of a message. The set of implementations is closed:
// only this package can add variants, and each one has a method on ActionVisitor.
type Action interface {
	Type() ActionType
	ActionID() string
	Accept(v ActionVisitor)
	isAction()
}

// ActionVisitor dispatches over every action variant.
type ActionVisitor interface {
	VisitMessage(a *MessageAction)
	VisitWait(a *WaitAction)
	VisitAI(a *AIAction)
	VisitSuggestions(a *SuggestionsAction)
	VisitImage(a *ImageAction)
	VisitCard(a *CardAction)
	VisitUnknown(a *UnknownAction)
}

type MessageAction struct {
	ID       string   `json:"id"`
	Messages []string `json:"messages"`
}

// Text returns the first message string. Payloads beyond index 0 are not shown.
func (a *MessageAction) Text() string {
	if len(a.Messages) == 0 {
		return ""
	}
	return a.Messages[0]
}

type WaitAction struct {
	ID    string  `json:"id"`
	Delay float64 `json:"delay"`
}

type AIAction struct {
	ID           string         `json:"id"`
	Variable     *string        `json:"variable,omitempty"`
	ResponseType AIResponseType `json:"responseType"`
}

type SuggestionsAction struct {
	ID          string   `json:"id"`
	Suggestions []string `json:"suggestions"`
}

type ImageAction struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type CardAction struct {
	ID          string   `json:"id"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Image       *string  `json:"image,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
}

// UnknownAction keeps an action whose type tag this client does not know,
// so the view can show it instead of dropping it.
type UnknownAction struct {
	ID      string
	Tag     ActionType
	Payload json.RawMessage
}

func (*MessageAction) Type() ActionType     { return ActionMessage }
func (*WaitAction) Type() ActionType        { return ActionWait }
func (*AIAction) Type() ActionType          { return ActionAI }
func (*SuggestionsAction) Type() ActionType { return ActionSuggestions }
func (*ImageAction) Type() ActionType       { return ActionImage }
func (*CardAction) Type() ActionType        { return ActionCard }
func (a *UnknownAction) Type() ActionType   { return a.Tag }

func (a *MessageAction) ActionID() string     { return a.ID }
func (a *WaitAction) ActionID() string        { return a.ID }
func (a *AIAction) ActionID() string          { return a.ID }
func (a *SuggestionsAction) ActionID() string { return a.ID }
func (a *ImageAction) ActionID() string       { return a.ID }
func (a *CardAction) ActionID() string        { return a.ID }
func (a *UnknownAction) ActionID() string     { return a.ID }

func (a *MessageAction) Accept(v ActionVisitor)     { v.VisitMessage(a) }
func (a *WaitAction) Accept(v ActionVisitor)        { v.VisitWait(a) }
func (a *AIAction) Accept(v ActionVisitor)          { v.VisitAI(a) }
func (a *SuggestionsAction) Accept(v ActionVisitor) { v.VisitSuggestions(a) }
func (a *ImageAction) Accept(v ActionVisitor)       { v.VisitImage(a) }
func (a *CardAction) Accept(v ActionVisitor)        { v.VisitCard(a) }
func (a *UnknownAction) Accept(v ActionVisitor)     { v.VisitUnknown(a) }

func (*MessageAction) isAction()     {}
func (*WaitAction) isAction()        {}
func (*AIAction) isAction()          {}
func (*SuggestionsAction) isAction() {}
func (*ImageAction) isAction()       {}
func (*CardAction) isAction()        {}
func (*UnknownAction) isAction()     {}

type actionEnvelope struct {
	Type ActionType `json:"type"`
	ID   string     `json:"id"`
}

// UnmarshalAction decodes a tagged action object. Unknown tags decode to
// *UnknownAction rather than failing.
func UnmarshalAction(b []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "decode action envelope")
	}

	var a Action
	switch env.Type {
	case ActionMessage:
		a = &MessageAction{}
	case ActionWait:
		a = &WaitAction{}
	case ActionAI:
		a = &AIAction{}
	case ActionSuggestions:
		a = &SuggestionsAction{}
	case ActionImage:
		a = &ImageAction{}
	case ActionCard:
		a = &CardAction{}
	default:
		return &UnknownAction{ID: env.ID, Tag: env.Type, Payload: append(json.RawMessage(nil), b...)}, nil
	}
	if err := json.Unmarshal(b, a); err != nil {
		return nil, errors.Wrapf(err, "decode %s action", env.Type)
	}
	return a, nil
}

// MarshalAction encodes a with its "type" tag.
func MarshalAction(a Action) ([]byte, error) {
	if u, ok := a.(*UnknownAction); ok {
		if len(u.Payload) > 0 {
			return u.Payload, nil
		}
		return json.Marshal(actionEnvelope{Type: u.Tag, ID: u.ID})
	}

	body, err := json.Marshal(a)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s action", a.Type())
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.Wrapf(err, "encode %s action", a.Type())
	}
	tag, _ := json.Marshal(a.Type())
	fields["type"] = tag
	return json.Marshal(fields)
}
