package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const sessionPayload = `[
  {"sender":"automation","nodeId":"n1","action":{"type":"message","id":"a1","messages":["Hi","there"]}},
  {"sender":"automation","nodeId":"n2","action":{"type":"wait","id":"a2","delay":2}},
  {"sender":"automation","nodeId":"n3","action":{"type":"ai","id":"a3","responseType":"knowledge_base","variable":"answer"}},
  {"sender":"automation","nodeId":"n4","action":{"type":"image","id":"a4","url":"https://example.com/cat.png"}},
  {"sender":"automation","nodeId":"n5","action":{"type":"card","id":"a5","title":"Plans","buttons":[{"label":"Pricing","url":"https://example.com/pricing"}]}},
  {"sender":"automation","nodeId":"n6","action":{"type":"carousel","id":"a6","items":[1,2]}},
  {"sender":"automation","nodeId":"n7","action":{"type":"suggestions","id":"a7","suggestions":["Yes","No"]}}
]`

func TestMessage_DecodesEveryVariant(t *testing.T) {
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(sessionPayload), &msgs))
	require.Len(t, msgs, 7)

	m, ok := msgs[0].Action.(*MessageAction)
	require.True(t, ok)
	require.Equal(t, "Hi", m.Text())
	require.Equal(t, []string{"Hi", "there"}, m.Messages)

	w, ok := msgs[1].Action.(*WaitAction)
	require.True(t, ok)
	require.Equal(t, float64(2), w.Delay)

	ai, ok := msgs[2].Action.(*AIAction)
	require.True(t, ok)
	require.Equal(t, AIResponseKnowledgeBase, ai.ResponseType)
	require.NotNil(t, ai.Variable)
	require.Equal(t, "answer", *ai.Variable)

	img, ok := msgs[3].Action.(*ImageAction)
	require.True(t, ok)
	require.Equal(t, "https://example.com/cat.png", img.URL)

	card, ok := msgs[4].Action.(*CardAction)
	require.True(t, ok)
	require.NotNil(t, card.Title)
	require.Equal(t, "Plans", *card.Title)
	require.Nil(t, card.Description)
	require.Equal(t, []Button{{Label: "Pricing", URL: "https://example.com/pricing"}}, card.Buttons)

	unknown, ok := msgs[5].Action.(*UnknownAction)
	require.True(t, ok)
	require.Equal(t, ActionType("carousel"), unknown.Type())
	require.Equal(t, "a6", unknown.ActionID())

	require.Equal(t, ActionSuggestions, msgs[6].Type())
	require.Equal(t, SenderAutomation, msgs[6].Sender)
	require.Equal(t, "n7", msgs[6].NodeID)
}

func TestMessage_EncodeKeepsTypeTag(t *testing.T) {
	b, err := json.Marshal(NewUserMessage("hello"))
	require.NoError(t, err)
	require.JSONEq(t, `{"sender":"user","nodeId":"-1","action":{"type":"message","id":"-1","messages":["hello"]}}`, string(b))

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, NewUserMessage("hello"), back)
}

func TestMessage_UnknownActionEncodesOriginalPayload(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"sender":"automation","nodeId":"n","action":{"type":"poll","id":"p","q":"?"}}`), &m))
	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"sender":"automation","nodeId":"n","action":{"type":"poll","id":"p","q":"?"}}`, string(b))
}

func TestMessage_MalformedActionFails(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"sender":"automation","nodeId":"n","action":{"type":"message","messages":"nope"}}`), &m)
	require.Error(t, err)
}

type countingVisitor struct{ seen []string }

func (c *countingVisitor) VisitMessage(*MessageAction)         { c.seen = append(c.seen, "message") }
func (c *countingVisitor) VisitWait(*WaitAction)               { c.seen = append(c.seen, "wait") }
func (c *countingVisitor) VisitAI(*AIAction)                   { c.seen = append(c.seen, "ai") }
func (c *countingVisitor) VisitSuggestions(*SuggestionsAction) { c.seen = append(c.seen, "suggestions") }
func (c *countingVisitor) VisitImage(*ImageAction)             { c.seen = append(c.seen, "image") }
func (c *countingVisitor) VisitCard(*CardAction)               { c.seen = append(c.seen, "card") }
func (c *countingVisitor) VisitUnknown(a *UnknownAction)       { c.seen = append(c.seen, "unknown:"+string(a.Tag)) }

func TestAction_VisitorDispatch(t *testing.T) {
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(sessionPayload), &msgs))

	v := &countingVisitor{}
	for _, m := range msgs {
		m.Action.Accept(v)
	}
	require.Equal(t, []string{"message", "wait", "ai", "image", "card", "unknown:carousel", "suggestions"}, v.seen)
}
