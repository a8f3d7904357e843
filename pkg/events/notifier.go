package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TopicPrefix is prepended to the widget id to form its topic.
const TopicPrefix = "webchat-embed."

func TopicForWidget(widgetID string) string {
	return TopicPrefix + widgetID
}

// Notifier receives widget events. Notify must not block on the widget.
type Notifier interface {
	Notify(e Event)
}

type NotifierFunc func(e Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// Nop discards every event.
func Nop() Notifier { return nopNotifier{} }

// PublisherNotifier publishes events as JSON on a watermill topic.
type PublisherNotifier struct {
	publisher message.Publisher
	topic     string
	mu        sync.Mutex
}

var _ Notifier = &PublisherNotifier{}

func NewPublisherNotifier(publisher message.Publisher, topic string) *PublisherNotifier {
	return &PublisherNotifier{publisher: publisher, topic: topic}
}

func (n *PublisherNotifier) Topic() string { return n.topic }

// Notify publishes e. Publish failures are logged, a broken bus never breaks the widget.
func (n *PublisherNotifier) Notify(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("component", "events").Str("type", string(e.Type())).Msg("failed to encode event")
		return
	}
	msg := message.NewMessage(uuid.NewString(), b)
	msg.Metadata.Set("event_type", string(e.Type()))
	msg.Metadata.Set("widget_id", e.Metadata().WidgetID)

	// serialized so events of one widget keep their order on the bus
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.publisher.Publish(n.topic, msg); err != nil {
		log.Warn().Err(err).Str("component", "events").Str("topic", n.topic).Msg("failed to publish event")
	}
}

// Fanout delivers each event to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(e Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(e)
		}
	}
}
