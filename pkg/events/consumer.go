package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// Cursor orders events received from a subscriber. Redis stream ids are used
// when present, otherwise a local counter.
type Cursor struct {
	StreamID string
	Seq      uint64
}

// Consumer owns a subscription to one widget topic and dispatches decoded
// events in order to onEvent.
type Consumer struct {
	topic      string
	subscriber message.Subscriber
	onEvent    func(Event, Cursor)

	seq atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

func NewConsumer(topic string, subscriber message.Subscriber, onEvent func(Event, Cursor)) *Consumer {
	return &Consumer{
		topic:      topic,
		subscriber: subscriber,
		onEvent:    onEvent,
	}
}

// Start subscribes and consumes in a background goroutine until ctx is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c == nil || c.subscriber == nil {
		return nil
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch, err := c.subscriber.Subscribe(runCtx, c.topic)
	if err != nil {
		c.mu.Unlock()
		cancel()
		return err
	}
	c.cancel = cancel
	c.running = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	log.Debug().Str("component", "events").Str("topic", c.topic).Msg("consumer started")
	go c.consume(ch, done)
	return nil
}

// Stop cancels the subscription.
func (c *Consumer) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.mu.Unlock()
}

// Done is closed once the consume loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Consumer) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) consume(ch <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		ev, err := NewEventFromJSON(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("component", "events").Str("topic", c.topic).Msg("failed to decode event")
			msg.Ack()
			continue
		}
		streamID := extractStreamID(msg)
		cur := Cursor{StreamID: streamID, Seq: c.nextSeq(streamID)}
		if c.onEvent != nil {
			c.onEvent(ev, cur)
		}
		msg.Ack()
	}
	log.Debug().Str("component", "events").Str("topic", c.topic).Msg("consumer stopped")
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
}

func (c *Consumer) nextSeq(streamID string) uint64 {
	if derived, ok := deriveSeqFromStreamID(streamID); ok {
		for {
			current := c.seq.Load()
			next := max(derived, current+1)
			if c.seq.CompareAndSwap(current, next) {
				return next
			}
		}
	}
	return c.seq.Add(1)
}

func extractStreamID(msg *message.Message) string {
	if msg == nil || msg.Metadata == nil {
		return ""
	}
	for _, k := range []string{"xid", "redis_xid"} {
		if v := msg.Metadata.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// deriveSeqFromStreamID maps a Redis stream id "<ms>-<n>" to a monotonic number.
func deriveSeqFromStreamID(streamID string) (uint64, bool) {
	parts := strings.Split(streamID, "-")
	if len(parts) != 2 {
		return 0, false
	}
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms*1_000_000 + n, true
}
