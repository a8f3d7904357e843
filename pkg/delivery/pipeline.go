// Package delivery paces the display of bot replies. Messages of a batch are
// queued and revealed one at a time at a fixed cadence while a typing indicator
// is shown, so multi-part replies read like someone typing them.
package delivery

import (
	"sync"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/timer"
	"github.com/rs/zerolog/log"
)

// DefaultRevealInterval is the pause before each revealed message.
// A suggestions bar at the head of the queue is revealed without waiting.
const DefaultRevealInterval = 1000 * time.Millisecond

// Sink receives what the pipeline reveals. Calls are serialized and happen
// while the pipeline holds its own lock, so a Sink must not call back into the
// Pipeline.
type Sink interface {
	Reveal(m chat.Message)
	SetTyping(typing bool)
}

type Option func(*Pipeline)

func WithScheduler(s timer.Scheduler) Option {
	return func(p *Pipeline) {
		p.scheduler = s
	}
}

func WithRevealInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.interval = d
	}
}

// Pipeline is a FIFO of pending messages with at most one scheduled reveal.
type Pipeline struct {
	mu        sync.Mutex
	sink      Sink
	scheduler timer.Scheduler
	interval  time.Duration

	queue  []chat.Message
	task   timer.Task
	gen    uint64
	typing bool
	closed bool
}

func New(sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:      sink,
		scheduler: timer.Real(),
		interval:  DefaultRevealInterval,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enqueue appends msgs to the pending queue. An empty batch does nothing;
// a batch arriving while messages are pending extends the queue.
func (p *Pipeline) Enqueue(msgs ...chat.Message) {
	if len(msgs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		log.Debug().Str("component", "delivery").Int("dropped", len(msgs)).Msg("enqueue after close")
		return
	}
	p.queue = append(p.queue, msgs...)
	log.Trace().Str("component", "delivery").Int("pending", len(p.queue)).Msg("enqueued")
	p.setTypingLocked(true)
	if p.task == nil {
		p.scheduleLocked()
	}
}

// Len returns the number of messages still waiting to be revealed.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Busy reports whether messages are pending, which is also when typing shows.
func (p *Pipeline) Busy() bool {
	return p.Len() > 0
}

// Close cancels the scheduled reveal and drops the pending queue.
// Nothing is revealed after Close returns.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	timer.StopTask(p.task)
	p.task = nil
	p.gen++
	p.queue = nil
	p.typing = false
}

func (p *Pipeline) delayFor(m chat.Message) time.Duration {
	if m.Type() == chat.ActionSuggestions {
		return 0
	}
	return p.interval
}

func (p *Pipeline) scheduleLocked() {
	if len(p.queue) == 0 {
		p.task = nil
		p.setTypingLocked(false)
		return
	}
	p.gen++
	gen := p.gen
	p.task = p.scheduler.AfterFunc(p.delayFor(p.queue[0]), func() {
		p.fire(gen)
	})
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// a task stopped after it started running must not reveal anything
	if p.closed || gen != p.gen || len(p.queue) == 0 {
		return
	}
	head := p.queue[0]
	p.queue[0] = chat.Message{}
	p.queue = p.queue[1:]
	p.sink.Reveal(head)
	p.scheduleLocked()
}

func (p *Pipeline) setTypingLocked(typing bool) {
	if p.typing == typing {
		return
	}
	p.typing = typing
	p.sink.SetTyping(typing)
}
