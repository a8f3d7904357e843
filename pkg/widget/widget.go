// Package widget is the state container of one chat widget instance. It owns
// the session controller and the delivery pipeline, keeps the transcript and
// the open/typing/teaser flags, and reports every change through a Notifier.
// Shells (the Bubble Tea program, the line mode) render from Snapshot.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/delivery"
	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/go-go-golems/webchat-embed/pkg/session"
	"github.com/go-go-golems/webchat-embed/pkg/timer"
	"github.com/go-go-golems/webchat-embed/pkg/transcript"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OptimisticTypingDelay is how long after a send the typing indicator shows if
// the backend has not answered yet.
const OptimisticTypingDelay = 200 * time.Millisecond

var ErrDisposed = errors.New("widget disposed")

type Option func(*Widget)

func WithID(id string) Option {
	return func(w *Widget) {
		w.id = id
	}
}

func WithScheduler(s timer.Scheduler) Option {
	return func(w *Widget) {
		w.scheduler = s
	}
}

func WithNotifier(n events.Notifier) Option {
	return func(w *Widget) {
		w.notifier = n
	}
}

func WithRevealInterval(d time.Duration) Option {
	return func(w *Widget) {
		w.revealInterval = d
	}
}

type Widget struct {
	id             string
	cfg            config.EmbedConfig
	scheduler      timer.Scheduler
	notifier       events.Notifier
	revealInterval time.Duration
	logger         zerolog.Logger

	controller *session.Controller
	pipeline   *delivery.Pipeline

	mu               sync.Mutex
	mounted          bool
	disposed         bool
	open             bool
	messages         []chat.Message
	pipelineTyping   bool
	optimisticTyping bool
	inFlight         int
	teaserVisible    bool
	teaserDismissed  bool
	welcomeTask      timer.Task
	optimisticTask   timer.Task
}

// New builds a widget for one embed. cfg must already be validated.
func New(cfg config.EmbedConfig, client session.Client, store sessionstore.Store, opts ...Option) *Widget {
	w := &Widget{
		id:             uuid.NewString(),
		cfg:            cfg,
		scheduler:      timer.Real(),
		notifier:       events.Nop(),
		revealInterval: delivery.DefaultRevealInterval,
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = log.With().Str("component", "widget").Str("widget_id", w.id).Logger()
	w.pipeline = delivery.New(pipelineSink{w},
		delivery.WithScheduler(w.scheduler),
		delivery.WithRevealInterval(w.revealInterval),
	)
	w.controller = session.NewController(client, store, sessionSink{w})
	return w
}

func (w *Widget) ID() string { return w.id }

func (w *Widget) Config() config.EmbedConfig { return w.cfg }

// Topic is the bus topic the widget's events are published on.
func (w *Widget) Topic() string { return events.TopicForWidget(w.id) }

// Mount starts the widget closed and schedules the welcome teaser.
func (w *Widget) Mount() {
	w.mu.Lock()
	if w.mounted || w.disposed {
		w.mu.Unlock()
		return
	}
	w.mounted = true
	if w.cfg.WelcomeMessage != "" {
		delay := time.Duration(w.cfg.WelcomeMessageDelay) * time.Millisecond
		w.welcomeTask = w.scheduler.AfterFunc(delay, w.showTeaser)
	}
	w.mu.Unlock()
	w.logger.Debug().Bool("teaser", w.cfg.WelcomeMessage != "").Msg("mounted")
}

func (w *Widget) showTeaser() {
	w.mu.Lock()
	w.welcomeTask = nil
	if w.disposed || w.teaserDismissed || w.open {
		w.mu.Unlock()
		return
	}
	w.teaserVisible = true
	w.mu.Unlock()
	w.emit(events.NewTeaser(w.meta(), true, w.cfg.WelcomeMessage))
}

// Toggle flips the panel between closed and open and returns the new state.
// Opening dismisses the teaser for good; the caller is expected to call
// EnsureSession afterwards.
func (w *Widget) Toggle() bool {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return false
	}
	w.open = !w.open
	open := w.open
	var evs []events.Event
	if open && !w.teaserDismissed {
		w.teaserDismissed = true
		timer.StopTask(w.welcomeTask)
		w.welcomeTask = nil
		if w.teaserVisible {
			w.teaserVisible = false
			evs = append(evs, events.NewTeaser(w.meta(), false, ""))
		}
	}
	w.mu.Unlock()

	w.emit(events.NewOpenChanged(w.meta(), open))
	w.emit(evs...)
	return open
}

// Open opens the panel if it is closed and establishes the session.
func (w *Widget) Open(ctx context.Context) error {
	if !w.IsOpen() {
		w.Toggle()
	}
	return w.EnsureSession(ctx)
}

// EnsureSession asks the controller for a session. It is a no-op while a
// fetch is running or once a session exists; after a failure it tries again.
func (w *Widget) EnsureSession(ctx context.Context) error {
	if w.isDisposed() {
		return ErrDisposed
	}
	changed, err := w.controller.Establish(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg(config.LogPrefix + ": Error fetching session")
		if msg := w.controller.Error(); msg != "" {
			w.emit(events.NewSessionError(w.meta(), msg))
		}
		return err
	}
	// only the call that settled the session announces it
	if !changed {
		return nil
	}
	if id := w.controller.SessionID(); id != "" {
		w.emit(events.NewSessionReady(w.meta(), id))
	}
	return nil
}

// Send appends the user's message and forwards it to the backend. Blank input
// is ignored. A failed send is logged and otherwise dropped.
func (w *Widget) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if w.controller.SessionID() == "" {
		return session.ErrNotReady
	}

	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return ErrDisposed
	}
	msg := chat.NewUserMessage(text)
	w.messages = append(w.messages, msg)
	idx := len(w.messages) - 1
	w.inFlight++
	timer.StopTask(w.optimisticTask)
	w.optimisticTask = w.scheduler.AfterFunc(OptimisticTypingDelay, w.showOptimisticTyping)
	w.mu.Unlock()
	w.emit(events.NewMessageAppended(w.meta(), idx, msg))

	reply, err := w.controller.Send(ctx, text)
	if err != nil {
		w.logger.Debug().Err(err).Msg("send failed")
	} else {
		w.pipeline.Enqueue(reply...)
	}
	w.settleSend()
	return nil
}

func (w *Widget) showOptimisticTyping() {
	w.mu.Lock()
	if w.disposed || w.inFlight == 0 {
		w.mu.Unlock()
		return
	}
	before := w.typingLocked()
	w.optimisticTyping = true
	ev := w.typingEventLocked(before)
	w.mu.Unlock()
	w.emit(ev)
}

// settleSend runs after a reply has been handed to the pipeline, which owns
// the typing indicator from then on.
func (w *Widget) settleSend() {
	w.mu.Lock()
	if w.inFlight > 0 {
		w.inFlight--
	}
	if w.inFlight > 0 || w.disposed {
		w.mu.Unlock()
		return
	}
	timer.StopTask(w.optimisticTask)
	w.optimisticTask = nil
	before := w.typingLocked()
	w.optimisticTyping = false
	ev := w.typingEventLocked(before)
	w.mu.Unlock()
	w.emit(ev)
}

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *Widget) isDisposed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed
}

// Dispose cancels every pending timer and forgets the transcript and the
// in-memory session. The stored session id is kept.
func (w *Widget) Dispose() {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	w.disposed = true
	timer.StopTask(w.welcomeTask)
	timer.StopTask(w.optimisticTask)
	w.welcomeTask = nil
	w.optimisticTask = nil
	w.messages = nil
	w.pipelineTyping = false
	w.optimisticTyping = false
	w.teaserVisible = false
	w.open = false
	w.mu.Unlock()

	w.pipeline.Close()
	w.controller.Reset()
	w.emit(events.NewDisposed(w.meta()))
	w.logger.Debug().Msg("disposed")
}

func (w *Widget) typingLocked() bool {
	return w.pipelineTyping || w.optimisticTyping
}

// typingEventLocked returns a typing event if the visible indicator changed since before.
func (w *Widget) typingEventLocked(before bool) events.Event {
	if now := w.typingLocked(); now != before {
		return events.NewTypingChanged(w.meta(), now)
	}
	return nil
}

func (w *Widget) meta() events.Metadata {
	return events.NewMetadata(w.id)
}

func (w *Widget) emit(evs ...events.Event) {
	for _, e := range evs {
		if e != nil {
			w.notifier.Notify(e)
		}
	}
}

// appendVisible adds msgs to the transcript as shown.
func (w *Widget) appendVisible(msgs ...chat.Message) {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	start := len(w.messages)
	w.messages = append(w.messages, msgs...)
	w.mu.Unlock()
	for i, m := range msgs {
		w.emit(events.NewMessageAppended(w.meta(), start+i, m))
	}
}

type pipelineSink struct{ w *Widget }

func (s pipelineSink) Reveal(m chat.Message) { s.w.appendVisible(m) }

func (s pipelineSink) SetTyping(typing bool) {
	w := s.w
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	before := w.typingLocked()
	w.pipelineTyping = typing
	ev := w.typingEventLocked(before)
	w.mu.Unlock()
	w.emit(ev)
}

type sessionSink struct{ w *Widget }

func (s sessionSink) AppendVisible(msgs ...chat.Message) { s.w.appendVisible(msgs...) }
func (s sessionSink) Enqueue(msgs ...chat.Message)       { s.w.pipeline.Enqueue(msgs...) }

var (
	_ delivery.Sink = pipelineSink{}
	_ session.Sink  = sessionSink{}
)

// Snapshot is an immutable copy of the widget state for rendering.
type Snapshot struct {
	ID           string
	Open         bool
	Messages     []chat.Message
	Typing       bool
	SessionReady bool
	SessionError string
	Teaser       string
}

// View builds the transcript view of the snapshot.
func (s Snapshot) View() transcript.View {
	return transcript.Build(s.Messages, s.Typing, s.SessionError)
}

// Snapshot copies the current state. A configured welcome message is shown as
// the first bot message of the transcript.
func (w *Widget) Snapshot() Snapshot {
	sessionID := w.controller.SessionID()
	sessionErr := w.controller.Error()

	w.mu.Lock()
	defer w.mu.Unlock()
	msgs := make([]chat.Message, 0, len(w.messages)+1)
	if w.cfg.WelcomeMessage != "" {
		msgs = append(msgs, chat.NewAutomationText(w.cfg.WelcomeMessage))
	}
	msgs = append(msgs, w.messages...)

	s := Snapshot{
		ID:           w.id,
		Open:         w.open,
		Messages:     msgs,
		Typing:       w.typingLocked(),
		SessionReady: sessionID != "",
		SessionError: sessionErr,
	}
	if w.teaserVisible && !w.open {
		s.Teaser = w.cfg.WelcomeMessage
	}
	return s
}
