// Package session owns the widget's chat session: it restores a stored session
// when one exists, creates a new one otherwise and forwards user messages.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/chathandler"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnectErrorMessage is shown in place of the transcript when no session could be established.
const ConnectErrorMessage = "Failed to connect to the server. Please try again later."

var (
	ErrNotReady   = errors.New("session not established")
	ErrSendFailed = errors.New("send message failed")
)

// SessionError reports that neither restoring nor creating a session worked.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %v", ConnectErrorMessage, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

type State int

const (
	StateIdle State = iota
	StateFetching
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Client is the part of the backend API the controller needs.
type Client interface {
	CreateSession(ctx context.Context) (*chathandler.SessionResponse, error)
	RestoreSession(ctx context.Context, sessionID string) *chathandler.SessionResponse
	SendMessage(ctx context.Context, sessionID string, text string) *chathandler.SessionResponse
}

var _ Client = &chathandler.Client{}

// Sink receives the messages of an established session. Restored history is
// shown as is; the greeting of a new session goes through the delivery pipeline.
type Sink interface {
	AppendVisible(msgs ...chat.Message)
	Enqueue(msgs ...chat.Message)
}

type Controller struct {
	client Client
	store  sessionstore.Store
	sink   Sink
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	errMsg    string
	gen       uint64
}

func NewController(client Client, store sessionstore.Store, sink Sink) *Controller {
	return &Controller{
		client: client,
		store:  store,
		sink:   sink,
		logger: log.With().Str("component", "session").Logger(),
	}
}

// EnsureSession establishes the session once. It returns immediately when a
// session exists or a fetch is already running. After a failure a new call
// tries again.
func (c *Controller) EnsureSession(ctx context.Context) error {
	_, err := c.Establish(ctx)
	return err
}

// Establish is EnsureSession that also reports whether this call ran a fetch
// whose outcome was kept. It is false when the call returned early or a Reset
// discarded the result; the error is only set for a kept failure.
func (c *Controller) Establish(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state == StateFetching || c.state == StateReady {
		c.mu.Unlock()
		return false, nil
	}
	c.state = StateFetching
	c.errMsg = ""
	gen := c.gen
	c.mu.Unlock()

	if storedID := c.storedID(ctx); storedID != "" {
		if resp := c.client.RestoreSession(ctx, storedID); resp != nil {
			if !c.finish(gen, resp.SessionID, "") {
				return false, nil
			}
			c.logger.Info().Str("session_id", resp.SessionID).Int("messages", len(resp.Messages)).Msg("restored session")
			c.sink.AppendVisible(resp.Messages...)
			return true, nil
		}
		c.logger.Debug().Str("session_id", storedID).Msg("could not restore session, creating a new one")
	}

	resp, err := c.client.CreateSession(ctx)
	if err != nil {
		if !c.finish(gen, "", ConnectErrorMessage) {
			return false, nil
		}
		return true, &SessionError{Err: err}
	}
	if !c.finish(gen, resp.SessionID, "") {
		return false, nil
	}
	c.logger.Info().Str("session_id", resp.SessionID).Int("messages", len(resp.Messages)).Msg("created session")
	if c.store != nil {
		if err := c.store.Set(ctx, sessionstore.SessionKey, resp.SessionID); err != nil {
			c.logger.Warn().Err(err).Msg("could not persist session id")
		}
	}
	c.sink.Enqueue(resp.Messages...)
	return true, nil
}

// finish records the outcome of a fetch. It returns false when the controller
// was reset while the fetch was running, in which case the outcome is dropped.
func (c *Controller) finish(gen uint64, sessionID string, errMsg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if errMsg != "" {
		c.state = StateError
		c.sessionID = ""
		c.errMsg = errMsg
		return true
	}
	c.state = StateReady
	c.sessionID = sessionID
	c.errMsg = ""
	return true
}

func (c *Controller) storedID(ctx context.Context) string {
	if c.store == nil {
		return ""
	}
	id, ok, err := c.store.Get(ctx, sessionstore.SessionKey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not read stored session id")
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

// Send forwards text to the backend and returns the bot's reply batch.
func (c *Controller) Send(ctx context.Context, text string) ([]chat.Message, error) {
	id := c.SessionID()
	if id == "" {
		return nil, ErrNotReady
	}
	resp := c.client.SendMessage(ctx, id, text)
	if resp == nil {
		return nil, ErrSendFailed
	}
	return resp.Messages, nil
}

// Reset forgets the in-memory session and error. The stored id is kept so the
// next EnsureSession restores the conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = StateIdle
	c.sessionID = ""
	c.errMsg = ""
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Error returns the user-visible error message, or "" when there is none.
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}
