package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/chathandler"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu sync.Mutex

	createResp *chathandler.SessionResponse
	createErr  error
	restore    map[string]*chathandler.SessionResponse
	sendResp   *chathandler.SessionResponse

	creates  int
	restores []string
	sends    []string

	// block, when set, holds CreateSession until closed
	block chan struct{}
}

func (f *fakeClient) CreateSession(ctx context.Context) (*chathandler.SessionResponse, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return f.createResp, f.createErr
}

func (f *fakeClient) RestoreSession(ctx context.Context, sessionID string) *chathandler.SessionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores = append(f.restores, sessionID)
	return f.restore[sessionID]
}

func (f *fakeClient) SendMessage(ctx context.Context, sessionID string, text string) *chathandler.SessionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sessionID+":"+text)
	return f.sendResp
}

func (f *fakeClient) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

type recordingSink struct {
	mu       sync.Mutex
	visible  []chat.Message
	enqueued []chat.Message
}

func (s *recordingSink) AppendVisible(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = append(s.visible, msgs...)
}

func (s *recordingSink) Enqueue(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, msgs...)
}

type failingStore struct {
	*sessionstore.MemoryStore
}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func botText(node, text string) chat.Message {
	return chat.Message{
		Sender: chat.SenderAutomation,
		NodeID: node,
		Action: &chat.MessageAction{ID: node, Messages: []string{text}},
	}
}

func TestEnsureSession_CreatesAndPersists(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{createResp: &chathandler.SessionResponse{
		SessionID: "S1",
		Messages:  []chat.Message{botText("1", "Hi"), botText("2", "How can I help?")},
	}}
	store := sessionstore.NewMemoryStore()
	sink := &recordingSink{}
	c := NewController(client, store, sink)

	require.NoError(t, c.EnsureSession(ctx))
	require.Equal(t, StateReady, c.State())
	require.Equal(t, "S1", c.SessionID())
	require.Equal(t, "", c.Error())
	require.Len(t, sink.enqueued, 2)
	require.Empty(t, sink.visible)
	require.Empty(t, client.restores)

	v, ok, err := store.Get(ctx, sessionstore.SessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "S1", v)

	// a second open is a no-op
	require.NoError(t, c.EnsureSession(ctx))
	require.Equal(t, 1, client.createCount())
	require.Len(t, sink.enqueued, 2)
}

func TestEnsureSession_RestoresStoredSession(t *testing.T) {
	ctx := context.Background()
	history := []chat.Message{
		botText("1", "Hi"),
		chat.NewUserMessage("hello"),
		botText("2", "What do you need?"),
	}
	client := &fakeClient{restore: map[string]*chathandler.SessionResponse{
		"S9": {SessionID: "S9", Messages: history},
	}}
	store := sessionstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, sessionstore.SessionKey, "S9"))
	sink := &recordingSink{}
	c := NewController(client, store, sink)

	require.NoError(t, c.EnsureSession(ctx))
	require.Equal(t, "S9", c.SessionID())
	require.Equal(t, history, sink.visible)
	require.Empty(t, sink.enqueued)
	require.Equal(t, 0, client.createCount())
	require.Equal(t, []string{"S9"}, client.restores)
}

func TestEnsureSession_FallsBackToCreateOnce(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		restore:    map[string]*chathandler.SessionResponse{},
		createResp: &chathandler.SessionResponse{SessionID: "S2", Messages: []chat.Message{botText("1", "Hi")}},
	}
	store := sessionstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, sessionstore.SessionKey, "expired"))
	sink := &recordingSink{}
	c := NewController(client, store, sink)

	require.NoError(t, c.EnsureSession(ctx))
	require.Equal(t, []string{"expired"}, client.restores)
	require.Equal(t, 1, client.createCount())
	require.Equal(t, "S2", c.SessionID())
	require.Len(t, sink.enqueued, 1)

	v, _, err := store.Get(ctx, sessionstore.SessionKey)
	require.NoError(t, err)
	require.Equal(t, "S2", v)
}

func TestEnsureSession_FailureShowsConnectError(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{createErr: errors.New("connection refused")}
	store := sessionstore.NewMemoryStore()
	sink := &recordingSink{}
	c := NewController(client, store, sink)

	err := c.EnsureSession(ctx)
	require.Error(t, err)
	var serr *SessionError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, StateError, c.State())
	require.Equal(t, ConnectErrorMessage, c.Error())
	require.Equal(t, "", c.SessionID())
	require.Empty(t, sink.enqueued)

	_, ok, _ := store.Get(ctx, sessionstore.SessionKey)
	require.False(t, ok)

	// no automatic retry; a later open tries again
	require.Equal(t, 1, client.createCount())
	client.createErr = nil
	client.createResp = &chathandler.SessionResponse{SessionID: "S3"}
	require.NoError(t, c.EnsureSession(ctx))
	require.Equal(t, "S3", c.SessionID())
	require.Equal(t, "", c.Error())
}

func TestEnsureSession_ProtocolErrorIsSessionError(t *testing.T) {
	client := &fakeClient{createErr: &chathandler.ProtocolError{Op: "create", Reason: "missing sessionId"}}
	c := NewController(client, sessionstore.NewMemoryStore(), &recordingSink{})

	err := c.EnsureSession(context.Background())
	var perr *chathandler.ProtocolError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, ConnectErrorMessage, c.Error())
}

func TestEnsureSession_StoreFailuresAreNotFatal(t *testing.T) {
	client := &fakeClient{createResp: &chathandler.SessionResponse{SessionID: "S4"}}
	c := NewController(client, failingStore{sessionstore.NewMemoryStore()}, &recordingSink{})

	require.NoError(t, c.EnsureSession(context.Background()))
	require.Equal(t, "S4", c.SessionID())
	require.Empty(t, client.restores)
}

func TestEnsureSession_ConcurrentOpensFetchOnce(t *testing.T) {
	client := &fakeClient{
		createResp: &chathandler.SessionResponse{SessionID: "S5"},
		block:      make(chan struct{}),
	}
	c := NewController(client, sessionstore.NewMemoryStore(), &recordingSink{})

	done := make(chan error, 1)
	go func() { done <- c.EnsureSession(context.Background()) }()

	require.Eventually(t, func() bool { return c.State() == StateFetching }, time.Second, time.Millisecond)
	require.NoError(t, c.EnsureSession(context.Background()))
	require.NoError(t, c.EnsureSession(context.Background()))

	close(client.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, client.createCount())
	require.Equal(t, "S5", c.SessionID())
}

func TestEnsureSession_ResetDropsInFlightResult(t *testing.T) {
	client := &fakeClient{
		createResp: &chathandler.SessionResponse{SessionID: "S6", Messages: []chat.Message{botText("1", "Hi")}},
		block:      make(chan struct{}),
	}
	sink := &recordingSink{}
	c := NewController(client, sessionstore.NewMemoryStore(), sink)

	done := make(chan error, 1)
	go func() { done <- c.EnsureSession(context.Background()) }()
	require.Eventually(t, func() bool { return c.State() == StateFetching }, time.Second, time.Millisecond)

	c.Reset()
	close(client.block)
	require.NoError(t, <-done)
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, "", c.SessionID())
	require.Empty(t, sink.enqueued)
}

func TestEstablish_ReportsOnlyKeptOutcomes(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{createErr: errors.New("down")}
	c := NewController(client, sessionstore.NewMemoryStore(), &recordingSink{})

	changed, err := c.Establish(ctx)
	require.True(t, changed)
	var serr *SessionError
	require.ErrorAs(t, err, &serr)

	client.createErr = nil
	client.createResp = &chathandler.SessionResponse{SessionID: "S9"}
	changed, err = c.Establish(ctx)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = c.Establish(ctx)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 2, client.createCount())
}

func TestEstablish_ResetDropsInFlightFailure(t *testing.T) {
	client := &fakeClient{createErr: errors.New("down"), block: make(chan struct{})}
	c := NewController(client, sessionstore.NewMemoryStore(), &recordingSink{})

	type result struct {
		changed bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		changed, err := c.Establish(context.Background())
		done <- result{changed, err}
	}()
	require.Eventually(t, func() bool { return c.State() == StateFetching }, time.Second, time.Millisecond)

	c.Reset()
	close(client.block)
	r := <-done
	require.NoError(t, r.err)
	require.False(t, r.changed)
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, "", c.Error())
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{createResp: &chathandler.SessionResponse{SessionID: "S7"}}
	c := NewController(client, sessionstore.NewMemoryStore(), &recordingSink{})

	_, err := c.Send(ctx, "hi")
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, c.EnsureSession(ctx))

	_, err = c.Send(ctx, "hi")
	require.ErrorIs(t, err, ErrSendFailed)

	client.sendResp = &chathandler.SessionResponse{SessionID: "S7", Messages: []chat.Message{botText("3", "Sure")}}
	msgs, err := c.Send(ctx, "book a table")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, []string{"S7:hi", "S7:book a table"}, client.sends)
}

func TestReset_KeepsStoredID(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{createResp: &chathandler.SessionResponse{SessionID: "S8"}}
	store := sessionstore.NewMemoryStore()
	c := NewController(client, store, &recordingSink{})
	require.NoError(t, c.EnsureSession(ctx))

	c.Reset()
	require.Equal(t, StateIdle, c.State())
	require.Equal(t, "", c.SessionID())

	v, ok, err := store.Get(ctx, sessionstore.SessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "S8", v)
}
