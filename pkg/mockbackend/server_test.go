package mockbackend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/chathandler"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/go-go-golems/webchat-embed/pkg/timer"
	"github.com/go-go-golems/webchat-embed/pkg/widget"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server, *chathandler.Client) {
	t.Helper()
	s := NewServer(append([]Option{WithCredentials("key", "auto")}, opts...)...)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	c := chathandler.NewClient(config.APIConfig{BaseURL: ts.URL, APIKey: "key", AutomationID: "auto"})
	return s, ts, c
}

func TestServer_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _, c := newTestServer(t)

	created, err := c.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created.SessionID)
	require.Len(t, created.Messages, 3)
	require.Equal(t, chat.ActionSuggestions, created.Messages[2].Type())

	reply := c.SendMessage(ctx, created.SessionID, "what are your opening hours?")
	require.NotNil(t, reply)
	require.Equal(t, created.SessionID, reply.SessionID)
	require.Equal(t, "We're open Monday to Friday, 9am to 6pm.", reply.Messages[0].Action.(*chat.MessageAction).Text())

	restored := c.RestoreSession(ctx, created.SessionID)
	require.NotNil(t, restored)
	require.Len(t, restored.Messages, 3+1+3)
	require.Equal(t, chat.SenderUser, restored.Messages[3].Sender)
	require.Equal(t, 1, s.Sessions())
}

func TestServer_RejectsUnknownSessionAndBadCredentials(t *testing.T) {
	ctx := context.Background()
	_, ts, c := newTestServer(t)

	require.Nil(t, c.RestoreSession(ctx, "nope"))
	require.Nil(t, c.SendMessage(ctx, "nope", "hi"))

	bad := chathandler.NewClient(config.APIConfig{BaseURL: ts.URL, APIKey: "wrong", AutomationID: "auto"})
	_, err := bad.CreateSession(ctx)
	var serr *chathandler.StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusUnauthorized, serr.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	s, ts, c := newTestServer(t)
	_, err := c.CreateSession(context.Background())
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(s.requests.WithLabelValues("new-session", "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(s.sessions))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "webchat_mock_backend_requests_total"))
}

func TestDemoScript(t *testing.T) {
	sc := DemoScript()
	require.Equal(t, chat.ActionCard, sc.Reply("I want to book")[0].Type())
	require.Equal(t, chat.ActionImage, sc.Reply("show me the place")[0].Type())
	require.Equal(t, chat.ActionAI, sc.Reply("let me think")[0].Type())
	require.Equal(t, "You said: hey", sc.Reply("hey")[0].Action.(*chat.MessageAction).Text())
}

// The widget against a real HTTP backend: greeting paced, session restored on a second mount.
func TestWidget_AgainstMockBackend(t *testing.T) {
	ctx := context.Background()
	_, _, c := newTestServer(t)
	store := sessionstore.NewMemoryStore()
	cfg := config.StarterEmbed()
	cfg.Name = "Demo"
	cfg.Description = "Demo automation"

	clock := timer.NewManual()
	w := widget.New(cfg, c, store, widget.WithScheduler(clock))
	require.NoError(t, w.Open(ctx))
	clock.Advance(2 * time.Second)
	s := w.Snapshot()
	require.Len(t, s.Messages, 3)
	require.NotNil(t, s.View().Suggestions)
	require.False(t, s.Typing)

	require.NoError(t, w.Send(ctx, "book please"))
	clock.Advance(time.Second)
	require.Equal(t, chat.ActionCard, w.Snapshot().Messages[4].Type())
	w.Dispose()

	second := widget.New(cfg, c, store, widget.WithScheduler(timer.NewManual()))
	defer second.Dispose()
	require.NoError(t, second.Open(ctx))
	s = second.Snapshot()
	require.Len(t, s.Messages, 5)
	require.False(t, s.Typing)
}
