package cmds

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/go-go-golems/webchat-embed/pkg/events"
	"github.com/go-go-golems/webchat-embed/pkg/mockbackend"
	"github.com/go-go-golems/webchat-embed/pkg/persistence/sessionstore"
	"github.com/go-go-golems/webchat-embed/pkg/session"
	"github.com/go-go-golems/webchat-embed/pkg/widget"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.AppConfig {
	cfg := config.Default()
	cfg.APIConfig = config.APIConfig{BaseURL: baseURL, APIKey: "key", AutomationID: "auto"}
	cfg.EmbedConfig = config.StarterEmbed()
	cfg.EmbedConfig.Name = "Demo"
	cfg.EmbedConfig.Description = "Demo automation"
	cfg.Storage = config.StorageSettings{Backend: config.StorageMemory}
	return cfg
}

func TestRunHeadless_AgainstMockBackend(t *testing.T) {
	backend := mockbackend.NewServer(mockbackend.WithCredentials("key", "auto"))
	ts := httptest.NewServer(backend.Routes())
	defer ts.Close()

	cfg := testConfig(ts.URL)
	require.NoError(t, cfg.Validate())
	a, err := newApp(cfg, "headless-test", widget.WithRevealInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, runHeadless(ctx, a, strings.NewReader("1\n:q\nignored\n"), &out, 5*time.Second))

	expected := []string{
		"Demo: Hi! I'm the demo assistant.",
		"Demo: What can I do for you today?",
		"Demo: quick replies:",
		"  1) Opening hours",
		"You: Opening hours",
		"Demo: We're open Monday to Friday, 9am to 6pm.",
		"Demo: Saturdays we close at 2pm.",
		"  1) Book a visit",
	}
	got := out.String()
	pos := 0
	for _, line := range expected {
		idx := strings.Index(got[pos:], line)
		require.GreaterOrEqual(t, idx, 0, "missing %q after offset %d in:\n%s", line, pos, got)
		pos += idx + len(line)
	}
	assert.NotContains(t, got, "ignored")
	assert.Equal(t, 1, backend.Sessions())
}

func TestRunHeadless_ConnectFailureIsPrintedOnce(t *testing.T) {
	ts := httptest.NewServer(mockbackend.NewServer(mockbackend.WithCredentials("other", "auto")).Routes())
	defer ts.Close()

	a, err := newApp(testConfig(ts.URL), "", widget.WithRevealInterval(5*time.Millisecond))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, runHeadless(context.Background(), a, strings.NewReader("hello\n"), &out, time.Second))
	got := out.String()
	assert.Equal(t, 1, strings.Count(got, "! "+session.ConnectErrorMessage), got)
	assert.NotContains(t, got, "You: hello")
}

func TestLinePrinter_NeverRepeatsAMessage(t *testing.T) {
	one, two := chat.NewAutomationText("one"), chat.NewAutomationText("two")
	snaps := []widget.Snapshot{
		{Messages: []chat.Message{one, two}},
		{Messages: []chat.Message{one}},
		{Messages: []chat.Message{one, two}},
		{},
		{Messages: []chat.Message{one}},
	}
	var out bytes.Buffer
	p := &linePrinter{out: &out, botName: "Bot", snapshot: func() widget.Snapshot {
		s := snaps[0]
		snaps = snaps[1:]
		return s
	}}

	p.sync()
	p.sync()
	p.sync()
	assert.Equal(t, "Bot: one\nBot: two\n", out.String())

	// an empty transcript starts over
	p.sync()
	p.sync()
	assert.Equal(t, "Bot: one\nBot: two\nBot: one\n", out.String())
}

func TestNewApp_RedisEventsStartAtTail(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	topic := events.TopicForWidget("fixed-id")
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{Stream: topic, Values: map[string]interface{}{"payload": "{}"}}).Result()
	require.NoError(t, err)

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Events = config.EventsSettings{RedisEnabled: true, RedisAddr: mr.Addr(), RedisGroup: "webchat-embed", RedisConsumer: "c1"}
	a, err := newApp(cfg, "fixed-id")
	require.NoError(t, err)
	defer a.Close()

	groups, err := rdb.XInfoGroups(ctx, topic).Result()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	last, err := rdb.XRevRangeN(ctx, topic, "+", "-", 1).Result()
	require.NoError(t, err)
	require.Equal(t, last[0].ID, groups[0].LastDeliveredID)
}

func TestPickSuggestion(t *testing.T) {
	snap := widget.Snapshot{Messages: []chat.Message{
		chat.NewAutomationText("hi"),
		{Sender: chat.SenderAutomation, Action: &chat.SuggestionsAction{Suggestions: []string{"A", "B"}}},
	}}
	assert.Equal(t, "B", pickSuggestion(snap, "2"))
	assert.Equal(t, "3", pickSuggestion(snap, "3"))
	assert.Equal(t, "hello", pickSuggestion(snap, "hello"))
	assert.Equal(t, "1", pickSuggestion(widget.Snapshot{}, "1"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("abc"))
	assert.Equal(t, "ab****gh", maskSecret("abcdefgh"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetIn(strings.NewReader(stdin))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "disabled"))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigValidate_ListsFailingFields(t *testing.T) {
	path := writeConfig(t, `
apiConfig:
  apiKey: key
  automationId: auto
embedConfig:
  name: Demo
`)
	out, err := execute(t, "config", "validate", "--config", path)
	require.Error(t, err)
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("apiConfig.baseUrl"))
	assert.Contains(t, out, "invalid: apiConfig.baseUrl")
	assert.NotContains(t, out, "embedConfig.name")
}

func TestConfigPrint_MasksAPIKey(t *testing.T) {
	path := writeConfig(t, `
apiConfig:
  baseUrl: https://api.example.com
  apiKey: supersecret
  automationId: auto
embedConfig:
  name: Demo
`)
	out, err := execute(t, "config", "print", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "baseUrl: https://api.example.com")
	assert.Contains(t, out, "apiKey: su*******et")
	assert.NotContains(t, out, "supersecret")

	out, err = execute(t, "config", "print", "--show-secrets", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "apiKey: supersecret")
}

func TestSessionShowAndForget(t *testing.T) {
	sessionPath := filepath.Join(t.TempDir(), "session.yaml")
	store, err := sessionstore.NewFileStore(sessionPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), sessionstore.SessionKey, "sess-42"))

	path := writeConfig(t, fmt.Sprintf("storage:\n  backend: file\n  path: %s\n", sessionPath))

	out, err := execute(t, "session", "show", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "sess-42\n", out)

	out, err = executeWithInput(t, "n\n", "session", "forget", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "kept stored session")

	out, err = execute(t, "session", "show", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "sess-42\n", out)

	_, err = execute(t, "session", "forget", "--yes", "--config", path)
	require.NoError(t, err)

	out, err = execute(t, "session", "show", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "no stored session\n", out)
}

func TestWriteConfigFile_RoundTripsThroughValidate(t *testing.T) {
	cfg := testConfig("https://api.example.com")
	cfg.Storage = config.StorageSettings{Backend: config.StorageFile, Path: filepath.Join(t.TempDir(), "session.yaml")}
	path := filepath.Join(t.TempDir(), "nested", "webchat.yaml")
	require.NoError(t, writeConfigFile(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestWriteConfigFile_RefusesInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webchat.yaml")
	err := writeConfigFile(path, config.Default())
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigFormValidators(t *testing.T) {
	assert.NoError(t, validateURL("https://api.example.com"))
	assert.Error(t, validateURL("api.example.com"))
	assert.Error(t, notBlank("name")("  "))
	assert.NoError(t, notBlank("name")("Demo"))
}
