// Package chathandler is the HTTP client of the automation backend: it creates,
// restores and feeds chat sessions.
package chathandler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/webchat-embed/pkg/chat"
	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionIDHeader carries the session identifier on send-message calls.
const SessionIDHeader = "x-chat-sessionid"

const (
	newSessionPath     = "chat/new-session"
	restoreSessionPath = "chat/restore-session"
	sendMessagePath    = "chat/send-message"
)

// SessionResponse is the shape every endpoint answers with.
type SessionResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

// ProtocolError means the backend answered successfully but the body is not usable.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return "chathandler: " + e.Op + ": " + e.Reason
}

// StatusError is a non-2xx answer.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "chathandler: " + e.Op + ": unexpected status " + http.StatusText(e.StatusCode) + ": " + e.Body
}

type Client struct {
	cfg        config.APIConfig
	baseURL    string
	httpClient *http.Client
	metrics    *Metrics
}

type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMetrics records every call into m.
func WithMetrics(m *Metrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func NewClient(cfg config.APIConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/api/",
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sessionRequest struct {
	APIKey       string `json:"apiKey"`
	AutomationID string `json:"automationId"`
	SessionID    string `json:"sessionId,omitempty"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// CreateSession opens a new conversation.
func (c *Client) CreateSession(ctx context.Context) (*SessionResponse, error) {
	return c.post(ctx, "create", newSessionPath, sessionRequest{
		APIKey:       c.cfg.APIKey,
		AutomationID: c.cfg.AutomationID,
	}, nil, true)
}

// RestoreSession resumes a stored conversation. Any failure yields nil so the
// caller can fall back to CreateSession.
func (c *Client) RestoreSession(ctx context.Context, sessionID string) *SessionResponse {
	resp, err := c.post(ctx, "restore", restoreSessionPath, sessionRequest{
		APIKey:       c.cfg.APIKey,
		AutomationID: c.cfg.AutomationID,
		SessionID:    sessionID,
	}, nil, true)
	if err != nil {
		log.Debug().Err(err).Str("component", "chathandler").Msg("restore session failed")
		return nil
	}
	return resp
}

// SendMessage forwards user text. Failures are logged and yield nil.
func (c *Client) SendMessage(ctx context.Context, sessionID string, text string) *SessionResponse {
	resp, err := c.post(ctx, "send", sendMessagePath, sendMessageRequest{Message: text}, http.Header{
		SessionIDHeader: []string{sessionID},
	}, false)
	if err != nil {
		log.Error().Err(err).Str("component", "chathandler").Msg("send message failed")
		return nil
	}
	return resp
}

// post records exactly one outcome per call. With requireSessionID an answer
// without a sessionId counts as a protocol error.
func (c *Client) post(ctx context.Context, op string, path string, body interface{}, header http.Header, requireSessionID bool) (*SessionResponse, error) {
	start := time.Now()
	resp, err := c.do(ctx, op, path, body, header)
	c.metrics.observeLatency(op, time.Since(start))
	if err == nil && requireSessionID && resp.SessionID == "" {
		err = &ProtocolError{Op: op, Reason: "response has no sessionId"}
	}
	if err != nil {
		c.metrics.observeOutcome(op, outcomeFor(err))
		return nil, err
	}
	c.metrics.observeOutcome(op, outcomeOK)
	return resp, nil
}

func (c *Client) do(ctx context.Context, op string, path string, body interface{}, header http.Header) (*SessionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encode request", op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: post %s", op, path)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read response", op)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out SessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ProtocolError{Op: op, Reason: "malformed body: " + err.Error()}
	}
	return &out, nil
}
