// Package completion sends a conversation's full history to the gateway and
// turns the outcome into either the assistant's reply or a typed *Error.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/comigor/jarvis-chat/internal/chat"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// Kind classifies a failed completion.
type Kind string

const (
	KindUpstream  Kind = "UpstreamError"
	KindNetwork   Kind = "NetworkError"
	KindMalformed Kind = "MalformedResponse"
)

// Error describes a failed completion request.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstream:
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Sender is what the conversation controller needs from a completion client.
type Sender interface {
	Send(ctx context.Context, conv *chat.Conversation) (string, error)
}

type wireMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type wireRequest struct {
	Messages []wireMessage `json:"messages"`
	ModelID  string        `json:"modelId,omitempty"`
}

// Client talks to the gateway's POST /chat endpoint.
type Client struct {
	endpoint string
	modelID  string
	http     *http.Client
	log      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithModelID asks the gateway for a specific model.
func WithModelID(id string) Option {
	return func(c *Client) { c.modelID = id }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the gateway at baseURL. There is no client-side
// timeout; the gateway bounds upstream calls.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat",
		http:     &http.Client{},
		log:      logger.L.With("component", "completion"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts every message of conv and returns the assistant's reply.
func (c *Client) Send(ctx context.Context, conv *chat.Conversation) (string, error) {
	req := wireRequest{
		Messages: make([]wireMessage, 0, len(conv.Messages)),
		ModelID:  c.modelID,
	}
	for _, m := range conv.Messages {
		req.Messages = append(req.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Debug("sending completion request", "conversation", conv.ID, "messages", len(req.Messages))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: "no response from gateway", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindNetwork, Message: "failed to read gateway response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(data, "error.message")
		message := strings.TrimSpace(msg.String())
		if msg.Type != gjson.String || message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		if message == "" {
			message = resp.Status
		}
		return "", &Error{Kind: KindUpstream, StatusCode: resp.StatusCode, Message: message}
	}

	// Any non-empty string is a reply, even one that trims down to nothing.
	content := gjson.GetBytes(data, "choices.0.message.content")
	if content.Type != gjson.String || content.Str == "" {
		return "", &Error{Kind: KindMalformed, StatusCode: resp.StatusCode, Message: "response has no completion content"}
	}
	return strings.TrimSpace(content.Str), nil
}

var _ Sender = (*Client)(nil)
