// Package llm forwards chat-completion requests to the upstream provider and
// hands back the raw response untouched.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/jarvis-chat/internal/config"
)

// Response is the upstream reply as received. Body is never reshaped.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Completer is the subset of the provider the gateway needs; it is easy to
// mock in tests. A returned error means no response was obtained at all.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (*Response, error)
}

// Doer performs HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts to <base_url>/chat/completions with a bearer token.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    Doer
}

// NewClient creates a provider client from configuration. An empty base URL
// falls back to the OpenAI default.
func NewClient(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(oc.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    http.DefaultClient,
	}
}

// WithHTTP replaces the HTTP client.
func (c *Client) WithHTTP(d Doer) *Client {
	c.http = d
	return c
}

func (c *Client) Complete(ctx context.Context, req openai.ChatCompletionRequest) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// NewRequest builds the upstream request with the configured sampling
// parameters. modelID overrides the configured model when set.
func NewRequest(cfg config.LLMConfig, modelID string, messages []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	model := cfg.Model
	if modelID != "" {
		model = modelID
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      false,
	}
}
