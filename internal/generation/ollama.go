// Package generation talks to the Ollama chat API that writes the empathetic
// reply for an analysis.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"

	chatPath = "/api/chat"

	// maxErrorBody limits how much of a failed response ends up in the error
	maxErrorBody = 512

	// MaxResponseBody caps what is read from Ollama; larger bodies fail
	MaxResponseBody = 1 << 20
)

// Config holds the Ollama endpoint and model
type Config struct {
	BaseURL string
	Model   string
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// Client is a non-streaming Ollama chat client
type Client struct {
	httpClient *http.Client
	config     Config
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{httpClient: &http.Client{}, config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prompt builds the single user message sent to the model
func Prompt(mood domain.Emotion, text string) string {
	return fmt.Sprintf("You are EmoSense, a therapy AI.\nUser's emotion: %s.\nUser said: \"%s\"\nReply with empathy in 2 sentences.", mood, text)
}

// Reply asks the model for an empathetic answer. The deadline comes from ctx;
// every failure wraps domain.ErrGenerationUnavailable.
func (c *Client) Reply(ctx context.Context, mood domain.Emotion, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.config.Model,
		Stream:   false,
		Messages: []Message{{Role: "user", Content: Prompt(mood, text)}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", domain.ErrGenerationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrGenerationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBody+1))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrGenerationUnavailable, err)
	}
	if len(raw) > MaxResponseBody {
		return "", fmt.Errorf("%w: response exceeds %d bytes", domain.ErrGenerationUnavailable, MaxResponseBody)
	}

	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return "", fmt.Errorf("%w: ollama returned status %d: %s", domain.ErrGenerationUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrGenerationUnavailable, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrGenerationUnavailable, out.Error)
	}

	reply := strings.TrimSpace(out.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrGenerationUnavailable)
	}
	return reply, nil
}
