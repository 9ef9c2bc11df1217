// Package webhook delivers analysis events to an HTTP endpoint, signed with
// a shared secret.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/events"
)

const (
	SignatureHeader = "X-EmoSense-Signature"
	EventHeader     = "X-EmoSense-Event"
	EventAnalysis   = "analysis.completed"
)

// ErrDelivery is returned when the endpoint does not accept the event
var ErrDelivery = errors.New("webhook delivery failed")

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Payload is the body of every delivery
type Payload struct {
	Type      string               `json:"type"`
	Data      events.AnalysisEvent `json:"data"`
	Timestamp time.Time            `json:"timestamp"`
}

// Publisher posts one request per analysis. Failed deliveries are reported,
// not retried.
type Publisher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ events.Publisher = (*Publisher)(nil)

type Option func(*Publisher)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) Option {
	return func(p *Publisher) { p.client = c }
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	p := &Publisher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, a *domain.Analysis) error {
	payload, err := json.Marshal(Payload{
		Type:      EventAnalysis,
		Data:      events.NewAnalysisEvent(a),
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, EventAnalysis)
	req.Header.Set("User-Agent", "EmoSense-Webhook/1.0")
	if p.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(p.cfg.Secret, payload))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrDelivery, resp.StatusCode)
	}

	p.logger.Debug("webhook delivered", "id", a.ID, "status", resp.StatusCode)
	return nil
}

func (p *Publisher) Close() {
	p.client.CloseIdleConnections()
}
