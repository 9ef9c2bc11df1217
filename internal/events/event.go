// Package events publishes a summary of every analysis to an MQTT topic and
// other sinks.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// AnalysisEvent is the JSON payload published per analysis. The user text
// and reply are left out.
type AnalysisEvent struct {
	ID             uuid.UUID          `json:"id"`
	Mood           domain.Emotion     `json:"mood"`
	Confidence     float32            `json:"confidence"`
	Probabilities  map[string]float32 `json:"probabilities,omitempty"`
	Provider       string             `json:"provider"`
	VisionDegraded bool               `json:"vision_degraded"`
	TextDegraded   bool               `json:"text_degraded"`
	LatencyMs      int64              `json:"latency_ms"`
	CreatedAt      time.Time          `json:"created_at"`
}

func NewAnalysisEvent(a *domain.Analysis) AnalysisEvent {
	ev := AnalysisEvent{
		ID:             a.ID,
		Mood:           a.Mood(),
		Confidence:     a.Confidence(),
		Provider:       a.Vision.Provider,
		VisionDegraded: a.Vision.Degraded,
		TextDegraded:   a.Text.Degraded,
		LatencyMs:      a.LatencyMs,
		CreatedAt:      a.CreatedAt,
	}
	if !a.Vision.Degraded {
		ev.Probabilities = a.Vision.Prediction.Distribution()
	}
	return ev
}

// Publisher delivers analysis events
type Publisher interface {
	Publish(ctx context.Context, a *domain.Analysis) error
	Close()
}

// NopPublisher drops every event; used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.Analysis) error { return nil }

func (NopPublisher) Close() {}

// Fanout publishes to every sink in order and joins their errors
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, a *domain.Analysis) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() {
	for _, p := range f {
		p.Close()
	}
}
