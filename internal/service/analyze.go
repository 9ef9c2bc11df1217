package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/imaging"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultSideEffectTimeout = 5 * time.Second

	// noProvider names the vision outcome when no provider is configured
	noProvider = "none"
)

// Generator writes the reply for a detected mood and the user's text
type Generator interface {
	Reply(ctx context.Context, mood domain.Emotion, text string) (string, error)
}

// AnalysisStore persists finished analyses
type AnalysisStore interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
}

// EventPublisher announces finished analyses
type EventPublisher interface {
	Publish(ctx context.Context, analysis *domain.Analysis) error
}

// Recorder receives the per-request metrics. *metrics.Metrics implements it.
type Recorder interface {
	RecordAnalysis(mood domain.Emotion, provider string, seconds float64)
	RecordConfidence(mood domain.Emotion, confidence float32)
	RecordVisionDegraded(provider, cause string)
	RecordTextDegraded(cause string)
	RecordGenerationDuration(seconds float64)
	RecordSideEffectError(kind string)
}

// AnalyzeRequest is one inference request. Image is an optional base64
// payload, with or without a data URI header.
type AnalyzeRequest struct {
	Text  string
	Image string
}

// AnalyzeService merges the vision and text sub-flows of a request. Neither
// sub-flow is retried and neither can fail the request.
type AnalyzeService struct {
	provider  provider.EmotionProvider
	generator Generator
	store     AnalysisStore
	events    EventPublisher
	metrics   Recorder
	logger    *slog.Logger

	generationTimeout time.Duration
	sideEffectTimeout time.Duration

	wg sync.WaitGroup
}

type Option func(*AnalyzeService)

func WithStore(store AnalysisStore) Option {
	return func(s *AnalyzeService) { s.store = store }
}

func WithEvents(events EventPublisher) Option {
	return func(s *AnalyzeService) { s.events = events }
}

func WithMetrics(m Recorder) Option {
	return func(s *AnalyzeService) { s.metrics = m }
}

func WithGenerationTimeout(d time.Duration) Option {
	return func(s *AnalyzeService) {
		if d > 0 {
			s.generationTimeout = d
		}
	}
}

func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *AnalyzeService) {
		if d > 0 {
			s.sideEffectTimeout = d
		}
	}
}

// NewAnalyzeService wires the sub-flows. A nil provider skips vision for
// every request.
func NewAnalyzeService(p provider.EmotionProvider, g Generator, logger *slog.Logger, opts ...Option) *AnalyzeService {
	s := &AnalyzeService{
		provider:          p,
		generator:         g,
		logger:            logger,
		generationTimeout: DefaultGenerationTimeout,
		sideEffectTimeout: DefaultSideEffectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FallbackReply is the reply used when text generation fails
func FallbackReply(cause error) string {
	return fmt.Sprintf("I hear you. (Local Brain Offline: %v)", cause)
}

// Analyze always returns a well-formed analysis. Empty text is a valid
// message; the transport rejects a request that omits the field.
func (s *AnalyzeService) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.Analysis, error) {
	start := time.Now()
	a := &domain.Analysis{
		ID:       uuid.New(),
		UserText: req.Text,
	}

	a.Vision = s.vision(ctx, req.Image)
	a.Text = s.text(ctx, a.Vision.Prediction.Label, req.Text)

	a.LatencyMs = time.Since(start).Milliseconds()
	a.CreatedAt = time.Now().UTC()

	s.record(a, time.Since(start))
	s.dispatch(ctx, a)

	return a, nil
}

func (s *AnalyzeService) providerName() string {
	if s.provider == nil {
		return noProvider
	}
	return s.provider.Name()
}

func (s *AnalyzeService) vision(ctx context.Context, payload string) domain.VisionOutcome {
	name := s.providerName()
	if strings.TrimSpace(payload) == "" || s.provider == nil {
		return domain.DegradedVision(name, nil)
	}

	raw, err := imaging.DecodePayload(payload)
	if err != nil {
		return s.degradeVision(name, err)
	}

	pred, err := s.provider.DetectEmotion(ctx, raw)
	if err != nil {
		return s.degradeVision(name, err)
	}

	s.logger.Debug("emotion detected",
		slog.String("provider", name),
		slog.String("mood", pred.Label.String()),
		slog.Float64("confidence", float64(pred.Confidence)),
	)

	return domain.VisionOutcome{
		Prediction: pred,
		Provider:   name,
		Attempted:  true,
	}
}

func (s *AnalyzeService) degradeVision(name string, err error) domain.VisionOutcome {
	s.logger.Warn("vision degraded to neutral",
		slog.String("provider", name),
		slog.String("cause", CauseLabel(err)),
		slog.Any("error", err),
	)
	if s.metrics != nil {
		s.metrics.RecordVisionDegraded(name, CauseLabel(err))
	}
	return domain.DegradedVision(name, err)
}

func (s *AnalyzeService) text(ctx context.Context, mood domain.Emotion, text string) domain.TextOutcome {
	if s.generator == nil {
		return s.degradeText(fmt.Errorf("%w: no generator configured", domain.ErrGenerationUnavailable))
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generator.Reply(genCtx, mood, text)
	if s.metrics != nil {
		s.metrics.RecordGenerationDuration(time.Since(start).Seconds())
	}
	if err != nil {
		return s.degradeText(err)
	}

	return domain.TextOutcome{Reply: reply}
}

func (s *AnalyzeService) degradeText(err error) domain.TextOutcome {
	s.logger.Warn("text generation degraded",
		slog.String("cause", CauseLabel(err)),
		slog.Any("error", err),
	)
	if s.metrics != nil {
		s.metrics.RecordTextDegraded(CauseLabel(err))
	}
	return domain.TextOutcome{
		Reply:    FallbackReply(err),
		Degraded: true,
		Cause:    err,
	}
}

func (s *AnalyzeService) record(a *domain.Analysis, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordAnalysis(a.Mood(), a.Vision.Provider, elapsed.Seconds())
	if !a.Vision.Degraded {
		s.metrics.RecordConfidence(a.Mood(), a.Confidence())
	}
}

// dispatch runs the audit insert and the event publish in the background.
// They outlive the request context but not sideEffectTimeout.
func (s *AnalyzeService) dispatch(ctx context.Context, a *domain.Analysis) {
	if s.store == nil && s.events == nil {
		return
	}

	bg := context.WithoutCancel(ctx)
	snapshot := *a

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		sctx, cancel := context.WithTimeout(bg, s.sideEffectTimeout)
		defer cancel()

		if s.store != nil {
			if err := s.store.Create(sctx, &snapshot); err != nil {
				s.sideEffectFailed("audit", snapshot.ID, err)
			}
		}
		if s.events != nil {
			if err := s.events.Publish(sctx, &snapshot); err != nil {
				s.sideEffectFailed("event", snapshot.ID, err)
			}
		}
	}()
}

func (s *AnalyzeService) sideEffectFailed(kind string, id uuid.UUID, err error) {
	s.logger.Error("side effect failed",
		slog.String("kind", kind),
		slog.String("analysis_id", id.String()),
		slog.Any("error", err),
	)
	if s.metrics != nil {
		s.metrics.RecordSideEffectError(kind)
	}
}

// Wait blocks until pending side effects finish. Call it on shutdown.
func (s *AnalyzeService) Wait() {
	s.wg.Wait()
}

// Ready reports the provider state
func (s *AnalyzeService) Ready(ctx context.Context) provider.Info {
	if s.provider == nil {
		return provider.Info{Name: noProvider, Ready: false, Error: "no emotion provider configured"}
	}
	return provider.Describe(ctx, s.provider)
}

// CauseLabel reduces a sub-flow failure to a low-cardinality metrics label
func CauseLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrShape):
		return "shape"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrGenerationUnavailable):
		return "unavailable"
	default:
		return "provider"
	}
}
