package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/service"
)

// Analyzer runs one inference request
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*domain.Analysis, error)
}

type AnalyzeHandler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

func NewAnalyzeHandler(analyzer Analyzer, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		logger:   logger,
	}
}

// AnalyzeRequest is the JSON body of POST /api/analyze. Image is base64,
// optionally with a data URI prefix.
type AnalyzeRequest struct {
	Text  *string `json:"text"`
	Image *string `json:"image"`
}

// AnalyzeResponse is the JSON answer of POST /api/analyze
type AnalyzeResponse struct {
	ID            string             `json:"id"`
	Response      string             `json:"response"`
	Mood          string             `json:"mood"`
	Analysis      string             `json:"analysis"`
	Probabilities map[string]float32 `json:"probabilities"`
}

// NewAnalyzeResponse renders an analysis. Probabilities stay empty when the
// vision sub-flow degraded.
func NewAnalyzeResponse(a *domain.Analysis) AnalyzeResponse {
	probs := map[string]float32{}
	if !a.Vision.Degraded {
		probs = a.Vision.Prediction.Distribution()
	}
	return AnalyzeResponse{
		ID:            a.ID.String(),
		Response:      a.Text.Reply,
		Mood:          a.Mood().String(),
		Analysis:      domain.ConfidenceText(a.Confidence()),
		Probabilities: probs,
	}
}

func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var body AnalyzeRequest
	if err := c.BodyParser(&body); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}
	if body.Text == nil {
		return domain.ErrValidationFailed.WithError(errors.New("text is required"))
	}

	req := service.AnalyzeRequest{Text: *body.Text}
	if body.Image != nil {
		req.Image = *body.Image
	}

	a, err := h.analyzer.Analyze(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.logger.Debug("analysis served",
		slog.String("id", a.ID.String()),
		slog.String("mood", a.Mood().String()),
		slog.Bool("vision_degraded", a.Vision.Degraded),
		slog.Bool("text_degraded", a.Text.Degraded),
		slog.Int64("latency_ms", a.LatencyMs),
	)

	return c.JSON(NewAnalyzeResponse(a))
}
