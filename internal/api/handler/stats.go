package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
)

// MoodStatsReader reads the mood distribution from the audit store
type MoodStatsReader interface {
	MoodStats(ctx context.Context, since time.Time) ([]domain.MoodCount, error)
}

type StatsHandler struct {
	store MoodStatsReader
	now   func() time.Time
}

// NewStatsHandler creates the stats handler. A nil store answers 503.
func NewStatsHandler(store MoodStatsReader) *StatsHandler {
	return &StatsHandler{store: store, now: time.Now}
}

// MoodStatsResponse is the JSON answer of GET /api/stats/moods
type MoodStatsResponse struct {
	Window string             `json:"window"`
	Since  time.Time          `json:"since"`
	Total  int64              `json:"total"`
	Moods  []domain.MoodCount `json:"moods"`
	Share  map[string]float64 `json:"share"`
}

// Moods returns the label distribution over ?window= (Go duration, default 24h)
func (h *StatsHandler) Moods(c *fiber.Ctx) error {
	if h.store == nil {
		return domain.ErrStoreUnavailable
	}

	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxStatsWindow {
			return domain.ErrBadRequest.WithError(fmt.Errorf("invalid window %q", raw))
		}
		window = d
	}

	since := h.now().Add(-window).UTC()
	counts, err := h.store.MoodStats(c.UserContext(), since)
	if err != nil {
		return domain.ErrStoreUnavailable.WithError(err)
	}

	resp := MoodStatsResponse{
		Window: window.String(),
		Since:  since,
		Moods:  counts,
		Share:  make(map[string]float64, len(counts)),
	}
	if resp.Moods == nil {
		resp.Moods = []domain.MoodCount{}
	}
	for _, mc := range counts {
		resp.Total += mc.Count
	}
	for _, mc := range counts {
		if resp.Total > 0 {
			resp.Share[mc.Mood.String()] = float64(mc.Count) / float64(resp.Total)
		}
	}

	return c.JSON(resp)
}
