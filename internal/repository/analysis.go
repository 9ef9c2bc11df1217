package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrAnalysisExists   = errors.New("analysis already stored")
)

type AnalysisRepository struct {
	pool PgxPool
}

var _ AnalysisRepositoryInterface = (*AnalysisRepository)(nil)

func NewAnalysisRepository(pool PgxPool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	query := `
		INSERT INTO analyses (id, user_text, reply, mood, confidence, probabilities, provider,
			vision_attempted, vision_degraded, vision_cause, text_degraded, text_cause, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.UserText,
		a.Text.Reply,
		a.Mood().String(),
		a.Confidence(),
		probabilityVector(a.Vision.Prediction, a.Vision.Degraded),
		a.Vision.Provider,
		a.Vision.Attempted,
		a.Vision.Degraded,
		nullableCause(a.Vision.Cause),
		a.Text.Degraded,
		nullableCause(a.Text.Cause),
		a.LatencyMs,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAnalysisExists
		}
		return fmt.Errorf("create analysis: %w", err)
	}

	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Analysis, error) {
	query := `
		SELECT id, user_text, reply, mood, confidence, probabilities, provider,
			vision_attempted, vision_degraded, vision_cause, text_degraded, text_cause, latency_ms, created_at
		FROM analyses
		WHERE id = $1
	`

	var (
		a          domain.Analysis
		mood       string
		confidence float32
		probs      *pgvector.Vector
		visionErr  *string
		textErr    *string
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.UserText,
		&a.Text.Reply,
		&mood,
		&confidence,
		&probs,
		&a.Vision.Provider,
		&a.Vision.Attempted,
		&a.Vision.Degraded,
		&visionErr,
		&a.Text.Degraded,
		&textErr,
		&a.LatencyMs,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	label, err := domain.ParseEmotion(mood)
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}

	a.Vision.Prediction = predictionFromVector(probs, label, confidence)
	a.Vision.Cause = causeFromText(visionErr)
	a.Text.Cause = causeFromText(textErr)

	return &a, nil
}

// MoodStats counts stored analyses per mood. A zero since means all rows.
// Moods without rows are omitted; the result is in class-index order.
func (r *AnalysisRepository) MoodStats(ctx context.Context, since time.Time) ([]domain.MoodCount, error) {
	query := `
		SELECT mood, COUNT(*), COALESCE(AVG(confidence), 0)
		FROM analyses
		WHERE created_at >= $1
		GROUP BY mood
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("mood stats: %w", err)
	}
	defer rows.Close()

	var byMood [domain.NumEmotions]*domain.MoodCount
	for rows.Next() {
		var (
			mood string
			mc   domain.MoodCount
		)
		if err := rows.Scan(&mood, &mc.Count, &mc.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scan mood stats: %w", err)
		}
		label, err := domain.ParseEmotion(mood)
		if err != nil {
			return nil, fmt.Errorf("mood stats: %w", err)
		}
		mc.Mood = label
		byMood[label] = &mc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood stats: %w", err)
	}

	out := make([]domain.MoodCount, 0, domain.NumEmotions)
	for _, mc := range byMood {
		if mc != nil {
			out = append(out, *mc)
		}
	}
	return out, nil
}

// DeleteOlderThan removes analyses past the retention window
func (r *AnalysisRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analyses WHERE created_at < $1`, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete old analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AnalysisRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
