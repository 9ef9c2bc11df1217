package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

var selectColumns = []string{
	"id", "user_text", "reply", "mood", "confidence", "probabilities", "provider",
	"vision_attempted", "vision_degraded", "vision_cause", "text_degraded", "text_cause", "latency_ms", "created_at",
}

func happyPrediction() domain.Prediction {
	return domain.Prediction{
		Probabilities: [domain.NumEmotions]float32{0.05, 0, 0.05, 0.8, 0.1, 0, 0},
		Label:         domain.Happy,
		Confidence:    0.8,
	}
}

func TestAnalysisRepository_Create(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name      string
		analysis  *domain.Analysis
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "successful insert",
			analysis: &domain.Analysis{
				ID:        id,
				UserText:  "great day",
				Vision:    domain.VisionOutcome{Prediction: happyPrediction(), Provider: "local", Attempted: true},
				Text:      domain.TextOutcome{Reply: "Glad to hear it."},
				LatencyMs: 42,
				CreatedAt: now,
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO analyses`).
					WithArgs(
						id, "great day", "Glad to hear it.", "Happy", float32(0.8),
						pgxmock.AnyArg(), "local", true, false, (*string)(nil), false, (*string)(nil),
						int64(42), now,
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "degraded analysis stores causes and no vector",
			analysis: &domain.Analysis{
				ID:        id,
				UserText:  "hello",
				Vision:    domain.DegradedVision("local", domain.ErrModelUnavailable),
				Text:      domain.TextOutcome{Reply: "I hear you.", Degraded: true, Cause: errors.New("timeout")},
				CreatedAt: now,
			},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				visionCause := domain.ErrModelUnavailable.Error()
				textCause := "timeout"
				mock.ExpectExec(`INSERT INTO analyses`).
					WithArgs(
						id, "hello", "I hear you.", "Neutral", float32(0),
						(*pgvector.Vector)(nil), "local", true, true, &visionCause, true, &textCause,
						int64(0), now,
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name:     "duplicate id",
			analysis: &domain.Analysis{ID: id, CreatedAt: now, Vision: domain.DegradedVision("local", nil)},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO analyses`).
					WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))
			},
			wantErr: ErrAnalysisExists,
		},
		{
			name:     "database error",
			analysis: &domain.Analysis{ID: id, CreatedAt: now, Vision: domain.DegradedVision("local", nil)},
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO analyses`).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: errors.New("create analysis: connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewAnalysisRepository(mock)
			err = repo.Create(context.Background(), tt.analysis)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrAnalysisExists) {
					assert.ErrorIs(t, err, ErrAnalysisExists)
				} else {
					assert.EqualError(t, err, tt.wantErr.Error())
				}
			} else {
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAnalysisRepository_CreateAssignsIDAndTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO analyses`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &domain.Analysis{Vision: domain.DegradedVision("mock", nil)}
	require.NoError(t, NewAnalysisRepository(mock).Create(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_GetByID(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		check     func(t *testing.T, a *domain.Analysis)
		wantErr   error
	}{
		{
			name: "successful retrieval with probabilities",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				p := happyPrediction()
				vec := pgvector.NewVector(p.Probabilities[:])
				rows := pgxmock.NewRows(selectColumns).AddRow(
					id, "great day", "Glad to hear it.", "Happy", float32(0.8), &vec, "local",
					true, false, nil, false, nil, int64(42), now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM analyses WHERE id = \$1`).
					WithArgs(id).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, a *domain.Analysis) {
				assert.Equal(t, id, a.ID)
				assert.Equal(t, happyPrediction(), a.Vision.Prediction)
				assert.Equal(t, "local", a.Vision.Provider)
				assert.NoError(t, a.Vision.Cause)
				assert.Equal(t, int64(42), a.LatencyMs)
			},
		},
		{
			name: "degraded row without vector",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				cause := "model unavailable"
				rows := pgxmock.NewRows(selectColumns).AddRow(
					id, "hi", "I hear you.", "Neutral", float32(0), nil, "local",
					true, true, &cause, false, nil, int64(3), now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM analyses WHERE id = \$1`).
					WithArgs(id).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, a *domain.Analysis) {
				assert.Equal(t, domain.Neutral, a.Mood())
				assert.Zero(t, a.Confidence())
				assert.True(t, a.Vision.Degraded)
				assert.EqualError(t, a.Vision.Cause, "model unavailable")
			},
		},
		{
			name: "not found",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT (.+) FROM analyses WHERE id = \$1`).
					WithArgs(id).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: ErrAnalysisNotFound,
		},
		{
			name: "corrupt mood",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(selectColumns).AddRow(
					id, "hi", "x", "Bored", float32(0), nil, "local",
					false, true, nil, false, nil, int64(0), now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM analyses WHERE id = \$1`).
					WithArgs(id).
					WillReturnRows(rows)
			},
			wantErr: errors.New("unknown emotion label"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			got, err := NewAnalysisRepository(mock).GetByID(context.Background(), id)
			switch {
			case errors.Is(tt.wantErr, ErrAnalysisNotFound):
				assert.ErrorIs(t, err, ErrAnalysisNotFound)
			case tt.wantErr != nil:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			default:
				require.NoError(t, err)
				tt.check(t, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAnalysisRepository_MoodStats(t *testing.T) {
	since := time.Now().Add(-time.Hour)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"mood", "count", "avg"}).
		AddRow("Sad", int64(2), 0.6).
		AddRow("Angry", int64(1), 0.9).
		AddRow("Neutral", int64(5), 0.1)
	mock.ExpectQuery(`SELECT mood, COUNT\(\*\)(.+) FROM analyses WHERE created_at >= \$1 GROUP BY mood`).
		WithArgs(since).
		WillReturnRows(rows)

	stats, err := NewAnalysisRepository(mock).MoodStats(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	// class-index order regardless of row order
	assert.Equal(t, domain.Angry, stats[0].Mood)
	assert.Equal(t, domain.Neutral, stats[1].Mood)
	assert.Equal(t, int64(5), stats[1].Count)
	assert.Equal(t, domain.Sad, stats[2].Mood)
	assert.InDelta(t, 0.6, stats[2].AvgConfidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_MoodStatsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT mood`).WillReturnError(errors.New("timeout"))

	_, err = NewAnalysisRepository(mock).MoodStats(context.Background(), time.Time{})
	assert.EqualError(t, err, "mood stats: timeout")
}

func TestAnalysisRepository_DeleteOlderThan(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM analyses WHERE created_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := NewAnalysisRepository(mock).DeleteOlderThan(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysisRepository_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	repo := NewAnalysisRepository(mock)
	assert.NoError(t, repo.Ping(context.Background()))
	assert.Error(t, repo.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
