package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

type MockStatsReader struct {
	mock.Mock
}

func (m *MockStatsReader) MoodStats(ctx context.Context, since time.Time) ([]domain.MoodCount, error) {
	args := m.Called(ctx, since)
	if v := args.Get(0); v != nil {
		return v.([]domain.MoodCount), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestStatsHandler_Moods(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := new(MockStatsReader)
	reader.On("MoodStats", mock.Anything, now.Add(-time.Hour)).Return([]domain.MoodCount{
		{Mood: domain.Happy, Count: 3, AvgConfidence: 0.8},
		{Mood: domain.Sad, Count: 1, AvgConfidence: 0.6},
	}, nil)

	h := NewStatsHandler(reader)
	h.now = func() time.Time { return now }

	app := newTestApp()
	app.Get("/api/stats/moods", h.Moods)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/stats/moods?window=1h", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body MoodStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "1h0m0s", body.Window)
	assert.Equal(t, int64(4), body.Total)
	require.Len(t, body.Moods, 2)
	assert.Equal(t, domain.Happy, body.Moods[0].Mood)
	assert.InDelta(t, 0.75, body.Share["Happy"], 1e-9)
	assert.InDelta(t, 0.25, body.Share["Sad"], 1e-9)
	reader.AssertExpectations(t)
}

func TestStatsHandler_EmptyStore(t *testing.T) {
	reader := new(MockStatsReader)
	reader.On("MoodStats", mock.Anything, mock.AnythingOfType("time.Time")).Return(nil, nil)

	app := newTestApp()
	app.Get("/api/stats/moods", NewStatsHandler(reader).Moods)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/stats/moods", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body MoodStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "24h0m0s", body.Window)
	assert.Empty(t, body.Moods)
	assert.Zero(t, body.Total)
}

func TestStatsHandler_Errors(t *testing.T) {
	failing := new(MockStatsReader)
	failing.On("MoodStats", mock.Anything, mock.AnythingOfType("time.Time")).Return(nil, errors.New("connection reset"))

	tests := []struct {
		name       string
		store      MoodStatsReader
		query      string
		wantStatus int
		wantCode   string
	}{
		{"no store configured", nil, "", 503, "STORE_UNAVAILABLE"},
		{"store failure", failing, "", 503, "STORE_UNAVAILABLE"},
		{"invalid window", new(MockStatsReader), "?window=soon", 400, "BAD_REQUEST"},
		{"negative window", new(MockStatsReader), "?window=-1h", 400, "BAD_REQUEST"},
		{"window too large", new(MockStatsReader), "?window=10000h", 400, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp()
			app.Get("/api/stats/moods", NewStatsHandler(tt.store).Moods)

			resp, err := app.Test(httptest.NewRequest("GET", "/api/stats/moods"+tt.query, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["error"]["code"])
		})
	}
}
