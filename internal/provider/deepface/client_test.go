package deepface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse interface{}
		serverStatus   int
		wantErr        error
		wantClientErr  bool
		validateResp   func(*testing.T, *AnalyzeResponse)
	}{
		{
			name: "successful response with single face",
			serverResponse: AnalyzeResponse{
				Results: []AnalyzeResult{
					{
						Region:          FacialArea{X: 10, Y: 20, W: 100, H: 100},
						FaceConfidence:  0.98,
						Emotion:         map[string]float64{"happy": 90, "neutral": 10},
						DominantEmotion: "happy",
					},
				},
			},
			serverStatus: http.StatusOK,
			validateResp: func(t *testing.T, resp *AnalyzeResponse) {
				require.Len(t, resp.Results, 1)
				assert.Equal(t, "happy", resp.Results[0].DominantEmotion)
				assert.InDelta(t, 90, resp.Results[0].Emotion["happy"], 1e-9)
				assert.Equal(t, 10000, resp.Results[0].Region.Area())
			},
		},
		{
			name:           "empty response",
			serverResponse: AnalyzeResponse{Results: []AnalyzeResult{}},
			serverStatus:   http.StatusOK,
			validateResp: func(t *testing.T, resp *AnalyzeResponse) {
				assert.Empty(t, resp.Results)
			},
		},
		{
			name:           "server error 500",
			serverResponse: map[string]string{"error": "internal server error"},
			serverStatus:   http.StatusInternalServerError,
			wantErr:        ErrDeepFaceUnavailable,
		},
		{
			name:           "service unavailable 503",
			serverResponse: map[string]string{"error": "loading models"},
			serverStatus:   http.StatusServiceUnavailable,
			wantErr:        ErrDeepFaceUnavailable,
		},
		{
			name:           "bad request 400",
			serverResponse: map[string]string{"error": "invalid image"},
			serverStatus:   http.StatusBadRequest,
			wantClientErr:  true,
		},
		{
			name:           "invalid json",
			serverResponse: "not json",
			serverStatus:   http.StatusOK,
			wantErr:        ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/analyze", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req AnalyzeRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, []string{"emotion"}, req.Actions)
				assert.False(t, req.EnforceDetection)

				w.WriteHeader(tt.serverStatus)
				if s, ok := tt.serverResponse.(string); ok {
					_, _ = w.Write([]byte(s))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.serverResponse)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second, Detector: "opencv"})
			resp, err := client.Analyze(context.Background(), "data:image/png;base64,AAAA")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, resp)
			case tt.wantClientErr:
				require.Error(t, err)
				assert.True(t, IsClientError(err))
			default:
				require.NoError(t, err)
				tt.validateResp(t, resp)
			}
		})
	}
}

func TestClient_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	_, err := client.Analyze(context.Background(), "data:image/png;base64,AAAA")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Analyze(ctx, "data:image/png;base64,AAAA")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	assert.NoError(t, client.Ping(context.Background()))

	server.Close()
	assert.ErrorIs(t, client.Ping(context.Background()), ErrDeepFaceUnavailable)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:5005", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "opencv", cfg.Detector)
}
