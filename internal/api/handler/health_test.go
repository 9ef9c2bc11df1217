package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

type stubProvider struct{ info provider.Info }

func (s stubProvider) Ready(context.Context) provider.Info { return s.info }

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthHandler_Health(t *testing.T) {
	app := fiber.New()
	handler := NewHealthHandler(nil, nil)
	app.Get("/health", handler.Health)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to test: %v", err)
	}

	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result HealthResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if result.Status != "ok" {
		t.Errorf("Status = %s, want ok", result.Status)
	}

	if result.Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	readyLocal := provider.Info{Name: "local", Ready: true}
	noModel := provider.Info{Name: "local", Ready: false, Error: "model unavailable"}

	tests := []struct {
		name         string
		provider     ProviderChecker
		store        Pinger
		wantStatus   int
		wantState    string
		wantDatabase string
	}{
		{"provider ready without store", stubProvider{readyLocal}, nil, 200, "ready", "disabled"},
		{"provider and store ready", stubProvider{readyLocal}, stubPinger{}, 200, "ready", "ok"},
		{"model missing", stubProvider{noModel}, stubPinger{}, 503, "not_ready", "ok"},
		{"store unreachable", stubProvider{readyLocal}, stubPinger{errors.New("connection refused")}, 503, "not_ready", "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/ready", NewHealthHandler(tt.provider, tt.store).Ready)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var result ReadyResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.wantState, result.Status)
			assert.Equal(t, tt.wantDatabase, result.Database)
			require.NotNil(t, result.Provider)
			assert.Equal(t, "local", result.Provider.Name)
		})
	}
}
