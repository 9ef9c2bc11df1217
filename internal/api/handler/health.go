package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

// Version is reported by /health and overridden at link time
var Version = "0.1.0"

// ProviderChecker reports the state of the emotion provider
type ProviderChecker interface {
	Ready(ctx context.Context) provider.Info
}

// Pinger checks the audit store
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	provider ProviderChecker
	store    Pinger
	timeout  time.Duration
}

// NewHealthHandler creates the health handler. store may be nil when no audit
// store is configured.
func NewHealthHandler(p ProviderChecker, store Pinger) *HealthHandler {
	return &HealthHandler{
		provider: p,
		store:    store,
		timeout:  2 * time.Second,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ReadyResponse details the readiness checks
type ReadyResponse struct {
	Status   string         `json:"status"`
	Provider *provider.Info `json:"provider,omitempty"`
	Database string         `json:"database"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// Ready answers 503 when the provider cannot classify or the store is
// configured but unreachable
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Database: "disabled"}
	ready := true

	if h.provider != nil {
		info := h.provider.Ready(ctx)
		resp.Provider = &info
		ready = info.Ready
	}

	if h.store != nil {
		resp.Database = "ok"
		if err := h.store.Ping(ctx); err != nil {
			resp.Database = err.Error()
			ready = false
		}
	}

	if !ready {
		resp.Status = "not_ready"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
