package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Text  string `json:"text" example:"I finally finished my thesis"`
	Image string `json:"image" example:"data:image/jpeg;base64,/9j/4AAQSkZJRg..."`
}

// AnalyzeResponse is the answer of POST /api/analyze
type AnalyzeResponse struct {
	ID            string             `json:"id" example:"6f1c8e4e-8d34-4c57-9d1c-0c7e0f6b2a11"`
	Response      string             `json:"response" example:"That is a huge accomplishment. You should be proud of the work you put in."`
	Mood          string             `json:"mood" example:"Happy"`
	Analysis      string             `json:"analysis" example:"Confidence: 87.3%"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// MoodCount is one row of the mood distribution
type MoodCount struct {
	Mood          string  `json:"mood" example:"Happy"`
	Count         int64   `json:"count" example:"42"`
	AvgConfidence float64 `json:"avg_confidence" example:"0.81"`
}

// MoodStatsResponse is the answer of GET /api/stats/moods
type MoodStatsResponse struct {
	Window string             `json:"window" example:"24h0m0s"`
	Since  string             `json:"since" example:"2026-01-01T00:00:00Z"`
	Total  int64              `json:"total" example:"120"`
	Moods  []MoodCount        `json:"moods"`
	Share  map[string]float64 `json:"share"`
}

// HealthResponse is the answer of GET /health
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version" example:"0.1.0"`
}

// ProviderInfo describes the emotion provider state
type ProviderInfo struct {
	Name  string `json:"name" example:"local"`
	Ready bool   `json:"ready" example:"true"`
	Error string `json:"error,omitempty" example:""`
}

// ReadyResponse is the answer of GET /ready
type ReadyResponse struct {
	Status   string       `json:"status" example:"ready"`
	Provider ProviderInfo `json:"provider"`
	Database string       `json:"database" example:"ok"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "EmoSense API",
		Version:     "v1.0.0",
		Description: "Facial emotion recognition with an empathetic reply from a local language model",
		Host:        "localhost:8000",
		Path:        "/",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /api/analyze
		endpoint.New(
			endpoint.POST,
			"/api/analyze",
			endpoint.WithTags("Analysis"),
			endpoint.WithSummary("Analyze a message and an optional face image"),
			endpoint.WithDescription("Classifies the facial emotion of the image and generates a reply conditioned on it. Vision and text failures degrade to Neutral and a fallback reply, the request still answers 200."),
			endpoint.WithBody(AnalyzeRequest{}),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AnalyzeResponse{}, "200", "Analysis completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Malformed JSON"),
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Missing text"),
				response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded"}, "429", "Too Many Requests"),
			}),
		),

		// GET /api/stats/moods
		endpoint.New(
			endpoint.GET,
			"/api/stats/moods",
			endpoint.WithTags("Analysis"),
			endpoint.WithSummary("Mood distribution"),
			endpoint.WithDescription("Label distribution of stored analyses over a recent window"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("window", parameter.Query, parameter.WithDescription("Go duration, default 24h, at most 2160h")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MoodStatsResponse{}, "200", "Distribution computed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Invalid request"}, "400", "Invalid window"),
				response.New(ErrorResponse{Code: "STORE_UNAVAILABLE", Message: "Analysis store is not configured"}, "503", "No audit store"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "Process is up"),
			}),
		),

		// GET /ready
		endpoint.New(
			endpoint.GET,
			"/ready",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Readiness probe"),
			endpoint.WithDescription("Ready when the emotion provider can classify and the audit store, if configured, answers"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReadyResponse{}, "200", "Ready"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ReadyResponse{Status: "not_ready"}, "503", "Not ready"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
