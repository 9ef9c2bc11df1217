package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

const testURL = "http://ollama.test"

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient(Config{BaseURL: testURL + "/", Model: "llama3.2"}, WithHTTPClient(hc))
}

func TestPrompt(t *testing.T) {
	want := "You are EmoSense, a therapy AI.\n" +
		"User's emotion: Sad.\n" +
		"User said: \"I lost my keys\"\n" +
		"Reply with empathy in 2 sentences."
	assert.Equal(t, want, Prompt(domain.Sad, "I lost my keys"))
}

func TestReply_Success(t *testing.T) {
	c := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodPost, testURL+"/api/chat",
		func(req *http.Request) (*http.Response, error) {
			var body chatRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "llama3.2", body.Model)
			assert.False(t, body.Stream)
			require.Len(t, body.Messages, 1)
			assert.Equal(t, "user", body.Messages[0].Role)
			assert.Contains(t, body.Messages[0].Content, "User's emotion: Happy.")

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"model":   "llama3.2",
				"done":    true,
				"message": map[string]string{"role": "assistant", "content": "  That is wonderful. Enjoy it!\n"},
			})
		})

	reply, err := c.Reply(context.Background(), domain.Happy, "I got the job")
	require.NoError(t, err)
	assert.Equal(t, "That is wonderful. Enjoy it!", reply)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestReply_Failures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		contains  string
	}{
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"model not loaded"}`),
			contains:  "status 500",
		},
		{
			name:      "model missing",
			responder: httpmock.NewStringResponder(http.StatusNotFound, `{"error":"model 'llama3.2' not found"}`),
			contains:  "not found",
		},
		{
			name:      "invalid json",
			responder: httpmock.NewStringResponder(http.StatusOK, `not json`),
			contains:  "decode response",
		},
		{
			name:      "empty reply",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"message":{"role":"assistant","content":"   "}}`),
			contains:  "empty reply",
		},
		{
			name:      "oversized body",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"message":{"role":"assistant","content":"`+strings.Repeat("a", MaxResponseBody)+`"}}`),
			contains:  "exceeds",
		},
		{
			name:      "connection refused",
			responder: httpmock.NewErrorResponder(errors.New("connection refused")),
			contains:  "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockedClient(t)
			httpmock.RegisterResponder(http.MethodPost, testURL+"/api/chat", tt.responder)

			reply, err := c.Reply(context.Background(), domain.Neutral, "hello")
			assert.Empty(t, reply)
			assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestReply_Timeout(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodPost, testURL+"/api/chat",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Reply(ctx, domain.Fear, "hello")
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, c.config.BaseURL)
	assert.Equal(t, DefaultModel, c.config.Model)
}
