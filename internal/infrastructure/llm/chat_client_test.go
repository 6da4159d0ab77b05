package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

func TestNewChatClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewChatClient(config.LLMConfig{Endpoint: "http://x", Model: "m"})
	require.ErrorIs(t, err, ErrMisconfigured)
}

func TestChatClientGenerate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		content := "plain"
		if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
			content = `{"digest_title":"T","summary":"S"}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer server.Close()

	client, err := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "test-model", APIKey: "secret"})
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), ports.GenerationRequest{System: "sys", User: "hello", JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"digest_title":"T","summary":"S"}`, out)

	out, err = client.Generate(context.Background(), ports.GenerationRequest{System: "sys", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestChatClientHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "m", APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), ports.GenerationRequest{User: "x"})
	require.ErrorContains(t, err, "429")
}

func TestChatClientNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, err := NewChatClient(config.LLMConfig{Endpoint: server.URL, Model: "m", APIKey: "k"})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), ports.GenerationRequest{User: "x"})
	require.Error(t, err)
}
