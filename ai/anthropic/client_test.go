package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teranos/promptforge/ai/openai"
	"github.com/teranos/promptforge/errors"
)

// TestConvertTemperature tests the [0,2] to [0,1] range mapping
func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{0, 0},
		{0.3, 0.3},
		{0.7, 0.7},
		{1.0, 1.0},
		{1.5, 0.75},
		{2.0, 1.0},
		{2.5, 1.0},  // 1.25 after halving, clamped to 1
		{-0.5, 0.0}, // clamped to 0
	}

	for _, tt := range tests {
		if got := ConvertTemperature(tt.input); got != tt.want {
			t.Errorf("ConvertTemperature(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// TestClient_Configuration tests client configuration and defaults
func TestClient_Configuration(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key"})

		if client.config.Model != DefaultModel {
			t.Errorf("expected default model %q, got %q", DefaultModel, client.config.Model)
		}
		if client.config.Temperature == nil || *client.config.Temperature != DefaultTemperature {
			t.Errorf("expected default temperature %v, got %v", DefaultTemperature, client.config.Temperature)
		}
		if client.baseURL != DefaultBaseURL {
			t.Errorf("expected default base URL %q, got %q", DefaultBaseURL, client.baseURL)
		}
	})

	t.Run("trims trailing slash from base URL", func(t *testing.T) {
		client := NewClient(Config{
			APIKey:  "test-key",
			BaseURL: "http://localhost:8080/",
		})
		if client.baseURL != "http://localhost:8080" {
			t.Errorf("expected trimmed base URL, got %q", client.baseURL)
		}
	})
}

// TestClient_Chat tests the Messages API adapter
func TestClient_Chat(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/messages" {
				t.Errorf("expected /v1/messages path, got %s", r.URL.Path)
			}
			if r.Header.Get("x-api-key") != "test-key" {
				t.Error("expected x-api-key header")
			}
			if r.Header.Get("anthropic-version") != APIVersion {
				t.Errorf("expected anthropic-version %s, got %s", APIVersion, r.Header.Get("anthropic-version"))
			}

			var reqBody MessagesRequest
			json.NewDecoder(r.Body).Decode(&reqBody)
			if reqBody.System != "You are a test assistant" {
				t.Errorf("expected top-level system field, got %q", reqBody.System)
			}
			if len(reqBody.Messages) != 1 || reqBody.Messages[0].Role != "user" {
				t.Errorf("expected single user message, got %+v", reqBody.Messages)
			}

			response := MessagesResponse{
				ID:    "msg_test",
				Type:  "message",
				Role:  "assistant",
				Model: "claude-3-sonnet-20240229",
				Content: []ContentBlock{
					{Type: "text", Text: "  Test response content  "},
				},
				StopReason: "end_turn",
				Usage: Usage{
					InputTokens:  15,
					OutputTokens: 25,
				},
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		resp, err := client.Chat(context.Background(), openai.ChatRequest{
			SystemPrompt: "You are a test assistant",
			UserPrompt:   "Hello, world!",
		})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != "Test response content" {
			t.Errorf("expected trimmed response content, got %q", resp.Content)
		}
		if resp.Usage == nil {
			t.Fatal("expected usage to be populated")
		}
		if resp.Usage.InputTokens != 15 || resp.Usage.OutputTokens != 25 {
			t.Errorf("expected usage 15/25, got %d/%d", resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
	})

	t.Run("empty API key fails before any network call", func(t *testing.T) {
		requestCount := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount++
		}))
		defer server.Close()

		client := NewClient(Config{BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), openai.ChatRequest{UserPrompt: "Hello"})

		if err == nil {
			t.Fatal("expected error for missing API key, got nil")
		}
		if !errors.IsConfigurationError(err) {
			t.Errorf("expected configuration error, got: %v", err)
		}
		if requestCount != 0 {
			t.Errorf("expected 0 upstream calls, got %d", requestCount)
		}
	})

	t.Run("always sends max_tokens, defaulting to 1000", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var raw map[string]interface{}
			json.NewDecoder(r.Body).Decode(&raw)

			maxTokens, present := raw["max_tokens"]
			if !present {
				t.Fatal("expected max_tokens to always be present")
			}
			if maxTokens.(float64) != float64(DefaultMaxTokens) {
				t.Errorf("expected default max_tokens %d, got %v", DefaultMaxTokens, maxTokens)
			}

			response := MessagesResponse{
				Content: []ContentBlock{{Type: "text", Text: "ok"}},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), openai.ChatRequest{UserPrompt: "test"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("converts temperature to the [0,1] range on the wire", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var reqBody MessagesRequest
			json.NewDecoder(r.Body).Decode(&reqBody)

			if reqBody.Temperature == nil || *reqBody.Temperature != 0.75 {
				t.Errorf("expected converted temperature 0.75, got %v", reqBody.Temperature)
			}

			response := MessagesResponse{
				Content: []ContentBlock{{Type: "text", Text: "ok"}},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		temperature := 1.5
		_, err := client.Chat(context.Background(), openai.ChatRequest{
			UserPrompt:  "test",
			Temperature: &temperature,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("model passed through unmodified", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var reqBody MessagesRequest
			json.NewDecoder(r.Body).Decode(&reqBody)

			if reqBody.Model != "claude-3-haiku-20240307" {
				t.Errorf("expected requested model on the wire, got %s", reqBody.Model)
			}

			response := MessagesResponse{
				Content: []ContentBlock{{Type: "text", Text: "ok"}},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		model := "claude-3-haiku-20240307"
		_, err := client.Chat(context.Background(), openai.ChatRequest{
			UserPrompt: "test",
			Model:      &model,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

// TestClient_ErrorHandling tests error classification
func TestClient_ErrorHandling(t *testing.T) {
	t.Run("non-2xx with error envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(529)
			w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), openai.ChatRequest{UserPrompt: "test"})
		if err == nil {
			t.Fatal("expected error for HTTP 529")
		}

		ue, ok := errors.AsUpstream(err)
		if !ok {
			t.Fatal("expected typed upstream error")
		}
		if ue.Provider != ProviderName {
			t.Errorf("expected provider %q, got %q", ProviderName, ue.Provider)
		}
		if ue.StatusCode != 529 {
			t.Errorf("expected status 529, got %d", ue.StatusCode)
		}
		if !strings.Contains(ue.Message, "Overloaded") {
			t.Errorf("expected unwrapped provider message, got %q", ue.Message)
		}
	})

	t.Run("handles empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response := MessagesResponse{
				Content: []ContentBlock{},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), openai.ChatRequest{UserPrompt: "test"})
		if err == nil {
			t.Fatal("expected error for empty content")
		}
		if !errors.IsUpstreamError(err) {
			t.Errorf("expected upstream error, got: %v", err)
		}
		if !strings.Contains(err.Error(), "no response content") {
			t.Errorf("expected 'no response content' error, got: %v", err)
		}
	})

	t.Run("context deadline maps to timeout error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			response := MessagesResponse{
				Content: []ContentBlock{{Type: "text", Text: "too late"}},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		client.SetHTTPClient(server.Client())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.Chat(ctx, openai.ChatRequest{UserPrompt: "test"})
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if !errors.IsTimeoutError(err) {
			t.Errorf("expected timeout error, got: %v", err)
		}
	})
}
