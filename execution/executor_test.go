package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teranos/promptforge/ai/tracker"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/errors"
	pftest "github.com/teranos/promptforge/internal/testing"
	"github.com/teranos/promptforge/internal/util"
)

// chatCall is the decoded wire request, covering both provider dialects:
// System is only set by the Anthropic messages API.
type chatCall struct {
	Path     string
	System   string `json:"system"`
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type upstreamServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []chatCall
	status int
	body   string
}

// newUpstream answers both /chat/completions and /v1/messages so one
// server stands in for either provider. The default script returns a
// successful OpenAI-shaped completion with usage counts.
func newUpstream(t *testing.T) *upstreamServer {
	t.Helper()
	s := &upstreamServer{status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var call chatCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		call.Path = r.URL.Path
		s.calls = append(s.calls, call)
		status, body := s.status, s.body
		s.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error": {"message": "model overloaded"}}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if body != "" {
			fmt.Fprint(w, body)
			return
		}
		if strings.HasPrefix(call.Path, "/v1/messages") {
			fmt.Fprint(w, `{"content": [{"type": "text", "text": "claude says hi"}], "model": "claude-test", "usage": {"input_tokens": 12, "output_tokens": 7}}`)
			return
		}
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "four five six"}}], "model": "gpt-test", "usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}}`)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *upstreamServer) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *upstreamServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *upstreamServer) call(i int) chatCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

// executionConfig points both providers at the test server so routing
// decides which dialect lands there.
func executionConfig(serverURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Providers.Default = "openai"
	cfg.Providers.OpenAI.APIKey = "test-key"
	cfg.Providers.OpenAI.BaseURL = serverURL
	cfg.Providers.Anthropic.APIKey = "test-key"
	cfg.Providers.Anthropic.BaseURL = serverURL
	cfg.AI.ExecutionModel = "gpt-test"
	return cfg
}

func TestExecute_AppliesDefaults(t *testing.T) {
	server := newUpstream(t)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{
		Prompt: "one two three",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.Response != "four five six" {
		t.Errorf("unexpected response %q", result.Response)
	}
	if result.Model != "gpt-test" {
		t.Errorf("expected configured execution model, got %q", result.Model)
	}
	if result.Provider != "openai" {
		t.Errorf("expected openai provider, got %q", result.Provider)
	}
	if result.RequestID == "" {
		t.Error("expected a request id")
	}
	if result.ErrorMessage != nil {
		t.Errorf("expected nil error message, got %q", *result.ErrorMessage)
	}
	if result.ExecutionTime < 0 {
		t.Errorf("expected non-negative execution time, got %v", result.ExecutionTime)
	}

	call := server.call(0)
	if call.Model != "gpt-test" {
		t.Errorf("wire model = %q, want gpt-test", call.Model)
	}
	if call.Temperature != DefaultTemperature {
		t.Errorf("wire temperature = %v, want default %v", call.Temperature, DefaultTemperature)
	}
	if call.MaxTokens != DefaultMaxTokens {
		t.Errorf("wire max_tokens = %d, want default %d", call.MaxTokens, DefaultMaxTokens)
	}
}

func TestExecute_ProviderReportedTokenCounts(t *testing.T) {
	server := newUpstream(t)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{Prompt: "one two three"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.TokenUsage.Input != 9 || result.TokenUsage.Output != 3 {
		t.Errorf("expected provider-reported usage {9 3}, got %+v", result.TokenUsage)
	}
}

func TestExecute_WordCountFallbackWithoutUsage(t *testing.T) {
	server := newUpstream(t)
	server.respond(http.StatusOK,
		`{"choices": [{"message": {"role": "assistant", "content": "alpha beta gamma delta"}}], "model": "gpt-test"}`)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{Prompt: "one two three"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Three prompt words in, four response words out
	if result.TokenUsage.Input != 3 || result.TokenUsage.Output != 4 {
		t.Errorf("expected word-count fallback {3 4}, got %+v", result.TokenUsage)
	}
}

func TestExecute_SubstitutesVariables(t *testing.T) {
	server := newUpstream(t)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	_, err := exec.Execute(context.Background(), ExecuteRequest{
		Prompt: "Translate {text} into {language}, keep {tone}",
		Variables: map[string]string{
			"text":     "good morning",
			"language": "French",
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	call := server.call(0)
	if len(call.Messages) != 1 || call.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", call.Messages)
	}
	got := call.Messages[0].Content
	want := "Translate good morning into French, keep {tone}"
	if got != want {
		t.Errorf("rendered prompt = %q, want %q (unmatched placeholder verbatim)", got, want)
	}
}

func TestExecute_RoutesByModelName(t *testing.T) {
	server := newUpstream(t)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{
		Prompt: "say hi",
		Model:  "claude-3-haiku-20240307",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if result.Provider != "anthropic" {
		t.Errorf("expected anthropic provider for claude model, got %q", result.Provider)
	}
	if result.Response != "claude says hi" {
		t.Errorf("unexpected response %q", result.Response)
	}

	call := server.call(0)
	if call.Path != "/v1/messages" {
		t.Errorf("expected the messages API path, got %q", call.Path)
	}
	if call.Model != "claude-3-haiku-20240307" {
		t.Errorf("model must pass through unmodified, got %q", call.Model)
	}
}

func TestExecute_ValidationBeforeNetwork(t *testing.T) {
	server := newUpstream(t)
	cfg := executionConfig(server.URL)
	cfg.AI.MaxPromptLength = 20

	db := pftest.CreateTestDB(t)
	exec := NewExecutor(cfg, tracker.NewTracker(db, nil), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ExecuteRequest
	}{
		{"empty prompt", ExecuteRequest{Prompt: "   "}},
		{"over-length prompt", ExecuteRequest{Prompt: strings.Repeat("x", 21)}},
		{"temperature too high", ExecuteRequest{Prompt: "hi", Temperature: util.Ptr(2.5)}},
		{"temperature negative", ExecuteRequest{Prompt: "hi", Temperature: util.Ptr(-0.1)}},
		{"max_tokens zero", ExecuteRequest{Prompt: "hi", MaxTokens: util.Ptr(0)}},
		{"max_tokens too large", ExecuteRequest{Prompt: "hi", MaxTokens: util.Ptr(4001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := exec.Execute(ctx, tt.req)
			if !errors.IsValidationError(err) {
				t.Errorf("expected validation error, got: %v", err)
			}
			if result != nil {
				t.Errorf("validation failure must not produce a result, got %+v", result)
			}
		})
	}

	if server.callCount() != 0 {
		t.Errorf("validation failures must not reach the network, got %d calls", server.callCount())
	}

	// Invalid input is not an execution: nothing lands in history
	rows, err := tracker.NewTracker(db, nil).Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected empty history after validation failures, got %d rows", len(rows))
	}
}

func TestExecute_LengthCheckedOnRawTemplate(t *testing.T) {
	server := newUpstream(t)
	cfg := executionConfig(server.URL)
	cfg.AI.MaxPromptLength = 30

	exec := NewExecutor(cfg, nil, nil)

	// The raw template fits the limit; the substituted value pushes the
	// rendered prompt past it. Only the raw length counts.
	result, err := exec.Execute(context.Background(), ExecuteRequest{
		Prompt:    "Summarize: {doc}",
		Variables: map[string]string{"doc": strings.Repeat("long input ", 10)},
	})
	if err != nil {
		t.Fatalf("raw template within limit must execute, got: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
}

func TestExecute_UpstreamFailure(t *testing.T) {
	server := newUpstream(t)
	server.respond(http.StatusInternalServerError, "")

	db := pftest.CreateTestDB(t)
	exec := NewExecutor(executionConfig(server.URL), tracker.NewTracker(db, nil), nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{Prompt: "run this"})
	if !errors.IsUpstreamError(err) {
		t.Fatalf("expected upstream error, got: %v", err)
	}
	if ue, ok := errors.AsUpstream(err); !ok || ue.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected typed upstream error with status 500, got %+v", ue)
	}

	if result == nil {
		t.Fatal("failed execution must still produce a result")
	}
	if result.Success {
		t.Error("expected failed result")
	}
	if result.ErrorMessage == nil || !strings.Contains(*result.ErrorMessage, "model overloaded") {
		t.Errorf("expected provider message in-band, got %v", result.ErrorMessage)
	}
	if result.Response != "" {
		t.Errorf("failed execution must not carry a response, got %q", result.Response)
	}

	// Failures are recorded like successes
	rows, err := tracker.NewTracker(db, nil).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}
	if rows[0].Success {
		t.Error("history row must record the failure")
	}
	if rows[0].ErrorMsg == nil || !strings.Contains(*rows[0].ErrorMsg, "model overloaded") {
		t.Errorf("expected failure message in history, got %v", rows[0].ErrorMsg)
	}
}

func TestExecute_MissingCredential(t *testing.T) {
	cfg := &config.Config{}
	cfg.Providers.Default = "anthropic"
	cfg.AI.ExecutionModel = "claude-3-sonnet-20240229"

	db := pftest.CreateTestDB(t)
	exec := NewExecutor(cfg, tracker.NewTracker(db, nil), nil)

	result, err := exec.Execute(context.Background(), ExecuteRequest{Prompt: "run this"})
	if !errors.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got: %v", err)
	}

	if result == nil {
		t.Fatal("expected a failed result alongside the error")
	}
	if result.Success {
		t.Error("expected failed result")
	}
	if result.Provider != "anthropic" {
		t.Errorf("result must name the routed provider even without a credential, got %q", result.Provider)
	}

	rows, err := tracker.NewTracker(db, nil).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the attempt in history, got %d rows", len(rows))
	}
}

func TestExecute_RecordsHistory(t *testing.T) {
	server := newUpstream(t)
	db := pftest.CreateTestDB(t)
	exec := NewExecutor(executionConfig(server.URL), tracker.NewTracker(db, nil), nil)
	ctx := context.Background()

	result, err := exec.Execute(ctx, ExecuteRequest{
		Prompt:      "Review {what}",
		Variables:   map[string]string{"what": "this function"},
		Temperature: util.Ptr(1.2),
		MaxTokens:   util.Ptr(750),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	rows, err := tracker.NewTracker(db, nil).Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(rows))
	}

	row := rows[0]
	if row.RequestID != result.RequestID {
		t.Errorf("history request id %q does not match result %q", row.RequestID, result.RequestID)
	}
	if row.Prompt != "Review this function" {
		t.Errorf("history must store the rendered prompt, got %q", row.Prompt)
	}
	if row.Model != "gpt-test" || row.Provider != "openai" {
		t.Errorf("unexpected model/provider in history: %q/%q", row.Model, row.Provider)
	}
	if row.Temperature != 1.2 {
		t.Errorf("history temperature = %v, want 1.2", row.Temperature)
	}
	if row.MaxTokens == nil || *row.MaxTokens != 750 {
		t.Errorf("history max_tokens = %v, want 750", row.MaxTokens)
	}
	if !row.Success || row.Response != "four five six" {
		t.Errorf("unexpected history outcome: success=%v response=%q", row.Success, row.Response)
	}
	if row.InputTokens != 9 || row.OutputTokens != 3 {
		t.Errorf("unexpected history token counts: %d/%d", row.InputTokens, row.OutputTokens)
	}
}

func TestExecute_NilTrackerSkipsHistory(t *testing.T) {
	server := newUpstream(t)
	exec := NewExecutor(executionConfig(server.URL), nil, nil)

	if _, err := exec.Execute(context.Background(), ExecuteRequest{Prompt: "hello"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
}

func TestNewExecutor_RateLimiter(t *testing.T) {
	cfg := executionConfig("http://unused")

	if exec := NewExecutor(cfg, nil, nil); exec.limiter != nil {
		t.Error("requests_per_minute 0 must not install a limiter")
	}

	cfg.AI.RequestsPerMinute = 120
	exec := NewExecutor(cfg, nil, nil)
	if exec.limiter == nil {
		t.Fatal("expected a limiter for requests_per_minute > 0")
	}
	if got := float64(exec.limiter.Limit()); got != 2.0 {
		t.Errorf("limiter rate = %v events/s, want 2.0 for 120/min", got)
	}
}

func TestExecute_RateLimitedStillSucceeds(t *testing.T) {
	server := newUpstream(t)
	cfg := executionConfig(server.URL)
	cfg.AI.RequestsPerMinute = 6000 // 100/s: the second call waits briefly

	exec := NewExecutor(cfg, nil, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := exec.Execute(ctx, ExecuteRequest{Prompt: "hello"}); err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("rate-limited executions took unreasonably long: %v", elapsed)
	}
	if server.callCount() != 2 {
		t.Errorf("expected both executions upstream, got %d", server.callCount())
	}
}
