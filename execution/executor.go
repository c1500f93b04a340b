// Package execution runs prompts against the routed AI provider. One
// invocation is one upstream call: variables are substituted, the model
// is routed, the call runs under the execution timeout, and the outcome
// is appended to execution history whether it succeeded or not.
package execution

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/promptforge/ai/openai"
	"github.com/teranos/promptforge/ai/provider"
	"github.com/teranos/promptforge/ai/tracker"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/internal/util"
	"github.com/teranos/promptforge/prompt"
)

// Generation parameter bounds. Temperature uses the canonical [0,2]
// range; the Anthropic adapter converts to its own scale downstream.
const (
	DefaultTemperature = 0.7
	MinTemperature     = 0.0
	MaxTemperature     = 2.0

	DefaultMaxTokens = 1000
	MinMaxTokens     = 1
	MaxMaxTokens     = 4000
)

// ExecuteRequest describes one prompt execution.
type ExecuteRequest struct {
	Prompt      string
	Model       string            // empty selects the configured execution model
	Temperature *float64          // nil selects DefaultTemperature
	MaxTokens   *int              // nil selects DefaultMaxTokens
	Variables   map[string]string // substituted into {key} placeholders
}

// TokenUsage counts tokens for one execution. Provider-reported counts
// when available, whitespace word counts of the prompt and response
// otherwise.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Result is the outcome of one execution. Failed executions still
// produce a Result so callers can report what happened in-band; the
// accompanying error carries the taxonomy for exit codes and tests.
type Result struct {
	Success       bool       `json:"success"`
	Response      string     `json:"response"`
	Model         string     `json:"model"`
	Provider      string     `json:"provider"`
	ExecutionTime float64    `json:"execution_time"` // wall-clock seconds
	TokenUsage    TokenUsage `json:"token_usage"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	RequestID     string     `json:"request_id"`
}

// Executor validates, renders and runs prompt executions.
type Executor struct {
	cfg       *config.Config
	tracker   *tracker.Tracker // nil = history recording disabled
	limiter   *rate.Limiter    // nil = unlimited
	logger    *zap.SugaredLogger
	clientFor func(model string) (provider.AIClient, provider.Provider, error)
}

// NewExecutor creates an executor over the given configuration. Pass a
// nil tracker to skip history recording. A positive
// ai.requests_per_minute installs an upstream rate limiter shared by
// every execution through this executor.
func NewExecutor(cfg *config.Config, tr *tracker.Tracker, logger *zap.SugaredLogger) *Executor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var limiter *rate.Limiter
	if rpm := cfg.AI.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	return &Executor{
		cfg:     cfg,
		tracker: tr,
		limiter: limiter,
		logger:  logger,
		clientFor: func(model string) (provider.AIClient, provider.Provider, error) {
			return provider.ForModel(cfg, model, logger)
		},
	}
}

// Execute runs one prompt. Validation failures return (nil, error) and
// never touch the network or the history table: invalid input is not an
// execution. Post-validation failures return a failed Result and the
// error, and are recorded in history like successes.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	model := req.Model
	if model == "" {
		model = e.cfg.GetExecutionModel()
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.NewValidationError("prompt must not be empty")
	}
	// Length is checked on the raw template: substitution happens after
	// validation and its output is what the user asked to run.
	if length := utf8.RuneCountInString(req.Prompt); length > e.cfg.GetMaxPromptLength() {
		return nil, errors.NewValidationError("prompt length %d exceeds maximum of %d characters",
			length, e.cfg.GetMaxPromptLength())
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return nil, errors.NewValidationError("temperature %.2f out of range [%.1f, %.1f]",
			temperature, MinTemperature, MaxTemperature)
	}
	if maxTokens < MinMaxTokens || maxTokens > MaxMaxTokens {
		return nil, errors.NewValidationError("max_tokens %d out of range [%d, %d]",
			maxTokens, MinMaxTokens, MaxMaxTokens)
	}

	rendered := req.Prompt
	if len(req.Variables) > 0 {
		rendered = prompt.Render(req.Prompt, req.Variables)
		e.logger.Debugw("Variables substituted",
			"count", len(req.Variables),
			"rendered_chars", utf8.RuneCountInString(rendered))
	}

	requestID := uuid.NewString()
	start := time.Now()

	result := &Result{
		Model:     model,
		RequestID: requestID,
	}

	client, prov, err := e.clientFor(model)
	result.Provider = string(prov)
	if err != nil {
		return e.fail(ctx, result, rendered, temperature, maxTokens, start, err)
	}

	e.logger.Debugw("Executing prompt",
		"request_id", requestID,
		"model", model,
		"provider", string(prov),
		"temperature", temperature,
		"max_tokens", maxTokens,
		"prompt_chars", utf8.RuneCountInString(rendered))

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.fail(ctx, result, rendered, temperature, maxTokens, start,
				errors.Wrap(err, "rate limit wait aborted"))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.GetExecutionTimeout())
	defer cancel()

	resp, err := client.Chat(callCtx, openai.ChatRequest{
		UserPrompt:  rendered,
		Model:       util.Ptr(model),
		Temperature: util.Ptr(temperature),
		MaxTokens:   util.Ptr(maxTokens),
	})
	if err != nil {
		return e.fail(ctx, result, rendered, temperature, maxTokens, start, err)
	}

	result.Success = true
	result.Response = resp.Content
	result.ExecutionTime = time.Since(start).Seconds()
	result.TokenUsage = tokenUsage(resp, rendered)

	e.logger.Infow("Execution succeeded",
		"request_id", requestID,
		"model", model,
		"provider", result.Provider,
		"duration_s", result.ExecutionTime,
		"input_tokens", result.TokenUsage.Input,
		"output_tokens", result.TokenUsage.Output)

	e.record(ctx, result, rendered, temperature, maxTokens)
	return result, nil
}

// fail finalizes a failed execution: measured elapsed time, the error
// message in-band, a history row, and the original error back to the
// caller.
func (e *Executor) fail(ctx context.Context, result *Result, rendered string, temperature float64, maxTokens int, start time.Time, err error) (*Result, error) {
	result.Success = false
	result.ExecutionTime = time.Since(start).Seconds()
	result.ErrorMessage = util.Ptr(err.Error())

	e.logger.Warnw("Execution failed",
		"request_id", result.RequestID,
		"model", result.Model,
		"provider", result.Provider,
		"duration_s", result.ExecutionTime,
		"error", err)

	e.record(ctx, result, rendered, temperature, maxTokens)
	return result, err
}

// record appends the execution to history. Recording never fails the
// execution; context cancellation is stripped so a timed-out call still
// leaves its row.
func (e *Executor) record(ctx context.Context, result *Result, rendered string, temperature float64, maxTokens int) {
	if e.tracker == nil {
		return
	}

	exec := &tracker.Execution{
		RequestID:     result.RequestID,
		Prompt:        rendered,
		Model:         result.Model,
		Provider:      result.Provider,
		Temperature:   temperature,
		MaxTokens:     util.Ptr(maxTokens),
		Success:       result.Success,
		Response:      result.Response,
		ExecutionTime: result.ExecutionTime,
		InputTokens:   result.TokenUsage.Input,
		OutputTokens:  result.TokenUsage.Output,
	}
	if result.ErrorMessage != nil {
		exec.ErrorMsg = result.ErrorMessage
	}

	if err := e.tracker.Record(context.WithoutCancel(ctx), exec); err != nil {
		e.logger.Warnw("Execution history write failed",
			"request_id", result.RequestID,
			"error", err)
	}
}

// tokenUsage prefers provider-reported counts and falls back to naive
// whitespace word counts of the substituted prompt and the response.
func tokenUsage(resp *openai.ChatResponse, rendered string) TokenUsage {
	if resp.Usage != nil {
		return TokenUsage{
			Input:  resp.Usage.InputTokens,
			Output: resp.Usage.OutputTokens,
		}
	}
	return TokenUsage{
		Input:  len(strings.Fields(rendered)),
		Output: len(strings.Fields(resp.Content)),
	}
}
