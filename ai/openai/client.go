// Package openai implements a chat client for OpenAI-compatible APIs.
//
// This package also owns the canonical ChatRequest/ChatResponse types shared
// by every provider adapter, so callers can switch providers without
// translating request shapes.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/internal/httpclient"
)

const (
	// ProviderName identifies this adapter in errors and history rows
	ProviderName = "openai"

	// DefaultBaseURL is the OpenAI API endpoint. Any server speaking the
	// chat-completions dialect works here (Azure, Ollama, vLLM, ...).
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the fallback model when none is configured.
	// Should match the default in config/defaults.go for consistency.
	DefaultModel = "gpt-4-turbo-preview"

	// DefaultTemperature is applied when neither the config nor the
	// request specifies one
	DefaultTemperature = 0.7

	// httpTimeout is the outer bound on a single HTTP exchange. The real
	// deadline comes from the caller's context; this only catches requests
	// whose context carries no deadline at all.
	httpTimeout = 120 * time.Second
)

// Client is an OpenAI-compatible chat completions client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpclient.SaferClient
	config     Config
	logger     *zap.SugaredLogger
}

// Config holds client configuration
type Config struct {
	APIKey          string
	BaseURL         string             // empty = DefaultBaseURL
	Model           string             // empty = DefaultModel
	Temperature     *float64           // nil = DefaultTemperature
	MaxTokens       *int               // nil = omit max_tokens from requests
	BlockPrivateIPs bool               // refuse requests to private address space
	Logger          *zap.SugaredLogger // nil = nop logger
}

// NewClient creates a new OpenAI-compatible client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Temperature == nil {
		defaultTemp := DefaultTemperature
		config.Temperature = &defaultTemp
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// SSRF-safer HTTP client with redirect protection. Private-IP blocking
	// is opt-in so local OpenAI-compatible servers stay reachable.
	saferClient := httpclient.NewSaferClientWithOptions(httpTimeout, httpclient.SaferClientOptions{
		BlockPrivateIP: &config.BlockPrivateIPs,
	})

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: saferClient,
		config:     config,
		logger:     logger,
	}
}

// ChatRequest is the canonical provider-independent request shape
type ChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float64 // Override default temperature
	MaxTokens    *int     // Override default max tokens
	Model        *string  // Override default model
}

// ChatResponse is the canonical normalized response shape
type ChatResponse struct {
	Content string
	Model   string // model name reported by the provider
	Usage   *Usage // nil when the provider reported no usage
}

// Usage holds normalized token counts
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatCompletionRequest represents a request to the chat completions endpoint
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a message in a chat completion
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ChatCompletionResponse represents the response from chat completions
type ChatCompletionResponse struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []Choice        `json:"choices"`
	Usage   CompletionUsage `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// CompletionUsage is the wire-format token usage block
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CreateChatCompletion sends a single chat completion request upstream
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.NewTimeoutError("%s request timed out", ProviderName)
		}
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUpstreamError(ProviderName, resp.StatusCode, errorMessage(respBody))
	}

	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &chatResp, nil
}

// Chat sends a chat request. A single attempt, no retries: a failed call
// surfaces immediately so the caller decides what to do with it.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.apiKey == "" {
		return nil, errors.NewConfigurationError("OpenAI API key not configured")
	}

	// Dereference config defaults, allow per-request overrides
	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	maxTokens := 0
	if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens < 0 {
		// max_tokens is omitted from the wire request unless positive
		maxTokens = 0
	}

	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	c.logger.Debugw("OpenAI chat request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"system_prompt_length", len(req.SystemPrompt),
		"user_prompt_length", len(req.UserPrompt),
	)

	messages := []Message{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	resp, err := c.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, errors.NewUpstreamError(ProviderName, 0, "no response choices returned")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debugw("OpenAI chat response",
		"content_length", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	var usage *Usage
	if resp.Usage != (CompletionUsage{}) {
		usage = &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}

	return &ChatResponse{
		Content: content,
		Model:   modelUsed,
		Usage:   usage,
	}, nil
}

// IsConfigured returns true if the client has an API key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing
// ⚠️ WARNING: Only use this in tests. Production code should use the default SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// isTimeout reports whether the call failed by running out of time, either
// via the context deadline or a network-level timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorEnvelope matches the {"error": {"message": ...}} shape both provider
// families use for failure bodies.
type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorMessage extracts the provider's own message from an error response
// body, falling back to the raw body when it is not the usual envelope.
func errorMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
