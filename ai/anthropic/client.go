// Package anthropic implements a chat client for the Anthropic Messages API.
// It accepts the canonical request/response types from ai/openai so the two
// provider adapters are interchangeable behind provider.AIClient.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/promptforge/ai/openai"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/internal/httpclient"
)

const (
	// ProviderName identifies this adapter in errors and history rows
	ProviderName = "anthropic"

	// DefaultBaseURL is the Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is the fallback Claude model when none is configured
	DefaultModel = "claude-3-sonnet-20240229"

	// APIVersion is the required anthropic-version header value
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is used when no limit is given. Unlike the
	// chat-completions dialect, the Messages API requires max_tokens.
	DefaultMaxTokens = 1000

	// DefaultTemperature is applied when neither the config nor the
	// request specifies one
	DefaultTemperature = 0.7

	// httpTimeout is the outer bound on a single HTTP exchange; the
	// caller's context carries the real deadline
	httpTimeout = 120 * time.Second
)

// Client is an Anthropic Messages API client
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
	Temperature     *float64           // nil = DefaultTemperature; canonical [0,2] range
	MaxTokens       *int               // nil or <=0 = DefaultMaxTokens
	BlockPrivateIPs bool               // refuse requests to private address space
	Logger          *zap.SugaredLogger // nil = nop logger
}

// NewClient creates a new Anthropic API client
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

// MessagesRequest represents a request to the Anthropic Messages API
type MessagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// MessagesResponse represents the response from the Messages API
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage is the wire-format token usage block
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ConvertTemperature maps a temperature from the canonical [0,2] range onto
// Anthropic's [0,1] range: values above 1 are halved, then the result is
// clamped to [0,1].
func ConvertTemperature(t float64) float64 {
	if t > 1 {
		t = t / 2
	}
	return math.Min(math.Max(t, 0), 1)
}

// Chat sends a chat request through the Messages API. A single attempt, no
// retries, same contract as the OpenAI adapter.
func (c *Client) Chat(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	if c.apiKey == "" {
		return nil, errors.NewConfigurationError("Anthropic API key not configured")
	}

	// Dereference config defaults, allow per-request overrides
	temperature := *c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	temperature = ConvertTemperature(temperature)

	maxTokens := 0
	if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	model := c.config.Model
	if req.Model != nil {
		model = *req.Model
	}

	c.logger.Debugw("Anthropic chat request",
		"model", model,
		"temperature", temperature,
		"max_tokens", maxTokens,
		"system_prompt_length", len(req.SystemPrompt),
		"user_prompt_length", len(req.UserPrompt),
	)

	resp, err := c.createMessages(ctx, MessagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		System:      req.SystemPrompt,
		Messages: []Message{
			{Role: "user", Content: req.UserPrompt},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Content) == 0 {
		return nil, errors.NewUpstreamError(ProviderName, 0, "no response content returned")
	}

	content := strings.TrimSpace(resp.Content[0].Text)

	c.logger.Debugw("Anthropic chat response",
		"content_length", len(content),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)

	var usage *openai.Usage
	if resp.Usage != (Usage{}) {
		usage = &openai.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = model
	}

	return &openai.ChatResponse{
		Content: content,
		Model:   modelUsed,
		Usage:   usage,
	}, nil
}

// createMessages sends a single request to the Messages API
func (c *Client) createMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

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

	var messagesResp MessagesResponse
	if err := json.Unmarshal(respBody, &messagesResp); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	return &messagesResp, nil
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

// isTimeout reports whether the call failed by running out of time
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorEnvelope matches Anthropic's {"type":"error","error":{...}} failure body
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
