// Package analysis orchestrates AI prompt analysis. A report merges
// locally computed metrics with up to two AI analysis passes and a set
// of improvement suggestions. Sub-call failures degrade the report
// instead of failing it: analysis returns an error only for invalid
// input.
package analysis

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teranos/promptforge/ai/openai"
	"github.com/teranos/promptforge/ai/provider"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/internal/util"
	"github.com/teranos/promptforge/prompt"
)

// Mode selects how much analysis to run.
type Mode string

const (
	// ModeQuick runs a single fast analysis pass.
	ModeQuick Mode = "quick"

	// ModeDetailed runs a single thorough analysis pass.
	ModeDetailed Mode = "detailed"

	// ModeDual runs both passes and merges them into one report.
	ModeDual Mode = "dual"
)

// Valid reports whether m names a supported analysis mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeQuick, ModeDetailed, ModeDual:
		return true
	}
	return false
}

// ParseMode maps a request string onto a Mode. Empty selects dual.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ModeDual, nil
	case "quick":
		return ModeQuick, nil
	case "detailed":
		return ModeDetailed, nil
	case "dual":
		return ModeDual, nil
	default:
		return "", errors.NewValidationError("unsupported analysis type %q (supported: quick, detailed, dual)", s)
	}
}

// Per-pass generation parameters. The quick pass favors speed, the
// detailed pass gets headroom for structure, suggestions stay short.
const (
	quickTemperature    = 0.3
	quickMaxTokens      = 500
	detailedTemperature = 0.5
	detailedMaxTokens   = 1500
)

const (
	quickSystemPrompt = "You are a prompt engineering expert. Give a quick analysis of the prompt."

	detailedSystemPrompt = "You are a senior prompt engineer. Provide a detailed analysis of the prompt " +
		"covering structure, clarity, context, and expected output."
)

// AnalyzeRequest describes one analysis invocation.
type AnalyzeRequest struct {
	Prompt string
	Model  string // empty selects the configured analysis model
	Mode   Mode   // empty selects dual
}

// Report is the merged outcome of an analysis. Pointer fields are nil
// when the corresponding pass did not run or failed; Metrics and
// Suggestions are always populated once validation passed.
type Report struct {
	Success        bool           `json:"success"`
	QuickReport    *string        `json:"quick_report"`
	DetailedReport *string        `json:"detailed_report"`
	Metrics        prompt.Metrics `json:"metrics"`
	Suggestions    []string       `json:"suggestions"`
	ErrorMessage   *string        `json:"error_message"`
}

// Analyzer runs analysis passes against the provider routed for the
// requested model.
type Analyzer struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	clientFor func(model string) (provider.AIClient, provider.Provider, error)
}

// NewAnalyzer creates an analyzer over the given configuration.
func NewAnalyzer(cfg *config.Config, logger *zap.SugaredLogger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger,
		clientFor: func(model string) (provider.AIClient, provider.Provider, error) {
			return provider.ForModel(cfg, model, logger)
		},
	}
}

// Analyze validates the request, computes local metrics, and runs the
// AI passes the mode asks for. Once validation has passed a report is
// always returned: failed passes leave their field nil, a failed
// suggestions call falls back to the static set, and Success turns
// false only when no AI content could be produced at all.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeDual
	}
	if !mode.Valid() {
		return nil, errors.NewValidationError("unsupported analysis type %q (supported: quick, detailed, dual)", string(mode))
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.NewValidationError("prompt must not be empty")
	}
	if length := utf8.RuneCountInString(req.Prompt); length > a.cfg.GetMaxPromptLength() {
		return nil, errors.NewValidationError("prompt length %d exceeds maximum of %d characters",
			length, a.cfg.GetMaxPromptLength())
	}

	model := req.Model
	if model == "" {
		model = a.cfg.GetAnalysisModel()
	}

	report := &Report{
		Metrics: prompt.Measure(req.Prompt),
	}

	client, prov, err := a.clientFor(model)
	if err != nil {
		// No client means no AI content at all; metrics and the
		// static suggestions still make the report usable.
		a.logger.Warnw("Analysis client unavailable",
			"model", model,
			"provider", string(prov),
			"error", err)
		report.Suggestions = staticSuggestionFallback()
		report.ErrorMessage = util.Ptr(err.Error())
		return report, nil
	}

	a.logger.Debugw("Starting prompt analysis",
		"mode", string(mode),
		"model", model,
		"provider", string(prov),
		"prompt_chars", report.Metrics.Characters)

	var failures []string

	if mode == ModeQuick || mode == ModeDual {
		content, err := a.chat(ctx, client, quickSystemPrompt,
			"Analyze this prompt:\n"+req.Prompt, model, quickTemperature, quickMaxTokens)
		if err != nil {
			a.logger.Warnw("Quick analysis failed", "model", model, "error", err)
			failures = append(failures, err.Error())
		} else {
			report.QuickReport = util.Ptr(content)
		}
	}

	if mode == ModeDetailed || mode == ModeDual {
		content, err := a.chat(ctx, client, detailedSystemPrompt,
			"Analyze this prompt in detail:\n"+req.Prompt, model, detailedTemperature, detailedMaxTokens)
		if err != nil {
			a.logger.Warnw("Detailed analysis failed", "model", model, "error", err)
			failures = append(failures, err.Error())
		} else {
			report.DetailedReport = util.Ptr(content)
		}
	}

	report.Suggestions = a.generateSuggestions(ctx, client, model, req.Prompt,
		suggestionContext(report.QuickReport, report.DetailedReport))

	report.Success = report.QuickReport != nil || report.DetailedReport != nil
	if !report.Success {
		report.ErrorMessage = util.Ptr(strings.Join(failures, "; "))
	}

	a.logger.Debugw("Prompt analysis finished",
		"mode", string(mode),
		"success", report.Success,
		"suggestions", len(report.Suggestions))

	return report, nil
}

// chat performs one analysis pass under the configured analysis
// deadline.
func (a *Analyzer) chat(ctx context.Context, client provider.AIClient, system, user, model string, temperature float64, maxTokens int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.GetAnalysisTimeout())
	defer cancel()

	resp, err := client.Chat(callCtx, openai.ChatRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        util.Ptr(model),
		Temperature:  util.Ptr(temperature),
		MaxTokens:    util.Ptr(maxTokens),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// suggestionContext condenses the analysis passes into a short context
// block for the suggestion call.
func suggestionContext(quick, detailed *string) string {
	var sb strings.Builder
	if quick != nil {
		sb.WriteString("Quick analysis: " + truncateRunes(*quick, 200) + "...")
	}
	if detailed != nil {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Detailed analysis: " + truncateRunes(*detailed, 300) + "...")
	}
	return sb.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
