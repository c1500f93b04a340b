package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teranos/promptforge/analysis"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/execution"
	"github.com/teranos/promptforge/internal/util"
	"github.com/teranos/promptforge/library"
)

// registerTools declares the six PromptForge tools. Argument names and
// defaults are part of the protocol surface; clients depend on them.
func (s *Server) registerTools() {
	analyzeTool := mcp.NewTool("analyze_prompt",
		mcp.WithDescription("Analyze a prompt: local metrics, AI quality reports and optimization suggestions"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt text to analyze"),
		),
		mcp.WithString("model",
			mcp.Description("AI model to use; empty selects the configured analysis model"),
		),
		mcp.WithString("analysis_type",
			mcp.Description("Analysis depth: quick, detailed, or dual for both"),
			mcp.Enum("quick", "detailed", "dual"),
			mcp.DefaultString(string(analysis.ModeDual)),
		),
	)
	s.mcp.AddTool(analyzeTool, s.handleAnalyzePrompt)

	executeTool := mcp.NewTool("execute_prompt",
		mcp.WithDescription("Execute a prompt against an AI model and return the response"),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt to execute, with optional {variable} placeholders"),
		),
		mcp.WithString("model",
			mcp.Description("AI model name; empty selects the configured execution model"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Sampling temperature"),
			mcp.DefaultNumber(execution.DefaultTemperature),
			mcp.Min(execution.MinTemperature),
			mcp.Max(execution.MaxTemperature),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Maximum response tokens"),
			mcp.DefaultNumber(execution.DefaultMaxTokens),
			mcp.Min(execution.MinMaxTokens),
			mcp.Max(execution.MaxMaxTokens),
		),
		mcp.WithObject("variables",
			mcp.Description("Values substituted into {variable} placeholders before execution"),
		),
	)
	s.mcp.AddTool(executeTool, s.handleExecutePrompt)

	saveTool := mcp.NewTool("save_prompt",
		mcp.WithDescription("Save a prompt to the library"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Prompt title, unique within the library"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Prompt content"),
		),
		mcp.WithString("description",
			mcp.Description("What the prompt is for"),
		),
		mcp.WithString("category",
			mcp.Description("Category for browsing"),
			mcp.DefaultString(library.DefaultCategory),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags for filtering"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.mcp.AddTool(saveTool, s.handleSavePrompt)

	getTool := mcp.NewTool("get_saved_prompt",
		mcp.WithDescription("Fetch a saved prompt by id, counting the retrieval as a use"),
		mcp.WithNumber("prompt_id",
			mcp.Required(),
			mcp.Description("Prompt id"),
		),
	)
	s.mcp.AddTool(getTool, s.handleGetSavedPrompt)

	searchTool := mcp.NewTool("search_prompts",
		mcp.WithDescription("Search the prompt library by text, category and tags"),
		mcp.WithString("query",
			mcp.Description("Substring matched against title, content and description"),
		),
		mcp.WithString("category",
			mcp.Description("Exact category filter"),
		),
		mcp.WithArray("tags",
			mcp.Description("Match prompts sharing at least one of these tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results"),
			mcp.DefaultNumber(library.DefaultSearchLimit),
			mcp.Min(1),
			mcp.Max(library.MaxSearchLimit),
		),
	)
	s.mcp.AddTool(searchTool, s.handleSearchPrompts)

	deleteTool := mcp.NewTool("delete_prompt",
		mcp.WithDescription("Delete a saved prompt by id"),
		mcp.WithNumber("prompt_id",
			mcp.Required(),
			mcp.Description("Prompt id to delete"),
		),
	)
	s.mcp.AddTool(deleteTool, s.handleDeletePrompt)
}

// handleAnalyzePrompt handles analyze_prompt tool calls
func (s *Server) handleAnalyzePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	promptText, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	mode, err := analysis.ParseMode(request.GetString("analysis_type", string(analysis.ModeDual)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, err := s.analyzer.Analyze(ctx, analysis.AnalyzeRequest{
		Prompt: promptText,
		Model:  request.GetString("model", ""),
		Mode:   mode,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(report)
}

// handleExecutePrompt handles execute_prompt tool calls. Validation
// failures come back as in-band tool errors; an execution that reached
// the provider and failed comes back as a result document with
// success=false, mirroring what lands in the history.
func (s *Server) handleExecutePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	promptText, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	variables, err := stringMapArgument(request, "variables")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.executor.Execute(ctx, execution.ExecuteRequest{
		Prompt:      promptText,
		Model:       request.GetString("model", ""),
		Temperature: util.Ptr(request.GetFloat("temperature", execution.DefaultTemperature)),
		MaxTokens:   util.Ptr(request.GetInt("max_tokens", execution.DefaultMaxTokens)),
		Variables:   variables,
	})
	if result == nil && err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

// handleSavePrompt handles save_prompt tool calls
func (s *Server) handleSavePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	saved, err := s.store.Save(ctx, &library.SavedPrompt{
		Title:       title,
		Content:     content,
		Description: request.GetString("description", ""),
		Category:    request.GetString("category", library.DefaultCategory),
		Tags:        request.GetStringSlice("tags", nil),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(saved)
}

// handleGetSavedPrompt handles get_saved_prompt tool calls. Fetching a
// prompt through the protocol counts as using it, so the usage counter
// is bumped before the row is read back.
func (s *Server) handleGetSavedPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("prompt_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.IncrementUsage(ctx, int64(id)); err != nil {
		if errors.IsNotFoundError(err) {
			return mcp.NewToolResultError(fmt.Sprintf("Prompt %d not found", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	saved, err := s.store.Get(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(saved)
}

// handleSearchPrompts handles search_prompts tool calls
func (s *Server) handleSearchPrompts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.store.Search(ctx, library.Query{
		Text:     request.GetString("query", ""),
		Category: request.GetString("category", ""),
		Tags:     request.GetStringSlice("tags", nil),
		Limit:    request.GetInt("limit", library.DefaultSearchLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"prompts": results,
		"count":   len(results),
	})
}

// handleDeletePrompt handles delete_prompt tool calls. A missing id is
// not a tool error: the outcome document reports success=false so
// clients can treat deletion as idempotent.
func (s *Server) handleDeletePrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("prompt_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	deleted, err := s.store.Delete(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !deleted {
		return jsonResult(map[string]any{
			"success": false,
			"message": fmt.Sprintf("Prompt %d not found", id),
		})
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Prompt %d deleted", id),
	})
}

// stringMapArgument reads an optional object argument whose values must
// all be strings.
func stringMapArgument(request mcp.CallToolRequest, key string) (map[string]string, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.NewValidationError("%s must be an object of string values", key)
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, errors.NewValidationError("%s.%s must be a string", key, k)
		}
		out[k] = s
	}
	return out, nil
}

// jsonResult marshals v as the tool's text content
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
