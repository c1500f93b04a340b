package server

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/promptforge/ai/tracker"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/internal/version"
)

const (
	configResourceURI  = "promptforge://config"
	statusResourceURI  = "promptforge://status"
	historyResourceURI = "promptforge://history/{limit}"

	// History row bounds when reading promptforge://history/{limit}
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// registerResources declares the three read-only service resources.
func (s *Server) registerResources() {
	configResource := mcp.NewResource(
		configResourceURI,
		"Server configuration",
		mcp.WithResourceDescription("Providers, models, database path and feature set. Key material is never included."),
		mcp.WithMIMEType("application/json"),
	)
	s.mcp.AddResource(configResource, s.handleConfigResource)

	statusResource := mcp.NewResource(
		statusResourceURI,
		"Server status",
		mcp.WithResourceDescription("Health, uptime, database connectivity, memory usage and 24h execution statistics"),
		mcp.WithMIMEType("application/json"),
	)
	s.mcp.AddResource(statusResource, s.handleStatusResource)

	historyTemplate := mcp.NewResourceTemplate(
		historyResourceURI,
		"Execution history",
		mcp.WithTemplateDescription("Recent prompt executions, newest first. The path segment caps the row count, default 50, max 500."),
		mcp.WithTemplateMIMEType("application/json"),
	)
	s.mcp.AddResourceTemplate(historyTemplate, s.handleHistoryResource)
}

// configDocument is the promptforge://config payload. API keys are
// reported as presence only.
type configDocument struct {
	Name               string            `json:"name"`
	Version            string            `json:"version"`
	AvailableProviders map[string]bool   `json:"available_providers"`
	DefaultProvider    string            `json:"default_provider"`
	DatabasePath       string            `json:"database_path"`
	AnalysisModel      string            `json:"analysis_model"`
	ExecutionModel     string            `json:"execution_model"`
	APIKeys            map[string]string `json:"api_keys"`
	Features           []string          `json:"features"`
}

func (s *Server) handleConfigResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := configDocument{
		Name:               ServerName,
		Version:            version.Get().Version,
		AvailableProviders: s.cfg.AvailableProviders(),
		DefaultProvider:    s.cfg.Providers.Default,
		DatabasePath:       s.cfg.GetDatabasePath(),
		AnalysisModel:      s.cfg.GetAnalysisModel(),
		ExecutionModel:     s.cfg.GetExecutionModel(),
		APIKeys: map[string]string{
			"openai":    maskKey(s.cfg.Providers.OpenAI.APIKey),
			"anthropic": maskKey(s.cfg.Providers.Anthropic.APIKey),
		},
		Features: []string{"analysis", "execution", "library", "history"},
	}
	return jsonContents(request.Params.URI, doc)
}

// statusDocument is the promptforge://status payload
type statusDocument struct {
	Status              string         `json:"status"`
	Timestamp           string         `json:"timestamp"`
	Uptime              string         `json:"uptime"`
	DatabaseConnected   bool           `json:"database_connected"`
	AIServicesAvailable int            `json:"ai_services_available"`
	Memory              *memoryStats   `json:"memory,omitempty"`
	Usage24h            *tracker.Stats `json:"usage_24h,omitempty"`
}

// memoryStats reports process and system memory via gopsutil
type memoryStats struct {
	ProcessRSSMB      float64 `json:"process_rss_mb"`
	SystemTotalMB     float64 `json:"system_total_mb"`
	SystemUsedPercent float64 `json:"system_used_percent"`
}

func (s *Server) handleStatusResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	available := 0
	for _, configured := range s.cfg.AvailableProviders() {
		if configured {
			available++
		}
	}

	doc := statusDocument{
		Status:              "healthy",
		Timestamp:           time.Now().Format(time.RFC3339),
		Uptime:              time.Since(s.started).Round(time.Second).String(),
		DatabaseConnected:   s.db != nil && s.db.PingContext(ctx) == nil,
		AIServicesAvailable: available,
		Memory:              readMemoryStats(),
	}

	// Usage stats are best-effort: a failed aggregate leaves the field
	// out rather than failing the whole status read
	if stats, err := s.tracker.Stats(ctx, time.Now().Add(-24*time.Hour)); err == nil {
		doc.Usage24h = stats
	} else {
		s.logger.Warnw("Status resource could not aggregate usage stats", "error", err)
	}

	return jsonContents(request.Params.URI, doc)
}

func (s *Server) handleHistoryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	limit := parseHistoryLimit(request.Params.URI)

	rows, err := s.tracker.Recent(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read execution history")
	}

	payload := map[string]any{
		"executions": rows,
		"count":      len(rows),
		"limit":      limit,
	}
	return jsonContents(request.Params.URI, payload)
}

// parseHistoryLimit extracts the row cap from a history URI. Anything
// unparseable falls back to the default; parsed values clamp to
// [1, maxHistoryLimit].
func parseHistoryLimit(uri string) int {
	raw := strings.TrimPrefix(uri, "promptforge://history")
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return defaultHistoryLimit
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultHistoryLimit
	}
	if n < 1 {
		return 1
	}
	if n > maxHistoryLimit {
		return maxHistoryLimit
	}
	return n
}

// readMemoryStats samples process RSS and system memory. Returns nil
// when the platform calls fail; status stays readable without it.
func readMemoryStats() *memoryStats {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}

	stats := &memoryStats{
		SystemTotalMB:     float64(vm.Total) / 1024 / 1024,
		SystemUsedPercent: vm.UsedPercent,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			stats.ProcessRSSMB = float64(mi.RSS) / 1024 / 1024
		}
	}

	return stats
}

// maskKey reports key presence without the material
func maskKey(key string) string {
	if key == "" {
		return "not configured"
	}
	return "configured"
}

// jsonContents wraps v as a single JSON text content block for uri
func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal resource")
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
