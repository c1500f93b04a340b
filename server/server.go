// Package server exposes PromptForge over the Model Context Protocol:
// six tools covering prompt analysis, execution and the saved-prompt
// library, plus three read-only resources describing the running
// service. Tool results are JSON documents with stable snake_case
// field names so clients can parse them without scraping prose.
package server

import (
	"context"
	"database/sql"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/promptforge/ai/tracker"
	"github.com/teranos/promptforge/analysis"
	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/execution"
	"github.com/teranos/promptforge/internal/version"
	"github.com/teranos/promptforge/library"
)

// ServerName identifies this service to MCP clients and in the config resource
const ServerName = "PromptForge MCP Server"

// instructions is surfaced to clients during the MCP initialize handshake
const instructions = "AI prompt engineering workbench. Analyze prompts for " +
	"clarity and structure, execute them against OpenAI or Anthropic models, " +
	"and manage a persistent prompt library. Read promptforge://config for " +
	"provider availability, promptforge://status for health, and " +
	"promptforge://history/{limit} for recent executions."

// Server wires the PromptForge services behind an MCP server. The
// database handle is owned by the caller; Server only reads and writes
// through it.
type Server struct {
	cfg      *config.Config
	db       *sql.DB
	analyzer *analysis.Analyzer
	executor *execution.Executor
	store    *library.Store
	tracker  *tracker.Tracker
	mcp      *mcpserver.MCPServer
	httpSrv  *mcpserver.StreamableHTTPServer
	logger   *zap.SugaredLogger
	started  time.Time
}

// New creates an MCP server over an opened and migrated database.
func New(cfg *config.Config, db *sql.DB, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	usageTracker := tracker.NewTracker(db, logger)

	s := &Server{
		cfg:      cfg,
		db:       db,
		analyzer: analysis.NewAnalyzer(cfg, logger),
		executor: execution.NewExecutor(cfg, usageTracker, logger),
		store:    library.NewStore(db, logger),
		tracker:  usageTracker,
		logger:   logger,
		started:  time.Now(),
	}

	s.mcp = mcpserver.NewMCPServer(
		ServerName,
		version.Get().Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, true),
		mcpserver.WithInstructions(instructions),
		mcpserver.WithRecovery(),
	)

	s.registerTools()
	s.registerResources()

	return s
}

// ServeStdio serves MCP over stdin/stdout, blocking until the client
// disconnects. Stdout carries the protocol, so all logging must already
// be routed to stderr before this is called.
func (s *Server) ServeStdio() error {
	s.logger.Infow("Serving MCP over stdio",
		"server", ServerName,
		"version", version.Get().Version,
	)
	return mcpserver.ServeStdio(s.mcp)
}

// ServeHTTP serves MCP over streamable HTTP on addr, blocking until
// Shutdown is called.
func (s *Server) ServeHTTP(addr string) error {
	s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcp)
	s.logger.Infow("Serving MCP over HTTP",
		"server", ServerName,
		"version", version.Get().Version,
		"addr", addr,
	)
	return s.httpSrv.Start(addr)
}

// Shutdown stops the HTTP listener when one is running. Stdio serving
// ends on its own when stdin closes.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	s.logger.Infow("Shutting down MCP HTTP server")
	return s.httpSrv.Shutdown(ctx)
}
