package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/library"
	"github.com/teranos/promptforge/logger"
	"github.com/teranos/promptforge/server"
	"go.uber.org/zap/zapcore"
)

// ServeCmd starts the PromptForge MCP server
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PromptForge MCP server",
	Long: `Start the MCP server exposing prompt analysis, execution, library, and
history to MCP clients. Serves the stdio transport by default; pass --http
to serve the streamable HTTP transport instead.`,
	RunE: runServe,
}

var (
	serveHTTP bool
	serveHost string
	servePort int
)

func init() {
	// Serve command flags
	ServeCmd.Flags().BoolVar(&serveHTTP, "http", false, "Serve the streamable HTTP transport instead of stdio")
	ServeCmd.Flags().StringVar(&serveHost, "host", "", "Bind host for --http (overrides config)")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Bind port for --http (overrides config)")
	// Read by the root PersistentPreRunE when initializing the logger
	ServeCmd.Flags().Bool("json-logs", false, "Emit JSON log lines instead of console output")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Get verbosity flag - default to 1 (Info) for the server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
	}
	logger.SetLevel(logger.VerbosityToLevel(verbosity))

	// stdout carries the MCP stdio protocol, so every human-facing line
	// goes to stderr.
	pterm.SetDefaultOutput(os.Stderr)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if cfg.Server.Debug {
		logger.SetLevel(zapcore.DebugLevel)
	}

	// Open and migrate database
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	// Resolve the transport before the banner so it can be shown
	transport := "stdio"
	var addr string
	if serveHTTP {
		host := cfg.GetServerHost()
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		port := cfg.GetServerPort()
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		addr = fmt.Sprintf("%s:%d", host, port)
		transport = "http://" + addr
	}

	// Print startup banner
	printStartupBanner(verbosity, cfg, transport)

	// Import and watch the configured prompt directory
	if dir := cfg.Library.ImportDir; dir != "" {
		store := library.NewStore(database, logger.ComponentLogger("library"))
		if count, err := store.ImportDir(cmd.Context(), dir); err != nil {
			logger.Warnw("Initial library import failed", "dir", dir, "error", err)
		} else if count > 0 {
			logger.Infow("Imported prompt files", "dir", dir, "count", count)
		}

		watcher, err := library.NewWatcher(store, dir, logger.ComponentLogger("library"))
		if err != nil {
			logger.Warnw("Library watcher disabled", "dir", dir, "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	srv := server.New(cfg, database, logger.ComponentLogger("mcp"))

	// Start server in background
	errChan := make(chan error, 1)
	if serveHTTP {
		go func() {
			errChan <- srv.ServeHTTP(addr)
		}()
	} else {
		go func() {
			errChan <- srv.ServeStdio()
		}()
	}

	// Wait for shutdown signal (Ctrl+C) or server exit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Stdio serving ends when the client closes stdin; that exit is clean
		if err != nil {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		// Start graceful shutdown in background
		shutdownDone := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			shutdownDone <- srv.Shutdown(ctx)
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			// Graceful shutdown completed
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
