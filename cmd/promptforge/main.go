package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/cmd/promptforge/commands"
	"github.com/teranos/promptforge/logger"
)

var rootCmd = &cobra.Command{
	Use:   "promptforge",
	Short: "PromptForge - prompt engineering workbench and MCP server",
	Long: `PromptForge - analyze, execute, and manage AI prompts.

PromptForge provides prompt analysis, execution against OpenAI and Anthropic
models, a persistent prompt library, and execution history tracking. The same
operations are exposed to MCP clients via "promptforge serve".

Available commands:
  serve   - Start the MCP server (stdio by default, --http for HTTP)
  analyze - Analyze a prompt for quality and improvements
  exec    - Execute a prompt against an AI provider
  library - Manage the saved prompt library
  config  - Inspect and manage configuration
  version - Show version information

Examples:
  promptforge serve                         # Serve MCP over stdio
  promptforge analyze "Explain recursion"   # Dual analysis of a prompt
  promptforge exec - --var name=Ada < p.txt # Execute a prompt from stdin
  promptforge library search refactoring    # Search saved prompts
  promptforge config show                   # Print resolved configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize the global logger before any command runs. All log
		// output goes to stderr so serve's stdio transport stays clean.
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetLevel(logger.VerbosityToLevel(verbosity))
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (overrides discovery)")

	// Add commands
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AnalyzeCmd)
	rootCmd.AddCommand(commands.ExecCmd)
	rootCmd.AddCommand(commands.LibraryCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
