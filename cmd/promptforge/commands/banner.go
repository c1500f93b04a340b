package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/teranos/promptforge/config"
	"github.com/teranos/promptforge/internal/version"
	"github.com/teranos/promptforge/logger"
)

// printStartupBanner prints the user-friendly startup message.
// Written to stderr: stdout belongs to the MCP stdio transport.
func printStartupBanner(verbosity int, cfg *config.Config, transport string) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	magenta := "\033[35m"
	white := "\033[37m"
	bgBlack := "\033[40m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	available := cfg.AvailableProviders()
	var providers []string
	for _, name := range []string{"anthropic", "openai"} {
		if available[name] {
			providers = append(providers, name)
		}
	}
	providerList := strings.Join(providers, ", ")
	if providerList == "" {
		providerList = "none (set an API key)"
	}

	out := os.Stderr

	fmt.Fprintf(out, "\n%s%s", cyan, bold)
	fmt.Fprintf(out, "   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "   ║                                                   ║\n")
	fmt.Fprintf(out, "   ║        %s%s%s██████  ██████%s                             ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Fprintf(out, "   ║        %s%s%s██   ██ ██%s                                 ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Fprintf(out, "   ║        %s%s%s██████  █████%s                              ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Fprintf(out, "   ║        %s%s%s██      ██%s                                 ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Fprintf(out, "   ║        %s%s%s██      ██%s   PromptForge                   ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Fprintf(out, "   ║                                                   ║\n")
	fmt.Fprintf(out, "   ║   %s⚒%s Analyze   %s▶%s Execute   %s▤%s Library   %s◷%s History   ║\n",
		yellow, reset+cyan+bold, green, reset+cyan+bold, blue, reset+cyan+bold, magenta, reset+cyan+bold)
	fmt.Fprintf(out, "   ║                                                   ║\n")
	fmt.Fprintf(out, "   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Fprintf(out, "%s%s┌─ PromptForge Info ──────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Fprintf(out, "%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Fprintf(out, "%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	verbosityLine := logger.LevelName(verbosity)
	if verbosity > 0 {
		verbosityLine += " showing " + logger.VerbosityDescription(verbosity)
	}
	fmt.Fprintf(out, "%s│%s Verbosity: %s\n", green, reset, verbosityLine)
	fmt.Fprintf(out, "%s│%s Transport: %s\n", green, reset, transport)
	fmt.Fprintf(out, "%s│%s Database:  %s\n", green, reset, cfg.GetDatabasePath())
	fmt.Fprintf(out, "%s│%s Providers: %s\n", green, reset, providerList)
	fmt.Fprintf(out, "%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Fprintf(out, "\n%s%s✨ Connect an MCP client to analyze, execute, and save prompts%s\n", yellow, bold, reset)
	fmt.Fprintf(out, "%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
