package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/analysis"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/logger"
	"github.com/teranos/promptforge/prompt"
)

// AnalyzeCmd analyzes a prompt for quality and improvements
var AnalyzeCmd = &cobra.Command{
	Use:   "analyze <prompt|->",
	Short: "Analyze a prompt for quality and improvements",
	Long: `Run AI-assisted analysis of a prompt and print the report. Pass "-" as the
prompt to read it from stdin. With --metrics-only no model is called and only
the local metrics are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeModel       string
	analyzeType        string
	analyzeMetricsOnly bool
)

func init() {
	AnalyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "Model to analyze with (defaults to ai.analysis_model)")
	AnalyzeCmd.Flags().StringVar(&analyzeType, "type", "dual", "Analysis type: quick, detailed, or dual")
	AnalyzeCmd.Flags().BoolVar(&analyzeMetricsOnly, "metrics-only", false, "Compute local metrics without calling a model")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text, err := readPromptArg(cmd, args[0])
	if err != nil {
		return err
	}

	if analyzeMetricsOnly {
		printMetrics(prompt.Measure(text))
		return nil
	}

	mode, err := analysis.ParseMode(analyzeType)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	analyzer := analysis.NewAnalyzer(cfg, logger.Logger)

	spinner, _ := pterm.DefaultSpinner.Start("Analyzing prompt...")
	start := time.Now()
	report, err := analyzer.Analyze(cmd.Context(), analysis.AnalyzeRequest{
		Prompt: text,
		Model:  analyzeModel,
		Mode:   mode,
	})
	if err != nil {
		spinner.Fail("Analysis failed")
		return err
	}
	spinner.Success("Analysis complete")

	verbosity, _ := cmd.Flags().GetCount("verbose")
	if logger.ShouldOutput(verbosity, logger.OutputTiming) {
		pterm.Printf("%s\n", pterm.Gray(fmt.Sprintf("Analysis took %dms", time.Since(start).Milliseconds())))
	}

	printReport(report)
	return nil
}

// printReport renders an analysis report section by section. Pointer
// fields are nil when the corresponding pass did not run.
func printReport(report *analysis.Report) {
	if report.QuickReport != nil {
		pterm.Printf("\n%s\n%s\n", pterm.Cyan("── Quick analysis ──"), *report.QuickReport)
	}
	if report.DetailedReport != nil {
		pterm.Printf("\n%s\n%s\n", pterm.Cyan("── Detailed analysis ──"), *report.DetailedReport)
	}
	if len(report.Suggestions) > 0 {
		pterm.Printf("\n%s\n", pterm.Cyan("── Suggestions ──"))
		for _, suggestion := range report.Suggestions {
			pterm.Printf("  %s %s\n", pterm.Gray("→"), suggestion)
		}
	}

	printMetrics(report.Metrics)

	if report.ErrorMessage != nil {
		pterm.Warning.Printf("Partial result: %s\n", *report.ErrorMessage)
	}
}

func printMetrics(metrics prompt.Metrics) {
	pterm.Printf("\n%s\n", pterm.Cyan("── Metrics ──"))
	pterm.Printf("  Characters: %d\n", metrics.Characters)
	pterm.Printf("  Words:      %d\n", metrics.Words)
	pterm.Printf("  Lines:      %d\n", metrics.Lines)
	if len(metrics.SpecialChars) > 0 {
		pterm.Printf("  Special:    %s\n", strings.Join(metrics.SpecialChars, " "))
	}
}

// readPromptArg resolves a prompt argument, reading stdin when the
// argument is "-".
func readPromptArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, "failed to read prompt from stdin")
	}
	return strings.TrimRight(string(data), "\n"), nil
}
