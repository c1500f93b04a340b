package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptforge/ai/tracker"
	"github.com/teranos/promptforge/errors"
	"github.com/teranos/promptforge/execution"
	"github.com/teranos/promptforge/internal/util"
	"github.com/teranos/promptforge/logger"
	"github.com/teranos/promptforge/prompt"
)

// ExecCmd executes a prompt against an AI provider
var ExecCmd = &cobra.Command{
	Use:   "exec <prompt|->",
	Short: "Execute a prompt against an AI provider",
	Long: `Execute a prompt and print the model's response. Pass "-" as the prompt to
read it from stdin. {key} placeholders are substituted from --var flags before
execution. The execution is recorded in history.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

var (
	execModel       string
	execTemperature float64
	execMaxTokens   int
	execVars        []string
)

func init() {
	ExecCmd.Flags().StringVar(&execModel, "model", "", "Model to execute with (defaults to ai.execution_model)")
	ExecCmd.Flags().Float64Var(&execTemperature, "temperature", execution.DefaultTemperature, "Sampling temperature (0-2)")
	ExecCmd.Flags().IntVar(&execMaxTokens, "max-tokens", execution.DefaultMaxTokens, "Response token limit (1-4000)")
	ExecCmd.Flags().StringArrayVar(&execVars, "var", nil, "Template variable as key=value (repeatable)")
}

func runExec(cmd *cobra.Command, args []string) error {
	text, err := readPromptArg(cmd, args[0])
	if err != nil {
		return err
	}

	variables, err := parseVariables(execVars)
	if err != nil {
		return err
	}

	// Placeholders without a --var render verbatim; say so up front
	if missing, verr := prompt.Validate(text, variables); verr == nil && len(missing) > 0 {
		pterm.Warning.Printf("No value for {%s}, sending placeholders as-is\n", strings.Join(missing, "}, {"))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	executor := execution.NewExecutor(cfg, tracker.NewTracker(database, logger.Logger), logger.Logger)

	result, err := executor.Execute(cmd.Context(), execution.ExecuteRequest{
		Prompt:      text,
		Model:       execModel,
		Temperature: util.Ptr(execTemperature),
		MaxTokens:   util.Ptr(execMaxTokens),
		Variables:   variables,
	})
	if err != nil {
		return err
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	if logger.ShouldOutput(verbosity, logger.OutputTiming) {
		pterm.Printf("%s\n", pterm.Gray(fmt.Sprintf("Execution took %.0fms via %s",
			result.ExecutionTime*1000, result.Provider)))
	}

	fmt.Println(result.Response)
	return nil
}

// parseVariables converts repeated key=value flags into a template
// variable map.
func parseVariables(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Newf("invalid --var %q (expected key=value)", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
