package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolgate-ai/toolgate/internal/headless"
)

var (
	runWorkDir      string
	runAutoApprove  bool
	runOutputFormat string
	runTimeout      string
	runMaxTurns     int
	runStdin        bool
	runFiles        []string
	runSystemPrompt string
	runQuiet        bool
	runVerbose      bool
	runModel        string
	runProfile      string
	runStore        string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run a prompt with approval-gated tool execution",
	Long: `Run a prompt against the configured model. Every tool call the model
makes is checked against stored rules; unmatched calls block until you
approve or deny them on the terminal.

Examples:
  # Simple prompt
  toolgate run "List the Go files in this directory"

  # Auto-approve all tool executions
  toolgate run --yolo "Run the tests and summarize failures"

  # With timeout and JSON output
  toolgate run -o json -t 5m "Check git status"

  # Read prompt from stdin
  echo "Show disk usage" | toolgate run --stdin

  # With context files and a stricter profile
  toolgate run -f notes.md --profile readonly "Summarize these notes"`,
	RunE: runRun,
}

func init() {
	// Prompt input
	runCmd.Flags().BoolVar(&runStdin, "stdin", false, "Read prompt from stdin")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach as context")

	// Working directory
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "Working directory")

	// Approvals
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Auto-approve all tool executions")
	runCmd.Flags().BoolVar(&runAutoApprove, "yolo", false, "Alias for --auto-approve")

	// Output format
	runCmd.Flags().StringVarP(&runOutputFormat, "output-format", "o", "text", "Output format: text, json, jsonl")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress output, only show result")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show all events")

	// Execution limits
	runCmd.Flags().StringVarP(&runTimeout, "timeout", "t", "30m", "Maximum execution time (e.g., 5m, 1h)")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "Maximum model turns (default 5)")

	// Model and policy
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (provider/model format)")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "Policy profile to apply")
	runCmd.Flags().StringVar(&runStore, "store", "", "Pattern store path")
	runCmd.Flags().StringVar(&runSystemPrompt, "system-prompt", "", "Custom system prompt file")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(runWorkDir)
	if err != nil {
		return err
	}

	// Parse timeout
	timeout, err := time.ParseDuration(runTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	// Parse output format
	var outputFormat headless.OutputFormat
	switch strings.ToLower(runOutputFormat) {
	case "text":
		outputFormat = headless.OutputText
	case "json":
		outputFormat = headless.OutputJSON
	case "jsonl":
		outputFormat = headless.OutputJSONL
	default:
		return fmt.Errorf("invalid output format: %s (must be text, json, or jsonl)", runOutputFormat)
	}

	prompt := strings.Join(args, " ")
	if prompt == "" && !runStdin {
		return fmt.Errorf("prompt required. Provide via argument or --stdin")
	}

	cfg := &headless.Config{
		Prompt:           prompt,
		WorkDir:          workDir,
		AutoApprove:      runAutoApprove,
		OutputFormat:     outputFormat,
		Timeout:          timeout,
		MaxTurns:         runMaxTurns,
		ReadStdin:        runStdin,
		Files:            runFiles,
		SystemPromptFile: runSystemPrompt,
		Quiet:            runQuiet,
		Verbose:          runVerbose,
		Model:            runModel,
		Profile:          runProfile,
		StorePath:        runStore,
	}

	runner := headless.NewRunner(cfg)
	result, err := runner.Run(cmd.Context(), os.Stdout)

	if result != nil {
		os.Exit(int(result.ExitCode))
	}

	return err
}
