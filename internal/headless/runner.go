package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/config"
	"github.com/toolgate-ai/toolgate/internal/dispatch"
	"github.com/toolgate-ai/toolgate/internal/logging"
	"github.com/toolgate-ai/toolgate/internal/pattern"
	"github.com/toolgate-ai/toolgate/internal/provider"
	"github.com/toolgate-ai/toolgate/internal/ruleset"
	"github.com/toolgate-ai/toolgate/internal/tool"
)

// Runner executes one gated prompt in the console.
type Runner struct {
	config    *Config
	appConfig *config.Config
	printer   *Printer
	prompter  *Prompter

	store       *pattern.Store
	watcher     *pattern.Watcher
	coordinator *approval.Coordinator
	providerReg *provider.Registry
	toolReg     *tool.Registry
	profile     *ruleset.Profile

	providerID string
	modelID    string
}

// NewRunner creates a new console runner.
func NewRunner(cfg *Config) *Runner {
	return &Runner{
		config: cfg,
	}
}

// Run executes the prompt and returns the result. Approval questions are
// asked on stdin unless AutoApprove is set.
func (r *Runner) Run(ctx context.Context, writer io.Writer) (*Result, error) {
	r.printer = NewPrinter(writer, r.config.OutputFormat, r.config.Quiet, r.config.Verbose)
	r.printer.Subscribe()
	defer r.printer.Unsubscribe()

	if err := r.initialize(ctx); err != nil {
		r.printer.SetResult("error", ExitInvalidInput, "", err)
		return r.printer.GetResult(), err
	}
	defer r.close()

	r.prompter = NewPrompter(r.coordinator, os.Stdin, writer, r.config.AutoApprove)
	r.prompter.Start()
	defer r.prompter.Stop()

	prompt, err := r.getPrompt()
	if err != nil {
		r.printer.SetResult("error", ExitInvalidInput, "", err)
		return r.printer.GetResult(), err
	}

	p, err := r.providerReg.Get(r.providerID)
	if err != nil {
		r.printer.SetResult("error", ExitProviderError, "", err)
		return r.printer.GetResult(), err
	}

	host := dispatch.NewProviderHost(p, r.modelID, 0, 0)
	dispatcher := dispatch.New(host, r.toolReg, r.coordinator, dispatch.Options{
		MaxTurns:     r.maxTurns(),
		WorkDir:      r.config.WorkDir,
		Profile:      r.profile,
		SystemPrompt: r.systemPrompt(),
	})

	runCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	outcome, err := dispatcher.Run(runCtx, prompt)
	if err != nil {
		status, code := classifyError(runCtx, err)
		r.printer.SetResult(status, code, "", err)
		r.printer.PrintFinalResult()
		return r.printer.GetResult(), err
	}

	if r.config.OutputFormat == OutputText {
		fmt.Fprintf(writer, "\n%s\n", outcome.Text)
	}

	r.printer.SetTurns(outcome.Turns)
	r.printer.SetResult("success", ExitSuccess, outcome.Text, nil)
	r.printer.PrintFinalResult()
	return r.printer.GetResult(), nil
}

// initialize loads configuration and wires the store, coordinator, providers
// and tools.
func (r *Runner) initialize(ctx context.Context) error {
	appConfig, err := config.Load(r.config.WorkDir)
	if err != nil {
		return err
	}
	r.appConfig = appConfig

	if r.config.Model != "" {
		appConfig.Model = r.config.Model
	}
	if r.config.Profile != "" {
		appConfig.Profile = r.config.Profile
	}
	if r.config.StorePath != "" {
		appConfig.StorePath = r.config.StorePath
	}

	storePath := appConfig.PatternStorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return err
	}

	r.store, err = pattern.Open(storePath)
	if err != nil {
		return err
	}

	// Pick up external edits to the store while we run
	r.watcher, err = pattern.NewWatcher(r.store)
	if err != nil {
		logging.Warn().Err(err).Msg("store watcher unavailable")
		r.watcher = nil
	} else {
		r.watcher.Start()
	}

	r.coordinator = approval.NewCoordinator(approval.NewCache(r.store))

	profiles, err := ruleset.Load(appConfig.PolicyProfilesPath())
	if err != nil {
		return err
	}
	profileName := appConfig.Profile
	if profileName == "" {
		profileName = "default"
	}
	r.profile, err = ruleset.Get(profiles, profileName)
	if err != nil {
		return err
	}
	r.printer.SetProfile(profileName)

	creds := make(map[string]provider.Credential, len(appConfig.Provider))
	for name, pc := range appConfig.Provider {
		creds[name] = provider.Credential{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
		}
	}
	r.providerReg, err = provider.InitializeProviders(ctx, creds, appConfig.Model)
	if err != nil {
		return err
	}

	if appConfig.Model != "" {
		r.providerID, r.modelID = provider.ParseModelString(appConfig.Model)
	}
	if r.providerID == "" || r.modelID == "" {
		m, err := r.providerReg.DefaultModel()
		if err != nil {
			return fmt.Errorf("no model available: %w", err)
		}
		r.providerID = m.ProviderID
		r.modelID = m.ID
	}
	r.printer.SetModel(r.providerID + "/" + r.modelID)

	r.toolReg = r.buildToolRegistry()

	return nil
}

// buildToolRegistry registers the built-in tools, skipping those disabled
// by configuration or by the profile.
func (r *Runner) buildToolRegistry() *tool.Registry {
	all := tool.DefaultRegistry(r.config.WorkDir)

	reg := tool.NewRegistry(r.config.WorkDir)
	for _, t := range all.List() {
		if enabled, ok := r.appConfig.Tools[t.ID()]; ok && !enabled {
			continue
		}
		if !r.profile.ToolEnabled(t.ID()) {
			continue
		}
		reg.Register(t)
	}
	return reg
}

// close flushes usage counters and stops the store watcher.
func (r *Runner) close() {
	if r.watcher != nil {
		r.watcher.Stop()
	}
	if r.store != nil {
		r.store.Flush()
	}
}

// getPrompt assembles the prompt from flags, stdin and attached files.
func (r *Runner) getPrompt() (string, error) {
	prompt := r.config.Prompt

	if r.config.ReadStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += string(data)
	}

	var files strings.Builder
	for _, file := range r.config.Files {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %w", file, err)
		}
		files.WriteString(fmt.Sprintf("\n\n--- File: %s ---\n%s", file, string(content)))
	}
	prompt += files.String()

	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}
	return prompt, nil
}

// maxTurns resolves the interactive turn limit.
func (r *Runner) maxTurns() int {
	if r.config.MaxTurns > 0 {
		return r.config.MaxTurns
	}
	if r.appConfig.MaxTurns > 0 {
		return r.appConfig.MaxTurns
	}
	return dispatch.DefaultMaxTurnsInteractive
}

// systemPrompt combines the prompt file with configured instructions.
func (r *Runner) systemPrompt() string {
	var parts []string

	if r.config.SystemPromptFile != "" {
		if data, err := os.ReadFile(r.config.SystemPromptFile); err == nil {
			parts = append(parts, string(data))
		}
	}
	parts = append(parts, r.appConfig.Instructions...)

	return strings.Join(parts, "\n\n")
}

// classifyError maps a run failure to a result status and exit code.
func classifyError(ctx context.Context, err error) (string, ExitCode) {
	var turnLimit *dispatch.TurnLimitError
	switch {
	case approval.IsDenied(err):
		return "denied", ExitDenied
	case errors.As(err, &turnLimit):
		return "error", ExitTurnLimit
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout", ExitTimeout
	default:
		return "error", ExitProviderError
	}
}
