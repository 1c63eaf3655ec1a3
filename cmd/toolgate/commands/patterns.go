package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/toolgate-ai/toolgate/internal/config"
	"github.com/toolgate-ai/toolgate/internal/pattern"
)

var (
	patternsStorePath string
	patternsJSON      bool

	addType        string
	addTool        string
	addDescription string
	addCommand     string
	addArgs        string
	addDir         string

	clearYes bool
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage stored approval rules",
	Long: `Manage the persistent pattern store.

Stored rules answer tool approvals without asking: exact approvals match
one signature, wildcard and regex patterns match families of signatures,
and structured patterns match bash command, arguments and directory
independently.`,
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE:  runPatternsList,
}

var patternsAddCmd = &cobra.Command{
	Use:   "add [pattern]",
	Short: "Add a rule to the store",
	Long: `Add a rule to the persistent pattern store.

Examples:
  # Wildcard pattern (default)
  toolgate patterns add --tool bash "git * in /repo"

  # Regex pattern
  toolgate patterns add --tool bash --type regex '^git (status|log) in /repo$'

  # Structured pattern matching components independently
  toolgate patterns add --tool bash --type structured --command cargo --dir '/project/*'`,
	RunE: runPatternsAdd,
}

var patternsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a rule by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsRemove,
}

var patternsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored rules",
	RunE:  runPatternsClear,
}

func init() {
	patternsCmd.PersistentFlags().StringVar(&patternsStorePath, "store", "", "Pattern store path")

	patternsListCmd.Flags().BoolVar(&patternsJSON, "json", false, "Output as JSON")

	patternsAddCmd.Flags().StringVar(&addTool, "tool", "", "Tool the rule applies to (required)")
	patternsAddCmd.Flags().StringVar(&addType, "type", "wildcard", "Pattern type: wildcard, regex, structured")
	patternsAddCmd.Flags().StringVar(&addDescription, "description", "", "Human-readable description")
	patternsAddCmd.Flags().StringVar(&addCommand, "command", "", "Command pattern (structured only)")
	patternsAddCmd.Flags().StringVar(&addArgs, "args", "", "Arguments pattern (structured only)")
	patternsAddCmd.Flags().StringVar(&addDir, "dir", "", "Directory pattern (structured only)")
	patternsAddCmd.MarkFlagRequired("tool")

	patternsClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsAddCmd)
	patternsCmd.AddCommand(patternsRemoveCmd)
	patternsCmd.AddCommand(patternsClearCmd)
}

// openStore opens the persistent pattern store, honoring the --store flag.
func openStore() (*pattern.Store, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}
	if patternsStorePath != "" {
		appConfig.StorePath = patternsStorePath
	}

	storePath := appConfig.PatternStorePath()
	if err := os.MkdirAll(filepath.Dir(storePath), 0755); err != nil {
		return nil, err
	}

	return pattern.Open(storePath)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	patterns := store.Patterns()
	exacts := store.ExactApprovals()

	if patternsJSON {
		out := map[string]any{
			"patterns":        patterns,
			"exact_approvals": exacts,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(patterns) == 0 && len(exacts) == 0 {
		fmt.Println("No stored rules.")
		return nil
	}

	if len(patterns) > 0 {
		fmt.Println("Patterns:")
		for _, p := range patterns {
			fmt.Printf("  %s  [%s/%s]  %s", p.ID, p.ToolName, p.PatternType, p.Pattern)
			if p.MatchCount > 0 {
				fmt.Printf("  (matched %d)", p.MatchCount)
			}
			fmt.Println()
			if p.Description != "" {
				fmt.Printf("      %s\n", p.Description)
			}
		}
	}

	if len(exacts) > 0 {
		fmt.Println("Exact approvals:")
		for _, a := range exacts {
			fmt.Printf("  %s  [%s]  %s", a.ID, a.ToolName, a.Signature)
			if a.MatchCount > 0 {
				fmt.Printf("  (matched %d)", a.MatchCount)
			}
			fmt.Println()
		}
	}

	return nil
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	var p *pattern.ToolPattern
	switch addType {
	case "wildcard", "regex":
		if len(args) != 1 {
			return fmt.Errorf("exactly one pattern argument is required for %s rules", addType)
		}
		p = pattern.NewWithType(args[0], addTool, addDescription, pattern.Type(addType))
	case "structured":
		if len(args) != 0 {
			return errors.New("structured rules take no pattern argument; use --command, --args, --dir")
		}
		p = pattern.NewStructured(addTool, addDescription,
			optional(addCommand), optional(addArgs), optional(addDir))
	default:
		return fmt.Errorf("unknown pattern type: %s", addType)
	}

	if err := p.Validate(); err != nil {
		return err
	}

	if err := store.AddPattern(p); err != nil {
		return err
	}

	fmt.Printf("Added %s rule %s\n", p.PatternType, p.ID)
	return nil
}

func runPatternsRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	id := args[0]
	if err := store.Remove(id); err != nil {
		if errors.Is(err, pattern.ErrNotFound) {
			if suggestion := nearestID(id, store.IDs()); suggestion != "" {
				return fmt.Errorf("rule %s not found, did you mean %s?", id, suggestion)
			}
		}
		return err
	}

	fmt.Printf("Removed rule %s\n", id)
	return nil
}

func runPatternsClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	count := store.Len()
	if count == 0 {
		fmt.Println("No stored rules.")
		return nil
	}

	if !clearYes {
		fmt.Printf("This removes all %d stored rule(s). Type 'yes' to continue: ", count)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil || strings.TrimSpace(line) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Clear(); err != nil {
		return err
	}

	fmt.Printf("Removed %d rule(s)\n", count)
	return nil
}

// nearestID suggests the closest stored rule ID for a typo. IDs further than
// half the input's length away are not offered.
func nearestID(id string, ids []string) string {
	best := ""
	bestDist := len(id)/2 + 1
	for _, candidate := range ids {
		if d := levenshtein.ComputeDistance(id, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
