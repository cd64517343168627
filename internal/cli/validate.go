package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/demo"
	"github.com/loomworks/loom/internal/ruleset"
)

// ValidationResult holds the outcome of rule file validation.
type ValidationResult struct {
	Valid bool     `json:"valid"`
	Syncs []string `json:"syncs,omitempty"`
	Error string   `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command: compile a CUE rule
// file against the demo registry without running anything.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rules.cue>",
		Short: "Validate a sync rule file",
		Long: `Compile a CUE rule file and report its sync rules.

Validation checks structure, term syntax, and that every rule has a
when list and a then list. Adapter URIs resolve against the demo
concept registry.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	app := demo.NewApp()
	syncs, err := ruleset.CompileFile(path, app.Registry)
	if err != nil {
		var compileErr *ruleset.CompileError
		msg := err.Error()
		if errors.As(err, &compileErr) {
			msg = compileErr.Error()
		}
		if ferr := formatter.Error(msg); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitFailure, Message: "validation failed", Err: err}
	}

	names := make([]string, len(syncs))
	for i, s := range syncs {
		names[i] = s.Name
	}
	formatter.VerboseLog("compiled %d sync rule(s) from %s", len(syncs), path)

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Syncs: names})
	}
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "sync %s: ok\n", name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rule(s) valid\n", len(names))
	return nil
}
