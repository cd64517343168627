package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/demo"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/ruleset"
	"github.com/loomworks/loom/internal/tracestore"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Rules    string
	TraceDB  string
	MaxSteps int
}

// NewRunCommand creates the run command: feed request payloads through
// the demo application and print each response.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <request.json>...",
		Short: "Handle request payloads through the demo application",
		Long: `Run each JSON request payload as its own causal round against the
demo application (user auth, herd grouping, animal identity) and print
the response body. Concept state persists across the payloads of one
invocation.

A payload is a JSON object, e.g.:

  {"path": "/HerdGrouping/createHerd", "token": "tok-1", "name": "north"}`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "CUE rule file (default: built-in demo rules)")
	cmd.Flags().StringVar(&opts.TraceDB, "trace", "", "record round traces to this SQLite database")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "per-round step quota")

	return cmd
}

func runRun(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	app := demo.NewApp()
	syncs := app.Syncs()
	if opts.Rules != "" {
		compiled, err := ruleset.CompileFile(opts.Rules, app.Registry)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "compile rules", Err: err}
		}
		syncs = compiled
		formatter.VerboseLog("loaded %d rule(s) from %s", len(syncs), opts.Rules)
	}

	engOpts := []engine.Option{engine.WithMaxSteps(opts.MaxSteps)}
	if opts.TraceDB != "" {
		store, err := tracestore.Open(opts.TraceDB)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "open trace database", Err: err}
		}
		defer store.Close()
		engOpts = append(engOpts, engine.WithRecorder(store))
		formatter.VerboseLog("recording traces to %s", opts.TraceDB)
	}

	eng, err := engine.New(app.Registry, syncs, nil, engOpts...)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "build engine", Err: err}
	}

	var failed bool
	for _, path := range paths {
		body, err := handleOne(cmd.Context(), eng, path)
		if err != nil {
			failed = true
			if ferr := formatter.Error(fmt.Sprintf("%s: %v", path, err)); ferr != nil {
				return ferr
			}
			continue
		}
		if err := printResponse(formatter, path, body); err != nil {
			return err
		}
	}
	if failed {
		return &ExitError{Code: ExitFailure, Message: "one or more requests failed"}
	}
	return nil
}

func handleOne(ctx context.Context, eng *engine.Engine, path string) (ir.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	input, err := ir.ObjectFromNative(raw)
	if err != nil {
		return nil, fmt.Errorf("convert payload: %w", err)
	}

	return eng.HandleRequest(ctx, input)
}

func printResponse(f *OutputFormatter, path string, body ir.Object) error {
	if f.Format == "json" {
		return f.Success(ir.ToNative(body))
	}
	encoded, err := json.Marshal(ir.ToNative(body))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f.Writer, "%s: %s\n", path, encoded)
	return err
}
