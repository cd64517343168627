package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/tracestore"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Round    string
}

// RoundTrace is the JSON shape of one round's trace.
type RoundTrace struct {
	Round   string                    `json:"round"`
	Events  []tracestore.TracedEvent  `json:"events"`
	Firings []tracestore.TracedFiring `json:"firings"`
}

// NewTraceCommand creates the trace command: inspect a recorded trace
// database.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded round traces",
		Long: `List recorded rounds, or show one round's event timeline and sync
firings. Traces are recorded by run --trace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "trace database path (required)")
	cmd.Flags().StringVar(&opts.Round, "round", "", "round token to show (default: list rounds)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	store, err := tracestore.Open(opts.Database)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open trace database", Err: err}
	}
	defer store.Close()

	ctx := cmd.Context()
	if opts.Round == "" {
		rounds, err := store.Rounds(ctx)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "list rounds", Err: err}
		}
		if opts.Format == "json" {
			return formatter.Success(rounds)
		}
		for _, r := range rounds {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		formatter.VerboseLog("%d round(s)", len(rounds))
		return nil
	}

	events, err := store.Events(ctx, opts.Round)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "load events", Err: err}
	}
	firings, err := store.Firings(ctx, opts.Round)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "load firings", Err: err}
	}
	if len(events) == 0 && len(firings) == 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("no trace for round %s", opts.Round)}
	}

	trace := RoundTrace{Round: opts.Round, Events: events, Firings: firings}
	if opts.Format == "json" {
		return formatter.Success(trace)
	}

	for _, ev := range events {
		input, _ := json.Marshal(ir.ToNative(ev.Input))
		output, _ := json.Marshal(ir.ToNative(ev.Output))
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s in=%s out=%s\n", ev.Seq, ev.Action, input, output)
	}
	for _, f := range firings {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] fired %s (%.12s)\n", f.Seq, f.Sync, f.BindingHash)
	}
	return nil
}
