package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// rootOptions holds global flags and the state shared by every command
type rootOptions struct {
	Verbose bool
	Format  string // "text" | "json"
	DBPath  string

	cfg    Config
	logger *slog.Logger
	out    io.Writer
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "possync",
		Short:         "Offline-first sync for POS terminals",
		Long:          "possync keeps a terminal's local store and the shared remote database in step,\nqueueing writes made while offline and replaying them once the remote store is back.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}

			opts.cfg = loadConfig()
			if opts.DBPath != "" {
				opts.cfg.LocalDBPath = opts.DBPath
			}

			level := opts.cfg.LogLevel
			if opts.Verbose {
				level = "debug"
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level, opts.cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.logger = logger
			opts.out = cmd.OutOrStdout()
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the local store (overrides LOCAL_DB_PATH)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newOperatorCommand(opts))
	cmd.AddCommand(newSchemaCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))

	return cmd
}

// withApp builds the full component graph for the duration of fn
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// render writes v as indented JSON, or calls text with a tab writer
func (o *rootOptions) render(v any, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(o.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(o.out, 0, 0, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}
