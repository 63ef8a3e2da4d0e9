package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pos-sync/internal/adapters/driven/postgres"
	"github.com/custodia-labs/pos-sync/internal/core/domain"
)

func newQueueCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the sync queue",
	}

	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueShowCommand(opts))
	cmd.AddCommand(newQueueStatsCommand(opts))
	cmd.AddCommand(newQueueResetCommand(opts))
	cmd.AddCommand(newQueuePurgeCommand(opts))
	return cmd
}

func newQueueListCommand(opts *rootOptions) *cobra.Command {
	var (
		status string
		filter domain.QueueFilter
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := domain.ParseQueueStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entries, err := a.queueAdmin.Inspect(ctx, filter)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []*domain.QueueEntry{}
				}
				maxAttempts := a.engine.MaxAttempts()
				return opts.render(entries, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tTABLE\tOP\tROW\tSTATUS\tATTEMPTS\tAGE\tLAST ERROR")
					for _, e := range entries {
						st := string(e.Status)
						if e.Exhausted(maxAttempts) {
							st = "exhausted"
						}
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
							e.ID, e.TableName, e.Operation, e.RowID, st,
							e.Attempts, maxAttempts, age(e.Timestamp), truncate(e.LastError, 60))
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "pending, completed or failed")
	cmd.Flags().StringVar(&filter.TableName, "table", "", "only entries of this table")
	cmd.Flags().BoolVar(&filter.ExhaustedOnly, "exhausted", false, "only pending entries out of attempts")
	cmd.Flags().BoolVar(&filter.Newest, "newest", false, "newest first")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum entries")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "entries to skip")
	return cmd
}

func newQueueShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one queue entry with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				entry, err := a.queueAdmin.GetEntry(ctx, id)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(opts.out)
				enc.SetIndent("", "  ")
				return enc.Encode(entry)
			})
		},
	}
}

func newQueueStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				stats, err := a.queueAdmin.Stats(ctx)
				if err != nil {
					return err
				}
				return opts.render(stats, func(w io.Writer) {
					fmt.Fprintf(w, "Pending:\t%d\n", stats.Pending)
					fmt.Fprintf(w, "Exhausted:\t%d\n", stats.Exhausted)
					fmt.Fprintf(w, "Failed:\t%d\n", stats.Failed)
					fmt.Fprintf(w, "Completed:\t%d\n", stats.Completed)
					fmt.Fprintf(w, "Stale (> %s):\t%d\n", stats.StaleThreshold, stats.StalePending)
					if stats.OldestPending != nil {
						fmt.Fprintf(w, "Oldest pending:\t%s ago\n", age(*stats.OldestPending))
					}
					if stats.LastCompleted != nil {
						fmt.Fprintf(w, "Last completed:\t%s ago\n", age(*stats.LastCompleted))
					}
				})
			})
		},
	}
}

func newQueueResetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [ID...]",
		Short: "Give failed and exhausted entries a fresh set of attempts",
		Long:  "Give failed and exhausted entries a fresh set of attempts. Without IDs every such entry is reset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid entry id %q", arg)
				}
				ids = append(ids, id)
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				n, err := a.queueAdmin.ResetFailed(ctx, ids)
				if err != nil {
					return err
				}
				return opts.render(map[string]int64{"reset": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Reset %d entries\n", n)
				})
			})
		},
	}
}

func newQueuePurgeCommand(opts *rootOptions) *cobra.Command {
	var (
		status    string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete completed or failed entries",
		Long:  "Delete completed or failed entries. Pending entries are never purged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseQueueStatus(status)
			if err != nil {
				return err
			}
			var cutoff time.Time
			if olderThan > 0 {
				cutoff = time.Now().Add(-olderThan)
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				n, err := a.queueAdmin.Purge(ctx, st, cutoff)
				if err != nil {
					return err
				}
				return opts.render(map[string]int64{"purged": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Purged %d %s entries\n", n, st)
				})
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(domain.QueueStatusCompleted), "completed or failed")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only entries last updated before this long ago (0 means all)")
	return cmd
}

func newOperatorCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage the operators allowed to use the admin API",
	}

	var req domain.CreateOperatorRequest
	var role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an operator",
		Long:  "Create an operator. The password is read from --password or POSSYNC_OPERATOR_PASSWORD.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("POSSYNC_OPERATOR_PASSWORD")
			}
			req.Role = domain.Role(strings.ToLower(role))

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				op, err := a.auth.CreateOperator(ctx, req)
				if err != nil {
					return fmt.Errorf("failed to create operator: %w", err)
				}
				summary := op.ToSummary()
				return opts.render(summary, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s operator %s (%s)\n", summary.Role, summary.Email, summary.ID)
				})
			})
		},
	}
	create.Flags().StringVar(&req.Email, "email", "", "login email (required)")
	create.Flags().StringVar(&req.Name, "name", "", "display name")
	create.Flags().StringVar(&req.Password, "password", "", "password, at least 8 characters")
	create.Flags().StringVar(&role, "role", string(domain.RoleCashier), "admin or cashier")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}

func newSchemaCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with the remote schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh [TABLE]",
		Short: "Re-read remote table definitions and show them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables := domain.DefaultCatalog().SyncOrder
			table := ""
			if len(args) == 1 {
				table = args[0]
				tables = []string{table}
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.queueAdmin.RefreshSchema(ctx, table); err != nil {
					return err
				}

				schemas := make([]*domain.TableSchema, 0, len(tables))
				for _, t := range tables {
					s, err := a.schemas.Remote(ctx, t)
					if err != nil {
						return fmt.Errorf("failed to read schema of %s: %w", t, err)
					}
					schemas = append(schemas, s)
				}

				return opts.render(schemas, func(w io.Writer) {
					for _, s := range schemas {
						if !s.Exists() {
							fmt.Fprintf(w, "%s\t(missing)\n", s.Table)
							continue
						}
						fmt.Fprintf(w, "%s\n", s.Table)
						for _, name := range s.Order {
							col := s.Columns[name]
							null := "not null"
							if col.Nullable {
								null = "null"
							}
							fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", col.Name, col.DeclaredType, col.Type, null)
						}
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the POS tables on the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			db, err := postgres.Connect(ctx, postgres.DefaultConfig(opts.cfg.DatabaseURL))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return fmt.Errorf("failed to initialize remote schema: %w", err)
			}
			opts.logger.Info("remote schema initialized")
			return nil
		},
	})

	return cmd
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL [PARAM...]",
		Short: "Run a read through the data access facade",
		Long: `Run a read written in the local dialect through the data access facade,
against the remote store when it is reachable and the local store otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]any, 0, len(args)-1)
			for _, p := range args[1:] {
				params = append(params, p)
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				a.engine.ProbeConnectivity(ctx)
				rows, err := a.dataAccess.Query(ctx, args[0], params...)
				if err != nil {
					return err
				}

				plain := make([]map[string]any, 0, len(rows))
				for _, row := range rows {
					m := make(map[string]any, len(row))
					for k, v := range row {
						m[k] = v.Any()
					}
					plain = append(plain, m)
				}

				return opts.render(plain, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "(no rows)")
						return
					}
					cols := rows[0].Columns()
					fmt.Fprintln(w, strings.Join(cols, "\t"))
					for _, row := range rows {
						cells := make([]string, len(cols))
						for i, c := range cols {
							cells[i] = row[c].Text()
						}
						fmt.Fprintln(w, strings.Join(cells, "\t"))
					}
				})
			})
		},
	}
}

func age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
