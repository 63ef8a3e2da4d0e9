package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/custodia-labs/pos-sync/internal/adapters/driving/http"
	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		port   int
		noHTTP bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync loop and the admin API",
		Long: `Run the background sync loop and, unless --no-http is given, the admin HTTP API.

The terminal starts even when the remote store is unreachable; writes are
queued locally and replayed once it comes back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.engine.ProbeConnectivity(ctx) {
					a.logger.Info("remote store reachable")
				} else {
					a.logger.Warn("remote store unreachable, starting offline")
				}

				if err := a.loop.Start(ctx); err != nil {
					return fmt.Errorf("failed to start sync loop: %w", err)
				}
				defer a.loop.Stop()

				if noHTTP {
					<-ctx.Done()
					a.logger.Info("shutdown signal received")
					return nil
				}

				srvCfg := httpadapter.DefaultConfig()
				srvCfg.Host = a.cfg.Host
				srvCfg.Port = a.cfg.Port
				if cmd.Flags().Changed("port") {
					srvCfg.Port = port
				}
				srvCfg.Version = version
				srvCfg.AllowedOrigins = a.cfg.AllowedOrigins

				server := httpadapter.NewServer(srvCfg, httpadapter.Deps{
					AuthService: a.auth,
					Engine:      a.engine,
					QueueAdmin:  a.queueAdmin,
					Local:       a.localDB,
					Remote:      a.remoteDB,
					Logger:      a.logger,
				})
				return server.Start(ctx)
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "admin API port (overrides PORT)")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "run the sync loop only")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and remote connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				a.engine.ProbeConnectivity(ctx)
				status, err := a.dataAccess.GetSyncStatus(ctx)
				if err != nil {
					return err
				}
				return opts.render(status, func(w io.Writer) { printStatus(w, status) })
			})
		},
	}
}

func printStatus(w io.Writer, s *domain.SyncStatus) {
	remote := "offline"
	if s.RemoteAvailable {
		remote = "online"
	}
	lastSync := "never"
	if s.LastSyncAt != nil {
		lastSync = s.LastSyncAt.Local().Format(time.DateTime)
	}

	fmt.Fprintf(w, "Remote:\t%s\n", remote)
	fmt.Fprintf(w, "Engine:\t%s\n", s.EngineState)
	fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	fmt.Fprintf(w, "Exhausted:\t%d\n", s.Exhausted)
	fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	fmt.Fprintf(w, "Last sync:\t%s\n", lastSync)
	if s.LastError != "" {
		fmt.Fprintf(w, "Last error:\t%s\n", s.LastError)
	}
	if n := s.NeedsAttention(); n > 0 {
		fmt.Fprintf(w, "\n%d entries need attention, see 'possync queue list --exhausted'\n", n)
	}
	if len(s.PendingByTable) > 0 {
		fmt.Fprintln(w, "\nTABLE\tPENDING")
		for _, table := range domain.DefaultCatalog().SyncOrder {
			if n := s.PendingByTable[table]; n > 0 {
				fmt.Fprintf(w, "%s\t%d\n", table, n)
			}
		}
	}
}

func newHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Grade the sync subsystem and suggest fixes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.queueAdmin.Health(ctx)
				if err != nil {
					return err
				}
				return opts.render(report, func(w io.Writer) {
					fmt.Fprintf(w, "Overall:\t%s (%d/100)\n", report.Overall, report.Score)
					printList(w, "Issues", report.Issues)
					printList(w, "Warnings", report.Warnings)
					printList(w, "Recommendations", report.Recommendations)
				})
			})
		},
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		direction string
		tables    []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Force a sync now",
		Long: `Force a sync now: drain the queue until it is empty or stops making progress,
then refresh local tables from the remote store.

--direction push only drains, --direction pull only refreshes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := domain.Direction(strings.ToLower(direction))
			if !dir.Valid() {
				return fmt.Errorf("invalid direction %q: must be both, push or pull", direction)
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.engine.ForceSync(ctx, driving.SyncOptions{Direction: dir, Tables: tables})
				if err != nil {
					return err
				}
				if err := opts.render(report, func(w io.Writer) { printReport(w, report) }); err != nil {
					return err
				}
				if !report.Success {
					return fmt.Errorf("sync incomplete: %d entries remaining", report.Remaining)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&direction, "direction", string(domain.DirectionBoth), "both, push or pull")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "limit the pull to these tables")
	return cmd
}

func printReport(w io.Writer, r *domain.SyncReport) {
	fmt.Fprintf(w, "Sync:\t%s (%s)\n", r.ID, r.Direction)
	fmt.Fprintf(w, "Online:\t%t\n", r.Online)
	if r.Direction.Pushes() {
		fmt.Fprintf(w, "Rounds:\t%d\n", r.Rounds)
		fmt.Fprintf(w, "Replayed:\t%d of %d (%d failed, %d parents repaired)\n",
			r.Drain.Completed, r.Drain.Attempted, r.Drain.Failed, r.Drain.Repaired)
		if r.Drain.Renumbered > 0 {
			fmt.Fprintf(w, "Renumbered:\t%d offline inserts\n", r.Drain.Renumbered)
		}
		fmt.Fprintf(w, "Remaining:\t%d\n", r.Remaining)
	}
	if r.Pull != nil {
		for _, table := range domain.DefaultCatalog().SyncOrder {
			if n, ok := r.Pull.Tables[table]; ok {
				fmt.Fprintf(w, "Pulled %s:\t%d rows\n", table, n)
			}
		}
		if r.Pull.Skipped > 0 {
			fmt.Fprintf(w, "Skipped:\t%d rows with unsynced local changes\n", r.Pull.Skipped)
		}
	}
	fmt.Fprintf(w, "Duration:\t%s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
}
