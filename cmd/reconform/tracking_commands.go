package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reconform/internal/config"
	"reconform/internal/tracking"
)

func newTrackingCommand(ctx *commandContext) *cobra.Command {
	trackingCmd := &cobra.Command{
		Use:   "tracking",
		Short: "Inspect and edit the tracking database",
	}

	trackingCmd.AddCommand(newTrackingListCommand(ctx))
	trackingCmd.AddCommand(newTrackingForgetCommand(ctx))
	trackingCmd.AddCommand(newTrackingClearCommand(ctx))
	trackingCmd.AddCommand(newTrackingHealthCommand(ctx))

	return trackingCmd
}

func newTrackingListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked files",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []tracking.Status
			switch strings.ToLower(strings.TrimSpace(statusFilter)) {
			case "":
			case "ok":
				statuses = append(statuses, tracking.StatusOK)
			case "error":
				statuses = append(statuses, tracking.StatusError)
			default:
				return fmt.Errorf("unknown status %q (want ok or error)", statusFilter)
			}

			records, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracked files.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.Path,
					string(record.Status),
					strconv.FormatInt(record.Size, 10),
					record.LastChecked.Local().Format(time.DateTime),
					record.Note,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Path", "Status", "Size", "Last Checked", "Note"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show records with this status (ok|error)")
	return cmd
}

func newTrackingForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <path>",
		Short: "Drop the record for one file so it is re-checked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			removed, err := store.Forget(cmd.Context(), path)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No record for %s\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", path)
			return nil
		},
	}
}

func newTrackingClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every tracking record",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			cleared, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records\n", cleared)
			return nil
		},
	}
}

func newTrackingHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check tracking database integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database: %s\n", store.Path())
			fmt.Fprintf(out, "readable: %s  table: %s  integrity: %s\n",
				yesNo(health.DatabaseReadable), yesNo(health.TableExists), yesNo(health.IntegrityCheck))
			fmt.Fprintf(out, "records: ok=%d error=%d\n", stats[tracking.StatusOK], stats[tracking.StatusError])
			return nil
		},
	}
}

func openStore(ctx *commandContext) (*tracking.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := tracking.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}
	return store, nil
}
