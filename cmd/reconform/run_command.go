package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reconform/internal/config"
	"reconform/internal/logging"
	"reconform/internal/preflight"
	"reconform/internal/remote"
	"reconform/internal/tracking"
	"reconform/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan watched folders and normalize non-compliant files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			// One run at a time: two concurrent runs would fight over
			// the staging directory and the encoder.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "reconform.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another reconform run is already active")
			}
			defer func() {
				_ = lock.Unlock()
			}()

			if !dryRun {
				checks := preflight.Run(cfg)
				printChecks(cmd, checks)
				if preflight.Failed(checks) {
					return fmt.Errorf("preflight failed")
				}
			}

			store, err := tracking.Open(cfg)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := workflow.Options{
				Config: cfg,
				Logger: logger,
				Store:  store,
				DryRun: dryRun,
			}

			if cfg.Remote.Enabled && cfg.Encoder.Mode == config.ModeSinglePass && !dryRun {
				transport, err := remote.Dial(cfg.Remote)
				if err != nil {
					// Any connection-setup failure disables the
					// remote path for the whole run.
					logger.Warn("remote encoder unavailable, falling back to local",
						logging.Error(err))
				} else {
					defer transport.Close()
					opts.Remote = remote.NewBackend(transport, logger, cfg)
				}
			}

			summary, runErr := workflow.New(opts).Run(runCtx)
			fmt.Fprintf(cmd.OutOrStdout(),
				"candidates=%d processed=%d skipped=%d compliant=%d failed=%d\n",
				summary.Candidates, summary.Processed, summary.Skipped, summary.Compliant, summary.Failed)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the commands that would run without encoding")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify encoder binaries, staging space, and remote settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.Run(cfg)
			printChecks(cmd, checks)
			if preflight.Failed(checks) {
				return fmt.Errorf("preflight failed")
			}
			return nil
		},
	}
}

func printChecks(cmd *cobra.Command, checks []preflight.Check) {
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		status := "ok"
		if !check.Ok {
			status = "FAIL"
			if check.Optional {
				status = "warn"
			}
		}
		rows = append(rows, []string{check.Name, status, check.Detail})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Check", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
}
