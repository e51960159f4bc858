package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/cargo"
	"github.com/papapumpkin/pulsar/internal/scheduler"
	"github.com/papapumpkin/pulsar/internal/watch"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the matrix, then re-run it whenever the project changes",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Int("par", 0, "override max concurrent toolchains")
	watchCmd.Flags().String("telemetry", "", "write a JSONL event stream to this file")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	em, err := telemetryEmitter(cmd)
	if err != nil {
		return err
	}

	w, err := watch.New(cfg.Repo)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	c := cargo.New()
	reaper := workspace.NewReaper()
	ctx, cancel := shutdownContext(reaper, em)
	defer cancel()

	sched := &scheduler.Scheduler{
		Cargo:      c,
		Workspaces: &workspace.Manager{Repo: cfg.Repo},
		Registry:   reaper,
		Par:        cfg.Par,
		Telemetry:  em,
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Stable is re-resolved each pass; a rustup update between passes
		// should change feature eligibility, not be ignored.
		m, err := buildMatrix(ctx, c, cfg)
		if err != nil {
			return err
		}

		rep := sched.Run(ctx, m)
		log.Info("matrix complete", "runs", len(rep.Results()), "failed", rep.Failed())
		reaper.Sweep()

		log.Info("watching for changes", "dir", cfg.Repo)
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			log.Info("change detected, re-running matrix", "files", len(change.Files))
		}
	}
}
