package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/cargo"
	"github.com/papapumpkin/pulsar/internal/scheduler"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz",
	Short: "Run only the fuzz campaign",
	RunE:  runFuzz,
}

func init() {
	fuzzCmd.Flags().String("telemetry", "", "write a JSONL event stream to this file")

	rootCmd.AddCommand(fuzzCmd)
}

func runFuzz(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Fuzzing == nil {
		return fmt.Errorf("no fuzzing section in config")
	}

	em, err := telemetryEmitter(cmd)
	if err != nil {
		return err
	}

	// No workspaces are created here, but the shared shutdown path still
	// handles the interrupt-and-exit sequence.
	ctx, cancel := shutdownContext(workspace.NewReaper(), em)
	defer cancel()

	sched := &scheduler.Scheduler{Cargo: cargo.New(), Telemetry: em}
	results, err := sched.FuzzCampaign(ctx, cfg.Repo, cfg.Fuzzing)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	log.Info("fuzz campaign complete", "targets", len(results), "failed", failed)
	_ = em.Close()
	return nil
}
