package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/cargo"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/matrix"
	"github.com/papapumpkin/pulsar/internal/scheduler"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and execute the test matrix",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Bool("install", false, "install every declared toolchain before running")
	runCmd.Flags().Int("par", 0, "override max concurrent toolchains")
	runCmd.Flags().String("telemetry", "", "write a JSONL event stream to this file")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	em, err := telemetryEmitter(cmd)
	if err != nil {
		return err
	}

	c := cargo.New()

	if install, _ := cmd.Flags().GetBool("install"); install {
		if err := installToolchains(cmd.Context(), c, cfg); err != nil {
			return err
		}
	}

	m, err := buildMatrix(cmd.Context(), c, cfg)
	if err != nil {
		return err
	}

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

	rep := sched.Run(ctx, m)
	log.Info("matrix complete", "runs", len(rep.Results()), "failed", rep.Failed())

	var fuzzErr error
	if cfg.Fuzzing != nil && ctx.Err() == nil {
		if _, err := sched.FuzzCampaign(ctx, cfg.Repo, cfg.Fuzzing); err != nil {
			log.Error("fuzz campaign aborted", "err", err)
			fuzzErr = err
		}
	}

	reaper.Sweep()
	_ = em.Close()
	return fuzzErr
}

// applyFlagOverrides applies CLI flag values to the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("par"); v > 0 {
		cfg.Par = v
	}
}

// telemetryEmitter opens the JSONL emitter if --telemetry was given.
// A nil emitter is a valid no-op.
func telemetryEmitter(cmd *cobra.Command) (*telemetry.Emitter, error) {
	path, _ := cmd.Flags().GetString("telemetry")
	if path == "" {
		return nil, nil
	}
	return telemetry.NewEmitter(path)
}

// installToolchains preinstalls every declared toolchain. Any failure is
// fatal for the whole process: running the matrix against a toolchain that
// never installed would report nonsense.
func installToolchains(ctx context.Context, c *cargo.Cargo, cfg *config.Config) error {
	for _, rust := range cfg.Rust {
		log.Info("installing rust toolchain", "toolchain", rust.Name)
		if err := c.InstallToolchain(ctx, rust.Name); err != nil {
			return fmt.Errorf("toolchain install: %w", err)
		}
	}
	return nil
}

// buildMatrix resolves the stable channel once and generates the matrix.
// Both steps are fatal on failure: without a resolved stable version or a
// parsable toolchain list, feature eligibility cannot be decided.
func buildMatrix(ctx context.Context, c *cargo.Cargo, cfg *config.Config) (*matrix.Matrix, error) {
	stable, err := c.StableVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving stable toolchain: %w", err)
	}
	log.Debug("resolved stable toolchain", "version", stable)

	m, err := matrix.Generate(cfg, stable)
	if err != nil {
		return nil, fmt.Errorf("generating test matrix: %w", err)
	}
	log.Info("test matrix generated", "toolchains", len(m.Entries), "runs", m.TotalRuns())
	return m, nil
}
