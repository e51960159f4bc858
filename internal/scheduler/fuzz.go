package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/telemetry"
)

// FuzzResult records one fuzz target's campaign outcome.
type FuzzResult struct {
	Target string
	Passed bool
	Stdout []byte
	Stderr []byte
}

// DiscoverFuzzTargets lists the fuzz targets of the crate: one per file in
// <repo>/<rel_path>/fuzz_targets, named after the file without extension.
func DiscoverFuzzTargets(repo string, fz *config.Fuzzing) ([]string, error) {
	dir := filepath.Join(repo, fz.RelPath, "fuzz_targets")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing fuzz targets in %s: %w", dir, err)
	}

	targets := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if name != "" {
			targets = append(targets, name)
		}
	}
	return targets, nil
}

// FuzzCampaign runs the randomized-input campaign against every discovered
// target, one after another, in the real repo (not a workspace: honggfuzz
// keeps its corpus there). It runs strictly after the matrix. A crashing
// target is reported with its output and the campaign moves to the next
// one; only target discovery failure is an error.
func (s *Scheduler) FuzzCampaign(ctx context.Context, repo string, fz *config.Fuzzing) ([]FuzzResult, error) {
	targets, err := DiscoverFuzzTargets(repo, fz)
	if err != nil {
		return nil, err
	}
	_ = s.Telemetry.Emit(telemetry.Event{
		Kind: telemetry.KindFuzzStart,
		Data: map[string]any{"targets": targets, "duration_s": fz.DurationS},
	})

	fuzzDir := filepath.Join(repo, fz.RelPath)
	results := make([]FuzzResult, 0, len(targets))
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		log.Info("fuzzing", "target", target, "toolchain", fz.Rust, "duration_s", fz.DurationS)

		res, err := s.Cargo.FuzzRun(ctx, fuzzDir, fz.Rust, target, fz.DurationS)
		if err != nil {
			log.Error("fuzz invocation failed", "target", target, "err", err)
			results = append(results, FuzzResult{Target: target, Passed: false})
			continue
		}

		passed := res.Success()
		if passed {
			log.Info("fuzzing finished without crashes", "target", target)
		} else {
			log.Error("fuzzing found a fault", "target", target, "exit", res.ExitCode)
			dumpOutput(res.Stdout, res.Stderr)
		}
		_ = s.Telemetry.Emit(telemetry.Event{
			Kind:   telemetry.KindFuzzTargetDone,
			Target: target,
			Data:   map[string]bool{"passed": passed},
		})
		results = append(results, FuzzResult{Target: target, Passed: passed, Stdout: res.Stdout, Stderr: res.Stderr})
	}
	return results, nil
}
