// Package scheduler executes the test matrix: one concurrent task per
// toolchain, bounded by the configured parallelism, with strictly
// sequential feature-combination runs inside each task. Failures are local:
// a broken workspace, failed pin, or red test never stops sibling
// toolchains. There are no retries anywhere; every run happens exactly once.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/papapumpkin/pulsar/internal/cargo"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/matrix"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// RunResult records one (toolchain, feature-combination) invocation.
// Results are reported as they happen; the Report only aggregates counts.
type RunResult struct {
	Toolchain string
	Features  []string
	Passed    bool
	Stdout    []byte
	Stderr    []byte
}

// Report collects results across all concurrent toolchain tasks.
type Report struct {
	mu      sync.Mutex
	results []RunResult
}

func (r *Report) add(res RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Results returns a snapshot of the recorded results.
func (r *Report) Results() []RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunResult, len(r.results))
	copy(out, r.results)
	return out
}

// Failed counts the results with a non-zero exit.
func (r *Report) Failed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.results {
		if !res.Passed {
			n++
		}
	}
	return n
}

// Scheduler drives the matrix. Registry is where freshly created workspace
// paths go before anything runs against them; in production it is the
// reaper.
type Scheduler struct {
	Cargo      *cargo.Cargo
	Workspaces *workspace.Manager
	Registry   workspace.Registrar
	Par        int
	Telemetry  *telemetry.Emitter
}

// Run executes every matrix entry. At most Par toolchain tasks are in
// flight at once; excess entries wait on the semaphore. The context is
// checked before each dispatch, so an interrupt stops new toolchains from
// starting while tasks already running are left to the shutdown path.
func (s *Scheduler) Run(ctx context.Context, m *matrix.Matrix) *Report {
	par := s.Par
	if par < 1 {
		par = 1
	}

	_ = s.Telemetry.Emit(telemetry.Event{
		Kind: telemetry.KindMatrixStart,
		Data: map[string]int{"toolchains": len(m.Entries), "runs": m.TotalRuns()},
	})

	rep := &Report{}
	sem := make(chan struct{}, par)
	var wg sync.WaitGroup

	for _, entry := range m.Entries {
		// Checked before the semaphore: select alone could still pick the
		// dispatch case when both it and ctx.Done are ready.
		if ctx.Err() != nil {
			log.Info("interrupted, not starting further toolchains")
			break
		}
		select {
		case <-ctx.Done():
			log.Info("interrupted, not starting further toolchains", "toolchain", entry.Toolchain.Name)
			wg.Wait()
			return rep
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(e matrix.Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runToolchain(ctx, e, rep)
		}(entry)
	}
	wg.Wait()

	_ = s.Telemetry.Emit(telemetry.Event{
		Kind: telemetry.KindMatrixDone,
		Data: map[string]int{"failed": rep.Failed(), "total": len(rep.Results())},
	})
	return rep
}

// runToolchain is one toolchain's task: materialize an isolated workspace,
// pin dependencies if the toolchain requires it, then run every feature
// combination in order. Any setup failure aborts this task only.
func (s *Scheduler) runToolchain(ctx context.Context, e matrix.Entry, rep *Report) {
	tc := e.Toolchain.Name
	log.Info("preparing environment", "toolchain", tc)
	_ = s.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindToolchainStart, Toolchain: tc})

	ws, err := s.Workspaces.Materialize(ctx, tc, s.Registry)
	if err != nil {
		log.Error("workspace setup failed", "toolchain", tc, "err", err)
		return
	}
	log.Info("running tests", "toolchain", tc, "workdir", ws.Dir)
	_ = s.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindWorkspaceReady, Toolchain: tc, Data: ws.Dir})

	if len(e.Toolchain.RequiresPinning) > 0 {
		if err := s.pin(ctx, ws, e.Toolchain); err != nil {
			log.Error("dependency pinning failed, skipping toolchain", "toolchain", tc, "err", err)
			return
		}
	}

	for _, combo := range e.Combos {
		if ctx.Err() != nil {
			return
		}
		s.runCombo(ctx, ws, combo, rep)
	}
	_ = s.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindToolchainDone, Toolchain: tc})
}

// pin regenerates the lockfile under the toolchain, then applies each pin.
// An unpinned dependency would make every subsequent result meaningless, so
// the first failure aborts the toolchain's task.
func (s *Scheduler) pin(ctx context.Context, ws workspace.Workspace, rust config.RustVersion) error {
	log.Debug("generating lock file", "toolchain", rust.Name)
	if err := s.Cargo.GenerateLockfile(ctx, ws.Dir, rust.Name); err != nil {
		return err
	}
	for _, p := range rust.RequiresPinning {
		log.Debug("pinning dependency", "dependency", p.Dependency, "version", p.Version)
		if err := s.Cargo.PinDependency(ctx, ws.Dir, rust.Name, p.Dependency, p.Version); err != nil {
			return err
		}
		_ = s.Telemetry.Emit(telemetry.Event{
			Kind:      telemetry.KindPinApplied,
			Toolchain: rust.Name,
			Data:      map[string]string{"dependency": p.Dependency, "version": p.Version},
		})
	}
	return nil
}

// runCombo executes one feature combination. A non-zero exit is reported
// with the captured output and the matrix moves on.
func (s *Scheduler) runCombo(ctx context.Context, ws workspace.Workspace, combo []config.Feature, rep *Report) {
	names := matrix.Names(combo)
	featureStr := strings.Join(names, ",")

	res, err := s.Cargo.Test(ctx, ws.Dir, ws.Toolchain, names)
	if err != nil {
		// The command could not run at all (cargo missing, context
		// canceled); record it as a failure with whatever we captured.
		log.Error("test invocation failed", "toolchain", ws.Toolchain, "features", featureStr, "err", err)
		rep.add(RunResult{Toolchain: ws.Toolchain, Features: names, Passed: false})
		return
	}

	passed := res.Success()
	if passed {
		log.Info("test succeeded", "toolchain", ws.Toolchain, "features", featureStr)
	} else {
		log.Error("test failed", "toolchain", ws.Toolchain, "features", featureStr, "exit", res.ExitCode)
		dumpOutput(res.Stdout, res.Stderr)
	}
	_ = s.Telemetry.Emit(telemetry.Event{
		Kind:      telemetry.KindRunDone,
		Toolchain: ws.Toolchain,
		Features:  featureStr,
		Data:      map[string]bool{"passed": passed},
	})

	rep.add(RunResult{
		Toolchain: ws.Toolchain,
		Features:  names,
		Passed:    passed,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
	})
}

// dumpOutput writes a failing run's captured streams to stderr verbatim.
func dumpOutput(stdout, stderr []byte) {
	fmt.Fprintf(os.Stderr, "---- stdout ----\n%s\n---- stderr ----\n%s\n", stdout, stderr)
}
