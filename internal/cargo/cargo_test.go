package cargo

import (
	"context"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// fakeRunner records invocations and replies with canned results.
type fakeRunner struct {
	invs   []Invocation
	result Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	f.invs = append(f.invs, inv)
	return f.result, f.err
}

func TestTest_ArgumentShape(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{}
	c := &Cargo{Runner: fake}

	_, err := c.Test(context.Background(), "/work/proj", "1.40.0", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Test: %v", err)
	}

	inv := fake.invs[0]
	if inv.Name != "cargo" {
		t.Errorf("Name = %q, want cargo", inv.Name)
	}
	if inv.Dir != "/work/proj" {
		t.Errorf("Dir = %q, want /work/proj", inv.Dir)
	}
	want := []string{"+1.40.0", "test", "--no-default-features", "--features", "a,b"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("Args = %v, want %v", inv.Args, want)
	}
}

func TestTest_EmptyFeatureSet(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{}
	c := &Cargo{Runner: fake}

	if _, err := c.Test(context.Background(), "/w", "stable", nil); err != nil {
		t.Fatalf("Test: %v", err)
	}
	args := fake.invs[0].Args
	if args[len(args)-1] != "" {
		t.Errorf("empty combination should pass an empty --features value, got %q", args[len(args)-1])
	}
}

func TestStableVersion_ParsesCargoOutput(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{result: Result{Stdout: []byte("cargo 1.89.0 (c24e10642 2025-06-23)\n")}}
	c := &Cargo{Runner: fake}

	got, err := c.StableVersion(context.Background())
	if err != nil {
		t.Fatalf("StableVersion: %v", err)
	}
	if got != "1.89.0" {
		t.Errorf("StableVersion = %q, want 1.89.0", got)
	}

	inv := fake.invs[0]
	want := []string{"+stable", "--version"}
	if !reflect.DeepEqual(inv.Args, want) {
		t.Errorf("Args = %v, want %v", inv.Args, want)
	}
}

func TestStableVersion_Errors(t *testing.T) {
	t.Parallel()
	c := &Cargo{Runner: &fakeRunner{result: Result{Stdout: []byte("cargo\n")}}}
	if _, err := c.StableVersion(context.Background()); err == nil {
		t.Error("expected error for truncated output")
	}

	c = &Cargo{Runner: &fakeRunner{result: Result{ExitCode: 1, Stderr: []byte("no stable toolchain")}}}
	if _, err := c.StableVersion(context.Background()); err == nil {
		t.Error("expected error for non-zero exit")
	}
}

func TestPinDependency_ArgumentShape(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{}
	c := &Cargo{Runner: fake}

	if err := c.PinDependency(context.Background(), "/w", "1.40.0", "serde", "1.0.100"); err != nil {
		t.Fatalf("PinDependency: %v", err)
	}
	want := []string{"+1.40.0", "update", "-p", "serde", "--precise", "1.0.100"}
	if !reflect.DeepEqual(fake.invs[0].Args, want) {
		t.Errorf("Args = %v, want %v", fake.invs[0].Args, want)
	}
}

func TestPinDependency_NonZeroExitIsError(t *testing.T) {
	t.Parallel()
	c := &Cargo{Runner: &fakeRunner{result: Result{ExitCode: 101, Stderr: []byte("no matching package")}}}
	err := c.PinDependency(context.Background(), "/w", "1.40.0", "serde", "1.0.100")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "serde") {
		t.Errorf("error should name the dependency: %v", err)
	}
}

func TestGenerateLockfile_ArgumentShape(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{}
	c := &Cargo{Runner: fake}

	if err := c.GenerateLockfile(context.Background(), "/w", "1.40.0"); err != nil {
		t.Fatalf("GenerateLockfile: %v", err)
	}
	want := []string{"+1.40.0", "generate-lockfile"}
	if !reflect.DeepEqual(fake.invs[0].Args, want) {
		t.Errorf("Args = %v, want %v", fake.invs[0].Args, want)
	}
}

func TestInstallToolchain_FailureNamesToolchain(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{result: Result{ExitCode: 1, Stderr: []byte("network down")}}
	c := &Cargo{Runner: fake}

	err := c.InstallToolchain(context.Background(), "1.40.0")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "1.40.0") {
		t.Errorf("error should name the toolchain: %v", err)
	}
	if fake.invs[0].Name != "rustup" {
		t.Errorf("Name = %q, want rustup", fake.invs[0].Name)
	}
}

func TestFuzzRun_EnvAndArgs(t *testing.T) {
	t.Parallel()
	fake := &fakeRunner{}
	c := &Cargo{Runner: fake}

	if _, err := c.FuzzRun(context.Background(), "/w/fuzz", "nightly", "parse_input", 60); err != nil {
		t.Fatalf("FuzzRun: %v", err)
	}

	inv := fake.invs[0]
	wantArgs := []string{"+nightly", "hfuzz", "run", "parse_input"}
	if !reflect.DeepEqual(inv.Args, wantArgs) {
		t.Errorf("Args = %v, want %v", inv.Args, wantArgs)
	}

	env := strings.Join(inv.Env, "\n")
	if !strings.Contains(env, "HFUZZ_BUILD_ARGS=--features honggfuzz_fuzz") {
		t.Errorf("missing HFUZZ_BUILD_ARGS in env: %v", inv.Env)
	}
	if !strings.Contains(env, "HFUZZ_RUN_ARGS=--run_time 60 --exit_upon_crash -v") {
		t.Errorf("missing HFUZZ_RUN_ARGS in env: %v", inv.Env)
	}
}

func TestExecRunner_CapturesExitAndStreams(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	res, err := ExecRunner{}.Run(context.Background(), Invocation{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() should be false for exit 3")
	}
	if got := strings.TrimSpace(string(res.Stdout)); got != "out" {
		t.Errorf("Stdout = %q, want out", got)
	}
	if got := strings.TrimSpace(string(res.Stderr)); got != "err" {
		t.Errorf("Stderr = %q, want err", got)
	}
}

func TestExecRunner_HonorsDir(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	res, err := ExecRunner{}.Run(context.Background(), Invocation{
		Dir:  dir,
		Name: "sh",
		Args: []string{"-c", "pwd"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(res.Stdout)))
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestExecRunner_MissingBinaryIsError(t *testing.T) {
	t.Parallel()
	_, err := ExecRunner{}.Run(context.Background(), Invocation{Name: "pulsar-no-such-binary"})
	if err == nil {
		t.Fatal("expected error for missing binary, got nil")
	}
}
