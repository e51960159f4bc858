package cargo

import (
	"context"
	"fmt"
	"strings"
)

// Cargo wraps the cargo/rustup invocation shapes used by the matrix.
type Cargo struct {
	Runner Runner
}

// New returns a Cargo bound to the real subprocess runner.
func New() *Cargo {
	return &Cargo{Runner: ExecRunner{}}
}

// InstallToolchain installs a rustup toolchain. A failed install is fatal
// for the whole run; the caller exits before scheduling anything.
func (c *Cargo) InstallToolchain(ctx context.Context, name string) error {
	res, err := c.Runner.Run(ctx, Invocation{
		Name: "rustup",
		Args: []string{"toolchain", "install", name},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("rustup failed to install toolchain %q with exit status %d: %s",
			name, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// StableVersion asks cargo which concrete version the stable channel
// currently resolves to. The output looks like "cargo 1.89.0 (abc 2025-06-01)";
// the second whitespace-separated token is the version.
func (c *Cargo) StableVersion(ctx context.Context) (string, error) {
	res, err := c.Runner.Run(ctx, Invocation{
		Name: "cargo",
		Args: []string{"+stable", "--version"},
	})
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", fmt.Errorf("cargo +stable --version exited %d: %s",
			res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	fields := strings.Fields(string(res.Stdout))
	if len(fields) < 2 {
		return "", fmt.Errorf("unexpected cargo version output %q", strings.TrimSpace(string(res.Stdout)))
	}
	return fields[1], nil
}

// GenerateLockfile regenerates Cargo.lock under the given toolchain, so the
// resolution reflects what that toolchain would actually pick.
func (c *Cargo) GenerateLockfile(ctx context.Context, dir, toolchain string) error {
	res, err := c.Runner.Run(ctx, Invocation{
		Dir:  dir,
		Name: "cargo",
		Args: []string{"+" + toolchain, "generate-lockfile"},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("generate-lockfile under %q exited %d: %s",
			toolchain, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// PinDependency forces one transitive dependency to an exact version in the
// workspace's lockfile.
func (c *Cargo) PinDependency(ctx context.Context, dir, toolchain, dependency, ver string) error {
	res, err := c.Runner.Run(ctx, Invocation{
		Dir:  dir,
		Name: "cargo",
		Args: []string{"+" + toolchain, "update", "-p", dependency, "--precise", ver},
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("pinning %s to %s under %q exited %d: %s",
			dependency, ver, toolchain, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

// Test runs the crate's test suite under one toolchain with exactly the
// given features enabled and default features off. The Result carries the
// captured output either way; a non-zero exit is not an error here.
func (c *Cargo) Test(ctx context.Context, dir, toolchain string, features []string) (Result, error) {
	return c.Runner.Run(ctx, Invocation{
		Dir:  dir,
		Name: "cargo",
		Args: []string{
			"+" + toolchain,
			"test",
			"--no-default-features",
			"--features", strings.Join(features, ","),
		},
	})
}

// FuzzRun drives one honggfuzz target for a fixed wall-clock duration,
// stopping immediately on the first crash.
func (c *Cargo) FuzzRun(ctx context.Context, dir, toolchain, target string, durationS uint64) (Result, error) {
	return c.Runner.Run(ctx, Invocation{
		Dir: dir,
		Env: []string{
			"HFUZZ_BUILD_ARGS=--features honggfuzz_fuzz",
			fmt.Sprintf("HFUZZ_RUN_ARGS=--run_time %d --exit_upon_crash -v", durationS),
		},
		Name: "cargo",
		Args: []string{"+" + toolchain, "hfuzz", "run", target},
	})
}
