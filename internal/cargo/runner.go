// Package cargo is the boundary to the external toolchain: it runs cargo
// and rustup subprocesses, captures their exit status and output, and wraps
// the handful of invocation shapes the matrix needs. Everything above this
// package depends only on the Runner interface, never on os/exec.
package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Invocation describes one external command to run.
type Invocation struct {
	Dir  string   // working directory; empty = inherit
	Env  []string // extra environment entries appended to os.Environ
	Name string
	Args []string
}

// Result carries the observed outcome of an invocation. Output is fully
// captured, never streamed.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports a zero exit status.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner runs external commands. The returned error is reserved for
// failures to run at all (binary missing, context canceled); a non-zero
// exit is reported through Result, not the error.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner is the real Runner backed by os/exec. Subprocesses are placed
// in their own session so a Ctrl-C at our terminal does not reach them
// directly; cancellation is propagated through the context instead.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.SysProcAttr = sessionAttr()
	cmd.Env = append(os.Environ(), inv.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running %s: %w", inv.Name, err)
	}
	return res, nil
}
