// Package workspace materializes one disposable copy of the project per
// toolchain and tracks every copy in a reaper so paths survive interruption.
// A workspace is registered with the reaper before the first byte is copied:
// if the process dies mid-copy, the partial tree is still found and removed.
package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Workspace is one isolated copy of the project, exclusively owned by the
// toolchain task it was created for. Dir points at the copied project root
// (the directory containing Cargo.toml), not the temp dir above it.
type Workspace struct {
	Dir       string
	Toolchain string
}

// Registrar receives workspace paths for eventual deletion. The reaper
// implements it; tests substitute recorders.
type Registrar interface {
	Register(path string)
}

// Manager creates workspaces from a single source repo.
type Manager struct {
	Repo string
}

// Materialize creates a fresh temp directory, registers it, copies the repo
// into it, and strips any Cargo.lock from the copy (a lockfile written by a
// newer toolchain may not parse under an older one). Failure aborts only the
// calling toolchain's task; the temp dir stays registered for cleanup.
func (m *Manager) Materialize(ctx context.Context, toolchain string, reg Registrar) (Workspace, error) {
	project := filepath.Base(filepath.Clean(m.Repo))
	tmp, err := os.MkdirTemp("", fmt.Sprintf("%s-%s-", project, toolchain))
	if err != nil {
		return Workspace{}, fmt.Errorf("creating workspace for %q: %w", toolchain, err)
	}

	// Registration must precede the copy; see package comment.
	reg.Register(tmp)

	dst := filepath.Join(tmp, project)
	if err := copyTree(ctx, m.Repo, dst); err != nil {
		return Workspace{}, fmt.Errorf("copying %s into workspace for %q: %w", m.Repo, toolchain, err)
	}

	if err := os.Remove(filepath.Join(dst, "Cargo.lock")); err != nil && !os.IsNotExist(err) {
		return Workspace{}, fmt.Errorf("removing stale Cargo.lock for %q: %w", toolchain, err)
	}

	return Workspace{Dir: dst, Toolchain: toolchain}, nil
}

// copyTree recursively copies src into dst, preserving file modes. Symlinks
// and other irregular files are skipped; a crate checkout has no business
// depending on them and following links out of the repo would be worse.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
