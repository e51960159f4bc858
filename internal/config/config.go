// Package config defines the matrix configuration: the Cargo project under
// test, its optional features, the Rust toolchains to cover, and the
// optional fuzzing campaign. The config file is TOML; settings that affect
// the tool itself (verbosity, overrides) come in through viper.
package config

import (
	"fmt"
	"os"
)

// Feature is an optional crate capability. A feature may declare the oldest
// toolchain it compiles under; toolchains older than MinRust never see it.
type Feature struct {
	Name    string `toml:"name"`
	MinRust string `toml:"min_rust,omitempty"`
}

// VersionPin forces a transitive dependency to an exact version before
// testing under a toolchain whose resolver would otherwise pick something
// too new for it.
type VersionPin struct {
	Dependency string `toml:"dependency"`
	Version    string `toml:"version"`
}

// RustVersion is one toolchain entry of the matrix: a concrete semver, or
// the symbolic "stable"/"nightly" channels understood by rustup.
type RustVersion struct {
	Name            string       `toml:"name"`
	RequiresPinning []VersionPin `toml:"requires_pinning,omitempty"`
}

// Fuzzing configures the post-matrix honggfuzz campaign.
type Fuzzing struct {
	RelPath   string `toml:"rel_path"`
	Rust      string `toml:"rust"`
	DurationS uint64 `toml:"duration_s"`
}

// Config is the full matrix description. It is loaded once, validated, and
// treated as read-only for the rest of the run; concurrent tasks receive
// copies of the pieces they need, never shared mutable state.
type Config struct {
	Repo     string        `toml:"repo"`
	Features []Feature     `toml:"features"`
	Rust     []RustVersion `toml:"rust"`
	Par      int           `toml:"par"`
	Fuzzing  *Fuzzing      `toml:"fuzzing,omitempty"`
}

// Validate checks the invariants the rest of the run relies on. A failed
// validation is a fatal setup error; nothing is scheduled after it.
func (c *Config) Validate() error {
	if c.Repo == "" {
		return fmt.Errorf("config: repo is required")
	}
	info, err := os.Stat(c.Repo)
	if err != nil {
		return fmt.Errorf("config: repo %q: %w", c.Repo, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: repo %q is not a directory", c.Repo)
	}
	if c.Par < 1 {
		return fmt.Errorf("config: par must be at least 1, got %d", c.Par)
	}
	if len(c.Rust) == 0 {
		return fmt.Errorf("config: at least one rust toolchain is required")
	}

	seenRust := make(map[string]bool, len(c.Rust))
	for _, r := range c.Rust {
		if r.Name == "" {
			return fmt.Errorf("config: rust toolchain with empty name")
		}
		if seenRust[r.Name] {
			return fmt.Errorf("config: duplicate rust toolchain %q", r.Name)
		}
		seenRust[r.Name] = true
		for _, pin := range r.RequiresPinning {
			if pin.Dependency == "" || pin.Version == "" {
				return fmt.Errorf("config: toolchain %q has a pin missing dependency or version", r.Name)
			}
		}
	}

	seenFeat := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if f.Name == "" {
			return fmt.Errorf("config: feature with empty name")
		}
		if seenFeat[f.Name] {
			return fmt.Errorf("config: duplicate feature %q", f.Name)
		}
		seenFeat[f.Name] = true
	}

	if c.Fuzzing != nil {
		if c.Fuzzing.RelPath == "" {
			return fmt.Errorf("config: fuzzing.rel_path is required")
		}
		if c.Fuzzing.Rust == "" {
			return fmt.Errorf("config: fuzzing.rust is required")
		}
		if c.Fuzzing.DurationS == 0 {
			return fmt.Errorf("config: fuzzing.duration_s must be positive")
		}
	}
	return nil
}
