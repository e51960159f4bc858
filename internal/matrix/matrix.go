// Package matrix turns a validated config into the full test matrix: one
// entry per declared toolchain, each carrying the power set of the features
// that toolchain is allowed to build. Generation happens once, before any
// scheduling; the result is read-only afterwards.
package matrix

import (
	"fmt"

	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/version"
)

// Entry pairs one toolchain with its ordered feature combinations.
type Entry struct {
	Toolchain config.RustVersion
	Combos    [][]config.Feature
}

// Matrix is the complete run plan. Entries keep the config's declaration
// order so runs are reproducible.
type Matrix struct {
	Entries []Entry
}

// Generate builds the matrix. For each toolchain, features are filtered to
// those whose min_rust (if any) is satisfied, then every subset of the
// filtered list becomes one combination. A version that fails to parse is
// fatal for the whole run.
func Generate(cfg *config.Config, stable string) (*Matrix, error) {
	m := &Matrix{Entries: make([]Entry, 0, len(cfg.Rust))}
	for _, rust := range cfg.Rust {
		eligible, err := eligibleFeatures(cfg.Features, rust.Name, stable)
		if err != nil {
			return nil, fmt.Errorf("toolchain %q: %w", rust.Name, err)
		}
		m.Entries = append(m.Entries, Entry{
			Toolchain: rust,
			Combos:    powerSet(eligible),
		})
	}
	return m, nil
}

// TotalRuns is the number of test invocations the matrix will perform.
func (m *Matrix) TotalRuns() int {
	n := 0
	for _, e := range m.Entries {
		n += len(e.Combos)
	}
	return n
}

func eligibleFeatures(features []config.Feature, toolchain, stable string) ([]config.Feature, error) {
	out := make([]config.Feature, 0, len(features))
	for _, f := range features {
		if f.MinRust == "" {
			out = append(out, f)
			continue
		}
		ok, err := version.GEQ(toolchain, f.MinRust, stable)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Name, err)
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// powerSet enumerates every subset of features in binary-counting order:
// the empty set first, then subsets by ascending bitmask over the input
// order. The order is deterministic so repeated runs execute identically.
func powerSet(features []config.Feature) [][]config.Feature {
	n := len(features)
	sets := make([][]config.Feature, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		var combo []config.Feature
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				combo = append(combo, features[i])
			}
		}
		sets = append(sets, combo)
	}
	return sets
}

// Names flattens a combination to its feature names, in combination order.
func Names(combo []config.Feature) []string {
	names := make([]string, 0, len(combo))
	for _, f := range combo {
		names = append(names, f.Name)
	}
	return names
}
