// Package version orders Rust toolchain identifiers. Identifiers are either
// concrete semantic versions ("1.63.0"), the "stable" channel (substituted
// with whatever concrete version rustup currently aliases it to), or the
// "nightly" channel, which compares greater than everything else.
package version

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrParse reports a toolchain identifier that is neither a channel name nor
// a valid semantic version. Callers treat this as fatal: feature eligibility
// cannot be decided for a version that does not order.
var ErrParse = errors.New("unparsable toolchain version")

// Kind tags the three flavors of toolchain identifier.
type Kind int

const (
	Concrete Kind = iota
	Stable
	Nightly
)

// Version is a parsed toolchain identifier. Semver is only set for Concrete
// versions and is in canonical "vX.Y.Z" form.
type Version struct {
	Kind   Kind
	Semver string
}

// Parse interprets a toolchain identifier. Concrete versions may be given
// with or without a leading "v".
func Parse(s string) (Version, error) {
	switch s {
	case "stable":
		return Version{Kind: Stable}, nil
	case "nightly":
		return Version{Kind: Nightly}, nil
	}

	canon := s
	if !strings.HasPrefix(canon, "v") {
		canon = "v" + canon
	}
	if !semver.IsValid(canon) {
		return Version{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	return Version{Kind: Concrete, Semver: canon}, nil
}

// GEQ reports whether toolchain a is at least as new as toolchain b.
// Nightly outranks every other identifier; "stable" on either side is
// substituted with the resolved stable version before comparing.
func GEQ(a, b, stable string) (bool, error) {
	va, err := Parse(a)
	if err != nil {
		return false, err
	}
	vb, err := Parse(b)
	if err != nil {
		return false, err
	}

	if va.Kind == Nightly {
		return true, nil
	}
	if vb.Kind == Nightly {
		return false, nil
	}

	sa, err := substitute(va, stable)
	if err != nil {
		return false, err
	}
	sb, err := substitute(vb, stable)
	if err != nil {
		return false, err
	}
	return semver.Compare(sa, sb) >= 0, nil
}

// substitute resolves a non-nightly version to its canonical semver string.
func substitute(v Version, stable string) (string, error) {
	if v.Kind != Stable {
		return v.Semver, nil
	}
	resolved, err := Parse(stable)
	if err != nil {
		return "", fmt.Errorf("resolved stable version: %w", err)
	}
	if resolved.Kind != Concrete {
		return "", fmt.Errorf("%w: stable resolved to channel %q", ErrParse, stable)
	}
	return resolved.Semver, nil
}
