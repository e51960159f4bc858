package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		kind    Kind
		semver  string
		wantErr bool
	}{
		{in: "1.63.0", kind: Concrete, semver: "v1.63.0"},
		{in: "v1.63.0", kind: Concrete, semver: "v1.63.0"},
		{in: "1.40.0", kind: Concrete, semver: "v1.40.0"},
		{in: "stable", kind: Stable},
		{in: "nightly", kind: Nightly},
		{in: "", wantErr: true},
		{in: "banana", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
		{in: "beta", wantErr: true},
	}

	for _, tt := range tests {
		v, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error, got %+v", tt.in, v)
			} else if !errors.Is(err, ErrParse) {
				t.Errorf("Parse(%q): error %v is not ErrParse", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if v.Kind != tt.kind || v.Semver != tt.semver {
			t.Errorf("Parse(%q) = %+v, want kind=%v semver=%q", tt.in, v, tt.kind, tt.semver)
		}
	}
}

func TestGEQ_ConcreteAgreesWithSemverOrdering(t *testing.T) {
	t.Parallel()
	const stable = "1.60.0"
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.50.0", "1.40.0", true},
		{"1.40.0", "1.50.0", false},
		{"1.50.0", "1.50.0", true},
		{"1.50.1", "1.50.0", true},
		{"1.9.0", "1.10.0", false}, // numeric, not lexicographic
		{"2.0.0", "1.99.0", true},
	}

	for _, tt := range tests {
		got, err := GEQ(tt.a, tt.b, stable)
		if err != nil {
			t.Fatalf("GEQ(%q, %q): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("GEQ(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGEQ_NightlyOutranksEverything(t *testing.T) {
	t.Parallel()
	const stable = "1.60.0"
	others := []string{"1.0.0", "1.60.0", "99.99.99", "stable", "nightly"}

	for _, x := range others {
		got, err := GEQ("nightly", x, stable)
		if err != nil {
			t.Fatalf("GEQ(nightly, %q): %v", x, err)
		}
		if !got {
			t.Errorf("GEQ(nightly, %q) = false, want true", x)
		}
	}

	for _, x := range others {
		if x == "nightly" {
			continue
		}
		got, err := GEQ(x, "nightly", stable)
		if err != nil {
			t.Fatalf("GEQ(%q, nightly): %v", x, err)
		}
		if got {
			t.Errorf("GEQ(%q, nightly) = true, want false", x)
		}
	}
}

func TestGEQ_StableSubstitution(t *testing.T) {
	t.Parallel()
	const stable = "1.60.0"
	tests := []struct {
		a, b string
		want bool
	}{
		{"stable", "1.50.0", true},
		{"stable", "1.60.0", true},
		{"stable", "1.61.0", false},
		{"1.61.0", "stable", true},
		{"1.59.0", "stable", false},
		{"stable", "stable", true},
	}

	for _, tt := range tests {
		got, err := GEQ(tt.a, tt.b, stable)
		if err != nil {
			t.Fatalf("GEQ(%q, %q): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("GEQ(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGEQ_MalformedIsFatal(t *testing.T) {
	t.Parallel()
	if _, err := GEQ("not-a-version", "1.0.0", "1.60.0"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for malformed a, got %v", err)
	}
	if _, err := GEQ("1.0.0", "not-a-version", "1.60.0"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for malformed b, got %v", err)
	}
	if _, err := GEQ("stable", "1.0.0", "garbage"); !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse for malformed stable, got %v", err)
	}
}
