package forgemod

import (
	"testing"

	version "github.com/hashicorp/go-version"
)

func TestParseRequirement_Invalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		">>=1.0.0",
		"^garbage",
		"~also.garbage",
		"1.0.0 2.0.0",
	}
	for _, raw := range tests {
		if _, err := ParseRequirement(raw); err == nil {
			t.Errorf("ParseRequirement(%q) = nil error, want error", raw)
		}
	}
}

func TestRequirement_Matches(t *testing.T) {
	tests := []struct {
		expr    string
		version string
		want    bool
	}{
		// plain operators
		{">=1.29.0", "1.29.0", true},
		{">=1.29.0", "1.29.4", true},
		{">=1.29.0", "1.28.0", false},
		{"=1.2.3", "1.2.3", true},
		{"=1.2.3", "1.2.4", false},
		{">=1.0.0,<2.0.0", "1.5.0", true},
		{">=1.0.0,<2.0.0", "2.0.0", false},
		{"~>1.2", "1.9.0", true},
		{"~>1.2", "2.0.0", false},

		// wildcard
		{"*", "0.0.1", true},
		{"*", "99.0.0", true},

		// caret: leftmost non-zero component is the compatibility boundary
		{"^1.2.3", "1.2.3", true},
		{"^1.2.3", "1.9.0", true},
		{"^1.2.3", "2.0.0", false},
		{"^1.2.3", "1.2.2", false},
		{"^0.3.1", "0.3.5", true},
		{"^0.3.1", "0.4.0", false},
		{"^0.0.2", "0.0.2", true},
		{"^0.0.2", "0.0.3", false},

		// tilde: patch-level changes only
		{"~1.2.3", "1.2.9", true},
		{"~1.2.3", "1.3.0", false},
		{"~1.2.3", "1.2.2", false},
	}
	for _, tt := range tests {
		req, err := ParseRequirement(tt.expr)
		if err != nil {
			t.Errorf("ParseRequirement(%q) error = %v", tt.expr, err)
			continue
		}
		v := version.Must(version.NewVersion(tt.version))
		if got := req.Matches(v); got != tt.want {
			t.Errorf("(%q).Matches(%q) = %v, want %v", tt.expr, tt.version, got, tt.want)
		}
	}
}

func TestRequirement_MatchesString(t *testing.T) {
	req, err := ParseRequirement(">=1.0.0")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if !req.MatchesString("1.0.0") {
		t.Error("MatchesString(1.0.0) = false, want true")
	}
	if req.MatchesString("not-a-version") {
		t.Error("MatchesString(not-a-version) = true, want false for unparseable input")
	}
}

func TestRequirement_String(t *testing.T) {
	req, err := ParseRequirement("  ^1.2.0 ")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	if req.String() != "^1.2.0" {
		t.Errorf("String() = %q, want the trimmed original expression", req.String())
	}
}
