package semver

import (
	"testing"
)

func TestSatisfiesRange(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		rangeStr string
		want     bool
	}{
		{"empty range", "1.4.2", "", true},
		{"major-only match", "1.4.2", "1", true},
		{"major-only no match", "1.4.2", "2", false},
		{"caret match", "1.4.2", "^1.2.0", true},
		{"caret no match", "2.1.0", "^1.2.0", false},
		{"exact match", "1.4.2", "1.4.2", true},
		{"exact no match", "1.4.2", "1.4.1", false},
		{"comparison", "1.4.2", ">=1.0.0 <2.0.0", true},
		{"invalid version", "not-a-version", "1", false},
		{"invalid range", "1.0.0", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SatisfiesRange(tt.version, tt.rangeStr)
			if got != tt.want {
				t.Errorf("SatisfiesRange(%q, %q) = %v, want %v", tt.version, tt.rangeStr, got, tt.want)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	got, err := ValidateVersion("1.2.3")
	if err != nil || got != "1.2.3" {
		t.Errorf("ValidateVersion(1.2.3) = %q, %v", got, err)
	}
	if _, err := ValidateVersion("1.2"); err == nil {
		t.Error("ValidateVersion(1.2) expected error")
	}
}

func TestValidateRange(t *testing.T) {
	for _, r := range []string{"", "1", "^1.0.0", "~1.2.0", ">=1.0.0"} {
		if err := ValidateRange(r); err != nil {
			t.Errorf("ValidateRange(%q) error = %v", r, err)
		}
	}
	if err := ValidateRange("abc"); err == nil {
		t.Error("ValidateRange(abc) expected error")
	}
}

func TestMajor(t *testing.T) {
	if got := Major("3.1.0"); got != 3 {
		t.Errorf("Major(3.1.0) = %d", got)
	}
	if got := Major("x"); got != -1 {
		t.Errorf("Major(x) = %d, want -1", got)
	}
}
