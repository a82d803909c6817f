package semver

import (
	"fmt"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// ValidateVersion reports whether version is a strict semantic version and returns it normalised.
func ValidateVersion(version string) (string, error) {
	sv, err := masterminds.StrictNewVersion(version)
	if err != nil {
		return "", fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return sv.String(), nil
}

// ValidateRange reports whether rangeStr can be evaluated by SatisfiesRange.
func ValidateRange(rangeStr string) error {
	if rangeStr == "" || IsMajorOnly(rangeStr) {
		return nil
	}
	if _, err := masterminds.NewConstraint(rangeStr); err != nil {
		return fmt.Errorf("%s - invalid range %q: %w", resolverLogPrefix, rangeStr, err)
	}
	return nil
}

// SatisfiesRange checks if a version string satisfies a range.
// An empty range matches any valid version; "3" matches every 3.x.y.
func SatisfiesRange(version, rangeStr string) bool {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}

	if rangeStr == "" {
		return true
	}
	if IsMajorOnly(rangeStr) {
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}
	if IsExactVersion(rangeStr) {
		want, err := masterminds.NewVersion(rangeStr)
		if err != nil {
			return false
		}
		return sv.Equal(want)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}
	return constraint.Check(sv)
}

// Major returns the major component of version, or -1 when it does not parse.
func Major(version string) int {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return -1
	}
	return int(sv.Major())
}
