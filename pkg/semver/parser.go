// Package semver parses script call references and checks namespace versions against ranges.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// CallRef holds the parsed components of a call reference such as "file.write@^1".
type CallRef struct {
	// Namespace prefix (e.g., "file"); may itself contain dots ("net.http")
	Namespace string
	// Operation name, the last dotted segment (e.g., "write")
	Operation string
	// Version range if specified (e.g., "^1.2.0", "1", ""); empty string means any version
	Range string
	// Raw input string
	Raw string
}

// Target returns "namespace.operation" without the range.
func (c *CallRef) Target() string {
	return c.Namespace + "." + c.Operation
}

var (
	operationNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	namespaceRegex     = regexp.MustCompile(`^[a-z][a-z0-9_-]*(\.[a-z][a-z0-9_-]*)*$`)
	majorOnlyRegex     = regexp.MustCompile(`^\d+$`)
	exactVersionRegex  = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseCallRef parses a call reference string.
//
// Supported formats:
//   - file.write           (any version)
//   - file.write@1         (major only)
//   - file.write@1.2.0     (exact version)
//   - file.write@^1.2.0    (caret range)
//   - net.http.get@~2.0.0  (dotted namespace)
func ParseCallRef(input string) (*CallRef, error) {
	raw := strings.TrimSpace(input)

	target := raw
	var rangeStr string
	if at := strings.Index(raw, "@"); at != -1 {
		target = raw[:at]
		rangeStr = strings.TrimSpace(raw[at+1:])
		if rangeStr == "" {
			return nil, fmt.Errorf("%s - empty version range: %s", logPrefix, raw)
		}
	}

	lastDot := strings.LastIndex(target, ".")
	if lastDot == -1 {
		return nil, fmt.Errorf("%s - invalid call format, missing namespace: %s", logPrefix, raw)
	}

	ns := target[:lastDot]
	op := target[lastDot+1:]
	if !ValidateNamespace(ns) || !ValidateOperationName(op) {
		return nil, fmt.Errorf("%s - invalid call format: %s", logPrefix, raw)
	}

	return &CallRef{
		Namespace: ns,
		Operation: op,
		Range:     rangeStr,
		Raw:       raw,
	}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// BuildCallRef builds a call reference string from parts.
func BuildCallRef(namespace, operation, rangeStr string) string {
	base := namespace + "." + operation
	if rangeStr != "" {
		return base + "@" + rangeStr
	}
	return base
}

// ValidateNamespace validates a namespace prefix (lowercase segments separated by dots).
func ValidateNamespace(ns string) bool {
	return namespaceRegex.MatchString(ns)
}

// ValidateOperationName validates an operation name (identifier characters only).
func ValidateOperationName(name string) bool {
	return operationNameRegex.MatchString(name)
}
