package core

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeVersionConstraint rewrites Poetry style constraints (^3.11,
// ~3.11, 3.11.*) into PEP 440 specifiers. PEP 440 input is returned
// with only whitespace normalized.
func NormalizeVersionConstraint(raw string) string {
	var alternatives []string
	for _, alternative := range strings.Split(raw, "||") {
		var clauses []string
		for _, clause := range strings.Split(alternative, ",") {
			clause = strings.TrimSpace(clause)
			if clause == "" {
				continue
			}
			clauses = append(clauses, normalizeClause(clause)...)
		}
		alternatives = append(alternatives, strings.Join(clauses, ", "))
	}
	return strings.Join(alternatives, " || ")
}

func normalizeClause(clause string) []string {
	switch {
	case strings.HasPrefix(clause, "^"):
		return caretBounds(strings.TrimSpace(strings.TrimPrefix(clause, "^")))
	case strings.HasPrefix(clause, "~") && !strings.HasPrefix(clause, "~="):
		return tildeBounds(strings.TrimSpace(strings.TrimPrefix(clause, "~")))
	case clause == "*":
		return []string{">=0.0.0"}
	case startsWithDigit(clause):
		return []string{"==" + clause}
	default:
		return []string{strings.Join(strings.Fields(clause), "")}
	}
}

// caretBounds follows Poetry: ^3.11 means >=3.11,<4.0.0.
func caretBounds(version string) []string {
	parts, ok := parseNumericParts(version)
	if !ok {
		return []string{"^" + version}
	}
	upper := make([]int, len(parts))
	bumped := false
	for i, part := range parts {
		if !bumped && (part != 0 || i == len(parts)-1) {
			upper[i] = part + 1
			bumped = true
			continue
		}
		if bumped {
			upper[i] = 0
			continue
		}
		upper[i] = part
	}
	return []string{">=" + version, "<" + joinParts(upper)}
}

// tildeBounds follows Poetry: ~3.11 means >=3.11,<3.12.
func tildeBounds(version string) []string {
	parts, ok := parseNumericParts(version)
	if !ok {
		return []string{"~" + version}
	}
	if len(parts) == 1 {
		return []string{">=" + version, fmt.Sprintf("<%d", parts[0]+1)}
	}
	upper := []int{parts[0], parts[1] + 1}
	return []string{">=" + version, "<" + joinParts(upper)}
}

func joinParts(parts []int) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		values = append(values, strconv.Itoa(part))
	}
	return strings.Join(values, ".")
}

func startsWithDigit(value string) bool {
	return value != "" && value[0] >= '0' && value[0] <= '9'
}
