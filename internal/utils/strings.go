package utils

import "strings"

// ParseCSV splits a comma-separated list into trimmed non-empty values.
// Returns nil when nothing remains.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
