package utils

import (
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// ParseDate parses a yyyy-mm-dd date in the local zone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.Local)
}

// NormalizeSeatLabel upper-cases and trims a seat label ("a1 " -> "A1").
func NormalizeSeatLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
