package util

import (
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// handles follow the usual chat username shape: 3-64 word characters
var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,64}$`)

// NormalizeHandle strips whitespace and a leading @ from user input.
func NormalizeHandle(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

func IsValidHandle(s string) bool {
	return handleRegex.MatchString(s)
}
