package toolchain

import (
	"regexp"
	"strings"
)

// inputCalls matches console-read calls that block waiting for stdin.
var inputCalls = regexp.MustCompile(`\b(scanf|gets|fgets|getchar|getc|fgetc|read)\s*\(`)

// NeedsInput reports whether source calls a blocking console-read primitive.
// Matching is case-insensitive; anything unrecognised counts as not needing
// input so the program is run automatically.
func NeedsInput(source string) bool {
	if source == "" {
		return false
	}
	return inputCalls.MatchString(strings.ToLower(source))
}
