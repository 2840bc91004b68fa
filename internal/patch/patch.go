// Package patch rewrites C source using correction hints from the
// explanation service.
package patch

import "strings"

// AutofixMarker introduces the block of corrected lines in an explanation.
const AutofixMarker = "AUTO-FIX CODE:"

// Patcher applies a block of corrected lines to source text. ok is false
// when nothing in the block could be applied.
type Patcher interface {
	Apply(original, block string) (patched string, ok bool)
}

// LinePatcher replaces whole source lines by loose substring matching: the
// text of each candidate before its first parenthesis identifies the line
// it concerns. The result is never checked for validity.
type LinePatcher struct{}

var _ Patcher = LinePatcher{}

// Apply replaces, for every candidate line, the first original line that
// contains the candidate's identifying fragment. Candidates without a match
// are dropped.
func (LinePatcher) Apply(original, block string) (string, bool) {
	candidates := Candidates(block)
	if len(candidates) == 0 {
		return original, false
	}

	lines := strings.Split(original, "\n")
	applied := 0
	for _, cand := range candidates {
		key, _, _ := strings.Cut(cand, "(")
		if key == "" {
			continue
		}
		for i, line := range lines {
			if strings.Contains(line, key) {
				lines[i] = cand
				applied++
				break
			}
		}
	}
	if applied == 0 {
		return original, false
	}
	return strings.Join(lines, "\n"), true
}

// Candidates returns the ordered replacement lines of a block: bullet
// markers and surrounding whitespace removed, blank lines and Markdown
// fences dropped.
func Candidates(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "- \t"))
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ExtractAutofixBlock returns the text after the last AUTO-FIX marker.
func ExtractAutofixBlock(explanation string) (string, bool) {
	idx := strings.LastIndex(explanation, AutofixMarker)
	if idx < 0 {
		return "", false
	}
	block := strings.TrimSpace(explanation[idx+len(AutofixMarker):])
	return block, block != ""
}

// StripFences removes a surrounding Markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
