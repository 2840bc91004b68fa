// Package diagnose turns raw compiler output into a classification and a
// severity score. Everything here is a pure function of its inputs.
package diagnose

import "strings"

// ErrorType is the closed taxonomy a compiler diagnostic is mapped to.
type ErrorType string

const (
	SyntaxError           ErrorType = "Syntax Error"
	UndeclaredVariable    ErrorType = "Undeclared Variable"
	UninitializedVariable ErrorType = "Uninitialized Variable"
	TypeError             ErrorType = "Type Error"
	SemanticError         ErrorType = "Semantic Error"
	RuntimeError          ErrorType = "Runtime Error"
	Warning               ErrorType = "Warning"
	NoError               ErrorType = "No Error"
	UnknownError          ErrorType = "Unknown Error"
)

// Classification is the structured verdict derived from diagnostic text.
type Classification struct {
	ErrorType    ErrorType `json:"error_type"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
}

// Clean is the classification of a program with no diagnostics.
var Clean = Classification{ErrorType: NoError}

type rule struct {
	errorType ErrorType
	match     func(text string, errors, warnings int) bool
}

// rules are evaluated in order and the first match wins. Messages routinely
// satisfy several rules ("expected ... undeclared"), so the order matters.
var rules = []rule{
	{SyntaxError, func(text string, _, _ int) bool {
		return strings.Contains(text, "expected") || strings.Contains(text, "syntax error")
	}},
	{UndeclaredVariable, func(text string, _, _ int) bool {
		return strings.Contains(text, "undeclared")
	}},
	{UninitializedVariable, func(text string, _, _ int) bool {
		return strings.Contains(text, "uninitialized")
	}},
	{TypeError, func(text string, _, _ int) bool {
		return strings.Contains(text, "format") && strings.Contains(text, "printf")
	}},
	{Warning, func(_ string, errors, warnings int) bool {
		return warnings > 0 && errors == 0
	}},
	{NoError, func(_ string, errors, warnings int) bool {
		return errors == 0 && warnings == 0
	}},
}

// Classify maps compiler output to a Classification. Counts are
// case-insensitive substring counts of "error:" and "warning:", so two
// diagnostics on one line count twice.
func Classify(raw string) Classification {
	text := strings.ToLower(raw)
	c := Classification{
		ErrorType:    UnknownError,
		ErrorCount:   strings.Count(text, "error:"),
		WarningCount: strings.Count(text, "warning:"),
	}
	for _, r := range rules {
		if r.match(text, c.ErrorCount, c.WarningCount) {
			c.ErrorType = r.errorType
			break
		}
	}
	return c
}
