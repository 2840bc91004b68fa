package diagnose

import (
	"fmt"
	"strings"
)

// Mode adjusts how harshly a classification is scored.
type Mode string

const (
	ModeStudent Mode = "student"
	ModePro     Mode = "pro"
)

// ParseMode accepts "student" or "pro" in any case. An empty string yields
// the fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case ModeStudent:
		return ModeStudent, nil
	case ModePro:
		return ModePro, nil
	default:
		return fallback, fmt.Errorf("unknown severity mode %q", s)
	}
}

// Label is the four-level summary of a severity percent, plus "No Error".
type Label string

const (
	LabelNone     Label = "No Error"
	LabelLow      Label = "Low"
	LabelMedium   Label = "Medium"
	LabelHigh     Label = "High"
	LabelCritical Label = "Critical"
)

// Report is a normalized severity. Label and Level are a step function of
// Percent.
type Report struct {
	Percent int   `json:"severity_percent"`
	Label   Label `json:"severity_label"`
	Level   int   `json:"severity_level"`
}

// Weights of the four sub-scores, in tenths (0.4, 0.3, 0.2, 0.1).
const (
	weightType       = 4
	weightEscalation = 3
	weightVolume     = 2
	weightMode       = 1
)

// levelScore is the five-point scale every sub-score is mapped through.
var levelScore = [...]int{0, 25, 50, 75, 100}

var typeLevels = map[ErrorType]int{
	SyntaxError:           4,
	TypeError:             3,
	SemanticError:         3,
	RuntimeError:          3,
	UndeclaredVariable:    3,
	UninitializedVariable: 2,
	Warning:               1,
	NoError:               0,
	UnknownError:          2,
}

func typeLevel(t ErrorType) int {
	if lvl, ok := typeLevels[t]; ok {
		return lvl
	}
	return 2
}

// escalationLevel caps the type level. It is the identity today and exists
// so escalation can be tuned apart from the type table.
func escalationLevel(a int) int {
	switch {
	case a >= 4:
		return 4
	case a <= 0:
		return 0
	default:
		return a
	}
}

func volumeLevel(total int) int {
	switch {
	case total >= 5:
		return 3
	case total >= 3:
		return 2
	case total >= 1:
		return 1
	default:
		return 0
	}
}

func modeLevel(a int, mode Mode) int {
	if mode == ModeStudent {
		return max(0, a-1)
	}
	return a
}

// Score computes the weighted severity of a diagnostic outcome.
func Score(errorCount, warningCount int, errorType ErrorType, mode Mode) Report {
	a := typeLevel(errorType)
	b := escalationLevel(a)
	c := volumeLevel(errorCount + warningCount)
	d := modeLevel(a, mode)

	tenths := weightType*levelScore[a] +
		weightEscalation*levelScore[b] +
		weightVolume*levelScore[c] +
		weightMode*levelScore[d]

	// Integer round-half-up of tenths/10; the sum is never negative.
	percent := min(max((tenths+5)/10, 0), 100)
	label, level := LabelFor(percent)
	return Report{Percent: percent, Label: label, Level: level}
}

// ScoreClassification is Score applied to a Classification.
func ScoreClassification(c Classification, mode Mode) Report {
	return Score(c.ErrorCount, c.WarningCount, c.ErrorType, mode)
}

// LabelFor maps a percent in [0,100] to its label and level.
func LabelFor(percent int) (Label, int) {
	switch {
	case percent <= 0:
		return LabelNone, 0
	case percent <= 30:
		return LabelLow, 1
	case percent <= 60:
		return LabelMedium, 2
	case percent <= 85:
		return LabelHigh, 3
	default:
		return LabelCritical, 4
	}
}
