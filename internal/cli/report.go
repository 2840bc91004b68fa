package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/pipeline"
	"github.com/gsarma/codemate/internal/toolchain"
)

const meterWidth = 20

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	headColor    = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.Faint)
)

func labelColor(l diagnose.Label) *color.Color {
	switch l {
	case diagnose.LabelNone:
		return successColor
	case diagnose.LabelLow, diagnose.LabelMedium:
		return warnColor
	default:
		return failColor
	}
}

// meterBar renders percent as a fixed-width bar.
func meterBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := (percent*meterWidth + 50) / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", meterWidth-filled) + "]"
}

// printReport writes a colored verdict for one compile.
func printReport(w io.Writer, name string, res pipeline.Result) {
	elapsed := dimColor.Sprintf("(%.2f ms)", res.CompileTimeMillis)
	switch res.Status {
	case toolchain.StatusSuccess:
		fmt.Fprintf(w, "%s %s %s\n", successColor.Sprint("OK"), name, elapsed)
		fmt.Fprintln(w, headColor.Sprint("Program output:"))
		fmt.Fprintln(w, res.ProgramOutput)
	case toolchain.StatusToolError:
		fmt.Fprintf(w, "%s %s\n", failColor.Sprint("TOOLCHAIN ERROR"), name)
		fmt.Fprintln(w, res.RawDiagnostic)
	default:
		sev := res.Severity
		fmt.Fprintf(w, "%s %s %s\n", failColor.Sprint("FAILED"), name, elapsed)
		fmt.Fprintf(w, "%-10s %s\n", "Type:", res.Classification.ErrorType)
		fmt.Fprintf(w, "%-10s %d errors, %d warnings\n", "Counts:", res.Classification.ErrorCount, res.Classification.WarningCount)
		fmt.Fprintf(w, "%-10s %s %s\n", "Severity:", meterBar(sev.Percent),
			labelColor(sev.Label).Sprintf("%d%% %s", sev.Percent, sev.Label))
		fmt.Fprintln(w, headColor.Sprint("Compiler output:"))
		fmt.Fprintln(w, strings.TrimRight(res.RawDiagnostic, "\n"))
	}
}
