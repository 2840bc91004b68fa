package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/patch"
	"github.com/gsarma/codemate/internal/pipeline"
	"github.com/gsarma/codemate/internal/toolchain"
)

// checker is what the terminal flow needs from the pipeline.
type checker interface {
	CompileAndRun(ctx context.Context, req pipeline.CompileRequest) pipeline.Result
	Explain(ctx context.Context, raw string, c diagnose.Classification) (string, error)
}

type checkOptions struct {
	mode    diagnose.Mode
	stdin   *string
	explain bool
	patcher patch.Patcher
}

func newCheckCommand(a *app) *cobra.Command {
	var (
		modeFlag  string
		stdinFlag string
		noExplain bool
	)
	cmd := &cobra.Command{
		Use:   "check <file.c>",
		Short: "Compile a C file and report its severity",
		Long: `Compile a C file, print a severity report and, on failure, an explanation.
When the explanation carries an AUTO-FIX block that applies, the patched
program is written next to the source as <name>_fixed.c.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := buildComponents(cmd.Context(), a.cfg, a.logger, true)
			if err != nil {
				return err
			}
			defer comps.Close()
			stop := comps.startPool(cmd.Context())
			defer stop()

			mode, err := diagnose.ParseMode(modeFlag, comps.mode)
			if err != nil {
				return err
			}
			opts := checkOptions{mode: mode, explain: !noExplain, patcher: patch.LinePatcher{}}
			if cmd.Flags().Changed("stdin") {
				opts.stdin = &stdinFlag
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), comps.orchestrator, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "severity mode: student or pro")
	cmd.Flags().StringVar(&stdinFlag, "stdin", "", "input to feed the program")
	cmd.Flags().BoolVar(&noExplain, "no-explain", false, "skip the explanation and autofix")
	return cmd
}

func runCheck(ctx context.Context, w io.Writer, p checker, path string, opts checkOptions) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	res := p.CompileAndRun(ctx, pipeline.CompileRequest{Source: string(source), Stdin: opts.stdin, Mode: opts.mode})
	printReport(w, filepath.Base(path), res)

	switch res.Status {
	case toolchain.StatusToolError:
		return fmt.Errorf("toolchain fault: %s", res.RawDiagnostic)
	case toolchain.StatusSuccess:
		return nil
	}
	if !opts.explain {
		return nil
	}

	explanation, err := p.Explain(ctx, res.RawDiagnostic, res.Classification)
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", warnColor.Sprint("No explanation:"), err)
		return nil
	}
	fmt.Fprintln(w, headColor.Sprint("Explanation:"))
	fmt.Fprintln(w, explanation)

	block, ok := patch.ExtractAutofixBlock(explanation)
	if !ok {
		return nil
	}
	fixed, ok := opts.patcher.Apply(string(source), block)
	if !ok {
		fmt.Fprintln(w, warnColor.Sprint("AUTO-FIX block did not match any line."))
		return nil
	}
	fixedPath := fixedName(path)
	if err := os.WriteFile(fixedPath, []byte(fixed), 0o644); err != nil {
		return fmt.Errorf("write fixed source: %w", err)
	}
	fmt.Fprintf(w, "%s %s\n", successColor.Sprint("Fixed code written to"), fixedPath)
	return nil
}

// fixedName maps dir/prog.c to dir/prog_fixed.c.
func fixedName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_fixed" + ext
}
