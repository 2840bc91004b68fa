package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gsarma/codemate/internal/diagnose"
)

type answerer interface {
	Answer(ctx context.Context, question string, mode diagnose.Mode) (string, error)
}

func newChatCommand(a *app) *cobra.Command {
	var modeFlag string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask CodeMate programming questions in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := diagnose.ParseMode(modeFlag, diagnose.ModeStudent)
			if err != nil {
				return err
			}
			comps, err := buildComponents(cmd.Context(), a.cfg, a.logger, true)
			if err != nil {
				return err
			}
			defer comps.Close()
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), comps.orchestrator, mode)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "student", "answer style: student or pro")
	return cmd
}

// runChat reads questions line by line until EOF or "exit". "/mode pro"
// and "/mode student" switch the answer style.
func runChat(ctx context.Context, in io.Reader, w io.Writer, a answerer, mode diagnose.Mode) error {
	fmt.Fprintln(w, headColor.Sprint("CodeMate chat. Commands: /mode student|pro, exit"))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "You > ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return nil
		case strings.HasPrefix(line, "/mode"):
			m, err := diagnose.ParseMode(strings.TrimSpace(strings.TrimPrefix(line, "/mode")), mode)
			if err != nil {
				fmt.Fprintln(w, warnColor.Sprint(err.Error()))
				continue
			}
			mode = m
			fmt.Fprintf(w, "Mode set to %s.\n", mode)
			continue
		}

		reply, err := a.Answer(ctx, line, mode)
		if err != nil {
			fmt.Fprintf(w, "%s %v\n", failColor.Sprint("Error:"), err)
			continue
		}
		fmt.Fprintf(w, "%s\n%s\n", headColor.Sprint("CodeMate >"), reply)
	}
}
