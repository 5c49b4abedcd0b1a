package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/ifcli/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List run directories under the session root",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessions(cfg.Session.Root, cmd.OutOrStdout())
	},
}

func runSessions(root string, out io.Writer) error {
	runs, err := session.Runs(root)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No sessions in %s\n", root)
		return nil
	}
	fmt.Fprintf(out, "Sessions in %s:\n", root)
	for _, r := range runs {
		mark := " "
		if r.Latest {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s  %3d interface(s)  %s\n",
			mark, session.RunName(r.ID), r.Interfaces, r.Modified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
