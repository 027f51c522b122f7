package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:   "move <identifier> <workspace>",
	Short: "Ask the daemon to move a toplevel to one workspace",
	Long: `Send enter and leave requests for a toplevel. The daemon's policy
decides whether the window actually moves.`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	identifier, workspace := args[0], args[1]

	ctx, stop := signalContext()
	defer stop()

	session, err := dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Move(ctx, identifier, workspace); err != nil {
		return err
	}
	for _, t := range session.Snapshot() {
		if t.Identifier == identifier {
			fmt.Fprintf(cmd.OutOrStdout(), "%s now on: %s\n", identifier, strings.Join(t.Workspaces, ", "))
		}
	}
	return nil
}
