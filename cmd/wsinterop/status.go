package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/1broseidon/wsinterop/internal/client"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspaces and the toplevels on them",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	Workspaces []client.Workspace `json:"workspaces"`
	Toplevels  []client.Toplevel  `json:"toplevels"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	report := statusReport{
		Workspaces: session.Workspaces(),
		Toplevels:  session.Snapshot(),
	}
	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

func printStatus(w io.Writer, report statusReport) {
	fmt.Fprintf(w, "Workspaces: %d\n", len(report.Workspaces))
	for _, ws := range report.Workspaces {
		fmt.Fprintf(w, "  [%d] %s\n", ws.ID, ws.Name)
	}
	fmt.Fprintf(w, "Toplevels: %d\n", len(report.Toplevels))
	for _, t := range report.Toplevels {
		workspaces := "(none)"
		if len(t.Workspaces) > 0 {
			workspaces = strings.Join(t.Workspaces, ", ")
		}
		fmt.Fprintf(w, "  %s  %s", t.Identifier, t.Title)
		if t.AppID != "" {
			fmt.Fprintf(w, " (%s)", t.AppID)
		}
		fmt.Fprintf(w, "\n    on: %s\n", workspaces)
	}
}
