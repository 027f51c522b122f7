package main

import (
	"github.com/spf13/cobra"

	"github.com/1broseidon/wsinterop/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workspace tools over MCP on stdio",
	Long: `Connect to the running daemon and expose list_toplevels,
list_workspaces and move_toplevel as MCP tools on stdin/stdout.`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := dial(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	return mcp.NewServer(session).Run(ctx)
}
