// Package mcp exposes the daemon's toplevels and workspaces as MCP tools.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wsinterop/internal/client"
)

const (
	ServerName    = "wsinterop"
	ServerVersion = "0.1.0"
)

// Session is the part of a client session the tools use.
type Session interface {
	Snapshot() []client.Toplevel
	Workspaces() []client.Workspace
	Move(ctx context.Context, identifier, workspace string) error
	Roundtrip(ctx context.Context) error
}

// Server is the MCP server for workspace introspection.
type Server struct {
	mcpServer *mcpsdk.Server
	session   Session
}

// NewServer creates an MCP server backed by session.
func NewServer(session Session) *Server {
	s := &Server{session: session}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_toplevels",
		Description: "List the windows known to the wsinterop daemon with their identifier, title, app id and the workspaces they are on. Optionally filter by workspace name or app id.",
	}, s.handleListToplevels)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_workspaces",
		Description: "List the workspaces in creation order with the number of toplevels on each.",
	}, s.handleListWorkspaces)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_toplevel",
		Description: "Move a toplevel to a single workspace. The daemon's policy decides whether the move happens; the result reports the workspaces the toplevel ended up on.",
	}, s.handleMoveToplevel)
}
