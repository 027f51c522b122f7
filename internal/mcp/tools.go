package mcp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wsinterop/internal/client"
)

func (s *Server) handleListToplevels(ctx context.Context, _ *mcpsdk.CallToolRequest, args ListToplevelsInput) (*mcpsdk.CallToolResult, ListToplevelsOutput, error) {
	if err := s.session.Roundtrip(ctx); err != nil {
		return nil, ListToplevelsOutput{}, fmt.Errorf("daemon unavailable: %w", err)
	}
	workspace := strings.TrimSpace(args.Workspace)
	appID := strings.TrimSpace(args.AppID)

	out := ListToplevelsOutput{Toplevels: []client.Toplevel{}}
	for _, t := range s.session.Snapshot() {
		if workspace != "" && !slices.Contains(t.Workspaces, workspace) {
			continue
		}
		if appID != "" && t.AppID != appID {
			continue
		}
		out.Toplevels = append(out.Toplevels, t)
	}
	return nil, out, nil
}

func (s *Server) handleListWorkspaces(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListWorkspacesInput) (*mcpsdk.CallToolResult, ListWorkspacesOutput, error) {
	if err := s.session.Roundtrip(ctx); err != nil {
		return nil, ListWorkspacesOutput{}, fmt.Errorf("daemon unavailable: %w", err)
	}
	counts := make(map[string]int)
	for _, t := range s.session.Snapshot() {
		for _, name := range t.Workspaces {
			counts[name]++
		}
	}
	out := ListWorkspacesOutput{Workspaces: []WorkspaceInfo{}}
	for _, ws := range s.session.Workspaces() {
		out.Workspaces = append(out.Workspaces, WorkspaceInfo{
			ID:        ws.ID,
			Name:      ws.Name,
			Toplevels: counts[ws.Name],
		})
	}
	return nil, out, nil
}

func (s *Server) handleMoveToplevel(ctx context.Context, _ *mcpsdk.CallToolRequest, args MoveToplevelInput) (*mcpsdk.CallToolResult, MoveToplevelOutput, error) {
	identifier := strings.TrimSpace(args.Identifier)
	if identifier == "" {
		return nil, MoveToplevelOutput{}, fmt.Errorf("identifier is required")
	}
	workspace := strings.TrimSpace(args.Workspace)
	if workspace == "" {
		return nil, MoveToplevelOutput{}, fmt.Errorf("workspace is required")
	}

	if err := s.session.Move(ctx, identifier, workspace); err != nil {
		return nil, MoveToplevelOutput{}, err
	}

	out := MoveToplevelOutput{Identifier: identifier, Workspaces: []string{}}
	for _, t := range s.session.Snapshot() {
		if t.Identifier != identifier {
			continue
		}
		out.Workspaces = t.Workspaces
		out.Moved = len(t.Workspaces) == 1 && t.Workspaces[0] == workspace
	}
	if !out.Moved {
		out.Warning = "the daemon did not move the toplevel; client requests may be disabled or the window manager has not applied the move yet"
	}
	return nil, out, nil
}
