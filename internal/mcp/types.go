package mcp

import "github.com/1broseidon/wsinterop/internal/client"

// ListToplevelsInput is the input for the list_toplevels tool.
type ListToplevelsInput struct {
	Workspace string `json:"workspace,omitempty" jsonschema:"Only list toplevels on this workspace"`
	AppID     string `json:"app_id,omitempty" jsonschema:"Only list toplevels with this app id"`
}

// ListToplevelsOutput is the output for the list_toplevels tool.
type ListToplevelsOutput struct {
	Toplevels []client.Toplevel `json:"toplevels"`
}

// ListWorkspacesInput is the input for the list_workspaces tool.
type ListWorkspacesInput struct{}

// WorkspaceInfo describes one workspace and what is on it.
type WorkspaceInfo struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Toplevels int    `json:"toplevels"`
}

// ListWorkspacesOutput is the output for the list_workspaces tool.
type ListWorkspacesOutput struct {
	Workspaces []WorkspaceInfo `json:"workspaces"`
}

// MoveToplevelInput is the input for the move_toplevel tool.
type MoveToplevelInput struct {
	Identifier string `json:"identifier" jsonschema:"required,Toplevel identifier from list_toplevels"`
	Workspace  string `json:"workspace" jsonschema:"required,Name of the workspace to move the toplevel to"`
}

// MoveToplevelOutput is the output for the move_toplevel tool.
type MoveToplevelOutput struct {
	Identifier string   `json:"identifier"`
	Moved      bool     `json:"moved"`
	Workspaces []string `json:"workspaces"`
	Warning    string   `json:"warning,omitempty"`
}
