package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/1broseidon/wsinterop/internal/client"
)

type fakeSession struct {
	toplevels  []client.Toplevel
	workspaces []client.Workspace
	roundtrip  error
	allowMove  bool
	moves      []string
}

func (f *fakeSession) Snapshot() []client.Toplevel     { return f.toplevels }
func (f *fakeSession) Workspaces() []client.Workspace  { return f.workspaces }
func (f *fakeSession) Roundtrip(context.Context) error { return f.roundtrip }

func (f *fakeSession) Move(_ context.Context, identifier, workspace string) error {
	f.moves = append(f.moves, identifier+"->"+workspace)
	for i := range f.toplevels {
		if f.toplevels[i].Identifier != identifier {
			continue
		}
		if f.allowMove {
			f.toplevels[i].Workspaces = []string{workspace}
		}
		return nil
	}
	return client.ErrUnknownToplevel
}

func newFake() *fakeSession {
	return &fakeSession{
		workspaces: []client.Workspace{{ID: 1, Name: "main"}, {ID: 2, Name: "web"}},
		toplevels: []client.Toplevel{
			{Identifier: "a", Title: "editor", AppID: "code", Workspaces: []string{"main"}},
			{Identifier: "b", Title: "browser", AppID: "firefox", Workspaces: []string{"web"}},
			{Identifier: "c", Title: "clock", AppID: "xclock", Workspaces: []string{"main", "web"}},
		},
		allowMove: true,
	}
}

func identifiers(list []client.Toplevel) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Identifier)
	}
	return out
}

func TestNewServer_RegistersTools(t *testing.T) {
	if s := NewServer(newFake()); s.mcpServer == nil {
		t.Fatal("no MCP server")
	}
}

func TestListToplevels_Filters(t *testing.T) {
	tests := []struct {
		name string
		in   ListToplevelsInput
		want []string
	}{
		{"all", ListToplevelsInput{}, []string{"a", "b", "c"}},
		{"workspace", ListToplevelsInput{Workspace: "main"}, []string{"a", "c"}},
		{"app id", ListToplevelsInput{AppID: "firefox"}, []string{"b"}},
		{"both", ListToplevelsInput{Workspace: "web", AppID: "code"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(newFake())
			_, out, err := s.handleListToplevels(context.Background(), nil, tt.in)
			if err != nil {
				t.Fatal(err)
			}
			got := identifiers(out.Toplevels)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestListToplevels_DaemonGone(t *testing.T) {
	f := newFake()
	f.roundtrip = client.ErrClosed
	_, _, err := NewServer(f).handleListToplevels(context.Background(), nil, ListToplevelsInput{})
	if !errors.Is(err, client.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestListWorkspaces_Counts(t *testing.T) {
	_, out, err := NewServer(newFake()).handleListWorkspaces(context.Background(), nil, ListWorkspacesInput{})
	if err != nil {
		t.Fatal(err)
	}
	want := []WorkspaceInfo{{1, "main", 2}, {2, "web", 2}}
	if len(out.Workspaces) != len(want) {
		t.Fatalf("workspaces = %+v", out.Workspaces)
	}
	for i := range want {
		if out.Workspaces[i] != want[i] {
			t.Errorf("workspace[%d] = %+v, want %+v", i, out.Workspaces[i], want[i])
		}
	}
}

func TestMoveToplevel(t *testing.T) {
	f := newFake()
	_, out, err := NewServer(f).handleMoveToplevel(context.Background(), nil, MoveToplevelInput{Identifier: "a", Workspace: "web"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Moved || out.Warning != "" {
		t.Errorf("out = %+v", out)
	}
	if len(f.moves) != 1 || f.moves[0] != "a->web" {
		t.Errorf("moves = %v", f.moves)
	}
}

func TestMoveToplevel_NotApplied(t *testing.T) {
	f := newFake()
	f.allowMove = false
	_, out, err := NewServer(f).handleMoveToplevel(context.Background(), nil, MoveToplevelInput{Identifier: "a", Workspace: "web"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Moved || out.Warning == "" {
		t.Errorf("out = %+v, want warning", out)
	}
}

func TestMoveToplevel_Validation(t *testing.T) {
	s := NewServer(newFake())
	ctx := context.Background()
	if _, _, err := s.handleMoveToplevel(ctx, nil, MoveToplevelInput{Workspace: "web"}); err == nil {
		t.Error("missing identifier accepted")
	}
	if _, _, err := s.handleMoveToplevel(ctx, nil, MoveToplevelInput{Identifier: "a"}); err == nil {
		t.Error("missing workspace accepted")
	}
	if _, _, err := s.handleMoveToplevel(ctx, nil, MoveToplevelInput{Identifier: "zz", Workspace: "web"}); !errors.Is(err, client.ErrUnknownToplevel) {
		t.Errorf("err = %v, want ErrUnknownToplevel", err)
	}
}
