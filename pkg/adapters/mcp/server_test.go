package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
	"github.com/aretw0/multipage/pkg/monolith"
	"github.com/aretw0/multipage/pkg/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	g := graph.MustNew(
		domain.Page{ID: "opts", Elements: []domain.Element{
			{ID: "clean", Type: domain.ElementButton, BoundKey: "clean", Props: domain.ButtonProps{Toggle: true}},
			{ID: "name", Type: domain.ElementInput, BoundKey: "name", Required: true, Props: domain.InputProps{}},
		}},
		domain.Page{ID: "done", Kind: domain.PageTerminal},
	)
	mgr := session.NewManager(memory.NewStore(), func(id string) *runtime.Controller {
		return runtime.New(g, runtime.WithSessionID(id))
	})
	return NewServer(mgr, g, WithInfo("test-mcp", "0.0.1"))
}

func TestServer_Tools(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	req := mcp.CallToolRequest{}

	opened, err := s.handleOpen(ctx, req, SessionArgs{})
	require.NoError(t, err)
	require.NotEmpty(t, opened.SessionID)
	assert.Equal(t, "opts", opened.View.PageID)
	id := opened.SessionID

	refused, err := s.handleAdvance(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err, "a refusal is a result, not a tool error")
	require.Len(t, refused.Failures, 1)
	assert.Equal(t, "name", refused.Failures[0].ID)
	assert.Equal(t, "opts", refused.View.PageID)

	set, err := s.handleSetValue(ctx, req, SetValueArgs{SessionID: id, ElementID: "clean", Value: "true"})
	require.NoError(t, err)
	assert.Equal(t, true, set.View.Elements[0].Value)

	_, err = s.handleSetValue(ctx, req, SetValueArgs{SessionID: id, ElementID: "name", Value: "Ada"})
	require.NoError(t, err)

	advanced, err := s.handleAdvance(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err)
	assert.Empty(t, advanced.Failures)
	assert.Equal(t, "done", advanced.View.PageID)

	back, err := s.handleBack(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, "Ada", back.View.Elements[1].Value)

	jumped, err := s.handleJump(ctx, req, JumpArgs{SessionID: id, PageID: "done", KeepHistory: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"opts", "done"}, jumped.View.History)

	exported, err := s.handleExport(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, monolith.FormatVersion.String(), exported.Version)
	blob, err := base64.StdEncoding.DecodeString(exported.Monolith)
	require.NoError(t, err)
	m, err := monolith.Import(blob)
	require.NoError(t, err)
	assert.Equal(t, "Ada", m.Snapshot.Values["name"])
}

func TestServer_ToolErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	req := mcp.CallToolRequest{}

	_, err := s.handleView(ctx, req, SessionArgs{})
	assert.Error(t, err)

	_, err = s.handleView(ctx, req, SessionArgs{SessionID: "missing"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	opened, err := s.handleOpen(ctx, req, SessionArgs{SessionID: "s"})
	require.NoError(t, err)
	_, err = s.handleSetValue(ctx, req, SetValueArgs{SessionID: opened.SessionID, ElementID: "clean", Value: "maybe"})
	assert.ErrorIs(t, err, domain.ErrInvalidValue)
}

func TestServer_GraphJSON(t *testing.T) {
	s := newTestServer(t)
	raw, err := json.Marshal(s.graph.Pages())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"opts"`)
	assert.NotNil(t, s.MCPServer())
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "Ada", ParseValue("Ada"))
	assert.Equal(t, "quoted", ParseValue(`"quoted"`))
	assert.Equal(t, []any{"VST3", "AU"}, ParseValue(`["VST3","AU"]`))
	assert.Equal(t, 4.0, ParseValue("4"))
}
