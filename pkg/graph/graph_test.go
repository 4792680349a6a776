package graph

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func node(id string, nodeType models.NodeType) *models.Node {
	return &models.Node{ID: id, FlowID: "flow-1", Type: nodeType}
}

func edge(id, source, target, handle string) *models.Edge {
	return &models.Edge{ID: id, FlowID: "flow-1", SourceNodeID: source, TargetNodeID: target, SourceHandle: handle}
}

func TestStartNode(t *testing.T) {
	g := New("flow-1", []*models.Node{
		node("start-1", models.NodeTypeStart),
		node("msg-1", models.NodeTypeMessage),
	}, nil, testLogger())

	start, err := g.StartNode()
	require.NoError(t, err)
	assert.Equal(t, "start-1", start.ID)
}

func TestStartNode_Missing(t *testing.T) {
	g := New("flow-1", []*models.Node{node("msg-1", models.NodeTypeMessage)}, nil, testLogger())

	_, err := g.StartNode()
	assert.ErrorIs(t, err, ErrNoStartNode)
}

func TestStartNode_Multiple(t *testing.T) {
	g := New("flow-1", []*models.Node{
		node("start-1", models.NodeTypeStart),
		node("start-2", models.NodeTypeStart),
	}, nil, testLogger())

	start, err := g.StartNode()
	assert.ErrorIs(t, err, ErrMultipleStartNodes)
	require.NotNil(t, start)
	assert.Equal(t, "start-1", start.ID)
}

func TestNextNode_ByHandle(t *testing.T) {
	g := New("flow-1", []*models.Node{
		node("cond-1", models.NodeTypeCondition),
		node("msg-yes", models.NodeTypeMessage),
		node("msg-no", models.NodeTypeMessage),
	}, []*models.Edge{
		edge("e1", "cond-1", "msg-yes", models.HandleYes),
		edge("e2", "cond-1", "msg-no", models.HandleNo),
	}, testLogger())

	next, ok := g.NextNode("cond-1", models.HandleYes)
	require.True(t, ok)
	assert.Equal(t, "msg-yes", next.ID)

	next, ok = g.NextNode("cond-1", models.HandleNo)
	require.True(t, ok)
	assert.Equal(t, "msg-no", next.ID)
}

func TestNextNode_SingleEdgeFallback(t *testing.T) {
	// An unconditional node may label its only edge; an empty handle lookup
	// still follows it.
	g := New("flow-1", []*models.Node{
		node("msg-1", models.NodeTypeMessage),
		node("msg-2", models.NodeTypeMessage),
	}, []*models.Edge{
		edge("e1", "msg-1", "msg-2", "default"),
	}, testLogger())

	next, ok := g.NextNode("msg-1", "")
	require.True(t, ok)
	assert.Equal(t, "msg-2", next.ID)
}

func TestNextNode_NoEdge(t *testing.T) {
	g := New("flow-1", []*models.Node{node("msg-1", models.NodeTypeMessage)}, nil, testLogger())

	_, ok := g.NextNode("msg-1", "")
	assert.False(t, ok)
}

func TestNextNode_DuplicateHandleResolvesToFirst(t *testing.T) {
	g := New("flow-1", []*models.Node{
		node("cond-1", models.NodeTypeCondition),
		node("msg-a", models.NodeTypeMessage),
		node("msg-b", models.NodeTypeMessage),
	}, []*models.Edge{
		edge("e1", "cond-1", "msg-a", models.HandleYes),
		edge("e2", "cond-1", "msg-b", models.HandleYes),
	}, testLogger())

	next, ok := g.NextNode("cond-1", models.HandleYes)
	require.True(t, ok)
	assert.Equal(t, "msg-a", next.ID)
}

func TestNextNode_MissingTarget(t *testing.T) {
	g := New("flow-1", []*models.Node{
		node("msg-1", models.NodeTypeMessage),
	}, []*models.Edge{
		edge("e1", "msg-1", "ghost", ""),
	}, testLogger())

	_, ok := g.NextNode("msg-1", "")
	assert.False(t, ok)
}
