// Package graph provides a read-only, indexed view of a flow's nodes and
// edges for traversal by the interpreter.
package graph

import (
	"errors"
	"log/slog"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

var (
	ErrNoStartNode        = errors.New("flow has no start node")
	ErrMultipleStartNodes = errors.New("flow has more than one start node")
)

// Graph indexes one flow version's nodes and edges.
type Graph struct {
	flowID string
	nodes  map[string]*models.Node
	out    map[string][]*models.Edge
	start  []*models.Node
	logger *slog.Logger
}

// New builds the index. Edge order is preserved so malformed graphs with
// duplicate handles resolve deterministically to the first edge found.
func New(flowID string, nodes []*models.Node, edges []*models.Edge, logger *slog.Logger) *Graph {
	g := &Graph{
		flowID: flowID,
		nodes:  make(map[string]*models.Node, len(nodes)),
		out:    make(map[string][]*models.Edge),
		logger: logger.With("module", "flow_graph", "flow_id", flowID),
	}

	for _, node := range nodes {
		g.nodes[node.ID] = node

		if node.Type == models.NodeTypeStart {
			g.start = append(g.start, node)
		}
	}

	for _, edge := range edges {
		g.out[edge.SourceNodeID] = append(g.out[edge.SourceNodeID], edge)
	}

	return g
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*models.Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

// StartNode returns the flow's single start node. Zero start nodes is a
// diagnostic condition for the dispatcher; more than one violates the flow
// invariant and is logged.
func (g *Graph) StartNode() (*models.Node, error) {
	switch len(g.start) {
	case 0:
		return nil, ErrNoStartNode
	case 1:
		return g.start[0], nil
	default:
		g.logger.Warn("Flow has multiple start nodes, using first", "count", len(g.start))

		return g.start[0], ErrMultipleStartNodes
	}
}

// NextNode resolves the outgoing edge of sourceID with the given handle and
// returns its target node. An empty handle selects the unlabeled edge, or the
// single outgoing edge when none is unlabeled. Well-formed graphs have at most
// one candidate per handle; ambiguity is logged and resolved to the first
// edge found.
func (g *Graph) NextNode(sourceID, handle string) (*models.Node, bool) {
	outgoing := g.out[sourceID]

	var matches []*models.Edge

	for _, edge := range outgoing {
		if edge.SourceHandle == handle {
			matches = append(matches, edge)
		}
	}

	if len(matches) == 0 && handle == "" && len(outgoing) == 1 {
		matches = outgoing
	}

	if len(matches) == 0 {
		return nil, false
	}

	if len(matches) > 1 {
		g.logger.Warn("Multiple outgoing edges share a handle, using first",
			"source_node_id", sourceID,
			"handle", handle,
			"count", len(matches))
	}

	target, ok := g.nodes[matches[0].TargetNodeID]
	if !ok {
		g.logger.Warn("Edge targets a missing node",
			"source_node_id", sourceID,
			"target_node_id", matches[0].TargetNodeID)

		return nil, false
	}

	return target, true
}
