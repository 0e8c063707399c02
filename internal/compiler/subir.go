// internal/compiler/subir.go
package compiler

import (
	"sisalc/internal/ir"
	"sisalc/internal/types"
)

// SubIR is the transient result of building one AST node: the nodes
// it created, the edges internal to them, and the edges terminating
// on the caller's target ports. The caller merges it into the
// enclosing region's bookkeeping.
type SubIR struct {
	Nodes         []*ir.Node
	InternalEdges []*ir.Edge
	OutputEdges   []*ir.Edge
}

// Add merges another SubIR into this one and returns the receiver
func (s *SubIR) Add(other *SubIR) *SubIR {
	if other == nil {
		return s
	}
	s.Nodes = append(s.Nodes, other.Nodes...)
	s.InternalEdges = append(s.InternalEdges, other.InternalEdges...)
	s.OutputEdges = append(s.OutputEdges, other.OutputEdges...)
	return s
}

// Edges returns both internal and output edges
func (s *SubIR) Edges() []*ir.Edge {
	return append(append([]*ir.Edge{}, s.OutputEdges...), s.InternalEdges...)
}

// OutputType returns the type flowing over the first output edge
func (s *SubIR) OutputType() *types.Type {
	if len(s.OutputEdges) == 0 {
		return nil
	}
	return s.OutputEdges[0].From.Type
}

// Contains reports whether the given node was created by this build
func (s *SubIR) Contains(n *ir.Node) bool {
	for _, candidate := range s.Nodes {
		if candidate == n {
			return true
		}
	}
	return false
}
