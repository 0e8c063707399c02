// internal/compiler/timeout.go
//
// Timeout lifting: expressions tagged max_time move into synthesized
// service functions so the emitter has a single mechanism (the
// time-limited call) for all timed computations.
package compiler

import (
	"fmt"

	"sisalc/internal/ir"
)

// liftTimeouts rewrites every max_time-tagged non-function node: the
// tagged subgraph (everything reachable backwards from the group's
// inputs) becomes a new function, and the original site turns into a
// FunctionCall carrying the same pragma.
func (b *Builder) liftTimeouts() error {
	m := b.module
	serviceCounter := 0
	for _, node := range m.AllNodes() {
		if m.Node(node.ID) == nil {
			continue // already moved or deleted by an earlier lift
		}
		if node.Name == ir.KindFunction || node.GetPragma("max_time") == nil {
			continue
		}
		serviceCounter++
		if err := b.liftGroup(node, serviceCounter); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) liftGroup(root *ir.Node, serviceIndex int) error {
	m := b.module
	parent := m.ParentOf(root)
	group := m.PragmaGroupOf(root)
	pragmas := append([]ir.Pragma{}, root.Pragmas...)

	// collect the nodes feeding the group, the edges between them,
	// and the edges crossing the region boundary in either direction
	var nodes []*ir.Node
	var internalEdges, inputEdges []*ir.Edge
	seen := map[string]bool{}
	for _, member := range group {
		memberNodes, memberInternal, memberInput := m.TraceBack(member)
		for _, n := range memberNodes {
			if !seen[n.ID] {
				seen[n.ID] = true
				nodes = append(nodes, n)
			}
		}
		internalEdges = append(internalEdges, memberInternal...)
		inputEdges = append(inputEdges, memberInput...)
	}
	var outputEdges []*ir.Edge
	for _, member := range group {
		for _, p := range member.OutPorts {
			outputEdges = append(outputEdges, m.EdgesFrom(p)...)
		}
	}

	fn := m.NewNode(ir.KindFunction, root.Location)
	fn.FunctionName = fmt.Sprintf("service_function%d_for_timed_expression", serviceIndex)
	fn.Pragmas = pragmas

	call := m.NewNodeIn(parent, ir.KindFunctionCall, root.Location)
	call.Callee = fn.FunctionName
	call.Pragmas = append([]ir.Pragma{}, pragmas...)

	// results mirror the edges leaving the group
	for i, e := range outputEdges {
		label := fmt.Sprintf("result%d", i)
		var portType = e.From.Type
		fnOut := fn.AddOutPort(portType.Copy(root.Location), label, root.Location)
		callOut := call.AddOutPort(portType.Copy(root.Location), label, root.Location)
		if _, err := m.Connect(e.From, fnOut, fn); err != nil {
			return err
		}
		m.ReattachOrigin(e, callOut)
	}

	// arguments mirror the deduplicated set of external inputs
	argIndex := map[string]int{}
	for _, e := range inputEdges {
		key := e.From.ID.String()
		if index, known := argIndex[key]; known {
			// a second edge from the same outer source folds into the
			// already created argument
			target := e.To
			m.DeleteEdge(e)
			if _, err := m.Connect(fn.InPorts[index], target, fn); err != nil {
				return err
			}
			continue
		}
		index := len(fn.InPorts)
		argIndex[key] = index
		label := e.From.Label
		if label == "" {
			label = fmt.Sprintf("arg_%d", index)
		}
		fnIn := fn.AddInPort(e.To.Type.Copy(root.Location), label, root.Location)
		call.AddInPort(e.To.Type.Copy(root.Location), fmt.Sprintf("arg_%d", index), root.Location)

		target := e.To
		if err := m.ReattachTarget(e, call.InPorts[index]); err != nil {
			return err
		}
		if _, err := m.Connect(fnIn, target, fn); err != nil {
			return err
		}
	}

	// move the collected nodes and their internal edges into the
	// service function; the moved nodes lose their max_time tag
	for _, n := range nodes {
		n.RemovePragma("max_time")
		n.PragmaGroup = 0
		if parent != nil {
			parent.RemoveChild(n)
		}
		fn.Nodes = append(fn.Nodes, n)
	}
	for _, e := range internalEdges {
		if e.Region != nil {
			e.Region.Edges = removeEdgeFrom(e.Region.Edges, e)
		}
		e.Region = fn
		fn.Edges = append(fn.Edges, e)
	}

	m.AddFunction(fn)
	return nil
}

func removeEdgeFrom(edges []*ir.Edge, e *ir.Edge) []*ir.Edge {
	for i, candidate := range edges {
		if candidate == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}
