// internal/ir/module.go
package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	perrors "github.com/pkg/errors"

	"sisalc/internal/errors"
	"sisalc/internal/types"
)

// Edge is a directed dataflow dependency between two ports. Every
// input port has at most one incoming edge; an output port may feed
// many. Region is the node whose sub-graph owns the edge.
type Edge struct {
	From   *Port
	To     *Port
	Region *Node
}

func (e *Edge) String() string {
	return fmt.Sprintf("E<%s:%d -> %s:%d>", e.From.NodeID, e.From.Index, e.To.NodeID, e.To.Index)
}

// Definition is a named type alias declared at module level
type Definition struct {
	Name string
	Type *types.Type
}

// Module owns every node and edge of a compilation unit. All graph
// mutation goes through its methods so the edge indices and the id
// free list stay consistent.
type Module struct {
	Functions   []*Node
	Definitions []Definition

	Nodes map[string]*Node
	Edges []*Edge

	Warnings *errors.Warnings

	functionIndex map[string]*Node
	edgesFrom     map[uuid.UUID][]*Edge
	edgeTo        map[uuid.UUID]*Edge
	freeIDs       []string
	nextID        int
}

func NewModule() *Module {
	return &Module{
		Nodes:         map[string]*Node{},
		Warnings:      &errors.Warnings{},
		functionIndex: map[string]*Node{},
		edgesFrom:     map[uuid.UUID][]*Edge{},
		edgeTo:        map[uuid.UUID]*Edge{},
	}
}

// NewNodeID hands out an id for a new node, reusing ids of previously
// deleted nodes to keep the id space dense.
func (m *Module) NewNodeID() string {
	if len(m.freeIDs) > 0 {
		id := m.freeIDs[0]
		m.freeIDs = m.freeIDs[1:]
		return id
	}
	id := "node" + strconv.Itoa(m.nextID)
	m.nextID++
	return id
}

// NewNode creates and registers a node without attaching it anywhere
func (m *Module) NewNode(name string, location string) *Node {
	n := &Node{ID: m.NewNodeID(), Name: name, Location: location}
	m.Nodes[n.ID] = n
	return n
}

// NewNodeIn creates a node and appends it to container's children
func (m *Module) NewNodeIn(container *Node, name string, location string) *Node {
	n := m.NewNode(name, location)
	if container != nil {
		container.Nodes = append(container.Nodes, n)
	}
	return n
}

// RegisterNode registers a node created elsewhere (deserialization)
func (m *Module) RegisterNode(n *Node) {
	m.Nodes[n.ID] = n
	if num, err := strconv.Atoi(strings.TrimPrefix(n.ID, "node")); err == nil && num >= m.nextID {
		m.nextID = num + 1
	}
}

func (m *Module) Node(id string) *Node {
	return m.Nodes[id]
}

func (m *Module) AddFunction(fn *Node) {
	m.Functions = append(m.Functions, fn)
	m.functionIndex[fn.FunctionName] = fn
}

func (m *Module) Function(name string) *Node {
	return m.functionIndex[name]
}

func (m *Module) RemoveFunction(name string) {
	delete(m.functionIndex, name)
	for i, fn := range m.Functions {
		if fn.FunctionName == name {
			m.Functions = append(m.Functions[:i], m.Functions[i+1:]...)
			return
		}
	}
}

func (m *Module) AddDefinition(name string, t *types.Type) {
	m.Definitions = append(m.Definitions, Definition{Name: name, Type: t})
}

// NodesNamed returns all registered nodes with the given kind tag in
// a deterministic (id) order.
func (m *Module) NodesNamed(kind string) []*Node {
	var result []*Node
	for _, n := range m.Nodes {
		if n.Name == kind {
			result = append(result, n)
		}
	}
	sortNodes(result)
	return result
}

// AllNodes returns every registered node in id order
func (m *Module) AllNodes() []*Node {
	result := make([]*Node, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		result = append(result, n)
	}
	sortNodes(result)
	return result
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, _ := strconv.Atoi(strings.TrimPrefix(nodes[i].ID, "node"))
		b, _ := strconv.Atoi(strings.TrimPrefix(nodes[j].ID, "node"))
		return a < b
	})
}

// EdgeTo returns the single edge terminating on the port, nil if none
func (m *Module) EdgeTo(p *Port) *Edge {
	return m.edgeTo[p.ID]
}

// EdgesFrom returns the edges leaving the port
func (m *Module) EdgesFrom(p *Port) []*Edge {
	return m.edgesFrom[p.ID]
}

// SourcePort returns the port feeding p via its incoming edge
func (m *Module) SourcePort(p *Port) *Port {
	e := m.edgeTo[p.ID]
	if e == nil {
		return nil
	}
	return e.From
}

// SourceNode returns the node feeding p via its incoming edge
func (m *Module) SourceNode(p *Port) *Node {
	src := m.SourcePort(p)
	if src == nil {
		return nil
	}
	return m.Nodes[src.NodeID]
}

// reconcile applies the edge typing rules: nil port types are filled
// from the other end, "any" adopts the concrete type, integer/real
// crossings warn, anything else is a fatal mismatch.
func (m *Module) reconcile(from, to *Port) error {
	if to.Type == nil {
		to.Type = from.Type
		return nil
	}
	if from.Type == nil {
		from.Type = to.Type
		return nil
	}
	ft, tt := from.Type, to.Type
	if ft.Kind == types.Any {
		from.Type = tt
		return nil
	}
	if tt.Kind == types.Any {
		to.Type = ft
		return nil
	}
	mismatch := func() error {
		return errors.Newf(errors.TypeMismatch, ft.Location,
			"type mismatch: %s and %s", ft, tt).WithSecondLocation(tt.Location)
	}
	if ft.Kind != tt.Kind {
		if ft.IsNumeric() && tt.IsNumeric() {
			m.Warnings.Add(
				fmt.Sprintf("%s and %s combination: possible loss of data", ft, tt),
				ft.Location)
			return nil
		}
		return mismatch()
	}
	switch ft.Kind {
	case types.Array, types.Stream:
		if ft.Element.ContainsAny() && !tt.Element.ContainsAny() {
			from.Type = tt
			return nil
		}
		if tt.Element.ContainsAny() && !ft.Element.ContainsAny() {
			to.Type = ft
			return nil
		}
		if !types.Equal(ft, tt) {
			return mismatch()
		}
	case types.Record:
		if !types.Equal(ft, tt) {
			return mismatch()
		}
	}
	return nil
}

// Connect creates an edge from an output port to an input port,
// enforcing the one-incoming invariant and reconciling port types.
// The edge is registered in the global list, both indices and the
// owning region.
func (m *Module) Connect(from, to *Port, region *Node) (*Edge, error) {
	if existing := m.edgeTo[to.ID]; existing != nil {
		return nil, perrors.Errorf("there is already an edge pointing at %s", to)
	}
	if err := m.reconcile(from, to); err != nil {
		return nil, err
	}
	e := &Edge{From: from, To: to, Region: region}
	m.edgesFrom[from.ID] = append(m.edgesFrom[from.ID], e)
	m.edgeTo[to.ID] = e
	m.Edges = append(m.Edges, e)
	if region != nil {
		region.Edges = append(region.Edges, e)
	}
	return e, nil
}

// ReattachOrigin replaces the edge's source endpoint in all indices
func (m *Module) ReattachOrigin(e *Edge, newFrom *Port) {
	m.edgesFrom[e.From.ID] = removeEdge(m.edgesFrom[e.From.ID], e)
	e.From = newFrom
	m.edgesFrom[newFrom.ID] = append(m.edgesFrom[newFrom.ID], e)
}

// ReattachTarget replaces the edge's target endpoint; fails if the
// new target already has an incoming edge.
func (m *Module) ReattachTarget(e *Edge, newTo *Port) error {
	if existing := m.edgeTo[newTo.ID]; existing != nil && existing != e {
		return perrors.Errorf("there is already an edge pointing at %s", newTo)
	}
	delete(m.edgeTo, e.To.ID)
	e.To = newTo
	m.edgeTo[newTo.ID] = e
	return nil
}

// DeleteEdge removes the edge from the global list, both indices and
// its owning region.
func (m *Module) DeleteEdge(e *Edge) {
	for i, candidate := range m.Edges {
		if candidate == e {
			m.Edges = append(m.Edges[:i], m.Edges[i+1:]...)
			break
		}
	}
	m.edgesFrom[e.From.ID] = removeEdge(m.edgesFrom[e.From.ID], e)
	if m.edgeTo[e.To.ID] == e {
		delete(m.edgeTo, e.To.ID)
	}
	if e.Region != nil {
		e.Region.Edges = removeEdge(e.Region.Edges, e)
	}
}

func removeEdge(edges []*Edge, e *Edge) []*Edge {
	for i, candidate := range edges {
		if candidate == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

// DeleteAttachedEdges removes every edge terminating on the node's
// input ports or leaving its output ports.
func (m *Module) DeleteAttachedEdges(n *Node) {
	for _, p := range n.InPorts {
		if e := m.edgeTo[p.ID]; e != nil {
			m.DeleteEdge(e)
		}
	}
	for _, p := range n.OutPorts {
		for _, e := range append([]*Edge{}, m.edgesFrom[p.ID]...) {
			m.DeleteEdge(e)
		}
	}
}

// DeleteNode deletes a node from the module, cascading over its
// children, named sub-regions and branches. When deleteAttachedEdges
// is set, edges touching the node's own ports are removed as well.
// Freed ids return to the free list.
func (m *Module) DeleteNode(n *Node, deleteAttachedEdges bool) {
	for _, child := range append([]*Node{}, n.Nodes...) {
		m.deleteOne(child, true, false)
	}
	for _, region := range n.SubRegions() {
		for _, child := range append([]*Node{}, region.Node.Nodes...) {
			m.deleteOne(child, true, false)
		}
		m.deleteOne(region.Node, false, false)
	}
	for _, branch := range n.Branches {
		for _, child := range append([]*Node{}, branch.Nodes...) {
			m.deleteOne(child, true, false)
		}
		m.deleteOne(branch, false, false)
	}
	m.deleteOne(n, deleteAttachedEdges, !n.IsCluster())
}

func (m *Module) deleteOne(n *Node, deleteAttachedEdges, deleteFromParent bool) {
	if _, registered := m.Nodes[n.ID]; !registered {
		return
	}
	// nested compounds cascade through the public entry point
	if len(n.Nodes) > 0 || len(n.Branches) > 0 || len(n.SubRegions()) > 0 {
		for _, child := range append([]*Node{}, n.Nodes...) {
			m.deleteOne(child, true, false)
		}
		for _, region := range n.SubRegions() {
			m.deleteOne(region.Node, false, false)
		}
		for _, branch := range n.Branches {
			m.deleteOne(branch, false, false)
		}
	}
	if deleteFromParent {
		if parent := m.ParentOf(n); parent != nil {
			parent.RemoveChild(n)
		}
	}
	if deleteAttachedEdges {
		m.DeleteAttachedEdges(n)
	}
	for _, e := range append([]*Edge{}, n.Edges...) {
		m.DeleteEdge(e)
	}
	m.freeIDs = append(m.freeIDs, n.ID)
	delete(m.Nodes, n.ID)
}

// ParentOf finds the node whose flat children contain n, nil if n is
// a top-level function or a cluster attached by name.
func (m *Module) ParentOf(n *Node) *Node {
	for _, candidate := range m.Nodes {
		if candidate.Contains(n) {
			return candidate
		}
	}
	return nil
}

// checkPortsCompatible verifies that two nodes expose matching port
// configurations (counts and per-pair type kinds) before a swap.
func (m *Module) checkPortsCompatible(src, dst *Node) error {
	if len(src.InPorts) != len(dst.InPorts) {
		return errors.Newf(errors.InternalError, dst.Location,
			"input port configuration mismatch when swapping %s with %s", src.ID, dst.ID)
	}
	if len(src.OutPorts) != len(dst.OutPorts) {
		return errors.Newf(errors.InternalError, dst.Location,
			"output port configuration mismatch when swapping %s with %s", src.ID, dst.ID)
	}
	for i := range src.InPorts {
		if src.InPorts[i].Type != nil && dst.InPorts[i].Type != nil &&
			src.InPorts[i].Type.Kind != dst.InPorts[i].Type.Kind {
			return errors.Newf(errors.InternalError, dst.Location,
				"input port %d type mismatch when swapping %s with %s", i, src.ID, dst.ID)
		}
	}
	for i := range src.OutPorts {
		if src.OutPorts[i].Type != nil && dst.OutPorts[i].Type != nil &&
			src.OutPorts[i].Type.Kind != dst.OutPorts[i].Type.Kind {
			return errors.Newf(errors.InternalError, dst.Location,
				"output port %d type mismatch when swapping %s with %s", i, src.ID, dst.ID)
		}
	}
	return nil
}

// SwapComplex replaces dst with the interior of src. src must be a
// cluster inside dst (a selected branch, a let body). Boundary edges
// are re-origined around both nodes, src's interior migrates to
// dst's parent, then both shells are deleted.
func (m *Module) SwapComplex(src, dst *Node) error {
	if err := m.checkPortsCompatible(src, dst); err != nil {
		return err
	}
	parent := m.ParentOf(dst)

	// reconnect the inputs: every edge leaving a boundary input port
	// inside src starts instead at the port feeding dst's matching
	// input
	for i := range dst.InPorts {
		feeding := m.EdgeTo(dst.InPorts[i])
		for _, e := range append([]*Edge{}, m.edgesFrom[src.InPorts[i].ID]...) {
			if feeding != nil {
				m.ReattachOrigin(e, feeding.From)
			}
		}
		if feeding != nil {
			m.DeleteEdge(feeding)
		}
	}

	// reconnect the outputs: every edge leaving dst's output starts
	// instead at the interior producer feeding src's matching output
	for i := range dst.OutPorts {
		producer := m.EdgeTo(src.OutPorts[i])
		for _, e := range append([]*Edge{}, m.edgesFrom[dst.OutPorts[i].ID]...) {
			if producer != nil {
				m.ReattachOrigin(e, producer.From)
			}
		}
		if producer != nil {
			m.DeleteEdge(producer)
		}
	}

	for _, e := range src.Edges {
		e.Region = parent
	}
	if parent != nil {
		parent.Edges = append(parent.Edges, src.Edges...)
		parent.Nodes = append(parent.Nodes, src.Nodes...)
	}
	src.Edges = nil
	src.Nodes = nil

	m.DeleteNode(dst, false)
	m.DeleteNode(src, false)
	return nil
}

// TraceBack finds all chains (nodes and edges) leading to the node's
// inputs. Returns the involved nodes, the edges internal to the
// traced region and the edges crossing into it from the outside.
func (m *Module) TraceBack(n *Node) ([]*Node, []*Edge, []*Edge) {
	nodes := []*Node{n}
	var internal, input []*Edge
	for _, p := range n.InPorts {
		e := m.edgeTo[p.ID]
		if e == nil {
			continue
		}
		if !e.From.In {
			src := m.Nodes[e.From.NodeID]
			subNodes, subInternal, subInput := m.TraceBack(src)
			nodes = append(nodes, subNodes...)
			internal = append(internal, subInternal...)
			input = append(input, subInput...)
			internal = append(internal, e)
		} else {
			input = append(input, e)
		}
	}
	return nodes, internal, input
}

// PragmaGroupOf returns all nodes sharing the node's pragma group
func (m *Module) PragmaGroupOf(n *Node) []*Node {
	if n.PragmaGroup == 0 {
		return []*Node{n}
	}
	var group []*Node
	for _, candidate := range m.Nodes {
		if candidate.PragmaGroup == n.PragmaGroup {
			group = append(group, candidate)
		}
	}
	sortNodes(group)
	return group
}
