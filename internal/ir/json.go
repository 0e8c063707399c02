// internal/ir/json.go
//
// The JSON wire form of a module: {functions: [...], definitions:
// [...]}. Keys are camelCase on the wire; per-node payload fields are
// emitted only when meaningful for the node kind.
package ir

import (
	"encoding/json"

	perrors "github.com/pkg/errors"

	"sisalc/internal/types"
)

type wireEndpoint struct {
	NodeID string
	Index  int
}

func (e wireEndpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.NodeID, e.Index})
}

func (e *wireEndpoint) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return perrors.Errorf("edge endpoint must be a [nodeId, portIndex] pair, got %v", raw)
	}
	id, ok := raw[0].(string)
	if !ok {
		return perrors.Errorf("edge endpoint node id must be a string, got %v", raw[0])
	}
	index, ok := raw[1].(float64)
	if !ok {
		return perrors.Errorf("edge endpoint port index must be a number, got %v", raw[1])
	}
	e.NodeID = id
	e.Index = int(index)
	return nil
}

type wireEdge struct {
	From wireEndpoint `json:"from"`
	To   wireEndpoint `json:"to"`
}

type wirePort struct {
	NodeID   string      `json:"nodeId"`
	Index    int         `json:"index"`
	Type     *types.Wire `json:"type"`
	Label    string      `json:"label,omitempty"`
	Location string      `json:"location,omitempty"`
}

type wireNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location string      `json:"location,omitempty"`
	InPorts  []*wirePort `json:"inPorts,omitempty"`
	OutPorts []*wirePort `json:"outPorts,omitempty"`

	Nodes    []*wireNode `json:"nodes,omitempty"`
	Edges    []*wireEdge `json:"edges,omitempty"`
	Branches []*wireNode `json:"branches,omitempty"`

	Init      *wireNode `json:"init,omitempty"`
	Body      *wireNode `json:"body,omitempty"`
	Condition *wireNode `json:"condition,omitempty"`
	RangeGen  *wireNode `json:"rangeGen,omitempty"`
	Returns   *wireNode `json:"returns,omitempty"`

	Value           *interface{} `json:"value,omitempty"`
	Operator        string       `json:"operator,omitempty"`
	Callee          string       `json:"callee,omitempty"`
	FunctionName    string       `json:"functionName,omitempty"`
	Field           string       `json:"field,omitempty"`
	Pragmas         []Pragma     `json:"pragmas,omitempty"`
	PragmaGroup     int          `json:"pragmaGroup,omitempty"`
	PortToNameIndex []string     `json:"portToNameIndex,omitempty"`
}

type wireDefinition struct {
	Name string      `json:"name"`
	Type *types.Wire `json:"type"`
}

type wireModule struct {
	Functions   []*wireNode       `json:"functions"`
	Definitions []*wireDefinition `json:"definitions"`
}

func portToWire(p *Port) *wirePort {
	return &wirePort{
		NodeID:   p.NodeID,
		Index:    p.Index,
		Type:     p.Type.Wire(),
		Label:    p.Label,
		Location: p.Location,
	}
}

func edgeToWire(e *Edge) *wireEdge {
	return &wireEdge{
		From: wireEndpoint{NodeID: e.From.NodeID, Index: e.From.Index},
		To:   wireEndpoint{NodeID: e.To.NodeID, Index: e.To.Index},
	}
}

func nodeToWire(n *Node) *wireNode {
	w := &wireNode{
		ID:              n.ID,
		Name:            n.Name,
		Location:        n.Location,
		Operator:        n.Operator,
		Callee:          n.Callee,
		FunctionName:    n.FunctionName,
		Field:           n.Field,
		Pragmas:         n.Pragmas,
		PragmaGroup:     n.PragmaGroup,
		PortToNameIndex: n.PortToNameIndex,
	}
	if n.Name == KindLiteral {
		value := n.Value
		w.Value = &value
	}
	for _, p := range n.InPorts {
		w.InPorts = append(w.InPorts, portToWire(p))
	}
	for _, p := range n.OutPorts {
		w.OutPorts = append(w.OutPorts, portToWire(p))
	}
	for _, child := range n.Nodes {
		w.Nodes = append(w.Nodes, nodeToWire(child))
	}
	for _, e := range n.Edges {
		w.Edges = append(w.Edges, edgeToWire(e))
	}
	for _, branch := range n.Branches {
		w.Branches = append(w.Branches, nodeToWire(branch))
	}
	if n.Init != nil {
		w.Init = nodeToWire(n.Init)
	}
	if n.Body != nil {
		w.Body = nodeToWire(n.Body)
	}
	if n.Condition != nil {
		w.Condition = nodeToWire(n.Condition)
	}
	if n.RangeGen != nil {
		w.RangeGen = nodeToWire(n.RangeGen)
	}
	if n.Returns != nil {
		w.Returns = nodeToWire(n.Returns)
	}
	return w
}

// MarshalJSON serializes the module to its wire form
func (m *Module) MarshalJSON() ([]byte, error) {
	w := &wireModule{
		Functions:   []*wireNode{},
		Definitions: []*wireDefinition{},
	}
	for _, fn := range m.Functions {
		w.Functions = append(w.Functions, nodeToWire(fn))
	}
	for _, def := range m.Definitions {
		w.Definitions = append(w.Definitions, &wireDefinition{Name: def.Name, Type: def.Type.Wire()})
	}
	return json.MarshalIndent(w, "", "  ")
}

// LoadModule deserializes a module from its wire form
func LoadModule(data []byte) (*Module, error) {
	var w wireModule
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, perrors.Wrap(err, "malformed module JSON")
	}
	m := NewModule()
	for _, fn := range w.Functions {
		node, err := m.nodeFromWire(fn)
		if err != nil {
			return nil, err
		}
		m.AddFunction(node)
	}
	// edges can only be resolved once every node and port exists
	for _, fn := range w.Functions {
		if err := m.edgesFromWire(fn); err != nil {
			return nil, err
		}
	}
	for _, def := range w.Definitions {
		t, err := types.FromWire(def.Type)
		if err != nil {
			return nil, err
		}
		m.AddDefinition(def.Name, t)
	}
	return m, nil
}

func (m *Module) nodeFromWire(w *wireNode) (*Node, error) {
	n := &Node{
		ID:              w.ID,
		Name:            w.Name,
		Location:        w.Location,
		Operator:        w.Operator,
		Callee:          w.Callee,
		FunctionName:    w.FunctionName,
		Field:           w.Field,
		Pragmas:         w.Pragmas,
		PragmaGroup:     w.PragmaGroup,
		PortToNameIndex: w.PortToNameIndex,
	}
	if w.Value != nil {
		n.Value = normalizeLiteral(*w.Value)
	}
	m.RegisterNode(n)
	for _, p := range w.InPorts {
		t, err := types.FromWire(p.Type)
		if err != nil {
			return nil, err
		}
		port := newPort(n.ID, t, len(n.InPorts), p.Label, true, p.Location)
		n.InPorts = append(n.InPorts, port)
	}
	for _, p := range w.OutPorts {
		t, err := types.FromWire(p.Type)
		if err != nil {
			return nil, err
		}
		port := newPort(n.ID, t, len(n.OutPorts), p.Label, false, p.Location)
		n.OutPorts = append(n.OutPorts, port)
	}
	for _, child := range w.Nodes {
		childNode, err := m.nodeFromWire(child)
		if err != nil {
			return nil, err
		}
		n.Nodes = append(n.Nodes, childNode)
	}
	for _, branch := range w.Branches {
		branchNode, err := m.nodeFromWire(branch)
		if err != nil {
			return nil, err
		}
		n.Branches = append(n.Branches, branchNode)
	}
	var err error
	if w.Init != nil {
		if n.Init, err = m.nodeFromWire(w.Init); err != nil {
			return nil, err
		}
	}
	if w.Body != nil {
		if n.Body, err = m.nodeFromWire(w.Body); err != nil {
			return nil, err
		}
	}
	if w.Condition != nil {
		if n.Condition, err = m.nodeFromWire(w.Condition); err != nil {
			return nil, err
		}
	}
	if w.RangeGen != nil {
		if n.RangeGen, err = m.nodeFromWire(w.RangeGen); err != nil {
			return nil, err
		}
	}
	if w.Returns != nil {
		if n.Returns, err = m.nodeFromWire(w.Returns); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// normalizeLiteral keeps integral literal values as int64 after a
// round-trip through JSON numbers
func normalizeLiteral(value interface{}) interface{} {
	if f, ok := value.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return value
}

func (m *Module) edgesFromWire(w *wireNode) error {
	region := m.Nodes[w.ID]
	for _, we := range w.Edges {
		src := m.Nodes[we.From.NodeID]
		dst := m.Nodes[we.To.NodeID]
		if src == nil || dst == nil {
			return perrors.Errorf("edge references unknown node: %v -> %v", we.From.NodeID, we.To.NodeID)
		}
		// an edge starting at the enclosing region leaves one of its
		// boundary input ports; an edge ending at the region arrives
		// at a boundary output port
		var from, to *Port
		if src.Contains(dst) {
			from = portAt(src.InPorts, we.From.Index)
		} else {
			from = portAt(src.OutPorts, we.From.Index)
		}
		if dst.Contains(src) {
			to = portAt(dst.OutPorts, we.To.Index)
		} else {
			to = portAt(dst.InPorts, we.To.Index)
		}
		if from == nil || to == nil {
			return perrors.Errorf("edge references missing port: %v:%d -> %v:%d",
				we.From.NodeID, we.From.Index, we.To.NodeID, we.To.Index)
		}
		if _, err := m.Connect(from, to, region); err != nil {
			return err
		}
	}
	for _, child := range w.Nodes {
		if err := m.edgesFromWire(child); err != nil {
			return err
		}
	}
	for _, branch := range w.Branches {
		if err := m.edgesFromWire(branch); err != nil {
			return err
		}
	}
	for _, sub := range []*wireNode{w.Init, w.Body, w.Condition, w.RangeGen, w.Returns} {
		if sub != nil {
			if err := m.edgesFromWire(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func portAt(ports []*Port, index int) *Port {
	if index < 0 || index >= len(ports) {
		return nil
	}
	return ports[index]
}
