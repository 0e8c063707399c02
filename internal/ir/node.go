// internal/ir/node.go
package ir

import (
	"sisalc/internal/types"
)

// Node kind tags. The set is closed; the emitter dispatches on it.
const (
	KindFunction      = "Lambda"
	KindFunctionCall  = "FunctionCall"
	KindBuiltInCall   = "BuiltInFunctionCall"
	KindLiteral       = "Literal"
	KindBinary        = "Binary"
	KindUnary         = "Unary"
	KindIf            = "If"
	KindThen          = "Then"
	KindElseIf        = "ElseIf"
	KindElse          = "Else"
	KindCondition     = "Condition"
	KindLet           = "Let"
	KindInit          = "Init"
	KindBody          = "Body"
	KindLoop          = "LoopExpression"
	KindRangeGen      = "RangeGen"
	KindRange         = "Range"
	KindRangeNumeric  = "RangeNumeric"
	KindScatter       = "Scatter"
	KindPreCondition  = "PreCondition"
	KindPostCondition = "PostCondition"
	KindReturns       = "Returns"
	KindReduction     = "Reduction"
	KindOldValue      = "OldValue"
	KindArrayAccess   = "ArrayAccess"
	KindArrayInit     = "ArrayInit"
	KindRecordAccess  = "RecordAccess"
	KindRecordInit    = "RecordInit"
)

// Pragma is a named annotation attached to a node
type Pragma struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args,omitempty"`
}

// Node is the common spine of every IR node: identity, kind tag,
// ports, owned child nodes and region edges, plus the kind-specific
// payload fields (value, operator, callee, ...).
type Node struct {
	ID       string
	Name     string
	Location string

	InPorts  []*Port
	OutPorts []*Port

	// flat children of a complex node, and the edges owned by this
	// node's region
	Nodes []*Node
	Edges []*Edge

	// named sub-regions
	Init      *Node
	Body      *Node
	Condition *Node
	RangeGen  *Node
	Returns   *Node

	// ordered branch list of an If
	Branches []*Node

	// kind payload
	Value           interface{}
	Operator        string
	Callee          string
	FunctionName    string
	Field           string
	Pragmas         []Pragma
	PragmaGroup     int
	PortToNameIndex []string
}

// Region pairs a sub-region with its wire name
type Region struct {
	Name string
	Node *Node
}

// SubRegions lists the node's named sub-regions in a fixed order
func (n *Node) SubRegions() []Region {
	var regions []Region
	if n.Init != nil {
		regions = append(regions, Region{"init", n.Init})
	}
	if n.Body != nil {
		regions = append(regions, Region{"body", n.Body})
	}
	if n.Condition != nil {
		regions = append(regions, Region{"condition", n.Condition})
	}
	if n.RangeGen != nil {
		regions = append(regions, Region{"rangeGen", n.RangeGen})
	}
	if n.Returns != nil {
		regions = append(regions, Region{"returns", n.Returns})
	}
	return regions
}

func (n *Node) HasNodes() bool {
	return len(n.Nodes) > 0
}

// IsCluster reports whether this node is an unattached sub-node of a
// compound node (a branch or a named region) rather than a child in
// some "nodes" list.
func (n *Node) IsCluster() bool {
	switch n.Name {
	case KindThen, KindElseIf, KindElse, KindCondition, KindBody,
		KindRangeGen, KindInit, KindReturns, KindPreCondition, KindPostCondition:
		return true
	}
	return false
}

// Contains reports whether child appears in this node's flat children
func (n *Node) Contains(child *Node) bool {
	for _, c := range n.Nodes {
		if c == child {
			return true
		}
	}
	return false
}

// RemoveChild drops child from the flat children list
func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.Nodes {
		if c == child {
			n.Nodes = append(n.Nodes[:i], n.Nodes[i+1:]...)
			return
		}
	}
}

// GetPragma returns the pragma with the given name, nil if absent
func (n *Node) GetPragma(name string) *Pragma {
	for i := range n.Pragmas {
		if n.Pragmas[i].Name == name {
			return &n.Pragmas[i]
		}
	}
	return nil
}

// RemovePragma drops the pragma with the given name
func (n *Node) RemovePragma(name string) {
	for i := range n.Pragmas {
		if n.Pragmas[i].Name == name {
			n.Pragmas = append(n.Pragmas[:i], n.Pragmas[i+1:]...)
			return
		}
	}
}

// InPortByLabel finds a labeled input port, nil if absent
func (n *Node) InPortByLabel(label string) *Port {
	for _, p := range n.InPorts {
		if p.Label == label {
			return p
		}
	}
	return nil
}

// AddInPort appends a fresh input port and returns it
func (n *Node) AddInPort(t *types.Type, label string, location string) *Port {
	p := newPort(n.ID, t, len(n.InPorts), label, true, location)
	n.InPorts = append(n.InPorts, p)
	return p
}

// AddOutPort appends a fresh output port and returns it
func (n *Node) AddOutPort(t *types.Type, label string, location string) *Port {
	p := newPort(n.ID, t, len(n.OutPorts), label, false, location)
	n.OutPorts = append(n.OutPorts, p)
	return p
}

// CopyInPortsFrom replaces this node's input ports with copies of
// src's input ports. Used to propagate the enclosing scope's values
// into a nested region.
func (n *Node) CopyInPortsFrom(src *Node) {
	n.InPorts = nil
	for i, p := range src.InPorts {
		copied := CopyPort(p, n.ID)
		copied.Index = i
		n.InPorts = append(n.InPorts, copied)
	}
}

// CopyOutPortsFrom replaces this node's output ports with copies of
// src's output ports
func (n *Node) CopyOutPortsFrom(src *Node) {
	n.OutPorts = nil
	for i, p := range src.OutPorts {
		copied := CopyPort(p, n.ID)
		copied.Index = i
		n.OutPorts = append(n.OutPorts, copied)
	}
}

// CopyOutPortsFromTargets mirrors the caller's expected sink ports as
// this node's outputs
func (n *Node) CopyOutPortsFromTargets(targets []*Port) {
	n.OutPorts = nil
	for i, p := range targets {
		copied := CopyPort(p, n.ID)
		copied.Index = i
		copied.In = false
		n.OutPorts = append(n.OutPorts, copied)
	}
}

// CopyResultsPorts prepends copies of init's output ports to this
// node's input ports, de-duplicated by label. Used to transfer the
// results of an Init or RangeGen into a Body, Condition or Returns.
func (n *Node) CopyResultsPorts(init *Node) {
	var fresh []*Port
	for _, p := range init.OutPorts {
		if p.Label != "" && n.InPortByLabel(p.Label) != nil {
			continue
		}
		copied := CopyPort(p, n.ID)
		copied.In = true
		fresh = append(fresh, copied)
	}
	n.InPorts = append(fresh, n.InPorts...)
	for i, p := range n.InPorts {
		p.Index = i
	}
}
