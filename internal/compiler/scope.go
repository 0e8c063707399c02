// internal/compiler/scope.go
package compiler

import (
	"sisalc/internal/errors"
	"sisalc/internal/ir"
)

// Scope is a name-resolution environment bound to a region-owning
// node. Names resolve first against the node's labeled input ports,
// then against values bound while building the region (Init and loop
// Body definitions). Free variables of nested regions are made
// visible by copying the enclosing scope's ports, so a scope never
// needs a parent chain.
type Scope struct {
	node   *ir.Node
	values map[string]*ir.Port
}

func NewScope(node *ir.Node) *Scope {
	return &Scope{node: node, values: map[string]*ir.Port{}}
}

func (s *Scope) Node() *ir.Node {
	return s.node
}

// Resolve returns the port a name refers to, nil when undefined
func (s *Scope) Resolve(name string) *ir.Port {
	for _, p := range s.node.InPorts {
		if p.Label == name {
			return p
		}
	}
	if p, ok := s.values[name]; ok {
		return p
	}
	return nil
}

// Bind makes a newly defined value visible under name. With check
// set, shadowing an existing name in the same scope is an error.
func (s *Scope) Bind(name string, port *ir.Port, check bool) error {
	if check && s.Resolve(name) != nil {
		return errors.Newf(errors.DuplicateDefinition, port.Location,
			"%q is already defined in this scope", name)
	}
	s.values[name] = port
	return nil
}
