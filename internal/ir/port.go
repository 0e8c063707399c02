// internal/ir/port.go
package ir

import (
	"fmt"

	"github.com/google/uuid"

	"sisalc/internal/types"
)

// Port is a typed endpoint on a node. Ports carry the id of their
// owning node rather than a pointer; navigation to neighbours goes
// through the Module's edge indices.
type Port struct {
	ID       uuid.UUID
	NodeID   string
	Index    int
	Label    string
	Type     *types.Type
	In       bool
	Location string
}

func newPort(nodeID string, t *types.Type, index int, label string, in bool, location string) *Port {
	return &Port{
		ID:       uuid.New(),
		NodeID:   nodeID,
		Index:    index,
		Label:    label,
		Type:     t,
		In:       in,
		Location: location,
	}
}

// CopyPort clones a port for a new owner. The clone gets a fresh
// global id; index is reassigned by the caller.
func CopyPort(p *Port, nodeID string) *Port {
	copied := newPort(nodeID, nil, p.Index, p.Label, p.In, p.Location)
	if p.Type != nil {
		copied.Type = p.Type.Copy(p.Type.Location)
	}
	return copied
}

func (p *Port) String() string {
	direction := "out"
	if p.In {
		direction = "in"
	}
	return fmt.Sprintf("Port<%s %s%d %q %s>", p.NodeID, direction, p.Index, p.Label, p.Type)
}
