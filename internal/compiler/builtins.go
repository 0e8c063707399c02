// internal/compiler/builtins.go
package compiler

import (
	"sisalc/internal/ir"
	"sisalc/internal/types"
)

// Builtin describes a function whose signature is predefined by the
// compiler rather than user-declared.
type Builtin struct {
	Name    string
	Params  []ir.PortSpec
	Results []ir.PortSpec

	// SetupResult refines the call's result types once the argument
	// types are known (addh and friends mirror their array input)
	SetupResult func(call *ir.Node)
}

func mirrorFirstArgument(call *ir.Node) {
	if len(call.InPorts) > 0 && call.InPorts[0].Type != nil {
		call.OutPorts[0].Type = call.InPorts[0].Type.Copy(call.OutPorts[0].Location)
	}
}

// newBuiltins returns the built-in descriptor table. Fresh type
// instances per table keep reconciliation from leaking adopted types
// between compilations.
func newBuiltins() map[string]*Builtin {
	anyArray := func() *types.Type { return types.NewArray(types.NewAny(""), "") }
	table := []*Builtin{
		{
			Name:    "size",
			Params:  []ir.PortSpec{{Label: "array", Type: anyArray()}},
			Results: []ir.PortSpec{{Type: types.NewInteger("")}},
		},
		{
			Name:    "cos",
			Params:  []ir.PortSpec{{Label: "x", Type: types.NewReal("")}},
			Results: []ir.PortSpec{{Type: types.NewReal("")}},
		},
		{
			Name: "addh",
			Params: []ir.PortSpec{
				{Label: "a", Type: anyArray()},
				{Label: "b", Type: types.NewAny("")},
			},
			Results:     []ir.PortSpec{{Type: anyArray()}},
			SetupResult: mirrorFirstArgument,
		},
		{
			Name: "addl",
			Params: []ir.PortSpec{
				{Label: "a", Type: anyArray()},
				{Label: "b", Type: types.NewAny("")},
			},
			Results:     []ir.PortSpec{{Type: anyArray()}},
			SetupResult: mirrorFirstArgument,
		},
		{
			Name:        "remh",
			Params:      []ir.PortSpec{{Label: "a", Type: anyArray()}},
			Results:     []ir.PortSpec{{Type: anyArray()}},
			SetupResult: mirrorFirstArgument,
		},
		{
			Name:        "reml",
			Params:      []ir.PortSpec{{Label: "a", Type: anyArray()}},
			Results:     []ir.PortSpec{{Type: anyArray()}},
			SetupResult: mirrorFirstArgument,
		},
	}
	index := make(map[string]*Builtin, len(table))
	for _, b := range table {
		index[b.Name] = b
	}
	return index
}
