// internal/types/wire.go
package types

import (
	"sort"

	"sisalc/internal/errors"
)

// Wire is the JSON form of a type. Scalars serialize as {name},
// sequences as {element, multiType}, records as {name: "record",
// fields}. Named aliases add typeName and customType.
type Wire struct {
	Name       string           `json:"name,omitempty"`
	Element    *Wire            `json:"element,omitempty"`
	MultiType  string           `json:"multiType,omitempty"`
	Fields     map[string]*Wire `json:"fields,omitempty"`
	Location   string           `json:"location,omitempty"`
	TypeName   string           `json:"typeName,omitempty"`
	CustomType bool             `json:"customType,omitempty"`
}

// Wire converts a type to its JSON form
func (t *Type) Wire() *Wire {
	if t == nil {
		return nil
	}
	w := &Wire{
		Location:   t.Location,
		TypeName:   t.TypeName,
		CustomType: t.CustomType,
	}
	switch t.Kind {
	case Array:
		w.Element = t.Element.Wire()
		w.MultiType = "array"
	case Stream:
		w.Element = t.Element.Wire()
		w.MultiType = "stream"
	case Record:
		w.Name = "record"
		w.Fields = make(map[string]*Wire, len(t.Fields))
		for _, f := range t.Fields {
			w.Fields[f.Name] = f.Type.Wire()
		}
	default:
		w.Name = t.kindName()
	}
	return w
}

// FromWire converts the JSON form back into a type. Record field
// order is not carried on the wire; fields come back name-sorted.
func FromWire(w *Wire) (*Type, error) {
	if w == nil {
		return nil, nil
	}
	t := &Type{
		Location:   w.Location,
		TypeName:   w.TypeName,
		CustomType: w.CustomType,
	}
	if w.Element != nil {
		element, err := FromWire(w.Element)
		if err != nil {
			return nil, err
		}
		t.Element = element
		if w.MultiType == "stream" {
			t.Kind = Stream
		} else {
			t.Kind = Array
		}
		return t, nil
	}
	switch w.Name {
	case "integer":
		t.Kind = Integer
	case "real":
		t.Kind = Real
	case "boolean":
		t.Kind = Boolean
	case "any":
		t.Kind = Any
	case "record":
		t.Kind = Record
		names := make([]string, 0, len(w.Fields))
		for name := range w.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fieldType, err := FromWire(w.Fields[name])
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, Field{Name: name, Type: fieldType})
		}
	default:
		return nil, errors.Newf(errors.InternalError, w.Location,
			"type %q is not supported", w.Name)
	}
	return t, nil
}
