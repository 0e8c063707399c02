// internal/types/types.go
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Kind tags the closed family of source-language types
type Kind int

const (
	Integer Kind = iota
	Real
	Boolean
	Any
	Array
	Stream
	Record
)

// Field is a single named record field. Order is preserved for
// emission; equality over records ignores it.
type Field struct {
	Name string
	Type *Type
}

// Type describes a source-language type. Scalars carry only the kind,
// sequences carry an element type, records an ordered field list.
// Named aliases keep TypeName set; equality always compares the
// underlying shape.
type Type struct {
	Kind       Kind
	Element    *Type
	Fields     []Field
	Location   string
	TypeName   string
	CustomType bool
}

func NewInteger(location string) *Type { return &Type{Kind: Integer, Location: location} }
func NewReal(location string) *Type    { return &Type{Kind: Real, Location: location} }
func NewBoolean(location string) *Type { return &Type{Kind: Boolean, Location: location} }
func NewAny(location string) *Type     { return &Type{Kind: Any, Location: location} }

func NewArray(element *Type, location string) *Type {
	return &Type{Kind: Array, Element: element, Location: location}
}

func NewStream(element *Type, location string) *Type {
	return &Type{Kind: Stream, Element: element, Location: location}
}

func NewRecord(fields []Field, location string) *Type {
	return &Type{Kind: Record, Fields: fields, Location: location}
}

// Named wraps a type with an alias name. The alias is used for
// display and code generation; compatibility still goes through the
// underlying type.
func Named(name string, underlying *Type) *Type {
	copied := underlying.Copy(underlying.Location)
	copied.TypeName = name
	copied.CustomType = true
	return copied
}

func (t *Type) IsArray() bool  { return t != nil && t.Kind == Array }
func (t *Type) IsStream() bool { return t != nil && t.Kind == Stream }

// IsIterable reports whether the type can drive a Scatter
func (t *Type) IsIterable() bool {
	return t != nil && (t.Kind == Array || t.Kind == Stream)
}

func (t *Type) IsNumeric() bool {
	return t != nil && (t.Kind == Integer || t.Kind == Real)
}

// ElementType returns the element of an array or stream, nil otherwise
func (t *Type) ElementType() *Type {
	if t == nil || !t.IsIterable() {
		return nil
	}
	return t.Element
}

// Depth counts the nesting of array types
func (t *Type) Depth() int {
	if !t.IsArray() {
		return 0
	}
	return 1 + t.Element.Depth()
}

// BottomElementType strips nested arrays down to the scalar element
func (t *Type) BottomElementType() *Type {
	if !t.IsArray() {
		return t
	}
	return t.Element.BottomElementType()
}

// Field returns a record field type by name, nil if absent
func (t *Type) Field(name string) *Type {
	if t == nil || t.Kind != Record {
		return nil
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// Copy returns a deep copy carrying the given location
func (t *Type) Copy(location string) *Type {
	if t == nil {
		return nil
	}
	copied := &Type{
		Kind:       t.Kind,
		Location:   location,
		TypeName:   t.TypeName,
		CustomType: t.CustomType,
	}
	if t.Element != nil {
		copied.Element = t.Element.Copy(t.Element.Location)
	}
	for _, f := range t.Fields {
		copied.Fields = append(copied.Fields, Field{Name: f.Name, Type: f.Type.Copy(f.Type.Location)})
	}
	return copied
}

// Equal compares two types structurally. Named aliases are
// transparent; record fields compare as a set of name/type pairs.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Array, Stream:
		return Equal(a.Element, b.Element)
	case Record:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for _, f := range a.Fields {
			other := b.Field(f.Name)
			if other == nil || !Equal(f.Type, other) {
				return false
			}
		}
		return true
	}
	return true
}

// ContainsAny reports whether the type has an "any" anywhere inside
func (t *Type) ContainsAny() bool {
	if t == nil {
		return false
	}
	if t.Kind == Any {
		return true
	}
	if t.Element != nil {
		return t.Element.ContainsAny()
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<none>"
	}
	if t.CustomType && t.TypeName != "" {
		return t.TypeName
	}
	switch t.Kind {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Boolean:
		return "boolean"
	case Any:
		return "any"
	case Array:
		return "array of " + t.Element.String()
	case Stream:
		return "stream of " + t.Element.String()
	case Record:
		names := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			names = append(names, f.Name+": "+f.Type.String())
		}
		return "record[" + strings.Join(names, ", ") + "]"
	}
	return "<unknown>"
}

// Signature is a canonical, order-independent rendering used for
// structural deduplication of record shapes.
func (t *Type) Signature() string {
	if t == nil {
		return "<none>"
	}
	switch t.Kind {
	case Array, Stream:
		return fmt.Sprintf("%s<%s>", t.kindName(), t.Element.Signature())
	case Record:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, f.Name+":"+f.Type.Signature())
		}
		sort.Strings(parts)
		return "record{" + strings.Join(parts, ",") + "}"
	}
	return t.kindName()
}

func (t *Type) kindName() string {
	switch t.Kind {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Boolean:
		return "boolean"
	case Any:
		return "any"
	case Array:
		return "array"
	case Stream:
		return "stream"
	case Record:
		return "record"
	}
	return "unknown"
}
