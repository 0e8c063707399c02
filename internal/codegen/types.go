// internal/codegen/types.go
//
// Mapping from source types to emitted C++ types. Record shapes are
// structurally deduplicated: every unique sorted field-name/type map
// hashes to one synthesized struct used everywhere.
package codegen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/minio/highwayhash"

	"sisalc/internal/config"
	"sisalc/internal/types"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

type cppStruct struct {
	Name   string
	Source string
}

// TypeMapper renders source types as C++ types and owns the
// synthesized record structs and typedefs of a module.
type TypeMapper struct {
	cfg         *config.CodegenConfig
	structs     map[uint64]*cppStruct
	structOrder []uint64
}

func NewTypeMapper(cfg *config.CodegenConfig) *TypeMapper {
	return &TypeMapper{
		cfg:     cfg,
		structs: map[uint64]*cppStruct{},
	}
}

// CppType renders the C++ spelling of a type
func (tm *TypeMapper) CppType(t *types.Type) string {
	if t == nil {
		return "auto"
	}
	if t.CustomType && t.TypeName != "" {
		return t.TypeName
	}
	switch t.Kind {
	case types.Integer:
		return "integer"
	case types.Real:
		return "real"
	case types.Boolean:
		return "boolean"
	case types.Any:
		return "auto"
	case types.Array, types.Stream:
		return fmt.Sprintf("Array<%s>", tm.CppType(t.Element))
	case types.Record:
		return tm.structFor(t).Name
	}
	return "auto"
}

// InternalType is the underlying spelling, ignoring the alias; used
// for typedef declarations
func (tm *TypeMapper) InternalType(t *types.Type) string {
	if t == nil {
		return "auto"
	}
	plain := t.Copy(t.Location)
	plain.CustomType = false
	plain.TypeName = ""
	return tm.CppType(plain)
}

// structFor returns the synthesized struct of a record shape,
// creating it on first use
func (tm *TypeMapper) structFor(t *types.Type) *cppStruct {
	key := tm.shapeHash(t)
	if existing, ok := tm.structs[key]; ok {
		return existing
	}
	name := fmt.Sprintf("record%d", len(tm.structs))
	var fields []string
	for _, f := range t.Fields {
		fields = append(fields, fmt.Sprintf("%s %s;", tm.CppType(f.Type), f.Name))
	}
	source := "struct " + name + "\n{\n" + indentCpp(strings.Join(fields, "\n"), 1, tm.cfg.Indent) + "\n};"
	created := &cppStruct{Name: name, Source: source}
	tm.structs[key] = created
	tm.structOrder = append(tm.structOrder, key)
	return created
}

// shapeHash hashes the sorted field-name -> type map of a record
func (tm *TypeMapper) shapeHash(t *types.Type) uint64 {
	shape := map[string]string{}
	for _, f := range t.Fields {
		shape[f.Name] = f.Type.Signature()
	}
	keys := make([]string, 0, len(shape))
	for k := range shape {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		encoded, _ := json.Marshal(map[string]string{k: shape[k]})
		sb.Write(encoded)
	}
	hasher, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0
	}
	_, _ = hasher.Write([]byte(sb.String()))
	return hasher.Sum64()
}

// StructSources lists the synthesized structs in creation order
func (tm *TypeMapper) StructSources() []string {
	var sources []string
	for _, key := range tm.structOrder {
		sources = append(sources, tm.structs[key].Source)
	}
	return sources
}

var specSymbols = regexp.MustCompile(`[^a-zA-Z0-9]`)

func removeSpecSymbols(s string) string {
	return specSymbols.ReplaceAllString(s, "_")
}

// LoadFromJSONCode emits the C++ that reads a value of this type out
// of a jsoncpp object into a fresh variable.
func (tm *TypeMapper) LoadFromJSONCode(t *types.Type, name, srcObject string) string {
	switch t.Kind {
	case types.Integer:
		return fmt.Sprintf("%s %s = %s.asInt();", tm.CppType(t), name, srcObject)
	case types.Real:
		return fmt.Sprintf("%s %s = %s.asFloat();", tm.CppType(t), name, srcObject)
	case types.Boolean:
		return fmt.Sprintf("%s %s = %s.asBool();", tm.CppType(t), name, srcObject)
	case types.Array, types.Stream:
		index := "index_for_" + removeSpecSymbols(name)
		item := "item_for_" + removeSpecSymbols(name)
		inner := tm.LoadFromJSONCode(t.Element, item, fmt.Sprintf("%s[%s]", srcObject, index)) +
			fmt.Sprintf("\n%s.push_back(%s);", name, item)
		return fmt.Sprintf("%s %s;\nfor(unsigned int %s = 0;\n%s < %s.size();\n++%s)\n{\n",
			tm.CppType(t), name, index, index, srcObject, index) +
			indentCpp(inner, 1, tm.cfg.Indent) + "\n}"
	case types.Record:
		var parts []string
		for _, f := range t.Fields {
			parts = append(parts, tm.LoadFromJSONCode(f.Type, name+"_"+f.Name, fmt.Sprintf("%s[%q]", srcObject, f.Name)))
		}
		parts = append(parts, fmt.Sprintf("%s %s;", tm.CppType(t), name))
		for _, f := range t.Fields {
			parts = append(parts, fmt.Sprintf("%s.%s = %s_%s;", name, f.Name, name, f.Name))
		}
		return strings.Join(parts, "\n")
	}
	return fmt.Sprintf("auto %s = %s;", name, srcObject)
}

// SaveToJSONCode emits the C++ that stores a value of this type into
// a jsoncpp object.
func (tm *TypeMapper) SaveToJSONCode(t *types.Type, targetObject, object string) string {
	switch t.Kind {
	case types.Array, types.Stream:
		index := "index_for_" + removeSpecSymbols(targetObject)
		item := "item_for_" + removeSpecSymbols(targetObject)
		inner := fmt.Sprintf("Json::Value %s;\n", item) +
			tm.SaveToJSONCode(t.Element, item, fmt.Sprintf("%s[%s]", object, index)) +
			fmt.Sprintf("\n%s.append(%s);", targetObject, item)
		return fmt.Sprintf("for(unsigned int %s = 0;\n    %s < size(%s);\n    ++%s)\n{\n",
			index, index, object, index) +
			indentCpp(inner, 1, tm.cfg.Indent) + "\n}"
	case types.Record:
		var parts []string
		for _, f := range t.Fields {
			parts = append(parts, tm.SaveToJSONCode(f.Type, fmt.Sprintf("%s[%q]", targetObject, f.Name), object+"."+f.Name))
		}
		return strings.Join(parts, "\n")
	}
	return fmt.Sprintf("%s = %s;", targetObject, object)
}
