// internal/codegen/cpp.go
//
// The block/statement model of the emitted C++: variable declarations
// grouped by type, ordered statements, optional head and tail
// segments for loop pre/post actions.
package codegen

import (
	"strings"

	"sisalc/internal/config"
)

// moduleHeader is the fixed prelude: IO and JSON includes, the type
// aliases, the input-check macro and the array helper templates.
const moduleHeader = `#include <stdio.h>
#include <omp.h>
#include <vector>
#include <deque>
#include <iostream>
#include <fstream>
#include <string>
#include <json/json.h> // uses jsoncpp library
$extra_headers
#define integer int
#define real float
#define boolean bool
#define Array std::vector

#define CHECK_INPUT_ARGUMENT(arg) if(root[arg].isNull())\
  {\
    Json::Value error;\
    std::string message = arg;\
    message.append(" not found in input data.");\
    error["errors"].append(message);\
    error["code"].append("null");\
    std::cout << error << "\n";\
    std::cout << std::endl;\
    return 1;\
  }\

template <typename I, typename T>
inline Array<I> addh (const Array<I> A, T item)
{
  Array<I> result = A;
  result.push_back(item);
  return result;
}

template <typename I>
inline Array<I> remh (const Array<I> A)
{
  Array<I> result = A;
  result.pop_back();
  return result;
}

template <typename I>
inline Array<I> reml (const Array<I> A)
{
  Array<I> result = A;
  result.erase(result.begin());
  return result;
}

template <typename I, typename T>
inline Array<I> addl (const Array<I> A, T item)
{
  Array<I> result = A;
  result.insert(result.begin(), item);
  return result;
}

template <typename I>
inline unsigned int size (Array<I> A)
{
  return A.size();
}

//------------------------------------------------------------
`

// indentCpp indents every line of src by level copies of indent;
// the first line included.
func indentCpp(src string, level int, indent string) string {
	prefix := strings.Repeat(indent, level)
	return prefix + strings.ReplaceAll(src, "\n", "\n"+prefix)
}

// Variable holds one emitted C++ variable
type Variable struct {
	Name  string
	Type  string
	Value string // optional initializer
}

func (v *Variable) String() string {
	return v.Name
}

func (v *Variable) initCode() string {
	if v.Value != "" {
		return v.Name + " = " + v.Value
	}
	return v.Name
}

func (v *Variable) definitionStr() string {
	return v.Type + " " + v.Name
}

// Block is a mutable buffer of declarations and statements. Head
// statements always precede the regular ones, tail statements always
// follow; nested blocks render through their String form.
type Block struct {
	cfg *config.CodegenConfig

	variables []*Variable
	typeOrder []string
	byType    map[string][]*Variable

	headStatements []string
	statements     []string
	tailStatements []string

	addCurlyBrackets bool
	indentContents   bool
}

func NewBlock(cfg *config.CodegenConfig, curly, indent bool) *Block {
	return &Block{
		cfg:              cfg,
		byType:           map[string][]*Variable{},
		addCurlyBrackets: curly,
		indentContents:   indent,
	}
}

func (b *Block) AddVariable(v *Variable) {
	b.variables = append(b.variables, v)
	if _, ok := b.byType[v.Type]; !ok {
		b.typeOrder = append(b.typeOrder, v.Type)
	}
	b.byType[v.Type] = append(b.byType[v.Type], v)
}

func (b *Block) AddCode(code string) {
	b.statements = append(b.statements, code)
}

func (b *Block) AddHeadCode(code string) {
	b.headStatements = append(b.headStatements, code)
}

func (b *Block) AddTailCode(code string) {
	b.tailStatements = append(b.tailStatements, code)
}

func (b *Block) allStatements() []string {
	all := append([]string{}, b.headStatements...)
	all = append(all, b.statements...)
	return append(all, b.tailStatements...)
}

func (b *Block) variableBlock() string {
	if len(b.variables) == 0 {
		return ""
	}
	if !b.cfg.GroupVariables {
		var lines []string
		for _, v := range b.variables {
			lines = append(lines, v.Type+" "+v.initCode()+";")
		}
		return strings.Join(lines, "\n")
	}
	var lines []string
	for _, typeName := range b.typeOrder {
		var names []string
		for _, v := range b.byType[typeName] {
			names = append(names, v.initCode())
		}
		lines = append(lines, typeName+" "+strings.Join(names, ", ")+";")
	}
	return strings.Join(lines, "\n")
}

func (b *Block) String() string {
	var sb strings.Builder
	if b.addCurlyBrackets {
		sb.WriteString("{\n")
	}
	varBlock := b.variableBlock()
	if varBlock != "" {
		if b.indentContents {
			varBlock = indentCpp(varBlock, 1, b.cfg.Indent)
		}
		sb.WriteString(varBlock)
	}
	statements := b.allStatements()
	if varBlock != "" && len(statements) > 0 {
		sb.WriteString("\n")
	}
	for i, statement := range statements {
		if b.indentContents {
			statement = indentCpp(statement, 1, b.cfg.Indent)
		}
		sb.WriteString(statement)
		if i < len(statements)-1 {
			sb.WriteString("\n")
		}
	}
	if b.addCurlyBrackets {
		sb.WriteString("\n}")
	}
	return sb.String()
}
