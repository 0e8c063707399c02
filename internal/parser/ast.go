// internal/parser/ast.go
package parser

import (
	"sisalc/internal/types"
)

// Pragma is a parsed node annotation, e.g. [:max_time(100)]
type Pragma struct {
	Name string
	Args []interface{}
}

// Expr is the interface of every expression node the builder lowers
type Expr interface {
	Loc() string
}

// Literal value: integer, real or boolean
type Literal struct {
	Type     *types.Type
	Value    interface{}
	Location string
}

func (l *Literal) Loc() string { return l.Location }

// Identifier reference, resolved against the lexical scope during
// build and absent from the final IR
type Identifier struct {
	Name     string
	Location string
}

func (i *Identifier) Loc() string { return i.Location }

// BinOp is a binary operator inside an Algebraic spine
type BinOp struct {
	Operator string
	Location string
}

// Algebraic is a flat sequence of alternating operands (Expr) and
// operators (*BinOp). Precedence is resolved during build by
// repeatedly splitting at the loosest operator.
type Algebraic struct {
	Items    []interface{}
	Location string
}

func (a *Algebraic) Loc() string { return a.Location }

// Unary operation: +x, -x, !x
type Unary struct {
	Operator string
	Value    Expr
	Location string
}

func (u *Unary) Loc() string { return u.Location }

// Call of a user function or a built-in
type Call struct {
	Name     string
	Args     []Expr
	Location string
}

func (c *Call) Loc() string { return c.Location }

// MultiExp packages several expressions flowing to consecutive
// target ports; it never survives into the final IR
type MultiExp struct {
	Exprs    []Expr
	Pragmas  []Pragma
	Location string
}

func (m *MultiExp) Loc() string { return m.Location }

// If with one condition per Then/ElseIf alternative
type If struct {
	Conditions []Expr
	Then       *MultiExp
	ElseIfs    []*MultiExp
	Else       *MultiExp
	Location   string
}

func (i *If) Loc() string { return i.Location }

// Assignment binds one or more names to the outputs of a MultiExp
type Assignment struct {
	Identifiers []*Identifier
	Values      *MultiExp
	Location    string
}

// Let with an Init definition list and a Body
type Let struct {
	Init     []*Assignment
	Body     *MultiExp
	Location string
}

func (l *Let) Loc() string { return l.Location }

// RangeSpec is one iteration axis of a loop: either a numeric
// From..To range or an iterable expression
type RangeSpec struct {
	Name     *Identifier
	From     Expr
	To       Expr
	Over     Expr
	Location string
}

// Reduction folds the loop's per-iteration value into one output
type Reduction struct {
	Operator string
	Value    Expr
	When     Expr
	Location string
}

// LoopCond is a pre- or postcondition on a loop
type LoopCond struct {
	Pre      bool
	Exp      Expr
	Location string
}

// Loop expression with up to five sub-regions
type Loop struct {
	Ranges   []*RangeSpec
	Init     []*Assignment
	Body     []*Assignment
	Cond     *LoopCond
	Returns  []*Reduction
	Location string
}

func (l *Loop) Loc() string { return l.Location }

// ArrayAccess with a 1-based index chain: a[i, j] is two accesses
type ArrayAccess struct {
	Array    Expr
	Indices  []Expr
	Location string
}

func (a *ArrayAccess) Loc() string { return a.Location }

// ArrayInit builds an array out of element expressions
type ArrayInit struct {
	Items    []Expr
	Location string
}

func (a *ArrayInit) Loc() string { return a.Location }

type RecordField struct {
	Name  string
	Value Expr
}

// RecordInit builds a record value field by field
type RecordInit struct {
	Fields   []RecordField
	Location string
}

func (r *RecordInit) Loc() string { return r.Location }

// RecordAccess reads one field out of a record value
type RecordAccess struct {
	Record   Expr
	Field    string
	Location string
}

func (r *RecordAccess) Loc() string { return r.Location }

// OldValue refers to the previous iteration's value of a loop name
type OldValue struct {
	Ident    *Identifier
	Location string
}

func (o *OldValue) Loc() string { return o.Location }

// Arg is a named function parameter
type Arg struct {
	Name *Identifier
	Type *types.Type
}

// Function definition
type Function struct {
	Pragmas  []Pragma
	Name     string
	Args     []Arg
	RetTypes []*types.Type
	Body     *MultiExp
	Location string
}

// TypeDef is a module-level named type definition
type TypeDef struct {
	Name     string
	Type     *types.Type
	Location string
}

// Module is the parse result: functions plus type definitions
type Module struct {
	Functions []*Function
	TypeDefs  []*TypeDef
}
