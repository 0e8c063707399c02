// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"

	"sisalc/internal/errors"
	"sisalc/internal/lexer"
	"sisalc/internal/types"
)

// Parser is a recursive-descent parser over the scanner's token
// stream. It produces the AST the builder lowers into IR; the first
// fatal syntax error aborts the parse.
type Parser struct {
	tokens  []lexer.Token
	current int
	defs    map[string]*types.Type
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens: tokens,
		defs:   map[string]*types.Type{},
	}
}

// Parse consumes the whole token stream and returns the module AST
func (p *Parser) Parse() (*Module, error) {
	module := &Module{}
	for !p.isAtEnd() {
		if p.check(lexer.TokenTypeDef) {
			def, err := p.typeDefinition()
			if err != nil {
				return nil, err
			}
			module.TypeDefs = append(module.TypeDefs, def)
			continue
		}
		fn, err := p.function()
		if err != nil {
			return nil, err
		}
		module.Functions = append(module.Functions, fn)
	}
	return module, nil
}

func (p *Parser) typeDefinition() (*TypeDef, error) {
	start := p.advance() // "type"
	name, err := p.consume(lexer.TokenIdent, "expect type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenEqual, "expect '=' after type name"); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, exists := p.defs[name.Lexeme]; exists {
		return nil, errors.Newf(errors.DuplicateDefinition, name.Location(),
			"type %q is already defined", name.Lexeme)
	}
	named := types.Named(name.Lexeme, t)
	p.defs[name.Lexeme] = named
	return &TypeDef{Name: name.Lexeme, Type: named, Location: p.span(start)}, nil
}

func (p *Parser) function() (*Function, error) {
	pragmas, err := p.pragmas()
	if err != nil {
		return nil, err
	}
	start, err := p.consume(lexer.TokenFunction, "expect function definition")
	if err != nil {
		return nil, err
	}
	name, err := p.consume(lexer.TokenIdent, "expect function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenLParen, "expect '(' after function name"); err != nil {
		return nil, err
	}

	var args []Arg
	if !p.check(lexer.TokenReturns) && !p.check(lexer.TokenRParen) {
		if args, err = p.argGroups(); err != nil {
			return nil, err
		}
	}

	var retTypes []*types.Type
	if p.match(lexer.TokenReturns) {
		if retTypes, err = p.typeList(); err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(lexer.TokenRParen, "expect ')' after function signature"); err != nil {
		return nil, err
	}

	body, err := p.multiExp()
	if err != nil {
		return nil, err
	}
	if err := p.consumeEnd(lexer.TokenFunction, "function"); err != nil {
		return nil, err
	}
	return &Function{
		Pragmas:  pragmas,
		Name:     name.Lexeme,
		Args:     args,
		RetTypes: retTypes,
		Body:     body,
		Location: p.span(start),
	}, nil
}

// argGroups parses "a, b: integer; c: real" style parameter lists
func (p *Parser) argGroups() ([]Arg, error) {
	var args []Arg
	for {
		var names []*Identifier
		for {
			name, err := p.consume(lexer.TokenIdent, "expect argument name")
			if err != nil {
				return nil, err
			}
			names = append(names, &Identifier{Name: name.Lexeme, Location: name.Location()})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.consume(lexer.TokenColon, "expect ':' after argument names"); err != nil {
			return nil, err
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			args = append(args, Arg{Name: name, Type: t.Copy(name.Location)})
		}
		if !p.match(lexer.TokenSemicolon) {
			break
		}
	}
	return args, nil
}

func (p *Parser) typeList() ([]*types.Type, error) {
	var list []*types.Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	return list, nil
}

func (p *Parser) parseType() (*types.Type, error) {
	tok := p.advance()
	location := tok.Location()
	switch tok.Type {
	case lexer.TokenIntegerT:
		return types.NewInteger(location), nil
	case lexer.TokenRealT:
		return types.NewReal(location), nil
	case lexer.TokenBooleanT:
		return types.NewBoolean(location), nil
	case lexer.TokenArray:
		if _, err := p.consume(lexer.TokenOf, "expect 'of' after 'array'"); err != nil {
			return nil, err
		}
		element, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return types.NewArray(element, location), nil
	case lexer.TokenStream:
		if _, err := p.consume(lexer.TokenOf, "expect 'of' after 'stream'"); err != nil {
			return nil, err
		}
		element, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return types.NewStream(element, location), nil
	case lexer.TokenLBracket:
		element, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing array type"); err != nil {
			return nil, err
		}
		return types.NewArray(element, location), nil
	case lexer.TokenRecord:
		if _, err := p.consume(lexer.TokenLBracket, "expect '[' after 'record'"); err != nil {
			return nil, err
		}
		var fields []types.Field
		for {
			name, err := p.consume(lexer.TokenIdent, "expect record field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(lexer.TokenColon, "expect ':' after field name"); err != nil {
				return nil, err
			}
			fieldType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, types.Field{Name: name.Lexeme, Type: fieldType})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing record type"); err != nil {
			return nil, err
		}
		return types.NewRecord(fields, location), nil
	case lexer.TokenIdent:
		if def, ok := p.defs[tok.Lexeme]; ok {
			return def.Copy(location), nil
		}
		return nil, errors.Newf(errors.SyntaxError, location,
			"unknown type name %q", tok.Lexeme)
	}
	return nil, errors.Newf(errors.SyntaxError, location,
		"expected a type, got %q", tok.Lexeme)
}

func (p *Parser) pragmas() ([]Pragma, error) {
	var pragmas []Pragma
	for p.match(lexer.TokenPragma) {
		name, err := p.consume(lexer.TokenIdent, "expect pragma name")
		if err != nil {
			return nil, err
		}
		pragma := Pragma{Name: name.Lexeme}
		if p.match(lexer.TokenLParen) {
			for !p.check(lexer.TokenRParen) {
				arg := p.advance()
				switch arg.Type {
				case lexer.TokenInt:
					value, _ := strconv.ParseInt(arg.Lexeme, 10, 64)
					pragma.Args = append(pragma.Args, value)
				case lexer.TokenReal:
					value, _ := strconv.ParseFloat(arg.Lexeme, 64)
					pragma.Args = append(pragma.Args, value)
				default:
					pragma.Args = append(pragma.Args, arg.Lexeme)
				}
				if !p.match(lexer.TokenComma) {
					break
				}
			}
			if _, err := p.consume(lexer.TokenRParen, "expect ')' closing pragma arguments"); err != nil {
				return nil, err
			}
		}
		if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing pragma"); err != nil {
			return nil, err
		}
		pragmas = append(pragmas, pragma)
	}
	return pragmas, nil
}

func (p *Parser) multiExp() (*MultiExp, error) {
	start := p.peek()
	pragmas, err := p.pragmas()
	if err != nil {
		return nil, err
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	exprs := []Expr{first}
	for p.match(lexer.TokenComma) {
		next, err := p.expression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	return &MultiExp{Exprs: exprs, Pragmas: pragmas, Location: p.span(start)}, nil
}

// expression parses a flat algebraic spine; a single operand without
// operators stays a plain expression
func (p *Parser) expression() (Expr, error) {
	start := p.peek()
	operand, err := p.unaryOperand()
	if err != nil {
		return nil, err
	}
	items := []interface{}{operand}
	for p.checkBinOp() {
		op := p.advance()
		items = append(items, &BinOp{Operator: op.Lexeme, Location: op.Location()})
		next, err := p.unaryOperand()
		if err != nil {
			return nil, err
		}
		items = append(items, next)
	}
	if len(items) == 1 {
		return operand, nil
	}
	return &Algebraic{Items: items, Location: p.span(start)}, nil
}

func (p *Parser) checkBinOp() bool {
	switch p.peek().Type {
	case lexer.TokenPlus, lexer.TokenMinus, lexer.TokenStar, lexer.TokenSlash,
		lexer.TokenPower, lexer.TokenLT, lexer.TokenGT, lexer.TokenLE,
		lexer.TokenGE, lexer.TokenEqual, lexer.TokenNotEqual,
		lexer.TokenAnd, lexer.TokenOr:
		return true
	}
	return false
}

func (p *Parser) unaryOperand() (Expr, error) {
	if p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) || p.check(lexer.TokenNot) {
		op := p.advance()
		value, err := p.postfix()
		if err != nil {
			return nil, err
		}
		return &Unary{Operator: op.Lexeme, Value: value, Location: op.Location()}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		if p.match(lexer.TokenLBracket) {
			start := p.previous()
			var indices []Expr
			for {
				index, err := p.expression()
				if err != nil {
					return nil, err
				}
				indices = append(indices, index)
				if !p.match(lexer.TokenComma) {
					break
				}
			}
			if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing array access"); err != nil {
				return nil, err
			}
			expr = &ArrayAccess{Array: expr, Indices: indices, Location: start.Location()}
			continue
		}
		if p.match(lexer.TokenDot) {
			field, err := p.consume(lexer.TokenIdent, "expect field name after '.'")
			if err != nil {
				return nil, err
			}
			expr = &RecordAccess{Record: expr, Field: field.Lexeme, Location: field.Location()}
			continue
		}
		break
	}
	return expr, nil
}

func (p *Parser) primary() (Expr, error) {
	tok := p.peek()
	location := tok.Location()
	switch tok.Type {
	case lexer.TokenInt:
		p.advance()
		value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, errors.Newf(errors.SyntaxError, location, "bad integer literal %q", tok.Lexeme)
		}
		return &Literal{Type: types.NewInteger(location), Value: value, Location: location}, nil
	case lexer.TokenReal:
		p.advance()
		value, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, errors.Newf(errors.SyntaxError, location, "bad real literal %q", tok.Lexeme)
		}
		return &Literal{Type: types.NewReal(location), Value: value, Location: location}, nil
	case lexer.TokenTrue:
		p.advance()
		return &Literal{Type: types.NewBoolean(location), Value: true, Location: location}, nil
	case lexer.TokenFalse:
		p.advance()
		return &Literal{Type: types.NewBoolean(location), Value: false, Location: location}, nil
	case lexer.TokenLParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenRParen, "expect ')' closing expression"); err != nil {
			return nil, err
		}
		return expr, nil
	case lexer.TokenOld:
		p.advance()
		name, err := p.consume(lexer.TokenIdent, "expect identifier after 'old'")
		if err != nil {
			return nil, err
		}
		return &OldValue{
			Ident:    &Identifier{Name: name.Lexeme, Location: name.Location()},
			Location: location,
		}, nil
	case lexer.TokenIf:
		return p.ifExpression()
	case lexer.TokenLet:
		return p.letExpression()
	case lexer.TokenFor:
		return p.loopExpression()
	case lexer.TokenLBracket:
		return p.arrayInit()
	case lexer.TokenRecord:
		return p.recordInit()
	case lexer.TokenIdent:
		p.advance()
		if p.match(lexer.TokenLParen) {
			var args []Expr
			if !p.check(lexer.TokenRParen) {
				for {
					arg, err := p.expression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(lexer.TokenComma) {
						break
					}
				}
			}
			if _, err := p.consume(lexer.TokenRParen, "expect ')' closing call arguments"); err != nil {
				return nil, err
			}
			return &Call{Name: tok.Lexeme, Args: args, Location: location}, nil
		}
		return &Identifier{Name: tok.Lexeme, Location: location}, nil
	}
	return nil, errors.Newf(errors.SyntaxError, location,
		"empty or malformed expression near %q", tok.Lexeme)
}

func (p *Parser) ifExpression() (Expr, error) {
	start := p.advance() // "if"
	condition, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenThen, "expect 'then' after if condition"); err != nil {
		return nil, err
	}
	then, err := p.multiExp()
	if err != nil {
		return nil, err
	}
	conditions := []Expr{condition}
	var elseifs []*MultiExp
	for p.match(lexer.TokenElseIf) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenThen, "expect 'then' after elseif condition"); err != nil {
			return nil, err
		}
		body, err := p.multiExp()
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
		elseifs = append(elseifs, body)
	}
	if _, err := p.consume(lexer.TokenElse, "expect 'else' branch"); err != nil {
		return nil, err
	}
	elseBody, err := p.multiExp()
	if err != nil {
		return nil, err
	}
	if err := p.consumeEnd(lexer.TokenIf, "if"); err != nil {
		return nil, err
	}
	return &If{
		Conditions: conditions,
		Then:       then,
		ElseIfs:    elseifs,
		Else:       elseBody,
		Location:   p.span(start),
	}, nil
}

func (p *Parser) assignments() ([]*Assignment, error) {
	var list []*Assignment
	for {
		start := p.peek()
		var names []*Identifier
		for {
			name, err := p.consume(lexer.TokenIdent, "expect name in definition")
			if err != nil {
				return nil, err
			}
			names = append(names, &Identifier{Name: name.Lexeme, Location: name.Location()})
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.consume(lexer.TokenAssign, "expect ':=' in definition"); err != nil {
			return nil, err
		}
		values, err := p.multiExp()
		if err != nil {
			return nil, err
		}
		list = append(list, &Assignment{Identifiers: names, Values: values, Location: p.span(start)})
		if !p.match(lexer.TokenSemicolon) {
			break
		}
	}
	return list, nil
}

func (p *Parser) letExpression() (Expr, error) {
	start := p.advance() // "let"
	init, err := p.assignments()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(lexer.TokenIn, "expect 'in' after let definitions"); err != nil {
		return nil, err
	}
	body, err := p.multiExp()
	if err != nil {
		return nil, err
	}
	if err := p.consumeEnd(lexer.TokenLet, "let"); err != nil {
		return nil, err
	}
	return &Let{Init: init, Body: body, Location: p.span(start)}, nil
}

func (p *Parser) loopExpression() (Expr, error) {
	start := p.advance() // "for"
	loop := &Loop{Location: start.Location()}

	// iteration axes come first: "i in 1..10; x in a"
	if p.check(lexer.TokenIdent) {
		for {
			name, err := p.consume(lexer.TokenIdent, "expect loop variable name")
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(lexer.TokenIn, "expect 'in' after loop variable"); err != nil {
				return nil, err
			}
			spec := &RangeSpec{
				Name:     &Identifier{Name: name.Lexeme, Location: name.Location()},
				Location: name.Location(),
			}
			first, err := p.expression()
			if err != nil {
				return nil, err
			}
			if p.match(lexer.TokenDotDot) {
				second, err := p.expression()
				if err != nil {
					return nil, err
				}
				spec.From = first
				spec.To = second
			} else {
				spec.Over = first
			}
			loop.Ranges = append(loop.Ranges, spec)
			if !p.match(lexer.TokenSemicolon) {
				break
			}
		}
	}

	if p.match(lexer.TokenInitial) {
		init, err := p.assignments()
		if err != nil {
			return nil, err
		}
		loop.Init = init
	}

	if p.match(lexer.TokenWhile) {
		// precondition: while c repeat body
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		loop.Cond = &LoopCond{Pre: true, Exp: cond, Location: cond.Loc()}
		if p.match(lexer.TokenRepeat) {
			body, err := p.assignments()
			if err != nil {
				return nil, err
			}
			loop.Body = body
		}
	} else if p.match(lexer.TokenRepeat) {
		body, err := p.assignments()
		if err != nil {
			return nil, err
		}
		loop.Body = body
		if p.match(lexer.TokenWhile) {
			// postcondition: repeat body while c
			cond, err := p.expression()
			if err != nil {
				return nil, err
			}
			loop.Cond = &LoopCond{Pre: false, Exp: cond, Location: cond.Loc()}
		}
	}

	if _, err := p.consume(lexer.TokenReturns, "expect 'returns' in loop"); err != nil {
		return nil, err
	}
	for {
		reduction, err := p.reduction()
		if err != nil {
			return nil, err
		}
		loop.Returns = append(loop.Returns, reduction)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	if err := p.consumeEnd(lexer.TokenFor, "for"); err != nil {
		return nil, err
	}
	loop.Location = p.span(start)
	return loop, nil
}

func (p *Parser) reduction() (*Reduction, error) {
	tok := p.advance()
	var operator string
	switch tok.Type {
	case lexer.TokenArray:
		operator = "array"
	case lexer.TokenValue:
		operator = "value"
	case lexer.TokenSum:
		operator = "sum"
	case lexer.TokenProduct:
		operator = "product"
	default:
		return nil, errors.Newf(errors.SyntaxError, tok.Location(),
			"expect reduction kind (array, value, sum, product), got %q", tok.Lexeme)
	}
	if _, err := p.consume(lexer.TokenOf, "expect 'of' after reduction kind"); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	reduction := &Reduction{Operator: operator, Value: value, Location: tok.Location()}
	if p.match(lexer.TokenWhen) {
		when, err := p.expression()
		if err != nil {
			return nil, err
		}
		reduction.When = when
	}
	return reduction, nil
}

func (p *Parser) arrayInit() (Expr, error) {
	start := p.advance() // "["
	var items []Expr
	for {
		item, err := p.expression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing array"); err != nil {
		return nil, err
	}
	return &ArrayInit{Items: items, Location: p.span(start)}, nil
}

func (p *Parser) recordInit() (Expr, error) {
	start := p.advance() // "record"
	if _, err := p.consume(lexer.TokenLBracket, "expect '[' after 'record'"); err != nil {
		return nil, err
	}
	var fields []RecordField
	for {
		name, err := p.consume(lexer.TokenIdent, "expect record field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(lexer.TokenColon, "expect ':' after field name"); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		fields = append(fields, RecordField{Name: name.Lexeme, Value: value})
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.consume(lexer.TokenRBracket, "expect ']' closing record"); err != nil {
		return nil, err
	}
	return &RecordInit{Fields: fields, Location: p.span(start)}, nil
}

// helpers

func (p *Parser) consumeEnd(kind lexer.TokenType, what string) error {
	if _, err := p.consume(lexer.TokenEnd, fmt.Sprintf("expect 'end %s'", what)); err != nil {
		return err
	}
	if _, err := p.consume(kind, fmt.Sprintf("expect %q after 'end'", what)); err != nil {
		return err
	}
	return nil
}

func (p *Parser) consume(t lexer.TokenType, message string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	tok := p.peek()
	return tok, errors.Newf(errors.SyntaxError, tok.Location(),
		"%s, got %q", message, tok.Lexeme)
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

// span renders a start..current location range
func (p *Parser) span(start lexer.Token) string {
	end := p.previous()
	return fmt.Sprintf("%d:%d-%d:%d", start.Line, start.Column, end.Line, end.Column)
}
