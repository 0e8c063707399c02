package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, source string) []Token {
	s := NewScanner(source)
	tokens := s.ScanTokens()
	require.False(t, s.HadError(), "unexpected scan errors: %v", s.Errors())
	return tokens
}

func tokenTypes(tokens []Token) []TokenType {
	var result []TokenType
	for _, tok := range tokens {
		result = append(result, tok.Type)
	}
	return result
}

func TestScanNumericRange(t *testing.T) {
	tokens := scan(t, "1..10")
	assert.Equal(t, []TokenType{TokenInt, TokenDotDot, TokenInt, TokenEOF}, tokenTypes(tokens))
}

func TestScanRealLiteral(t *testing.T) {
	tokens := scan(t, "3.25")
	assert.Equal(t, []TokenType{TokenReal, TokenEOF}, tokenTypes(tokens))
	assert.Equal(t, "3.25", tokens[0].Lexeme)
}

func TestScanPowerVersusStar(t *testing.T) {
	tokens := scan(t, "a ** b * c")
	assert.Equal(t, []TokenType{TokenIdent, TokenPower, TokenIdent, TokenStar, TokenIdent, TokenEOF},
		tokenTypes(tokens))
}

func TestScanAssignVersusColon(t *testing.T) {
	tokens := scan(t, "x := y : z")
	assert.Equal(t, []TokenType{TokenIdent, TokenAssign, TokenIdent, TokenColon, TokenIdent, TokenEOF},
		tokenTypes(tokens))
}

func TestScanPragmaBracket(t *testing.T) {
	tokens := scan(t, "[:max_time(100)] a[2]")
	assert.Equal(t, []TokenType{
		TokenPragma, TokenIdent, TokenLParen, TokenInt, TokenRParen, TokenRBracket,
		TokenIdent, TokenLBracket, TokenInt, TokenRBracket, TokenEOF,
	}, tokenTypes(tokens))
}

func TestScanKeywords(t *testing.T) {
	tokens := scan(t, "function f if then elseif else end let in for while repeat returns old when sum")
	expected := []TokenType{
		TokenFunction, TokenIdent, TokenIf, TokenThen, TokenElseIf, TokenElse,
		TokenEnd, TokenLet, TokenIn, TokenFor, TokenWhile, TokenRepeat,
		TokenReturns, TokenOld, TokenWhen, TokenSum, TokenEOF,
	}
	assert.Equal(t, expected, tokenTypes(tokens))
}

func TestScanComparisons(t *testing.T) {
	tokens := scan(t, "a <= b >= c ~= d = e")
	assert.Equal(t, []TokenType{
		TokenIdent, TokenLE, TokenIdent, TokenGE, TokenIdent,
		TokenNotEqual, TokenIdent, TokenEqual, TokenIdent, TokenEOF,
	}, tokenTypes(tokens))
}

func TestScanComments(t *testing.T) {
	tokens := scan(t, "a // the rest is ignored\nb")
	assert.Equal(t, []TokenType{TokenIdent, TokenIdent, TokenEOF}, tokenTypes(tokens))
	assert.Equal(t, 2, tokens[1].Line)
}

func TestScanTracksPositions(t *testing.T) {
	tokens := scan(t, "ab\n  cd")
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
}

func TestScanReportsUnexpectedCharacter(t *testing.T) {
	s := NewScanner("a ? b")
	s.ScanTokens()
	assert.True(t, s.HadError())
}
