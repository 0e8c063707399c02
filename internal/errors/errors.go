// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of a compile error
type ErrorType string

const (
	SyntaxError          ErrorType = "SyntaxError"
	TypeMismatch         ErrorType = "TypeMismatch"
	ArityMismatch        ErrorType = "ArityMismatch"
	UnresolvedIdentifier ErrorType = "UnresolvedIdentifier"
	UnknownCallee        ErrorType = "UnknownCallee"
	UnknownPragma        ErrorType = "UnknownPragma"
	LiteralBoundsError   ErrorType = "LiteralBoundsError"
	DuplicateDefinition  ErrorType = "DuplicateDefinition"
	InternalError        ErrorType = "InternalError"
)

// CompileError is an error with source location information.
// Type mismatches carry the locations of both edge endpoints.
type CompileError struct {
	Type           ErrorType
	Message        string
	Location       string
	SecondLocation string
}

// Error implements the error interface
func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	if e.Location != "" {
		sb.WriteString(fmt.Sprintf(" (%s", e.Location))
		if e.SecondLocation != "" {
			sb.WriteString(fmt.Sprintf(" and %s", e.SecondLocation))
		}
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

func New(t ErrorType, message string, location string) *CompileError {
	return &CompileError{Type: t, Message: message, Location: location}
}

func Newf(t ErrorType, location string, format string, args ...interface{}) *CompileError {
	return &CompileError{Type: t, Message: fmt.Sprintf(format, args...), Location: location}
}

// WithSecondLocation adds the other endpoint's location to the error
func (e *CompileError) WithSecondLocation(location string) *CompileError {
	e.SecondLocation = location
	return e
}

// Warning is a non-fatal diagnostic. Warnings never abort a compilation.
type Warning struct {
	Message  string
	Location string
}

func (w Warning) String() string {
	if w.Location == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Location, w.Message)
}

// Warnings accumulates non-fatal diagnostics during a compilation
type Warnings struct {
	list []Warning
}

func (w *Warnings) Add(message string, location string) {
	w.list = append(w.list, Warning{Message: message, Location: location})
}

func (w *Warnings) All() []Warning {
	return w.list
}

func (w *Warnings) Empty() bool {
	return len(w.list) == 0
}
