package types

import "fmt"

// ParseError represents a syntax error that stopped a file from being parsed
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", pe.File, pe.Line, pe.Column, pe.Message)
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}

// Unwrap lets errors.Is match ErrSyntax
func (pe *ParseError) Unwrap() error {
	return ErrSyntax
}
