package forsp

import (
	"errors"
	"fmt"
)

var (
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrMalformedProgram = errors.New("malformed program")
	ErrDepthExceeded    = errors.New("recursion depth exceeded")
	ErrStepLimit        = errors.New("step limit exceeded")
)

// NameNotFoundError is returned when no frame in the environment binds Name.
type NameNotFoundError struct {
	Name string
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("name not found: %s", e.Name)
}

// PrimitiveError is a failure signalled by a primitive. Err may be one of
// the core sentinels (a primitive popping an empty stack reports
// ErrStackUnderflow).
type PrimitiveError struct {
	Name string
	Err  error
}

func (e *PrimitiveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *PrimitiveError) Unwrap() error { return e.Err }

func primErrorf(name, format string, args ...any) error {
	return &PrimitiveError{Name: name, Err: fmt.Errorf(format, args...)}
}

// SyntaxError is returned by the reader.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedProgram, fmt.Sprintf(format, args...))
}
