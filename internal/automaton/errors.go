package automaton

import (
	"errors"
	"fmt"
)

// ErrMalformedAutomaton is the kind of every construction failure.
var ErrMalformedAutomaton = errors.New("malformed automaton")

// Error wraps a construction failure with a description of the offending item.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func malformedf(format string, args ...any) error {
	return &Error{Kind: ErrMalformedAutomaton, Msg: fmt.Sprintf(format, args...)}
}
