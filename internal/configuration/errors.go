package configuration

import "errors"

var (
	// ErrUnknownState is returned when a state lies outside the automaton.
	ErrUnknownState = errors.New("unknown automaton state")
	// ErrStateSetMismatch is returned when joining configurations of
	// different automata.
	ErrStateSetMismatch = errors.New("configurations range over different state sets")
	// ErrMutatedInterned is returned when an interned configuration no
	// longer matches its key.
	ErrMutatedInterned = errors.New("interned configuration was mutated")
)
