// Package automaton models the pattern automaton whose matches are monitored.
//
// The automaton is an immutable value built once per analysis run, either
// programmatically through Builder or from YAML through Load.
//
//	states:   s0 (initial) ──open──▶ s1 (final)
//	                 ▲
//	                 └──close (skip)
//
// Edges form a tagged variant: EdgeNormal advances a partial match from Source
// to Target, EdgeSkip is a self-loop on a non-final state that records the
// event without advancing.
package automaton

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// StateID identifies a state. IDs are dense and follow declaration order.
type StateID int

// State is a node of the automaton.
type State struct {
	ID      StateID
	Name    string
	Initial bool
	Final   bool
}

// EdgeKind discriminates the Edge variant.
type EdgeKind int

const (
	// EdgeNormal moves a partial match from Source to Target.
	EdgeNormal EdgeKind = iota
	// EdgeSkip loops on a non-final state without advancing the match.
	EdgeSkip
)

// String returns the YAML spelling of the kind.
func (k EdgeKind) String() string {
	switch k {
	case EdgeNormal:
		return "normal"
	case EdgeSkip:
		return "skip"
	default:
		return fmt.Sprintf("edge-kind-invalid(%d)", int(k))
	}
}

// Edge is a labeled transition.
type Edge struct {
	Kind   EdgeKind
	Source StateID
	Target StateID
	Symbol string
}

// Automaton is the immutable pattern automaton.
type Automaton struct {
	name     string
	states   []State
	edges    []Edge
	bySymbol map[string][]Edge
	varOrder map[string][]string
	// bound[s] lists the variables bound on every path into s; nil when no
	// path reaches s.
	bound [][]string
}

// Name returns the pattern name, used in diagnostics.
func (a *Automaton) Name() string { return a.name }

// Len returns the number of states.
func (a *Automaton) Len() int { return len(a.states) }

// States returns a copy of the state list in ID order.
func (a *Automaton) States() []State {
	return slices.Clone(a.states)
}

// State returns the state with the given ID.
func (a *Automaton) State(id StateID) (State, bool) {
	if id < 0 || int(id) >= len(a.states) {
		return State{}, false
	}
	return a.states[id], true
}

// Edges returns a copy of all edges in declaration order.
func (a *Automaton) Edges() []Edge {
	return slices.Clone(a.edges)
}

// EdgesFor returns the edges labeled with symbol. The returned slice must not
// be modified.
func (a *Automaton) EdgesFor(symbol string) []Edge {
	return a.bySymbol[symbol]
}

// Variables returns the variable order of symbol.
func (a *Automaton) Variables(symbol string) ([]string, bool) {
	vars, ok := a.varOrder[symbol]
	return vars, ok
}

// Symbols returns all declared symbols, sorted.
func (a *Automaton) Symbols() []string {
	out := make([]string, 0, len(a.varOrder))
	for s := range a.varOrder {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Bound returns the variables that every path from an initial state to
// state binds, sorted. ok is false when no path reaches state.
func (a *Automaton) Bound(state StateID) (vars []string, ok bool) {
	if state < 0 || int(state) >= len(a.bound) || a.bound[state] == nil {
		return nil, false
	}
	return slices.Clone(a.bound[state]), true
}

// InitialStates returns the IDs of all initial states.
func (a *Automaton) InitialStates() []StateID {
	var out []StateID
	for _, s := range a.states {
		if s.Initial {
			out = append(out, s.ID)
		}
	}
	return out
}

// FinalStates returns the IDs of all final states.
func (a *Automaton) FinalStates() []StateID {
	var out []StateID
	for _, s := range a.states {
		if s.Final {
			out = append(out, s.ID)
		}
	}
	return out
}

// computeBound intersects, over all paths from an initial state, the
// variables bound on the way into each state. Skip edges bind nothing.
func computeBound(states []State, edges []Edge, varOrder map[string][]string) [][]string {
	sets := make([]map[string]bool, len(states))
	var queue []StateID
	for _, s := range states {
		if s.Initial {
			sets[s.ID] = map[string]bool{}
			queue = append(queue, s.ID)
		}
	}
	for len(queue) > 0 {
		src := queue[0]
		queue = queue[1:]
		for _, e := range edges {
			if e.Kind != EdgeNormal || e.Source != src {
				continue
			}
			next := maps.Clone(sets[src])
			for _, v := range varOrder[e.Symbol] {
				next[v] = true
			}
			cur := sets[e.Target]
			if cur == nil {
				sets[e.Target] = next
				queue = append(queue, e.Target)
				continue
			}
			changed := false
			for v := range cur {
				if !next[v] {
					delete(cur, v)
					changed = true
				}
			}
			if changed && !slices.Contains(queue, e.Target) {
				queue = append(queue, e.Target)
			}
		}
	}

	out := make([][]string, len(states))
	for i, set := range sets {
		if set == nil {
			continue
		}
		out[i] = slices.Sorted(maps.Keys(set))
		if out[i] == nil {
			out[i] = []string{}
		}
	}
	return out
}

// String renders the automaton one edge per line.
func (a *Automaton) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "automaton %s\n", a.name)
	for _, e := range a.edges {
		fmt.Fprintf(&buf, "  %s -%s/%s-> %s\n", a.states[e.Source].Name, e.Symbol, e.Kind, a.states[e.Target].Name)
	}
	return buf.String()
}
