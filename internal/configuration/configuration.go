// Package configuration implements the abstract state of the reachability
// analysis: a total mapping from automaton states to constraints.
//
// Every *Configuration handed out by this package is interned in a Cache:
// structurally equal configurations of one cache are the same pointer, and an
// interned configuration is never modified. Operations build a private
// working copy and intern the result.
package configuration

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/constraint"
	"github.com/mpyw/tmelide/internal/shadow"
)

// Configuration maps every state of an automaton to a Constraint.
type Configuration struct {
	auto  *automaton.Automaton
	cache *Cache
	cs    []constraint.Constraint
	key   string
}

// working is a mutable configuration that has not been interned yet.
type working struct {
	auto *automaton.Automaton
	cs   []constraint.Constraint
}

func initialWorking(a *automaton.Automaton) *working {
	w := &working{auto: a, cs: make([]constraint.Constraint, a.Len())}
	for _, s := range a.States() {
		if s.Initial {
			w.cs[s.ID] = constraint.True
		} else {
			w.cs[s.ID] = constraint.False
		}
	}
	return w
}

// New returns the initial configuration of a: True at every initial state
// and False elsewhere.
func New(a *automaton.Automaton, cache *Cache) (*Configuration, error) {
	return cache.intern(initialWorking(a))
}

func (c *Configuration) work() *working {
	return &working{auto: c.auto, cs: slices.Clone(c.cs)}
}

// Automaton returns the automaton c ranges over.
func (c *Configuration) Automaton() *automaton.Automaton { return c.auto }

// Transition applies the event of s to c.
//
//  1. skip starts as c; every skip edge for the symbol filters skip at its
//     state through negative bindings.
//  2. tmp starts as the initial configuration; every normal edge for the
//     symbol adds c's constraint at the source, extended by the event's
//     bindings, to tmp at the target.
//  3. The result is tmp joined with skip, cleaned up and interned.
func (c *Configuration) Transition(s *shadow.Shadow, oracle constraint.AliasOracle) (*Configuration, error) {
	vars, ok := c.auto.Variables(s.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: shadow %s emits symbol %q unknown to automaton %q",
			constraint.ErrUnclassifiable, s.ID, s.Symbol, c.auto.Name())
	}
	for v := range s.Bindings {
		if !slices.Contains(vars, v) {
			return nil, fmt.Errorf("%w: shadow %s binds %q which symbol %q does not declare",
				constraint.ErrUnclassifiable, s.ID, v, s.Symbol)
		}
	}

	stats := c.cache.Stats()
	stats.transitions.Inc()

	skip := c.work()
	tmp := initialWorking(c.auto)

	for _, e := range c.auto.EdgesFor(s.Symbol) {
		stats.edges.Inc()
		switch e.Kind {
		case automaton.EdgeSkip:
			next, err := skip.cs[e.Source].AddNegativeBindings(vars, e.Source, s.Bindings, oracle)
			if err != nil {
				return nil, fmt.Errorf("shadow %s: %w", s.ID, err)
			}
			skip.cs[e.Source] = next
		case automaton.EdgeNormal:
			next, err := c.cs[e.Source].AddPositiveBinding(vars, e.Target, s.Bindings, s.ID, oracle)
			if err != nil {
				return nil, fmt.Errorf("shadow %s: %w", s.ID, err)
			}
			tmp.cs[e.Target] = tmp.cs[e.Target].Or(next)
		default:
			return nil, fmt.Errorf("shadow %s: unexpected edge kind %v", s.ID, e.Kind)
		}
	}

	for i := range tmp.cs {
		tmp.cs[i] = tmp.cs[i].Or(skip.cs[i]).Cleanup()
	}
	return c.cache.intern(tmp)
}

// TransitionOutside applies an event of symbol emitted by code outside the
// activation, such as a caller after the procedure returned. Only normal
// edges advance; skip edges never filter because an outside event never
// must-aliases.
func (c *Configuration) TransitionOutside(symbol string, oracle constraint.AliasOracle) (*Configuration, error) {
	vars, ok := c.auto.Variables(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: outside event of symbol %q unknown to automaton %q",
			constraint.ErrUnclassifiable, symbol, c.auto.Name())
	}

	stats := c.cache.Stats()
	stats.transitions.Inc()

	w := c.work()
	for _, e := range c.auto.EdgesFor(symbol) {
		if e.Kind != automaton.EdgeNormal {
			continue
		}
		stats.edges.Inc()
		next := c.cs[e.Source].AddOutsideBinding(vars, e.Target, oracle)
		w.cs[e.Target] = w.cs[e.Target].Or(next)
	}
	for i := range w.cs {
		w.cs[i] = w.cs[i].Cleanup()
	}
	return c.cache.intern(w)
}

// Enter adds, at every state a caller may have driven objects to before the
// activation started, a witness binding those objects to constraint.Outside.
// Initial and final states are left alone.
func (c *Configuration) Enter() (*Configuration, error) {
	w := c.work()
	for _, s := range c.auto.States() {
		if s.Initial || s.Final {
			continue
		}
		vars, ok := c.auto.Bound(s.ID)
		if !ok {
			continue
		}
		w.cs[s.ID] = w.cs[s.ID].Or(constraint.Entered(vars)).Cleanup()
	}
	return c.cache.intern(w)
}

// JoinWith returns the pointwise union of c and o.
func (c *Configuration) JoinWith(o *Configuration) (*Configuration, error) {
	if c.auto != o.auto || len(c.cs) != len(o.cs) {
		return nil, fmt.Errorf("%w: %q and %q", ErrStateSetMismatch, c.auto.Name(), o.auto.Name())
	}
	if c == o {
		return c, nil
	}
	w := c.work()
	for i := range w.cs {
		w.cs[i] = w.cs[i].Or(o.cs[i]).Cleanup()
	}
	return c.cache.intern(w)
}

// ResetToInitial returns the initial configuration of c's automaton.
func (c *Configuration) ResetToInitial() (*Configuration, error) {
	return c.cache.intern(initialWorking(c.auto))
}

// Intern returns the canonical instance equal to c.
func (c *Configuration) Intern() (*Configuration, error) {
	if got := fingerprint(c.cs); got != c.key {
		return nil, fmt.Errorf("%w: interned as %s, now reads %s", ErrMutatedInterned, c.key, got)
	}
	return c.cache.intern(c.work())
}

// Taint marks every constraint tainted.
func (c *Configuration) Taint() (*Configuration, error) {
	return c.mapConstraints(constraint.Constraint.Taint)
}

// Age moves c across a return of the analyzed procedure.
func (c *Configuration) Age() (*Configuration, error) {
	return c.mapConstraints(constraint.Constraint.Age)
}

func (c *Configuration) mapConstraints(f func(constraint.Constraint) constraint.Constraint) (*Configuration, error) {
	w := c.work()
	for i := range w.cs {
		w.cs[i] = f(w.cs[i])
	}
	return c.cache.intern(w)
}

// ConstraintAt returns the constraint of state.
func (c *Configuration) ConstraintAt(state automaton.StateID) (constraint.Constraint, error) {
	if state < 0 || int(state) >= len(c.cs) {
		return constraint.False, fmt.Errorf("%w: %d not in automaton %q", ErrUnknownState, state, c.auto.Name())
	}
	return c.cs[state], nil
}

// States returns a copy of the state to constraint mapping.
func (c *Configuration) States() map[automaton.StateID]constraint.Constraint {
	m := make(map[automaton.StateID]constraint.Constraint, len(c.cs))
	for i, cs := range c.cs {
		m[automaton.StateID(i)] = cs
	}
	return m
}

// Size returns the total number of witnesses.
func (c *Configuration) Size() int {
	n := 0
	for _, cs := range c.cs {
		n += cs.Size()
	}
	return n
}

// HitsFinal reports whether some final state has a satisfiable constraint.
func (c *Configuration) HitsFinal() bool {
	for _, id := range c.auto.FinalStates() {
		if !c.cs[id].IsFalse() {
			return true
		}
	}
	return false
}

// Tainted reports whether any constraint is tainted.
func (c *Configuration) Tainted() bool {
	return slices.ContainsFunc(c.cs, constraint.Constraint.Tainted)
}

// Key returns the canonical key.
func (c *Configuration) Key() string { return c.key }

// Equal reports structural equality.
func (c *Configuration) Equal(o *Configuration) bool {
	return c.auto == o.auto && c.key == o.key
}

func (c *Configuration) String() string {
	states := c.States()
	parts := make([]string, 0, len(states))
	for _, id := range slices.Sorted(maps.Keys(states)) {
		name := strconv.Itoa(int(id))
		if s, ok := c.auto.State(id); ok {
			name = s.Name
		}
		parts = append(parts, name+": "+states[id].String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func fingerprint(cs []constraint.Constraint) string {
	var b strings.Builder
	for i, c := range cs {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(i))
		b.WriteByte('=')
		b.WriteString(c.Key())
	}
	return b.String()
}
