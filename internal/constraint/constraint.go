// Package constraint implements the disjunctive binding constraints attached
// to automaton states during the reachability analysis.
//
// A Constraint is a set of witnesses. Each witness describes one possible
// history of variable bindings that could lead a partial match to the state
// owning the constraint:
//
//	False = {}                       no partial match can be here
//	True  = {[]}                     a partial match with nothing bound
//	{[f=x]@s1, [f!=y]}               either f is bound to x by s1, or f is unbound but not y
//
// Constraints are immutable values. Every operation returns a new Constraint
// and never modifies its receiver or arguments.
package constraint

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mpyw/tmelide/internal/automaton"
)

// Constraint is an immutable, duplicate-free set of witnesses sorted by key.
// The zero value is False.
type Constraint struct {
	ws  []Witness
	key string
}

var (
	// False is the constraint no execution satisfies.
	False = Constraint{}
	// True holds the single witness with no bindings.
	True = newConstraint([]Witness{newWitness(nil, nil, "", false)})
)

const falseKey = "{}"

func newConstraint(ws []Witness) Constraint {
	if len(ws) == 0 {
		return False
	}
	slices.SortFunc(ws, func(a, b Witness) int { return strings.Compare(a.key, b.key) })
	ws = slices.CompactFunc(ws, func(a, b Witness) bool { return a.key == b.key })

	var buf strings.Builder
	buf.WriteByte('{')
	for i, w := range ws {
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(w.key)
	}
	buf.WriteByte('}')
	return Constraint{ws: ws, key: buf.String()}
}

// Witnesses returns a copy of the witnesses in canonical order.
func (c Constraint) Witnesses() []Witness { return slices.Clone(c.ws) }

// Size returns the number of witnesses.
func (c Constraint) Size() int { return len(c.ws) }

// IsFalse reports whether c has no witnesses.
func (c Constraint) IsFalse() bool { return len(c.ws) == 0 }

// Key returns the canonical structural key. Equal constraints have equal
// keys.
func (c Constraint) Key() string {
	if len(c.ws) == 0 {
		return falseKey
	}
	return c.key
}

// Equal reports structural equality.
func (c Constraint) Equal(o Constraint) bool { return c.Key() == o.Key() }

// Tainted reports whether any witness is tainted.
func (c Constraint) Tainted() bool {
	return slices.ContainsFunc(c.ws, Witness.Tainted)
}

// Or returns the union of c and o.
func (c Constraint) Or(o Constraint) Constraint {
	switch {
	case len(o.ws) == 0:
		return c
	case len(c.ws) == 0:
		return o
	}
	return newConstraint(slices.Concat(c.ws, o.ws))
}

// AddPositiveBinding advances c along a normal edge into target for an event
// that binds vars as given by raw. Witnesses contradicting the event are
// dropped; survivors get the event's bindings and shadowID as origin.
func (c Constraint) AddPositiveBinding(
	vars []string,
	target automaton.StateID,
	raw map[string]Ref,
	shadowID string,
	oracle AliasOracle,
) (Constraint, error) {
	if err := checkBound(vars, raw); err != nil {
		return False, fmt.Errorf("edge into state %d: %w", target, err)
	}
	oracle = orUnknown(oracle)

	out := make([]Witness, 0, len(c.ws))
	for _, w := range c.ws {
		if nw, ok := w.extend(vars, raw, shadowID, oracle); ok {
			out = append(out, nw)
		}
	}
	return newConstraint(out), nil
}

func (w Witness) extend(vars []string, raw map[string]Ref, origin string, oracle AliasOracle) (Witness, bool) {
	bound, excluded := w.bound, w.excluded
	for _, v := range vars {
		r := raw[v]
		if b, ok := w.Lookup(v); ok {
			if mustAlias(oracle, b, r) {
				continue
			}
			if mayNotAlias(oracle, b, r) {
				return Witness{}, false
			}
			continue
		}
		for _, e := range excluded {
			if e.Var == v && oracle.MustAlias(e.Ref, r) {
				return Witness{}, false
			}
		}
		bound = insertBinding(bound, Binding{Var: v, Ref: r})
		excluded = withoutVar(excluded, v)
	}
	return newWitness(bound, excluded, origin, w.tainted), true
}

// AddOutsideBinding advances c along a normal edge into target for an event
// emitted by code outside the activation. Only witnesses that an
// instrumentation point of the activation advanced take part, and only when
// every variable they bind may still be reached from outside. Unbound
// variables are bound to Outside. The origin is kept.
func (c Constraint) AddOutsideBinding(vars []string, target automaton.StateID, oracle AliasOracle) Constraint {
	oracle = orUnknown(oracle)

	out := make([]Witness, 0, len(c.ws))
	for _, w := range c.ws {
		if w.origin == "" {
			continue
		}
		bound, excluded := w.bound, w.excluded
		reachable := true
		for _, v := range vars {
			if b, ok := w.Lookup(v); ok {
				if !escapes(oracle, b.Ref) {
					reachable = false
					break
				}
				continue
			}
			bound = insertBinding(bound, Binding{Var: v, Ref: Outside, Stale: true})
			excluded = withoutVar(excluded, v)
		}
		if reachable {
			out = append(out, newWitness(bound, excluded, w.origin, w.tainted))
		}
	}
	return newConstraint(out)
}

// AddNegativeBindings filters c along a skip edge on state for an event that
// binds vars as given by raw. A witness is dropped only when the event
// certainly matches it. The origin of surviving witnesses is kept.
func (c Constraint) AddNegativeBindings(
	vars []string,
	state automaton.StateID,
	raw map[string]Ref,
	oracle AliasOracle,
) (Constraint, error) {
	if err := checkBound(vars, raw); err != nil {
		return False, fmt.Errorf("skip edge on state %d: %w", state, err)
	}
	oracle = orUnknown(oracle)

	out := make([]Witness, 0, len(c.ws))
	for _, w := range c.ws {
		if w.matchedBy(vars, raw, oracle) {
			continue
		}
		if len(vars) == 1 {
			v := vars[0]
			if _, ok := w.Lookup(v); !ok {
				excluded := insertBinding(w.excluded, Binding{Var: v, Ref: raw[v]})
				w = newWitness(w.bound, excluded, w.origin, w.tainted)
			}
		}
		out = append(out, w)
	}
	return newConstraint(out), nil
}

func (w Witness) matchedBy(vars []string, raw map[string]Ref, oracle AliasOracle) bool {
	for _, v := range vars {
		b, ok := w.Lookup(v)
		if !ok || !mustAlias(oracle, b, raw[v]) {
			return false
		}
	}
	return true
}

// Entered returns the constraint of a state a caller may have driven objects
// to before the activation started: one witness binding each of vars to
// Outside. The bindings are stale, so they never denote an object the
// activation allocates.
func Entered(vars []string) Constraint {
	var bound []Binding
	for _, v := range vars {
		bound = insertBinding(bound, Binding{Var: v, Ref: Outside, Stale: true})
	}
	return newConstraint([]Witness{newWitness(bound, nil, "", false)})
}

// Cleanup removes witnesses subsumed by another witness of c.
func (c Constraint) Cleanup() Constraint {
	if len(c.ws) < 2 {
		return c
	}
	out := make([]Witness, 0, len(c.ws))
	for i, w := range c.ws {
		subsumed := false
		for j, o := range c.ws {
			if i == j || !o.subsumes(w) {
				continue
			}
			// mutual subsumption means identical witnesses; keep the first
			if !w.subsumes(o) || j < i {
				subsumed = true
				break
			}
		}
		if !subsumed {
			out = append(out, w)
		}
	}
	if len(out) == len(c.ws) {
		return c
	}
	return newConstraint(out)
}

// Taint marks every witness as tainted.
func (c Constraint) Taint() Constraint {
	if len(c.ws) == 0 {
		return c
	}
	out := make([]Witness, len(c.ws))
	for i, w := range c.ws {
		out[i] = newWitness(w.bound, w.excluded, w.origin, true)
	}
	return newConstraint(out)
}

// Age moves c across a return of the analyzed procedure: positive bindings
// become stale and negative bindings, which only speak about the finished
// activation, are dropped.
func (c Constraint) Age() Constraint {
	if len(c.ws) == 0 {
		return c
	}
	out := make([]Witness, len(c.ws))
	for i, w := range c.ws {
		var bound []Binding
		if len(w.bound) > 0 {
			bound = make([]Binding, len(w.bound))
			for k, b := range w.bound {
				b.Stale = true
				bound[k] = b
			}
		}
		out[i] = newWitness(bound, nil, w.origin, w.tainted)
	}
	return newConstraint(out).Cleanup()
}

// String renders c for diagnostics.
func (c Constraint) String() string {
	switch {
	case len(c.ws) == 0:
		return "false"
	case c.Equal(True):
		return "true"
	}
	parts := make([]string, len(c.ws))
	for i, w := range c.ws {
		parts[i] = w.String()
	}
	return "{" + strings.Join(parts, " | ") + "}"
}

func checkBound(vars []string, raw map[string]Ref) error {
	for _, v := range vars {
		if _, ok := raw[v]; !ok {
			return fmt.Errorf("%w: no binding for variable %q", ErrUnclassifiable, v)
		}
	}
	return nil
}

func orUnknown(o AliasOracle) AliasOracle {
	if o == nil {
		return Unknown{}
	}
	return o
}
