package constraint

import (
	"slices"
	"strconv"
	"strings"
)

// Ref names the alias-equivalence-class representative bound to a pattern
// variable. Refs are opaque to this package; only the AliasOracle interprets
// them.
type Ref string

// Binding associates a pattern variable with a Ref.
//
// A stale binding refers to an object of an earlier activation of the
// analyzed procedure; it never must-aliases a current reference.
type Binding struct {
	Var   string
	Ref   Ref
	Stale bool
}

func (b Binding) compare(o Binding) int {
	if c := strings.Compare(b.Var, o.Var); c != 0 {
		return c
	}
	if c := strings.Compare(string(b.Ref), string(o.Ref)); c != 0 {
		return c
	}
	switch {
	case b.Stale == o.Stale:
		return 0
	case o.Stale:
		return -1
	default:
		return 1
	}
}

// Witness is one disjunct of a Constraint: a possible binding history.
//
// Witnesses are immutable. bound holds at most one binding per variable and
// is sorted by variable; excluded holds negative bindings recorded by skip
// edges, sorted by variable and ref.
type Witness struct {
	bound    []Binding
	excluded []Binding
	origin   string
	tainted  bool
	key      string
}

func newWitness(bound, excluded []Binding, origin string, tainted bool) Witness {
	w := Witness{bound: bound, excluded: excluded, origin: origin, tainted: tainted}
	w.key = w.computeKey()
	return w
}

// Bound returns a copy of the positive bindings.
func (w Witness) Bound() []Binding { return slices.Clone(w.bound) }

// Excluded returns a copy of the negative bindings.
func (w Witness) Excluded() []Binding { return slices.Clone(w.excluded) }

// Origin returns the id of the instrumentation point that last advanced this
// witness, or "" for the initial witness.
func (w Witness) Origin() string { return w.origin }

// Tainted reports whether the witness depends on a call to a procedure that
// carries instrumentation.
func (w Witness) Tainted() bool { return w.tainted }

// Lookup returns the positive binding of variable v.
func (w Witness) Lookup(v string) (Binding, bool) {
	i, ok := slices.BinarySearchFunc(w.bound, v, func(b Binding, v string) int {
		return strings.Compare(b.Var, v)
	})
	if !ok {
		return Binding{}, false
	}
	return w.bound[i], true
}

// subsumes reports whether every execution described by o is also described
// by w.
func (w Witness) subsumes(o Witness) bool {
	if w.origin != o.origin {
		return false
	}
	if o.tainted && !w.tainted {
		return false
	}
	return isSubset(w.bound, o.bound) && isSubset(w.excluded, o.excluded)
}

func isSubset(small, large []Binding) bool {
	if len(small) > len(large) {
		return false
	}
	j := 0
	for _, b := range small {
		for j < len(large) && large[j].compare(b) < 0 {
			j++
		}
		if j == len(large) || large[j].compare(b) != 0 {
			return false
		}
		j++
	}
	return true
}

func (w Witness) computeKey() string {
	var buf strings.Builder
	buf.WriteString(strconv.Quote(w.origin))
	if w.tainted {
		buf.WriteString("!t")
	}
	buf.WriteByte('(')
	for i, b := range w.bound {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeBinding(&buf, b, "=")
	}
	buf.WriteByte(';')
	for i, b := range w.excluded {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeBinding(&buf, b, "!=")
	}
	buf.WriteByte(')')
	return buf.String()
}

func writeBinding(buf *strings.Builder, b Binding, op string) {
	buf.WriteString(strconv.Quote(b.Var))
	buf.WriteString(op)
	buf.WriteString(strconv.Quote(string(b.Ref)))
	if b.Stale {
		buf.WriteByte('\'')
	}
}

// String renders the witness for diagnostics.
func (w Witness) String() string {
	var parts []string
	for _, b := range w.bound {
		s := b.Var + "=" + string(b.Ref)
		if b.Stale {
			s += "'"
		}
		parts = append(parts, s)
	}
	for _, b := range w.excluded {
		parts = append(parts, b.Var+"!="+string(b.Ref))
	}
	s := "[" + strings.Join(parts, ", ") + "]"
	if w.origin != "" {
		s += "@" + w.origin
	}
	if w.tainted {
		s += " tainted"
	}
	return s
}

func insertBinding(bs []Binding, b Binding) []Binding {
	i, found := slices.BinarySearchFunc(bs, b, Binding.compare)
	if found {
		return bs
	}
	return slices.Insert(slices.Clone(bs), i, b)
}

func withoutVar(bs []Binding, v string) []Binding {
	if !slices.ContainsFunc(bs, func(b Binding) bool { return b.Var == v }) {
		return bs
	}
	out := make([]Binding, 0, len(bs))
	for _, b := range bs {
		if b.Var != v {
			out = append(out, b)
		}
	}
	return out
}
