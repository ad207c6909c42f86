package constraint

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// precise treats equal refs as must-alias and distinct refs as may-not-alias.
type precise struct {
	fresh map[Ref]bool
}

func (precise) MustAlias(a, b Ref) bool   { return a == b }
func (precise) MayNotAlias(a, b Ref) bool { return a != b }
func (p precise) Fresh(r Ref) bool        { return p.fresh[r] }

func witnessStrings(c Constraint) []string {
	var out []string
	for _, w := range c.Witnesses() {
		out = append(out, w.String())
	}
	return out
}

func bind(t *testing.T, c Constraint, r Ref, origin string, o AliasOracle) Constraint {
	t.Helper()
	got, err := c.AddPositiveBinding([]string{"f"}, 1, map[string]Ref{"f": r}, origin, o)
	if err != nil {
		t.Fatalf("AddPositiveBinding(f=%s) error = %v", r, err)
	}
	return got
}

func skip(t *testing.T, c Constraint, r Ref, o AliasOracle) Constraint {
	t.Helper()
	got, err := c.AddNegativeBindings([]string{"f"}, 0, map[string]Ref{"f": r}, o)
	if err != nil {
		t.Fatalf("AddNegativeBindings(f=%s) error = %v", r, err)
	}
	return got
}

func TestConstraint_OrLaws(t *testing.T) {
	t.Parallel()

	o := precise{}
	a := bind(t, True, "x", "s1", o)
	b := bind(t, True, "y", "s2", o)
	c := skip(t, True, "z", o)

	if !a.Or(b).Equal(b.Or(a)) {
		t.Error("Or is not commutative")
	}
	if !a.Or(b).Or(c).Equal(a.Or(b.Or(c))) {
		t.Error("Or is not associative")
	}
	if !a.Or(a).Equal(a) {
		t.Error("Or is not idempotent")
	}
	if !a.Or(False).Equal(a) || !False.Or(a).Equal(a) {
		t.Error("False is not the identity of Or")
	}
	if got := a.Or(b).Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestConstraint_TrueFalse(t *testing.T) {
	t.Parallel()

	if !False.IsFalse() || !(Constraint{}).IsFalse() {
		t.Error("False and the zero value must be false")
	}
	if True.IsFalse() || True.Size() != 1 {
		t.Errorf("True = %v, want a single witness", True)
	}
	if !(Constraint{}).Equal(False) {
		t.Error("zero value must equal False")
	}
	if True.String() != "true" || False.String() != "false" {
		t.Errorf("String() = %q, %q", True.String(), False.String())
	}
}

func TestConstraint_AddPositiveBinding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		oracle AliasOracle
		second Ref
		want   []string
	}{
		{name: "must alias keeps", oracle: precise{}, second: "x", want: []string{"[f=x]@s2"}},
		{name: "may not alias drops", oracle: precise{}, second: "y", want: nil},
		{name: "unknown keeps", oracle: Unknown{}, second: "y", want: []string{"[f=x]@s2"}},
		{name: "nil oracle is unknown", oracle: nil, second: "y", want: []string{"[f=x]@s2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			first := bind(t, True, "x", "s1", tt.oracle)
			if diff := cmp.Diff([]string{"[f=x]@s1"}, witnessStrings(first)); diff != "" {
				t.Fatalf("first binding mismatch (-want +got):\n%s", diff)
			}
			got := bind(t, first, tt.second, "s2", tt.oracle)
			if diff := cmp.Diff(tt.want, witnessStrings(got)); diff != "" {
				t.Errorf("second binding mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConstraint_AddNegativeBindings(t *testing.T) {
	t.Parallel()

	o := precise{}

	excluded := skip(t, True, "x", o)
	if diff := cmp.Diff([]string{"[f!=x]"}, witnessStrings(excluded)); diff != "" {
		t.Fatalf("negative binding mismatch (-want +got):\n%s", diff)
	}
	if got := bind(t, excluded, "x", "s1", o); !got.IsFalse() {
		t.Errorf("binding an excluded ref = %v, want false", got)
	}
	if diff := cmp.Diff([]string{"[f=y]@s1"}, witnessStrings(bind(t, excluded, "y", "s1", o))); diff != "" {
		t.Errorf("binding another ref mismatch (-want +got):\n%s", diff)
	}

	bound := bind(t, True, "x", "s1", o)
	if got := skip(t, bound, "x", o); !got.IsFalse() {
		t.Errorf("skip matching a bound witness = %v, want false", got)
	}
	if got := skip(t, bound, "y", o); !got.Equal(bound) {
		t.Errorf("skip not matching = %v, want %v unchanged", got, bound)
	}
	if got := skip(t, bound, "x", Unknown{}); !got.Equal(bound) {
		t.Errorf("skip with unknown oracle = %v, want %v unchanged", got, bound)
	}
}

func TestConstraint_AddNegativeBindings_NoVariables(t *testing.T) {
	t.Parallel()

	got, err := True.AddNegativeBindings(nil, 0, nil, Unknown{})
	if err != nil {
		t.Fatalf("AddNegativeBindings() error = %v", err)
	}
	if !got.IsFalse() {
		t.Errorf("skip without variables = %v, want false", got)
	}
}

func TestConstraint_AddNegativeBindings_TwoVariables(t *testing.T) {
	t.Parallel()

	vars := []string{"a", "b"}
	got, err := True.AddNegativeBindings(vars, 0, map[string]Ref{"a": "x", "b": "y"}, precise{})
	if err != nil {
		t.Fatalf("AddNegativeBindings() error = %v", err)
	}
	if !got.Equal(True) {
		t.Errorf("two unbound variables = %v, want true unchanged", got)
	}
}

func TestConstraint_Unclassifiable(t *testing.T) {
	t.Parallel()

	_, err := True.AddPositiveBinding([]string{"f"}, 1, map[string]Ref{}, "s1", Unknown{})
	if !errors.Is(err, ErrUnclassifiable) {
		t.Errorf("AddPositiveBinding() error = %v, want ErrUnclassifiable", err)
	}
	_, err = True.AddNegativeBindings([]string{"f"}, 0, nil, Unknown{})
	if !errors.Is(err, ErrUnclassifiable) {
		t.Errorf("AddNegativeBindings() error = %v, want ErrUnclassifiable", err)
	}
}

func TestConstraint_Cleanup(t *testing.T) {
	t.Parallel()

	general := newWitness(nil, nil, "s1", false)
	specific := newWitness([]Binding{{Var: "f", Ref: "x"}}, nil, "s1", false)
	otherOrigin := newWitness([]Binding{{Var: "f", Ref: "x"}}, nil, "s2", false)
	taintedSpecific := newWitness([]Binding{{Var: "f", Ref: "y"}}, nil, "s1", true)

	tests := []struct {
		name string
		in   []Witness
		want []string
	}{
		{
			name: "subset of bindings subsumes",
			in:   []Witness{specific, general},
			want: []string{"[]@s1"},
		},
		{
			name: "different origins are kept",
			in:   []Witness{general, otherOrigin},
			want: []string{"[]@s1", "[f=x]@s2"},
		},
		{
			name: "taint is not subsumed by untainted",
			in:   []Witness{general, taintedSpecific},
			want: []string{"[f=y]@s1 tainted", "[]@s1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := newConstraint(tt.in).Cleanup()
			if diff := cmp.Diff(tt.want, witnessStrings(got)); diff != "" {
				t.Errorf("Cleanup() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConstraint_TaintAndAge(t *testing.T) {
	t.Parallel()

	o := precise{fresh: map[Ref]bool{"new": true}}
	c := bind(t, True, "x", "s1", o)

	if c.Tainted() {
		t.Error("fresh binding must not be tainted")
	}
	if !c.Taint().Tainted() {
		t.Error("Taint() must taint")
	}

	aged := c.Age()
	if diff := cmp.Diff([]string{"[f=x']@s1"}, witnessStrings(aged)); diff != "" {
		t.Fatalf("Age() mismatch (-want +got):\n%s", diff)
	}
	if got := skip(t, aged, "x", o); !got.Equal(aged) {
		t.Errorf("stale binding must never must-alias, got %v", got)
	}
	if got := bind(t, aged, "new", "s2", o); !got.IsFalse() {
		t.Errorf("stale binding against fresh ref = %v, want false", got)
	}
	if got := bind(t, aged, "x", "s2", o); got.IsFalse() {
		t.Error("stale binding against non-fresh ref must be kept")
	}
	if got := skip(t, True, "x", o).Age(); !got.Equal(True) {
		t.Errorf("Age() must drop negative bindings, got %v", got)
	}
}

func TestConstraint_Immutable(t *testing.T) {
	t.Parallel()

	c := bind(t, True, "x", "s1", precise{})
	key := c.Key()
	_ = c.Taint()
	_ = c.Age()
	_ = skip(t, c, "y", precise{})
	_ = bind(t, c, "x", "s2", precise{})
	if c.Key() != key {
		t.Errorf("receiver changed: %s -> %s", key, c.Key())
	}
	if True.Size() != 1 || !True.Equal(newConstraint([]Witness{newWitness(nil, nil, "", false)})) {
		t.Errorf("True changed: %v", True)
	}
}

// A more precise oracle can only remove witnesses, so whenever the unknown
// oracle proves a state unreachable the precise one does too.
func TestConstraint_SoundnessMonotonic(t *testing.T) {
	t.Parallel()

	type event struct {
		skip bool
		ref  Ref
	}
	sequences := [][]event{
		{{ref: "x"}, {ref: "x"}},
		{{ref: "x"}, {ref: "y"}},
		{{skip: true, ref: "x"}, {ref: "x"}},
		{{skip: true, ref: "x"}, {ref: "y"}, {skip: true, ref: "y"}},
		{{ref: "x"}, {skip: true, ref: "x"}},
	}

	run := func(seq []event, o AliasOracle) Constraint {
		c := True
		for i, e := range seq {
			if e.skip {
				c = skip(t, c, e.ref, o)
			} else {
				c = bind(t, c, e.ref, string(rune('a'+i)), o)
			}
		}
		return c
	}

	for _, seq := range sequences {
		p, u := run(seq, precise{}), run(seq, Unknown{})
		if u.IsFalse() && !p.IsFalse() {
			t.Errorf("%v: unknown oracle = false but precise = %v", seq, p)
		}
		if p.Size() > u.Size() {
			t.Errorf("%v: precise has more witnesses (%v) than unknown (%v)", seq, p, u)
		}
	}
}

func TestConstraint_KeyCanonical(t *testing.T) {
	t.Parallel()

	w1 := newWitness([]Binding{{Var: "f", Ref: "x"}}, nil, "s1", false)
	w2 := newWitness(nil, []Binding{{Var: "f", Ref: "y"}}, "", false)
	a := newConstraint([]Witness{w1, w2})
	b := newConstraint([]Witness{w2, w1, w2})

	if a.Key() != b.Key() {
		t.Errorf("Key() differs: %s vs %s", a.Key(), b.Key())
	}
	if b.Size() != 2 {
		t.Errorf("duplicates kept: Size() = %d", b.Size())
	}
}

// contained is precise and additionally knows which refs never leave the
// activation.
type contained struct {
	precise
	local map[Ref]bool
}

func (c contained) Escapes(r Ref) bool { return !c.local[r] }

func TestConstraint_Entered(t *testing.T) {
	t.Parallel()

	o := precise{fresh: map[Ref]bool{"new": true}}
	c := Entered([]string{"f"})
	if diff := cmp.Diff([]string{"[f=<outside>']"}, witnessStrings(c)); diff != "" {
		t.Fatalf("Entered() mismatch (-want +got):\n%s", diff)
	}
	if got := bind(t, c, "new", "s1", o); !got.IsFalse() {
		t.Errorf("object of a caller against fresh ref = %v, want false", got)
	}
	if got := bind(t, c, "param:f", "s1", o); got.IsFalse() {
		t.Error("object of a caller may be a parameter")
	}
	if !Entered(nil).Equal(True) {
		t.Errorf("Entered(nil) = %v, want true", Entered(nil))
	}
}

func TestConstraint_AddOutsideBinding(t *testing.T) {
	t.Parallel()

	o := contained{local: map[Ref]bool{"local": true}}
	tests := []struct {
		name string
		in   Constraint
		want []string
	}{
		{
			name: "untouched witness stays behind",
			in:   True,
			want: nil,
		},
		{
			name: "object of a caller stays behind",
			in:   Entered([]string{"f"}),
			want: nil,
		},
		{
			name: "escaping binding advances",
			in:   bind(t, True, "param:f", "s1", o).Age(),
			want: []string{"[f=param:f']@s1"},
		},
		{
			name: "local binding stays behind",
			in:   bind(t, True, "local", "s1", o).Age(),
			want: nil,
		},
		{
			name: "advanced object of a caller advances",
			in:   bind(t, Entered([]string{"f"}), "param:f", "s1", o),
			want: []string{"[f=<outside>']@s1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.AddOutsideBinding([]string{"f"}, 1, o)
			if diff := cmp.Diff(tt.want, witnessStrings(got)); diff != "" {
				t.Errorf("AddOutsideBinding() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("unbound variable binds outside", func(t *testing.T) {
		c := bind(t, True, "local", "s1", o)
		got := c.AddOutsideBinding([]string{"g"}, 2, o)
		if diff := cmp.Diff([]string{"[f=local, g=<outside>']@s1"}, witnessStrings(got)); diff != "" {
			t.Errorf("AddOutsideBinding() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("without escape facts every binding escapes", func(t *testing.T) {
		c := bind(t, True, "local", "s1", precise{}).Age()
		if got := c.AddOutsideBinding([]string{"f"}, 1, precise{}); got.IsFalse() {
			t.Error("binding must escape without an EscapeOracle")
		}
	})
}
