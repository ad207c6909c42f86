package constraint

// AliasOracle answers aliasing questions about Refs.
//
// MustAlias must only report true when both refs denote the same object on
// every execution; MayNotAlias must only report true when they never do.
// Reporting false from both is always sound.
type AliasOracle interface {
	MustAlias(a, b Ref) bool
	MayNotAlias(a, b Ref) bool
}

// FreshnessOracle is optionally implemented by an AliasOracle. Fresh reports
// that r always denotes an object allocated by the current activation, so it
// cannot alias a stale binding.
type FreshnessOracle interface {
	Fresh(r Ref) bool
}

// EscapeOracle is optionally implemented by an AliasOracle. Escapes reports
// whether code outside the current activation may reach the object r
// denotes. Without an EscapeOracle every ref escapes.
type EscapeOracle interface {
	Escapes(r Ref) bool
}

// Outside is the Ref of objects handled by code outside the analyzed
// activation: created before it started, or used after it returned.
const Outside Ref = "<outside>"

// Unknown is the oracle that knows nothing.
type Unknown struct{}

// MustAlias implements AliasOracle.
func (Unknown) MustAlias(Ref, Ref) bool { return false }

// MayNotAlias implements AliasOracle.
func (Unknown) MayNotAlias(Ref, Ref) bool { return false }

func mustAlias(o AliasOracle, b Binding, r Ref) bool {
	if b.Stale {
		return false
	}
	return o.MustAlias(b.Ref, r)
}

func mayNotAlias(o AliasOracle, b Binding, r Ref) bool {
	if b.Stale {
		f, ok := o.(FreshnessOracle)
		return ok && f.Fresh(r)
	}
	return o.MayNotAlias(b.Ref, r)
}

func escapes(o AliasOracle, r Ref) bool {
	if r == Outside {
		return true
	}
	e, ok := o.(EscapeOracle)
	return !ok || e.Escapes(r)
}
