package ssa

import (
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/mpyw/tmelide/internal/constraint"
	ssacfg "github.com/mpyw/tmelide/internal/ssa/cfg"
	"github.com/mpyw/tmelide/internal/ssa/tracer"
	"github.com/mpyw/tmelide/internal/typeutil"
)

// Oracle answers aliasing questions about the values of one function.
//
// Refs name the identity root of a value, so values with the same root get
// the same Ref:
//
//	param:f   parameter f
//	free:f    free variable f of a closure
//	global:p.v
//	const:nil:*p.File
//	t3        any other root, by SSA register name
//
// An Oracle is built once per function and is read-only afterwards.
type Oracle struct {
	tracer   *tracer.RootTracer
	analyzer *ssacfg.Analyzer
	loops    *ssacfg.LoopInfo
	isSymbol func(*ssa.Function) bool
	roots    map[constraint.Ref]ssa.Value
	escaping map[constraint.Ref]bool
}

// NewOracle creates an Oracle for fn. isSymbol reports the functions whose
// calls are events; they are assumed not to retain their arguments. It may
// be nil.
func NewOracle(fn *ssa.Function, isSymbol func(*ssa.Function) bool) *Oracle {
	analyzer := ssacfg.New()
	return &Oracle{
		tracer:   tracer.New(),
		analyzer: analyzer,
		loops:    analyzer.DetectLoops(fn),
		isSymbol: isSymbol,
		roots:    make(map[constraint.Ref]ssa.Value),
		escaping: make(map[constraint.Ref]bool),
	}
}

// Ref returns the Ref of v and records its root.
func (o *Oracle) Ref(v ssa.Value) constraint.Ref {
	root := o.tracer.FindRoot(v)
	r := refName(root)
	if _, ok := o.roots[r]; !ok {
		o.roots[r] = root
		o.escaping[r] = o.escapes(root)
	}
	return r
}

// Root returns the SSA value a Ref was derived from.
func (o *Oracle) Root(r constraint.Ref) (ssa.Value, bool) {
	v, ok := o.roots[r]
	return v, ok
}

// MustAlias reports whether a and b share a root that is evaluated at most
// once per activation.
func (o *Oracle) MustAlias(a, b constraint.Ref) bool {
	if a != b {
		return false
	}
	root, ok := o.roots[a]
	if !ok {
		return false
	}
	return o.analyzer.IsDefinedOutsideLoop(root, o.loops)
}

// MayNotAlias reports whether a and b never denote the same object: two
// distinct allocation sites, or an allocation site and a value that exists
// before the activation allocates anything.
func (o *Oracle) MayNotAlias(a, b constraint.Ref) bool {
	if a == b {
		return false
	}
	ra, ok1 := o.roots[a]
	rb, ok2 := o.roots[b]
	if !ok1 || !ok2 {
		return false
	}
	switch {
	case isAllocation(ra) && isAllocation(rb):
		return true
	case isAllocation(ra):
		return isEntryValue(rb)
	case isAllocation(rb):
		return isEntryValue(ra)
	}
	return false
}

// Fresh reports whether r is allocated by the current activation.
func (o *Oracle) Fresh(r constraint.Ref) bool {
	root, ok := o.roots[r]
	return ok && isAllocation(root)
}

// Escapes reports whether code outside the activation may reach r. Only an
// allocation that is never returned, stored, captured or passed on is kept
// inside.
func (o *Oracle) Escapes(r constraint.Ref) bool {
	esc, ok := o.escaping[r]
	return !ok || esc
}

func (o *Oracle) escapes(root ssa.Value) bool {
	if !isAllocation(root) {
		return true
	}
	seen := make(map[ssa.Value]bool)
	var walk func(v ssa.Value) bool
	walk = func(v ssa.Value) bool {
		if seen[v] {
			return false
		}
		seen[v] = true
		refs := v.Referrers()
		if refs == nil {
			return true
		}
		for _, instr := range *refs {
			if o.leaks(v, instr, walk) {
				return true
			}
		}
		return false
	}
	return walk(root)
}

// leaks reports whether instr hands v to code outside the activation.
// Values that carry v's identity are followed through walk.
func (o *Oracle) leaks(v ssa.Value, instr ssa.Instruction, walk func(ssa.Value) bool) bool {
	switch in := instr.(type) {
	case *ssa.DebugRef, *ssa.FieldAddr, *ssa.IndexAddr, *ssa.Lookup, *ssa.Range, *ssa.BinOp, *ssa.UnOp:
		return false
	case *ssa.Store:
		return in.Val == v
	case *ssa.MapUpdate:
		return in.Key == v || in.Value == v
	case *ssa.Send:
		return in.X == v
	case *ssa.ChangeType, *ssa.Convert, *ssa.MakeInterface, *ssa.ChangeInterface, *ssa.Phi:
		return walk(instr.(ssa.Value))
	case *ssa.Call:
		return o.callLeaks(in.Common(), v)
	}
	return true
}

func (o *Oracle) callLeaks(common *ssa.CallCommon, v ssa.Value) bool {
	if b, ok := common.Value.(*ssa.Builtin); ok {
		switch b.Name() {
		case "len", "cap", "print", "println":
			return false
		}
		return true
	}
	if common.IsInvoke() || common.Value == v {
		return true
	}
	callee := common.StaticCallee()
	return callee == nil || o.isSymbol == nil || !o.isSymbol(callee)
}

func refName(v ssa.Value) constraint.Ref {
	switch val := v.(type) {
	case *ssa.Parameter:
		return constraint.Ref("param:" + val.Name())
	case *ssa.FreeVar:
		return constraint.Ref("free:" + val.Name())
	case *ssa.Global:
		return constraint.Ref("global:" + val.RelString(nil))
	case *ssa.Const:
		return constraint.Ref("const:" + val.String())
	case *ssa.Function:
		return constraint.Ref("func:" + val.String())
	}
	return constraint.Ref(v.Name())
}

// isAllocation reports whether v creates a new object each time it is
// evaluated.
func isAllocation(v ssa.Value) bool {
	switch val := v.(type) {
	case *ssa.Alloc:
		ptr, ok := val.Type().Underlying().(*types.Pointer)
		return ok && typeutil.HasUniqueAddress(ptr.Elem())
	case *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeClosure:
		return true
	}
	return false
}

// isEntryValue reports whether v is fixed before the function body runs.
func isEntryValue(v ssa.Value) bool {
	switch v.(type) {
	case *ssa.Parameter, *ssa.FreeVar, *ssa.Global:
		return true
	}
	return false
}
