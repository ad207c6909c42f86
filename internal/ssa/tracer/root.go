// Package tracer traces SSA values back to the value that determines their
// object identity.
//
// # Tracing Model
//
// Two SSA values denote the same object when they trace to the same root.
// Tracing only follows instructions that preserve identity:
//
//	┌───────────────────────────────────────────────────────────────────────┐
//	│  SSA Construct          │  Tracing Behavior                          │
//	├───────────────────────────────────────────────────────────────────────┤
//	│  *ssa.ChangeType        │  Trace the operand                         │
//	│  *ssa.Convert (pointer) │  Trace the operand                         │
//	│  *ssa.MakeInterface     │  Trace the wrapped value                   │
//	│  *ssa.ChangeInterface   │  Trace the operand                         │
//	│  *ssa.TypeAssert        │  Trace the operand (panicking form only)   │
//	│  *ssa.Phi               │  Root of the edges if they all agree       │
//	│  *ssa.UnOp (deref)      │  STOP - each load is its own root          │
//	│  *ssa.Extract           │  STOP - comma-ok results may be nil        │
//	│  anything else          │  STOP - the value is the root              │
//	└───────────────────────────────────────────────────────────────────────┘
//
// A Phi whose edges reach distinct roots is its own root.
package tracer

import (
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// RootTracer traces SSA values to their identity roots.
type RootTracer struct{}

// New creates a new RootTracer.
func New() *RootTracer {
	return &RootTracer{}
}

// FindRoot returns the root of v, or nil for a nil value.
func (t *RootTracer) FindRoot(v ssa.Value) ssa.Value {
	if v == nil {
		return nil
	}
	if root := t.trace(v, make(map[ssa.Value]bool)); root != nil {
		return root
	}
	return v
}

// trace returns the root of v. It returns nil when v leads back into the
// current path, which happens only through Phi cycles.
func (t *RootTracer) trace(v ssa.Value, path map[ssa.Value]bool) ssa.Value {
	if path[v] {
		return nil
	}
	path[v] = true
	defer delete(path, v)

	switch val := v.(type) {
	case *ssa.ChangeType:
		return t.trace(val.X, path)
	case *ssa.Convert:
		if isPointerLike(val.Type()) && isPointerLike(val.X.Type()) {
			return t.trace(val.X, path)
		}
		return val
	case *ssa.MakeInterface:
		return t.trace(val.X, path)
	case *ssa.ChangeInterface:
		return t.trace(val.X, path)
	case *ssa.TypeAssert:
		if val.CommaOk {
			return val
		}
		return t.trace(val.X, path)
	case *ssa.Phi:
		return t.tracePhi(val, path)
	}
	return v
}

// tracePhi returns the common root of all edges, skipping edges that cycle
// back into the current path.
func (t *RootTracer) tracePhi(phi *ssa.Phi, path map[ssa.Value]bool) ssa.Value {
	var root ssa.Value
	for _, edge := range phi.Edges {
		r := t.trace(edge, path)
		switch {
		case r == nil:
			continue
		case root == nil:
			root = r
		case !sameRoot(root, r):
			return phi
		}
	}
	if root == nil {
		return phi
	}
	return root
}

// sameRoot compares roots, treating equal constants as the same root.
func sameRoot(a, b ssa.Value) bool {
	if a == b {
		return true
	}
	ca, ok1 := a.(*ssa.Const)
	cb, ok2 := b.(*ssa.Const)
	return ok1 && ok2 && IsNilConst(ca) && IsNilConst(cb) && types.Identical(ca.Type(), cb.Type())
}

// IsNilConst checks if a value is a nil constant.
func IsNilConst(v ssa.Value) bool {
	c, ok := v.(*ssa.Const)
	return ok && c.IsNil()
}

func isPointerLike(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	}
	return false
}
