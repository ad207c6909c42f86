package directive

import (
	"fmt"
	"go/types"
)

// =============================================================================
// Signature Validation
// =============================================================================

// ValidateSymbol checks that a symbol directive fits the signature of the
// function it is attached to. Every bound argument must have reference
// identity, because bindings are compared by alias.
func ValidateSymbol(sig *types.Signature, sym Symbol) error {
	args := argTypes(sig)
	if len(sym.Params) > len(args) {
		return fmt.Errorf("tmelide:symbol %s binds %d arguments, function takes %d",
			sym.Name, len(sym.Params), len(args))
	}
	for i, v := range sym.Params {
		if v == "" {
			continue
		}
		if !IsReferenceLike(args[i]) {
			return fmt.Errorf("tmelide:symbol %s: variable %q binds %s, which has no identity",
				sym.Name, v, args[i])
		}
	}
	return nil
}

// argTypes returns the argument types of a call, receiver first.
func argTypes(sig *types.Signature) []types.Type {
	var ts []types.Type
	if recv := sig.Recv(); recv != nil {
		ts = append(ts, recv.Type())
	}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		ts = append(ts, params.At(i).Type())
	}
	return ts
}

// IsReferenceLike reports whether values of t are compared by identity:
// pointers, maps, channels, slices, functions and interfaces.
func IsReferenceLike(t types.Type) bool {
	if t == nil {
		return false
	}
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Map, *types.Chan, *types.Slice, *types.Signature, *types.Interface:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	case *types.TypeParam:
		return false
	}
	return false
}
