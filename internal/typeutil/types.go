// Package typeutil provides type-related utilities for the tmelide front end.
//
// It classifies the types of call arguments (function values, interfaces)
// and decides whether allocations of a type get a unique address.
package typeutil

import "go/types"

// sizes matches the gc toolchain on a 64-bit target. Only the zero/non-zero
// distinction is used, which does not depend on the target.
var sizes = types.SizesFor("gc", "amd64")

// =============================================================================
// Type Detection
// =============================================================================

// IsFunc checks if the given type is a function type.
func IsFunc(t types.Type) bool {
	if t == nil {
		return false
	}
	_, ok := t.Underlying().(*types.Signature)
	return ok
}

// IsInterface checks if the given type is an interface type, excluding type
// parameters.
func IsInterface(t types.Type) bool {
	if t == nil {
		return false
	}
	if _, ok := t.(*types.TypeParam); ok {
		return false
	}
	return types.IsInterface(t)
}

// HasUniqueAddress reports whether distinct allocations of t are guaranteed
// distinct addresses. Zero-sized types may share one, and the size of a type
// mentioning type parameters is unknown.
func HasUniqueAddress(t types.Type) bool {
	if t == nil || ContainsTypeParam(t) {
		return false
	}
	return sizes.Sizeof(t) > 0
}

// =============================================================================
// Type Parameters
// =============================================================================

// ContainsTypeParam checks if a type mentions a type parameter anywhere in
// its structure. It recursively checks struct fields, pointers, slices,
// arrays, maps, channels and signatures.
func ContainsTypeParam(t types.Type) bool {
	cache := make(map[types.Type]*cacheEntry)
	return containsTypeParamWithCache(t, cache)
}

// cacheEntry tracks the state of type checking to handle cycles.
type cacheEntry struct {
	inProgress bool // Currently being checked (for cycle detection)
	result     bool // Cached result after checking
}

// containsTypeParamWithCache performs the actual type checking with cycle detection.
func containsTypeParamWithCache(t types.Type, cache map[types.Type]*cacheEntry) bool {
	if t == nil {
		return false
	}

	if entry, ok := cache[t]; ok {
		if entry.inProgress {
			// cycle through a named type, nothing new on this path
			return false
		}
		return entry.result
	}

	cache[t] = &cacheEntry{inProgress: true}

	result := false
	switch typ := t.(type) {
	case *types.TypeParam:
		result = true
	case *types.Named:
		if args := typ.TypeArgs(); args != nil {
			for i := 0; i < args.Len() && !result; i++ {
				result = containsTypeParamWithCache(args.At(i), cache)
			}
		}
		if !result {
			result = containsTypeParamWithCache(typ.Underlying(), cache)
		}
	case *types.Alias:
		result = containsTypeParamWithCache(types.Unalias(typ), cache)
	case *types.Struct:
		for i := 0; i < typ.NumFields() && !result; i++ {
			result = containsTypeParamWithCache(typ.Field(i).Type(), cache)
		}
	case *types.Pointer:
		result = containsTypeParamWithCache(typ.Elem(), cache)
	case *types.Slice:
		result = containsTypeParamWithCache(typ.Elem(), cache)
	case *types.Array:
		result = containsTypeParamWithCache(typ.Elem(), cache)
	case *types.Map:
		result = containsTypeParamWithCache(typ.Key(), cache) || containsTypeParamWithCache(typ.Elem(), cache)
	case *types.Chan:
		result = containsTypeParamWithCache(typ.Elem(), cache)
	case *types.Tuple:
		for i := 0; i < typ.Len() && !result; i++ {
			result = containsTypeParamWithCache(typ.At(i).Type(), cache)
		}
	case *types.Signature:
		result = containsTypeParamWithCache(typ.Params(), cache) || containsTypeParamWithCache(typ.Results(), cache)
	}

	cache[t] = &cacheEntry{inProgress: false, result: result}
	return result
}
