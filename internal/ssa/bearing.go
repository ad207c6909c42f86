package ssa

import (
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/ssa"
)

// BearingFact marks a function that may emit events when called, because
// its body calls a symbol function directly or transitively. It is exported
// on the functions of each analyzed package so that importers see it.
type BearingFact struct{}

// AFact implements analysis.Fact.
func (*BearingFact) AFact() {}

func (*BearingFact) String() string { return "bearing" }

// Bearing is the set of shadow-bearing functions of a program.
type Bearing struct {
	funcs   map[*ssa.Function]bool
	symbols bool
}

// ComputeBearing builds the static call graph of prog and marks every
// function that reaches a symbol function or an imported bearing function.
//
//	isSymbol: calls to the function are events
//	imported: the function is external and carries a BearingFact
func ComputeBearing(prog *ssa.Program, isSymbol, imported func(*ssa.Function) bool) *Bearing {
	b := &Bearing{funcs: make(map[*ssa.Function]bool)}
	cg := static.CallGraph(prog)
	cg.DeleteSyntheticNodes()

	var queue []*callgraph.Node
	for fn, node := range cg.Nodes {
		if fn == nil {
			continue
		}
		switch {
		case isSymbol(fn):
			b.symbols = true
			queue = append(queue, node)
		case imported(fn):
			b.funcs[fn] = true
			queue = append(queue, node)
		}
	}

	// Reverse BFS: callers of a bearing function are bearing.
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, in := range node.In {
			caller := in.Caller.Func
			if caller == nil || b.funcs[caller] {
				continue
			}
			b.funcs[caller] = true
			queue = append(queue, in.Caller)
		}
	}
	return b
}

// Has reports whether calling fn may emit events.
func (b *Bearing) Has(fn *ssa.Function) bool {
	if b == nil || fn == nil {
		return false
	}
	if o := fn.Origin(); o != nil && b.funcs[o] {
		return true
	}
	return b.funcs[fn]
}

// Any reports whether the program references a symbol function or has any
// bearing function.
func (b *Bearing) Any() bool {
	return b != nil && (b.symbols || len(b.funcs) > 0)
}

// Funcs returns the bearing functions.
func (b *Bearing) Funcs() []*ssa.Function {
	if b == nil {
		return nil
	}
	out := make([]*ssa.Function, 0, len(b.funcs))
	for fn := range b.funcs {
		out = append(out, fn)
	}
	return out
}
