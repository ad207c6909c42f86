package ssa

import (
	"fmt"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/cfg"
	"github.com/mpyw/tmelide/internal/constraint"
	"github.com/mpyw/tmelide/internal/directive"
	"github.com/mpyw/tmelide/internal/shadow"
	"github.com/mpyw/tmelide/internal/typeutil"
)

// Procedure is the front end's view of one SSA function.
type Procedure struct {
	Fn      *ssa.Function
	Graph   *cfg.Graph
	Oracle  *Oracle
	Shadows []*shadow.Shadow
}

// Builder converts SSA functions into procedure graphs.
type Builder struct {
	auto    *automaton.Automaton
	symbols *directive.SymbolSet
	bearing *Bearing
}

// NewBuilder creates a Builder. Calls to functions whose symbol is not
// declared by a are ignored.
func NewBuilder(a *automaton.Automaton, symbols *directive.SymbolSet, bearing *Bearing) *Builder {
	return &Builder{auto: a, symbols: symbols, bearing: bearing}
}

// Symbol returns the declared symbol emitted by calls to fn.
func (b *Builder) Symbol(fn *ssa.Function) (directive.Symbol, bool) {
	sym, ok := b.symbols.Lookup(fn)
	if !ok {
		return directive.Symbol{}, false
	}
	if _, declared := b.auto.Variables(sym.Name); !declared {
		return directive.Symbol{}, false
	}
	return sym, true
}

// Build converts fn into a procedure graph with one node per basic block.
//
//	call to a symbol function        → shadow effect
//	call that may emit events        → taint effect
//	defer/go of a symbol function    → unmodelable effect
//	deferred call that emits events  → taint at each exit and at recover
//
// The recover block, if any, is reachable from every block. Blocks ending
// in a return or a panic are exits.
func (b *Builder) Build(fn *ssa.Function) (*Procedure, error) {
	if fn == nil || len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("%v: function has no body", fn)
	}

	p := &Procedure{
		Fn:     fn,
		Graph:  cfg.New(fn.String()),
		Oracle: NewOracle(fn, b.isSymbol),
	}
	for _, block := range fn.Blocks {
		p.Graph.AddNode(blockLabel(block))
	}

	deferTaint := ""
	for _, block := range fn.Blocks {
		n := cfg.NodeID(block.Index)
		for _, instr := range block.Instrs {
			switch in := instr.(type) {
			case *ssa.Call:
				if err := b.call(p, n, in); err != nil {
					return nil, err
				}
			case *ssa.Defer:
				if sym, ok := b.staticSymbol(in.Common()); ok {
					b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectUnmodelable, Reason: "deferred call emits " + sym.Name})
				} else if reason, ok := b.taints(in.Common()); ok && deferTaint == "" {
					deferTaint = "deferred " + reason
				}
			case *ssa.Go:
				if sym, ok := b.staticSymbol(in.Common()); ok {
					b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectUnmodelable, Reason: "goroutine emits " + sym.Name})
				} else if reason, ok := b.taints(in.Common()); ok {
					b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectUnmodelable, Reason: "goroutine " + reason})
				}
			case *ssa.RunDefers:
				if deferTaint != "" {
					b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectTaint, Reason: deferTaint})
				}
			}
		}
	}

	for _, block := range fn.Blocks {
		n := cfg.NodeID(block.Index)
		for _, succ := range block.Succs {
			if err := p.Graph.AddEdge(n, cfg.NodeID(succ.Index)); err != nil {
				return nil, err
			}
		}
		if rec := fn.Recover; rec != nil && rec != block {
			if err := p.Graph.AddEdge(n, cfg.NodeID(rec.Index)); err != nil {
				return nil, err
			}
		}
		switch block.Instrs[len(block.Instrs)-1].(type) {
		case *ssa.Return:
			if err := p.Graph.MarkExit(n); err != nil {
				return nil, err
			}
		case *ssa.Panic:
			// deferred calls run while the panic unwinds
			if deferTaint != "" {
				b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectTaint, Reason: deferTaint})
			}
			if err := p.Graph.MarkExit(n); err != nil {
				return nil, err
			}
		}
	}
	if rec := fn.Recover; rec != nil && deferTaint != "" {
		b.addEffect(p, cfg.NodeID(rec.Index), cfg.Effect{Kind: cfg.EffectTaint, Reason: deferTaint})
	}

	return p, nil
}

// call classifies a call instruction.
func (b *Builder) call(p *Procedure, n cfg.NodeID, call *ssa.Call) error {
	common := call.Common()
	if sym, ok := b.staticSymbol(common); ok {
		sh, err := b.shadow(p, call, sym)
		if err != nil {
			b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectUnmodelable, Reason: err.Error()})
			return nil
		}
		p.Shadows = append(p.Shadows, sh)
		b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectShadow, Shadow: sh})
	}
	if reason, ok := b.taints(common); ok {
		b.addEffect(p, n, cfg.Effect{Kind: cfg.EffectTaint, Reason: reason})
	}
	return nil
}

func (b *Builder) isSymbol(fn *ssa.Function) bool {
	_, ok := b.Symbol(fn)
	return ok
}

func (b *Builder) staticSymbol(common *ssa.CallCommon) (directive.Symbol, bool) {
	callee := common.StaticCallee()
	if callee == nil {
		return directive.Symbol{}, false
	}
	return b.Symbol(callee)
}

// shadow creates the shadow of a call to a symbol function. Arguments are
// bound positionally, receiver first.
func (b *Builder) shadow(p *Procedure, call *ssa.Call, sym directive.Symbol) (*shadow.Shadow, error) {
	args := call.Common().Args
	if len(sym.Params) > len(args) {
		return nil, fmt.Errorf("%s binds %d arguments, call passes %d", sym.Name, len(sym.Params), len(args))
	}
	bindings := make(map[string]constraint.Ref, len(sym.Params))
	for i, v := range sym.Params {
		if v == "" {
			continue
		}
		bindings[v] = p.Oracle.Ref(args[i])
	}
	return &shadow.Shadow{
		ID:        fmt.Sprintf("%s:%d", p.Fn.String(), len(p.Shadows)),
		Pos:       call.Pos(),
		Procedure: p.Fn.String(),
		Symbol:    sym.Name,
		Bindings:  bindings,
	}, nil
}

// taints reports whether a call may emit events the graph does not show,
// with the reason.
func (b *Builder) taints(common *ssa.CallCommon) (string, bool) {
	if _, ok := common.Value.(*ssa.Builtin); ok {
		return "", false
	}
	callee := common.StaticCallee()
	if callee == nil {
		if b.bearing.Any() {
			return "dynamic call " + common.String(), true
		}
		return "", false
	}
	if b.bearing.Has(callee) {
		return "call to " + callee.String() + " may emit events", true
	}
	if len(callee.Blocks) == 0 && b.bearing.Any() {
		for _, arg := range common.Args {
			if b.mayCallBack(arg) {
				return "call to " + callee.String() + " may call back", true
			}
		}
	}
	return "", false
}

// mayCallBack reports whether an argument passed to a function without a
// body may lead that function to emit events.
func (b *Builder) mayCallBack(arg ssa.Value) bool {
	switch {
	case typeutil.IsFunc(arg.Type()):
		var fn *ssa.Function
		switch v := arg.(type) {
		case *ssa.Function:
			fn = v
		case *ssa.MakeClosure:
			fn, _ = v.Fn.(*ssa.Function)
		}
		if fn == nil {
			return true
		}
		_, isSym := b.Symbol(fn)
		return isSym || b.bearing.Has(fn)
	case typeutil.IsInterface(arg.Type()):
		mi, ok := arg.(*ssa.MakeInterface)
		if !ok {
			return true
		}
		return b.hasEventMethod(mi.Parent().Prog, mi.X.Type())
	case isCallableSlice(arg.Type()):
		return b.variadicMayCallBack(arg)
	}
	return false
}

// variadicMayCallBack checks the elements stored into the backing array of
// a variadic argument slice.
func (b *Builder) variadicMayCallBack(arg ssa.Value) bool {
	if c, ok := arg.(*ssa.Const); ok && c.IsNil() {
		return false
	}
	sl, ok := arg.(*ssa.Slice)
	if !ok {
		return true
	}
	alloc, ok := sl.X.(*ssa.Alloc)
	if !ok {
		return true
	}
	for _, ref := range *alloc.Referrers() {
		ia, ok := ref.(*ssa.IndexAddr)
		if !ok {
			continue
		}
		for _, use := range *ia.Referrers() {
			if st, ok := use.(*ssa.Store); ok && st.Addr == ia && b.mayCallBack(st.Val) {
				return true
			}
		}
	}
	return false
}

func isCallableSlice(t types.Type) bool {
	s, ok := t.Underlying().(*types.Slice)
	return ok && (typeutil.IsFunc(s.Elem()) || typeutil.IsInterface(s.Elem()))
}

// hasEventMethod reports whether any method of t is a symbol or bearing
// function.
func (b *Builder) hasEventMethod(prog *ssa.Program, t types.Type) bool {
	mset := prog.MethodSets.MethodSet(t)
	for i := 0; i < mset.Len(); i++ {
		fn := prog.MethodValue(mset.At(i))
		if fn == nil {
			continue
		}
		if _, isSym := b.Symbol(fn); isSym || b.bearing.Has(fn) {
			return true
		}
	}
	return false
}

func (b *Builder) addEffect(p *Procedure, n cfg.NodeID, e cfg.Effect) {
	// n always comes from a block of p.Fn
	_ = p.Graph.AddEffect(n, e)
}

func blockLabel(block *ssa.BasicBlock) string {
	if block.Comment == "" {
		return fmt.Sprintf("%d", block.Index)
	}
	return fmt.Sprintf("%d.%s", block.Index, block.Comment)
}
