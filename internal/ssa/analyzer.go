package ssa

import (
	"golang.org/x/tools/go/ssa"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/directive"
)

// Analyzer turns the functions of a package into procedures.
//
// Example usage:
//
//	bearing := ssa.ComputeBearing(prog, isSymbol, imported)
//	analyzer := ssa.NewAnalyzer(auto, symbols, bearing)
//	for _, fn := range srcFuncs {
//	    p, err := analyzer.Analyze(fn)
//	    ...
//	}
type Analyzer struct {
	builder *Builder
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(a *automaton.Automaton, symbols *directive.SymbolSet, bearing *Bearing) *Analyzer {
	return &Analyzer{builder: NewBuilder(a, symbols, bearing)}
}

// Builder returns the underlying Builder.
func (a *Analyzer) Builder() *Builder { return a.builder }

// Analyze builds the procedure of fn. It returns nil when fn has no body or
// contains no shadow, since such a function has nothing to elide.
func (a *Analyzer) Analyze(fn *ssa.Function) (*Procedure, error) {
	if fn == nil || fn.Blocks == nil {
		return nil, nil
	}
	p, err := a.builder.Build(fn)
	if err != nil {
		return nil, err
	}
	if len(p.Shadows) == 0 {
		return nil, nil
	}
	return p, nil
}
