// Package internal connects the go/analysis pass to the elision engine.
//
// # Architecture
//
// This package serves as the bridge between the public analyzer and the
// internal machinery:
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                         Analysis Flow                                    │
//	│                                                                          │
//	│   analyzer.go (public)                                                   │
//	│        │                                                                 │
//	│        ▼                                                                 │
//	│   internal/analyzer.go   ◀── You are here                                │
//	│   ┌─────────────────────────────────────────────────────────────────┐   │
//	│   │  RunSSA()                                                       │   │
//	│   │    │                                                            │   │
//	│   │    ├── Compute shadow-bearing functions, export facts           │   │
//	│   │    ├── Build procedures (internal/ssa)                          │   │
//	│   │    ├── Register shadows                                         │   │
//	│   │    ├── Run the elision driver (internal/elision)                │   │
//	│   │    └── Report elided shadows, apply ignore directives           │   │
//	│   └─────────────────────────────────────────────────────────────────┘   │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// # Responsibilities
//
//   - Orchestrate the analysis of all source functions
//   - Handle function-level and line-level ignore directives
//   - Report unused ignore directives
//   - Dump debug output for functions matching the debug filter
package internal

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"log/slog"
	"regexp"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/debug"
	"github.com/mpyw/tmelide/internal/directive"
	"github.com/mpyw/tmelide/internal/elision"
	"github.com/mpyw/tmelide/internal/shadow"
	frontend "github.com/mpyw/tmelide/internal/ssa"
)

// Options configures RunSSA.
type Options struct {
	Automaton     *automaton.Automaton
	Parallel      int
	MaxIterations int
	Logger        *slog.Logger
	// DebugFilter selects the functions whose outcome is written to
	// DebugOutput. nil disables debug output.
	DebugFilter *regexp.Regexp
	DebugOutput io.Writer
}

// Directives holds the per-file directive information of a package.
type Directives struct {
	IgnoreMaps  map[string]directive.IgnoreMap
	FuncIgnores map[string]map[token.Pos]directive.FunctionIgnoreEntry
	Symbols     *directive.SymbolSet
	SkipFiles   map[string]bool
}

// Result is what RunSSA decided for a package.
type Result struct {
	Outcomes []elision.Outcome
	Registry *shadow.Registry
}

// =============================================================================
// Entry Point
// =============================================================================

// RunSSA runs the elision analysis on a package.
//
// Processing flow:
//  1. Compute shadow-bearing functions and export their facts
//  2. Build a procedure for each source function that contains shadows,
//     skipping excluded files and ignored functions
//  3. Apply the elision driver to all procedures
//  4. Report each disabled shadow (unless suppressed by line-level ignore)
//  5. Report unused ignore directives
func RunSSA(ctx context.Context, pass *analysis.Pass, ssaInfo *buildssa.SSA, dirs Directives, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	builder := frontend.NewBuilder(opts.Automaton, dirs.Symbols, nil)
	isSymbol := func(fn *ssa.Function) bool {
		_, ok := builder.Symbol(fn)
		return ok
	}
	imported := func(fn *ssa.Function) bool {
		obj := fn.Object()
		if fn.Blocks != nil || obj == nil || obj.Pkg() == nil || obj.Pkg() == pass.Pkg {
			return false
		}
		return pass.ImportObjectFact(obj, new(frontend.BearingFact))
	}
	bearing := frontend.ComputeBearing(ssaInfo.Pkg.Prog, isSymbol, imported)
	exportFacts(pass, bearing)

	registry := shadow.NewRegistry()
	analyzer := frontend.NewAnalyzer(opts.Automaton, dirs.Symbols, bearing)

	var (
		procs   []elision.Procedure
		shadows = make(map[string][]*shadow.Shadow)
	)
	for _, fn := range ssaInfo.SrcFuncs {
		if skip(pass, fn, dirs) {
			continue
		}
		p, err := analyzer.Analyze(fn)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", fn, err)
		}
		if p == nil {
			continue
		}
		for _, s := range p.Shadows {
			if err := registry.Register(s); err != nil {
				return nil, err
			}
		}
		name := fn.String()
		shadows[name] = p.Shadows
		procs = append(procs, elision.Procedure{Name: name, Graph: p.Graph, Oracle: p.Oracle})
	}

	result := &Result{Registry: registry}
	if len(procs) > 0 {
		driver := elision.NewDriver(opts.Automaton, registry,
			elision.WithLogger(logger),
			elision.WithMaxIterations(opts.MaxIterations),
		)
		outcomes, err := driver.ApplyAll(ctx, procs, opts.Parallel)
		if err != nil {
			return nil, err
		}
		result.Outcomes = outcomes
	}

	r := newReporter(pass, dirs.IgnoreMaps)
	for _, out := range result.Outcomes {
		if opts.DebugFilter != nil && opts.DebugOutput != nil && opts.DebugFilter.MatchString(out.Procedure) {
			info := debug.Collect(out, shadows[out.Procedure], registry)
			fmt.Fprintf(opts.DebugOutput, "\n=== Debug output for %s ===\n%s", out.Procedure, debug.Format(info, pass.Fset))
		}
		for _, id := range out.Disabled {
			s, ok := registry.Lookup(id)
			if !ok {
				continue
			}
			r.report(s.Pos, "instrumentation point %q can never contribute to a match of %s", s.Symbol, opts.Automaton.Name())
		}
	}

	// Report unused ignore directives
	for _, ignoreMap := range dirs.IgnoreMaps {
		if ignoreMap == nil {
			continue
		}
		for _, pos := range ignoreMap.UnusedIgnores() {
			pass.Reportf(pos, "unused tmelide:ignore directive")
		}
	}

	return result, nil
}

// exportFacts exports a BearingFact for each bearing function of the
// package.
func exportFacts(pass *analysis.Pass, bearing *frontend.Bearing) {
	for _, fn := range bearing.Funcs() {
		obj := fn.Object()
		if obj == nil || obj.Pkg() != pass.Pkg {
			continue
		}
		pass.ExportObjectFact(obj, new(frontend.BearingFact))
	}
}

// skip reports whether fn lies in an excluded file or inside a function
// carrying an ignore directive. Matching function ignores are marked used.
func skip(pass *analysis.Pass, fn *ssa.Function, dirs Directives) bool {
	pos := fn.Pos()
	if !pos.IsValid() {
		return true
	}
	filename := pass.Fset.Position(pos).Filename
	if dirs.SkipFiles[filename] {
		return true
	}

	funcIgnoreSet, ok := dirs.FuncIgnores[filename]
	if !ok {
		return false
	}
	for f := fn; f != nil; f = f.Parent() {
		if entry, ignored := funcIgnoreSet[f.Pos()]; ignored {
			// Mark the ignore directive as used (use the stored line number)
			if ignoreMap := dirs.IgnoreMaps[filename]; ignoreMap != nil {
				ignoreMap.MarkUsed(entry.DirectiveLine)
			}
			return true
		}
	}
	return false
}

// =============================================================================
// Reporter
// =============================================================================

// reporter wraps diagnostics with ignore directive handling.
//
// It ensures:
//   - Diagnostics at the same position are only reported once
//   - Line-level ignore directives suppress diagnostics
type reporter struct {
	pass       *analysis.Pass                 // For reporting diagnostics
	ignoreMaps map[string]directive.IgnoreMap // Line-level ignore directives per file
	reported   map[token.Pos]bool             // Deduplication of reports
}

func newReporter(pass *analysis.Pass, ignoreMaps map[string]directive.IgnoreMap) *reporter {
	return &reporter{
		pass:       pass,
		ignoreMaps: ignoreMaps,
		reported:   make(map[token.Pos]bool),
	}
}

// report reports a diagnostic if not ignored or already reported.
func (r *reporter) report(pos token.Pos, format string, args ...any) {
	if r.reported[pos] {
		return
	}
	r.reported[pos] = true

	position := r.pass.Fset.Position(pos)
	if m := r.ignoreMaps[position.Filename]; m != nil && m.ShouldIgnore(position.Line) {
		return // Suppressed by ignore directive
	}

	r.pass.Reportf(pos, format, args...)
}
