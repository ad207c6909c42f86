// Package tmelide provides a static analysis tool that finds instrumentation
// points which can never contribute to a match of a temporal pattern.
//
// The pattern is a finite automaton over events, loaded from YAML. Functions
// annotated with //tmelide:symbol emit an event on every call. For each
// function containing such calls, the analyzer computes which automaton
// states its calls can drive an object to. Callers are assumed to have
// driven objects that exist before a call to any state. After the function
// returns, any code may emit any event on the objects that escaped it, and
// may call the function again. When no final state is reachable, every
// instrumentation point in the function is reported as removable.
package tmelide

import (
	"context"
	"flag"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"slices"
	"sync"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"

	"github.com/mpyw/tmelide/internal"
	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/directive"
	"github.com/mpyw/tmelide/internal/elision"
	frontend "github.com/mpyw/tmelide/internal/ssa"
)

// Config configures an analyzer built with NewAnalyzer.
type Config struct {
	// Automaton is the pattern. When nil, AutomatonFile is loaded instead.
	Automaton *automaton.Automaton
	// AutomatonFile is the path of a YAML automaton definition.
	AutomatonFile string
	// Debug is a regex of function names whose outcome is dumped to stderr.
	Debug string
	// Parallel bounds the number of procedures analyzed at once. Values
	// <= 0 mean no limit.
	Parallel int
	// MaxIterations bounds the fixpoint of each procedure.
	MaxIterations int
	// Verbose enables debug logging.
	Verbose bool
}

// Result is the result of the analyzer for one package.
type Result struct {
	// Outcomes holds one entry per analyzed procedure, in source order.
	Outcomes []elision.Outcome
	// Disabled lists the IDs of the removable instrumentation points.
	Disabled []string
}

// Analyzer is the main analyzer for tmelide, configured by flags.
var Analyzer = newAnalyzer(&Config{Parallel: 1}, true)

// NewAnalyzer creates an analyzer for a fixed configuration.
func NewAnalyzer(cfg Config) *analysis.Analyzer {
	return newAnalyzer(&cfg, false)
}

func newAnalyzer(cfg *Config, withFlags bool) *analysis.Analyzer {
	r := &runner{cfg: cfg}
	a := &analysis.Analyzer{
		Name:       "tmelide",
		Doc:        "reports instrumentation points that can never contribute to a match of a temporal pattern",
		Requires:   []*analysis.Analyzer{buildssa.Analyzer},
		Run:        r.run,
		FactTypes:  []analysis.Fact{new(frontend.BearingFact)},
		ResultType: reflect.TypeOf(new(Result)),
	}
	if withFlags {
		registerFlags(&a.Flags, cfg)
	}
	return a
}

func registerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.AutomatonFile, "automaton", "", "path of the YAML automaton definition")
	fs.StringVar(&cfg.Debug, "debug", "", "regex of function names whose analysis is dumped to stderr")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "maximum number of functions analyzed concurrently (<= 0: unlimited)")
	fs.IntVar(&cfg.MaxIterations, "max-iterations", 0, "fixpoint iteration bound per function (0: default)")
	fs.BoolVar(&cfg.Verbose, "v", false, "enable debug logging")
}

// runner holds the state shared by all passes of one analyzer.
type runner struct {
	cfg *Config

	once   sync.Once
	auto   *automaton.Automaton
	err    error
	debug  *regexp.Regexp
	logger *slog.Logger
}

// init resolves the configuration on first use, after flags are parsed.
func (r *runner) init() {
	r.once.Do(func() {
		level := slog.LevelWarn
		if r.cfg.Verbose {
			level = slog.LevelDebug
		}
		r.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		r.auto = r.cfg.Automaton
		if r.auto == nil && r.cfg.AutomatonFile != "" {
			r.auto, r.err = automaton.LoadFile(r.cfg.AutomatonFile)
			if r.err != nil {
				return
			}
		}
		if r.cfg.Debug != "" {
			r.debug, r.err = regexp.Compile(r.cfg.Debug)
			if r.err != nil {
				r.err = fmt.Errorf("invalid debug filter regex: %w", r.err)
			}
		}
	})
}

func (r *runner) run(pass *analysis.Pass) (any, error) {
	r.init()
	if r.err != nil {
		return nil, r.err
	}

	ssaInfo := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)

	// Build set of files to skip
	skipFiles := buildSkipFiles(pass)

	// Build directive information for each file (excluding skipped files)
	dirs := internal.Directives{
		IgnoreMaps:  make(map[string]directive.IgnoreMap),
		FuncIgnores: make(map[string]map[token.Pos]directive.FunctionIgnoreEntry),
		Symbols:     directive.NewSymbolSet(pass.Fset),
		SkipFiles:   skipFiles,
	}
	pkgPath := pass.Pkg.Path()
	for _, file := range pass.Files {
		filename := pass.Fset.Position(file.Pos()).Filename
		if skipFiles[filename] {
			continue
		}
		dirs.IgnoreMaps[filename] = directive.BuildIgnoreMap(pass.Fset, file)
		dirs.FuncIgnores[filename] = directive.BuildFunctionIgnoreSet(pass.Fset, file)

		symbols, malformed := directive.BuildSymbolSet(file, pkgPath)
		for _, m := range malformed {
			pass.Reportf(m.Pos, "%v", m.Err)
		}
		for key, sym := range symbols {
			dirs.Symbols.Add(key, sym)
		}
		validateSymbols(pass, file, r.auto)
	}

	// Without an automaton there is nothing to elide.
	if r.auto == nil {
		return &Result{}, nil
	}

	res, err := internal.RunSSA(context.Background(), pass, ssaInfo, dirs, internal.Options{
		Automaton:     r.auto,
		Parallel:      r.cfg.Parallel,
		MaxIterations: r.cfg.MaxIterations,
		Logger:        r.logger,
		DebugFilter:   r.debug,
		DebugOutput:   os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Outcomes: res.Outcomes, Disabled: res.Registry.Disabled()}, nil
}

// validateSymbols reports symbol directives that do not fit the signature
// of their function, or that bind other variables than the automaton
// declares for the symbol.
func validateSymbols(pass *analysis.Pass, file *ast.File, auto *automaton.Automaton) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}
		for _, c := range fd.Doc.List {
			if !directive.IsSymbolDirective(c.Text) {
				continue
			}
			sym, err := directive.ParseSymbol(c.Text)
			if err != nil {
				break // reported as malformed
			}
			obj, ok := pass.TypesInfo.Defs[fd.Name]
			if !ok || obj == nil {
				break
			}
			if sig, ok := obj.Type().(*types.Signature); ok {
				if err := directive.ValidateSymbol(sig, sym); err != nil {
					pass.Reportf(c.Pos(), "%v", err)
					break
				}
			}
			if auto == nil {
				break
			}
			if want, ok := auto.Variables(sym.Name); ok && !sameVariables(sym.Variables(), want) {
				pass.Reportf(c.Pos(), "tmelide:symbol %s binds %v, automaton %s declares %v",
					sym.Name, sym.Variables(), auto.Name(), want)
			}
			break
		}
	}
}

func sameVariables(got, want []string) bool {
	got, want = slices.Clone(got), slices.Clone(want)
	slices.Sort(got)
	slices.Sort(want)
	return slices.Equal(got, want)
}

// buildSkipFiles creates a set of filenames to skip.
// Generated files are always skipped.
// Test files can be skipped via the driver's built-in -test flag.
func buildSkipFiles(pass *analysis.Pass) map[string]bool {
	skipFiles := make(map[string]bool)

	for _, file := range pass.Files {
		filename := pass.Fset.Position(file.Pos()).Filename

		// Always skip generated files
		if ast.IsGenerated(file) {
			skipFiles[filename] = true
		}
	}

	return skipFiles
}
