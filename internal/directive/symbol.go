package directive

import (
	"go/ast"
	"go/parser"
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// Malformed is a directive that could not be parsed.
type Malformed struct {
	Pos token.Pos
	Err error
}

// SymbolSet maps functions to the symbol their calls emit, with caching for
// external packages.
type SymbolSet struct {
	known map[FuncKey]Symbol
	fset  *token.FileSet
	cache map[string]*ast.File // cached parsed files
	hits  map[FuncKey]symbolHit
}

type symbolHit struct {
	sym Symbol
	ok  bool
}

// NewSymbolSet creates an empty SymbolSet. fset is used to locate and parse
// the sources of functions from other packages.
func NewSymbolSet(fset *token.FileSet) *SymbolSet {
	return &SymbolSet{
		known: make(map[FuncKey]Symbol),
		fset:  fset,
		cache: make(map[string]*ast.File),
		hits:  make(map[FuncKey]symbolHit),
	}
}

// Add records the symbol of a function.
func (s *SymbolSet) Add(key FuncKey, sym Symbol) {
	s.known[key] = sym
}

// Len returns the number of symbols declared in the analyzed package.
func (s *SymbolSet) Len() int { return len(s.known) }

// Lookup returns the symbol emitted by calls to fn.
func (s *SymbolSet) Lookup(fn *ssa.Function) (Symbol, bool) {
	if s == nil || fn == nil {
		return Symbol{}, false
	}
	key := KeyOf(fn)
	if sym, ok := s.known[key]; ok {
		return sym, true
	}
	if h, ok := s.hits[key]; ok {
		return h.sym, h.ok
	}
	sym, ok := s.lookupSource(fn, key)
	s.hits[key] = symbolHit{sym: sym, ok: ok}
	return sym, ok
}

// lookupSource reads the directive from the function's declaration. This
// allows detecting symbols in external packages.
func (s *SymbolSet) lookupSource(fn *ssa.Function, key FuncKey) (Symbol, bool) {
	if o := fn.Origin(); o != nil {
		fn = o
	}
	if fd, ok := fn.Syntax().(*ast.FuncDecl); ok {
		return symbolOf(fd)
	}

	if s.fset == nil {
		return Symbol{}, false
	}
	obj := fn.Object()
	if obj == nil || !obj.Pos().IsValid() {
		return Symbol{}, false
	}
	filename := s.fset.Position(obj.Pos()).Filename
	if filename == "" {
		return Symbol{}, false
	}
	file := s.parseFile(filename)
	if file == nil {
		return Symbol{}, false
	}
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || keyOfDecl(fd, key.PkgPath) != key {
			continue
		}
		return symbolOf(fd)
	}
	return Symbol{}, false
}

// parseFile parses a Go source file with caching.
func (s *SymbolSet) parseFile(filename string) *ast.File {
	if file, ok := s.cache[filename]; ok {
		return file
	}
	file, err := parser.ParseFile(token.NewFileSet(), filename, nil, parser.ParseComments)
	if err != nil {
		s.cache[filename] = nil
		return nil
	}
	s.cache[filename] = file
	return file
}

func symbolOf(fd *ast.FuncDecl) (Symbol, bool) {
	if fd.Doc == nil {
		return Symbol{}, false
	}
	for _, c := range fd.Doc.List {
		if !IsSymbolDirective(c.Text) {
			continue
		}
		sym, err := ParseSymbol(c.Text)
		return sym, err == nil
	}
	return Symbol{}, false
}

// BuildSymbolSet collects the symbol directives declared in file.
//
// Example:
//
//	//tmelide:symbol close f
//	func (f *File) Close() error
//	→ FuncKey{PkgPath: "...", ReceiverType: "File", FuncName: "Close"}: {close [f]}
func BuildSymbolSet(file *ast.File, pkgPath string) (map[FuncKey]Symbol, []Malformed) {
	result := make(map[FuncKey]Symbol)
	var malformed []Malformed

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}
		for _, c := range fd.Doc.List {
			if !IsSymbolDirective(c.Text) {
				continue
			}
			sym, err := ParseSymbol(c.Text)
			if err != nil {
				malformed = append(malformed, Malformed{Pos: c.Pos(), Err: err})
				break
			}
			result[keyOfDecl(fd, pkgPath)] = sym
			break
		}
	}
	return result, malformed
}
