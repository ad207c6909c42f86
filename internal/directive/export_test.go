package directive

import (
	"go/ast"
	"go/token"
)

// Export unexported functions for testing.

// ExprToString exports exprToString for external tests.
func ExprToString(expr ast.Expr) string {
	return exprToString(expr)
}

// KeyOfDecl exports keyOfDecl for external tests.
func KeyOfDecl(fd *ast.FuncDecl, pkgPath string) FuncKey {
	return keyOfDecl(fd, pkgPath)
}

// Add exports the ability to add an entry to IgnoreMap for external tests.
// For file-level ignores (line = -1), the entry is marked as used by default
// to match the behavior of BuildIgnoreMap.
func (m IgnoreMap) Add(line int, pos token.Pos) {
	m[line] = &ignoreEntry{pos: pos, used: line == -1}
}

// ContainsKey reports whether key was added to the set.
func (s *SymbolSet) ContainsKey(key FuncKey) bool {
	if s == nil {
		return false
	}
	_, ok := s.known[key]
	return ok
}
