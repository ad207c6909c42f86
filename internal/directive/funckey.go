package directive

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FuncKey identifies a function declaration.
// This provides a structured way to match AST declarations with SSA functions,
// avoiding fragile string comparison with fn.String().
type FuncKey struct {
	PkgPath      string // Package path (e.g., "github.com/example/pkg")
	ReceiverType string // Receiver type name without pointer/package (e.g., "File"), empty for functions
	FuncName     string // Function or method name
}

// KeyOf returns the key of an SSA function. Generic instantiations map to
// their origin.
func KeyOf(fn *ssa.Function) FuncKey {
	if o := fn.Origin(); o != nil {
		fn = o
	}
	key := FuncKey{FuncName: fn.Name()}
	if fn.Pkg != nil && fn.Pkg.Pkg != nil {
		key.PkgPath = fn.Pkg.Pkg.Path()
	} else if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		key.PkgPath = obj.Pkg().Path()
	}
	if sig := fn.Signature; sig != nil && sig.Recv() != nil {
		key.ReceiverType = formatReceiverType(sig.Recv().Type())
	}
	return key
}

// keyOfDecl returns the key of a declaration in package pkgPath.
func keyOfDecl(fd *ast.FuncDecl, pkgPath string) FuncKey {
	key := FuncKey{PkgPath: pkgPath, FuncName: fd.Name.Name}
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		key.ReceiverType = stripPointer(exprToString(fd.Recv.List[0].Type))
	}
	return key
}

// formatReceiverType extracts the base type name from a receiver type.
// Returns just the type name without pointer (e.g., "File" for both *File and File).
func formatReceiverType(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

// stripPointer removes leading "*" from a type string.
func stripPointer(s string) string {
	return strings.TrimPrefix(s, "*")
}

// exprToString converts an ast.Expr to a string representation.
// For generic types like Pool[T], returns just the base type name.
func exprToString(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return "*" + exprToString(e.X)
	case *ast.SelectorExpr:
		return exprToString(e.X) + "." + e.Sel.Name
	case *ast.IndexExpr:
		return exprToString(e.X)
	case *ast.IndexListExpr:
		return exprToString(e.X)
	case *ast.ParenExpr:
		return exprToString(e.X)
	default:
		return ""
	}
}
