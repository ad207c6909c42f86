// Package directive handles tmelide comment directives.
//
// # Supported Directives
//
//	//tmelide:symbol <name> <var|_>...  - Calls to the function emit event <name>
//	//tmelide:ignore                    - Suppress a diagnostic, or exclude a function
//
// # Symbol Binding
//
// The variables of a symbol directive bind the call's arguments
// positionally, receiver first. An underscore leaves the argument unbound:
//
//	//tmelide:symbol close f
//	func (f *File) Close() error { ... }
//
//	//tmelide:symbol write _ f
//	func Write(ctx context.Context, f *File, p []byte) { ... }
//
// # Ignore Placement
//
// On a function declaration, the function is never elided. On or above a
// line, the diagnostic reported for that line is suppressed:
//
//	//tmelide:ignore
//	func legacy(f *File) { f.Close() }
//
//	f.Close() //tmelide:ignore
package directive

import (
	"fmt"
	"go/token"
	"strings"
)

const directivePrefix = "tmelide:"

// hasDirective checks if a comment contains the specified directive.
// Supports both "//tmelide:name" and "// tmelide:name".
func hasDirective(text, name string) bool {
	_, ok := directiveArgs(text, name)
	return ok
}

// directiveArgs returns the text following the directive name.
func directiveArgs(text, name string) (string, bool) {
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, directivePrefix+name)
	if !ok {
		return "", false
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest), true
}

// IsIgnoreDirective checks if a comment is an ignore directive.
func IsIgnoreDirective(text string) bool { return hasDirective(text, "ignore") }

// IsSymbolDirective checks if a comment is a symbol directive.
func IsSymbolDirective(text string) bool { return hasDirective(text, "symbol") }

// Symbol is a parsed symbol directive.
type Symbol struct {
	Name string
	// Params holds one entry per call argument, receiver first. An empty
	// entry leaves the argument unbound.
	Params []string
}

// Variables returns the bound variable names in argument order.
func (s Symbol) Variables() []string {
	var vars []string
	for _, p := range s.Params {
		if p != "" {
			vars = append(vars, p)
		}
	}
	return vars
}

// ParseSymbol parses a symbol directive comment.
//
//	//tmelide:symbol close f    → Symbol{Name: "close", Params: ["f"]}
//	//tmelide:symbol write _ f  → Symbol{Name: "write", Params: ["", "f"]}
func ParseSymbol(text string) (Symbol, error) {
	args, ok := directiveArgs(text, "symbol")
	if !ok {
		return Symbol{}, fmt.Errorf("not a symbol directive: %q", text)
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Symbol{}, fmt.Errorf("tmelide:symbol requires an event name")
	}

	sym := Symbol{Name: fields[0]}
	if !isIdent(sym.Name) {
		return Symbol{}, fmt.Errorf("tmelide:symbol: invalid event name %q", sym.Name)
	}
	seen := make(map[string]bool)
	for _, f := range fields[1:] {
		if f == "_" {
			sym.Params = append(sym.Params, "")
			continue
		}
		if !isIdent(f) {
			return Symbol{}, fmt.Errorf("tmelide:symbol %s: invalid variable %q", sym.Name, f)
		}
		if seen[f] {
			return Symbol{}, fmt.Errorf("tmelide:symbol %s: variable %q bound twice", sym.Name, f)
		}
		seen[f] = true
		sym.Params = append(sym.Params, f)
	}
	return sym, nil
}

func isIdent(s string) bool {
	return token.IsIdentifier(s) && s != "_"
}
