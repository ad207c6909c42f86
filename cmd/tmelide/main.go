// Command tmelide reports instrumentation points that can never contribute
// to a match of a temporal pattern.
//
// Usage:
//
//	tmelide -automaton=pattern.yaml ./...
//
// Or as a vet tool:
//
//	go vet -vettool=$(which tmelide) -tmelide.automaton=pattern.yaml ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/mpyw/tmelide"
)

func main() {
	singlechecker.Main(tmelide.Analyzer)
}
