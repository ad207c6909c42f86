// Package debug renders the outcome of a procedure analysis for humans.
package debug

import (
	"go/token"

	"github.com/mpyw/tmelide/internal/reach"
)

// Info contains collected debug information for a procedure.
type Info struct {
	Procedure  string
	Status     reach.Status
	Reason     string
	Iterations int
	Eliminated bool
	Shadows    []ShadowInfo
}

// ShadowInfo contains information about a single shadow.
type ShadowInfo struct {
	ID       string
	Pos      token.Pos
	Symbol   string
	Bindings string
	Enabled  bool
	// Flow is the configuration flowing into the shadow, empty when the
	// analysis stopped before reaching it.
	Flow string
}
