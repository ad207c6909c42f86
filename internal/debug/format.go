package debug

import (
	"fmt"
	"go/token"
	"strings"
)

// Format returns a formatted debug string for a procedure.
//
//	Procedure: example.com/p.closeOnly
//	  Status: COMPLETE (converged) after 4 iterations
//	  Eliminated: yes
//
//	  Shadows:
//	    1. line 12: close(f=param:f)
//	       ├─ id: example.com/p.closeOnly:0
//	       ├─ enabled: no
//	       └─ flow: [s0: true, s1: false]
func Format(info *Info, fset *token.FileSet) string {
	if info == nil {
		return ""
	}

	var buf strings.Builder

	fmt.Fprintf(&buf, "Procedure: %s\n", info.Procedure)
	fmt.Fprintf(&buf, "  Status: %s", info.Status)
	if info.Reason != "" {
		fmt.Fprintf(&buf, " (%s)", info.Reason)
	}
	fmt.Fprintf(&buf, " after %d iterations\n", info.Iterations)
	fmt.Fprintf(&buf, "  Eliminated: %s\n", yesNo(info.Eliminated))

	if len(info.Shadows) > 0 {
		fmt.Fprintf(&buf, "\n  Shadows:\n")
		for i, s := range info.Shadows {
			fmt.Fprintf(&buf, "    %d. line %d: %s%s\n", i+1, fset.Position(s.Pos).Line, s.Symbol, s.Bindings)
			fmt.Fprintf(&buf, "       ├─ id: %s\n", s.ID)
			fmt.Fprintf(&buf, "       ├─ enabled: %s\n", yesNo(s.Enabled))
			if s.Flow != "" {
				fmt.Fprintf(&buf, "       └─ flow: %s\n", s.Flow)
			} else {
				fmt.Fprintf(&buf, "       └─ flow: (not reached)\n")
			}
		}
	}

	return buf.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
