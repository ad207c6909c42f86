package debug

import (
	"maps"
	"slices"
	"strings"

	"github.com/mpyw/tmelide/internal/elision"
	"github.com/mpyw/tmelide/internal/shadow"
)

// Collect builds the debug information of an outcome. shadows are the
// shadows of the procedure, in graph order.
func Collect(out elision.Outcome, shadows []*shadow.Shadow, registry *shadow.Registry) *Info {
	info := &Info{
		Procedure:  out.Procedure,
		Status:     out.Status,
		Reason:     out.Reason,
		Iterations: out.Iterations,
		Eliminated: out.Eliminated,
	}
	for _, s := range shadows {
		si := ShadowInfo{
			ID:       s.ID,
			Pos:      s.Pos,
			Symbol:   s.Symbol,
			Bindings: bindings(s),
			Enabled:  registry.IsEnabled(s.ID),
		}
		if out.Result != nil {
			if c, ok := out.Result.ShadowFlowBefore(s.ID); ok {
				si.Flow = c.String()
			}
		}
		info.Shadows = append(info.Shadows, si)
	}
	return info
}

// bindings renders the argument list of a shadow, e.g. "(f=param:f)".
func bindings(s *shadow.Shadow) string {
	vars := slices.Sorted(maps.Keys(s.Bindings))
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v + "=" + string(s.Bindings[v])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
