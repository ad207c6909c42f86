// Package reach runs the forward reachability fixpoint over a procedure
// graph.
//
// The value at each node is a *configuration.Configuration. The flow before a
// node is the join of the flow after its predecessors (the entry also joins
// the initial configuration); the flow after a node is its effects applied
// in order. Because configurations are interned, a node changed iff its
// output pointer changed.
package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/cfg"
	"github.com/mpyw/tmelide/internal/configuration"
	"github.com/mpyw/tmelide/internal/constraint"
)

// DefaultMaxIterations bounds node visits when Options.MaxIterations is 0.
const DefaultMaxIterations = 10000

// Options tunes a run.
type Options struct {
	// MaxIterations bounds node visits. Exceeding it aborts the run.
	MaxIterations int
	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger
}

// Result is the outcome of Run.
type Result struct {
	status       Status
	reason       string
	iterations   int
	before       []*configuration.Configuration
	after        []*configuration.Configuration
	shadowBefore map[string]*configuration.Configuration
}

// Status returns the terminal status.
func (r *Result) Status() Status { return r.status }

// Reason explains HitFinal and Aborted outcomes.
func (r *Result) Reason() string { return r.reason }

// Iterations returns the number of node visits.
func (r *Result) Iterations() int { return r.iterations }

// FlowBefore returns the configuration flowing into n. It is absent for
// nodes the run never reached.
func (r *Result) FlowBefore(n cfg.NodeID) (*configuration.Configuration, bool) {
	return at(r.before, n)
}

// FlowAfter returns the configuration flowing out of n.
func (r *Result) FlowAfter(n cfg.NodeID) (*configuration.Configuration, bool) {
	return at(r.after, n)
}

// ShadowFlowBefore returns the configuration directly before the shadow.
func (r *Result) ShadowFlowBefore(id string) (*configuration.Configuration, bool) {
	c, ok := r.shadowBefore[id]
	return c, ok
}

func at(cs []*configuration.Configuration, n cfg.NodeID) (*configuration.Configuration, bool) {
	if n < 0 || int(n) >= len(cs) || cs[n] == nil {
		return nil, false
	}
	return cs[n], true
}

type run struct {
	g       *cfg.Graph
	oracle  constraint.AliasOracle
	logger  *slog.Logger
	initial *configuration.Configuration
	machine machine
	res     *Result
}

// Run computes the fixpoint of g against a. Every shadow effect in g is
// treated as active.
//
// Soundness risks end the run with HitFinal or Aborted. Only broken
// invariants and context cancellation are returned as errors.
func Run(
	ctx context.Context,
	g *cfg.Graph,
	a *automaton.Automaton,
	cache *configuration.Cache,
	oracle constraint.AliasOracle,
	opts Options,
) (*Result, error) {
	entry, err := g.Entry()
	if err != nil {
		return nil, err
	}
	initial, err := configuration.New(a, cache)
	if err != nil {
		return nil, fmt.Errorf("initial configuration: %w", err)
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &run{
		g:       g,
		oracle:  oracle,
		logger:  logger.With(slog.String("procedure", g.Name())),
		initial: initial,
		res: &Result{
			before:       make([]*configuration.Configuration, g.Len()),
			after:        make([]*configuration.Configuration, g.Len()),
			shadowBefore: make(map[string]*configuration.Configuration),
		},
	}

	if err := r.fixpoint(ctx, entry, maxIterations); err != nil {
		return nil, err
	}
	if r.machine.status == Running {
		if err := r.checkTaint(); err != nil {
			return nil, err
		}
	}
	if r.machine.status == Running {
		if err := r.machine.transition(Complete, ""); err != nil {
			return nil, err
		}
	}

	r.res.status = r.machine.status
	r.res.reason = r.machine.reason
	r.logger.Debug("reach: run finished",
		slog.String("status", r.res.status.String()),
		slog.String("reason", r.res.reason),
		slog.Int("iterations", r.res.iterations),
	)
	return r.res, nil
}

func (r *run) fixpoint(ctx context.Context, entry cfg.NodeID, maxIterations int) error {
	queued := make([]bool, r.g.Len())
	queue := []cfg.NodeID{entry}
	queued[entry] = true

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := queue[0]
		queue = queue[1:]
		queued[n] = false

		if r.res.iterations >= maxIterations {
			r.logger.Warn("reach: did not converge",
				slog.Int("iterations", r.res.iterations),
				slog.Int("max_iterations", maxIterations),
			)
			return r.machine.transition(Aborted, fmt.Sprintf("no fixpoint after %d node visits", maxIterations))
		}
		r.res.iterations++

		in, err := r.flowIn(n, entry)
		if err != nil {
			return err
		}
		if in == nil {
			continue
		}
		r.res.before[n] = in
		if in.HitsFinal() {
			return r.machine.transition(HitFinal, fmt.Sprintf("final state reachable at %s", r.g.Label(n)))
		}

		out, err := r.apply(n, in)
		if err != nil || r.machine.status != Running {
			return err
		}
		if out == r.res.after[n] {
			continue
		}
		r.res.after[n] = out
		for _, succ := range r.g.Succs(n) {
			if !queued[succ] {
				queued[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return nil
}

func (r *run) flowIn(n, entry cfg.NodeID) (*configuration.Configuration, error) {
	var in *configuration.Configuration
	if n == entry {
		in = r.initial
	}
	for _, p := range r.g.Preds(n) {
		out := r.res.after[p]
		if out == nil {
			continue
		}
		if in == nil {
			in = out
			continue
		}
		joined, err := in.JoinWith(out)
		if err != nil {
			return nil, fmt.Errorf("join into %s: %w", r.g.Label(n), err)
		}
		in = joined
	}
	return in, nil
}

// apply runs the effects of n on cur. It stops early once the machine has
// left Running.
func (r *run) apply(n cfg.NodeID, cur *configuration.Configuration) (*configuration.Configuration, error) {
	var err error
	for _, e := range r.g.Effects(n) {
		switch e.Kind {
		case cfg.EffectShadow:
			r.res.shadowBefore[e.Shadow.ID] = cur
			cur, err = cur.Transition(e.Shadow, r.oracle)
			if errors.Is(err, constraint.ErrUnclassifiable) {
				return nil, r.machine.transition(Aborted, err.Error())
			}
			if err != nil {
				return nil, err
			}
			if cur.HitsFinal() {
				return nil, r.machine.transition(HitFinal, "final state reachable after "+e.Shadow.ID)
			}
		case cfg.EffectTaint:
			if cur, err = cur.Taint(); err != nil {
				return nil, err
			}
		case cfg.EffectAge:
			if cur, err = cur.Age(); err != nil {
				return nil, err
			}
		case cfg.EffectEnter:
			if cur, err = cur.Enter(); err != nil {
				return nil, err
			}
		case cfg.EffectOutside:
			cur, err = cur.TransitionOutside(e.Symbol, r.oracle)
			if errors.Is(err, constraint.ErrUnclassifiable) {
				return nil, r.machine.transition(Aborted, err.Error())
			}
			if err != nil {
				return nil, err
			}
			if cur.HitsFinal() {
				return nil, r.machine.transition(HitFinal, fmt.Sprintf("final state reachable when outside code emits %s", e.Symbol))
			}
		case cfg.EffectUnmodelable:
			return nil, r.machine.transition(Aborted, fmt.Sprintf("unmodelable construct at %s: %s", r.g.Label(n), e.Reason))
		default:
			return nil, fmt.Errorf("node %s: unexpected effect kind %v", r.g.Label(n), e.Kind)
		}
	}
	return cur, nil
}

// checkTaint aborts when the converged flow before any shadow is tainted.
func (r *run) checkTaint() error {
	for _, s := range r.g.Shadows() {
		before, ok := r.res.shadowBefore[s.ID]
		if ok && before.Tainted() {
			return r.machine.transition(Aborted, "tainted flow before "+s.ID)
		}
	}
	return nil
}
