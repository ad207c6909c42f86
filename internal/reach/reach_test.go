package reach

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/cfg"
	"github.com/mpyw/tmelide/internal/configuration"
	"github.com/mpyw/tmelide/internal/constraint"
	"github.com/mpyw/tmelide/internal/shadow"
)

type precise struct{}

func (precise) MustAlias(a, b constraint.Ref) bool   { return a == b }
func (precise) MayNotAlias(a, b constraint.Ref) bool { return a != b }

func openClose(t *testing.T) *automaton.Automaton {
	t.Helper()
	b := automaton.NewBuilder("open-close")
	s0 := b.State("s0", true, false)
	s1 := b.State("s1", false, true)
	b.Symbol("open", "f").Symbol("close", "f")
	b.Edge(s0, s1, "open").SkipEdge(s0, s0, "close")
	a, err := b.Build()
	require.NoError(t, err)
	return a
}

func shadowEffect(id, symbol string, ref constraint.Ref) cfg.Effect {
	return cfg.Effect{
		Kind:   cfg.EffectShadow,
		Shadow: &shadow.Shadow{ID: id, Procedure: "p", Symbol: symbol, Bindings: map[string]constraint.Ref{"f": ref}},
	}
}

// chain builds n0 -> n1 -> ... with one node per effect list.
func chain(t *testing.T, effects ...[]cfg.Effect) *cfg.Graph {
	t.Helper()
	g := cfg.New("p")
	for i, es := range effects {
		n := g.AddNode("n", es...)
		if i > 0 {
			require.NoError(t, g.AddEdge(n-1, n))
		}
	}
	require.NoError(t, g.MarkExit(cfg.NodeID(len(effects)-1)))
	return g
}

func runReach(t *testing.T, g *cfg.Graph, opts Options) *Result {
	t.Helper()
	res, err := Run(context.Background(), g, openClose(t), configuration.NewCache(), precise{}, opts)
	require.NoError(t, err)
	return res
}

func TestRun_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		effects    [][]cfg.Effect
		want       Status
		wantReason string
	}{
		{
			name:    "close only completes",
			effects: [][]cfg.Effect{{shadowEffect("p:0", "close", "t0")}, nil},
			want:    Complete,
		},
		{
			name:       "open hits final",
			effects:    [][]cfg.Effect{nil, {shadowEffect("p:0", "open", "t0")}},
			want:       HitFinal,
			wantReason: "p:0",
		},
		{
			name:       "taint before shadow aborts",
			effects:    [][]cfg.Effect{{{Kind: cfg.EffectTaint, Reason: "call helper"}}, {shadowEffect("p:0", "close", "t0")}},
			want:       Aborted,
			wantReason: "tainted flow before p:0",
		},
		{
			name:    "taint after last shadow is not checked locally",
			effects: [][]cfg.Effect{{shadowEffect("p:0", "close", "t0")}, {{Kind: cfg.EffectTaint}}},
			want:    Complete,
		},
		{
			name:       "unmodelable aborts",
			effects:    [][]cfg.Effect{{{Kind: cfg.EffectUnmodelable, Reason: "defer close"}}},
			want:       Aborted,
			wantReason: "defer close",
		},
		{
			name:       "unknown symbol aborts",
			effects:    [][]cfg.Effect{{shadowEffect("p:0", "read", "t0")}},
			want:       Aborted,
			wantReason: "read",
		},
		{
			name: "outside events alone never match",
			effects: [][]cfg.Effect{
				{{Kind: cfg.EffectEnter}, shadowEffect("p:0", "close", "t0")},
				{{Kind: cfg.EffectOutside, Symbol: "open"}},
			},
			want: Complete,
		},
		{
			name:       "outside event of unknown symbol aborts",
			effects:    [][]cfg.Effect{{shadowEffect("p:0", "close", "t0")}, {{Kind: cfg.EffectOutside, Symbol: "read"}}},
			want:       Aborted,
			wantReason: "read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := runReach(t, chain(t, tt.effects...), Options{})
			assert.Equal(t, tt.want, res.Status())
			assert.Contains(t, res.Reason(), tt.wantReason)
		})
	}
}

func TestRun_OutsideCompletesMatch(t *testing.T) {
	t.Parallel()

	b := automaton.NewBuilder("double-close")
	s0 := b.State("s0", true, false)
	s1 := b.State("s1", false, false)
	s2 := b.State("s2", false, true)
	b.Symbol("close", "f")
	b.Edge(s0, s1, "close").Edge(s1, s2, "close")
	a, err := b.Build()
	require.NoError(t, err)

	g := chain(t,
		[]cfg.Effect{shadowEffect("p:0", "close", "param:f")},
		[]cfg.Effect{{Kind: cfg.EffectAge}, {Kind: cfg.EffectOutside, Symbol: "close"}},
	)
	res, err := Run(context.Background(), g, a, configuration.NewCache(), precise{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, HitFinal, res.Status())
	assert.Contains(t, res.Reason(), "outside code emits close")
}

func TestRun_Flows(t *testing.T) {
	t.Parallel()

	a := openClose(t)
	cache := configuration.NewCache()
	g := chain(t, []cfg.Effect{shadowEffect("p:0", "close", "t0")}, nil)
	unreached := g.AddNode("dead")

	res, err := Run(context.Background(), g, a, cache, precise{}, Options{})
	require.NoError(t, err)
	require.Equal(t, Complete, res.Status())

	initial, err := configuration.New(a, cache)
	require.NoError(t, err)

	before, ok := res.FlowBefore(0)
	require.True(t, ok)
	assert.Same(t, initial, before)

	shadowBefore, ok := res.ShadowFlowBefore("p:0")
	require.True(t, ok)
	assert.Same(t, initial, shadowBefore)

	after, ok := res.FlowAfter(1)
	require.True(t, ok)
	assert.False(t, after.HitsFinal())

	_, ok = res.FlowBefore(unreached)
	assert.False(t, ok)
	_, ok = res.FlowAfter(42)
	assert.False(t, ok)
	_, ok = res.ShadowFlowBefore("missing")
	assert.False(t, ok)
}

func TestRun_LoopConverges(t *testing.T) {
	t.Parallel()

	g := chain(t, nil, []cfg.Effect{shadowEffect("p:0", "close", "t0")}, nil)
	require.NoError(t, g.AddEdge(1, 1))
	require.NoError(t, g.AddEdge(1, 0))

	res := runReach(t, g, Options{})
	assert.Equal(t, Complete, res.Status())
	assert.Less(t, res.Iterations(), 10)
}

func TestRun_MaxIterations(t *testing.T) {
	t.Parallel()

	g := chain(t, nil, nil)
	require.NoError(t, g.AddEdge(1, 0))

	res := runReach(t, g, Options{MaxIterations: 1})
	assert.Equal(t, Aborted, res.Status())
	assert.Contains(t, res.Reason(), "no fixpoint")
	assert.Equal(t, 1, res.Iterations())
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, chain(t, nil), openClose(t), configuration.NewCache(), precise{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyGraph(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), cfg.New("empty"), openClose(t), configuration.NewCache(), precise{}, Options{})
	assert.ErrorIs(t, err, cfg.ErrUnknownNode)
}

func TestMachine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		ok       bool
	}{
		{Running, HitFinal, true},
		{Running, Aborted, true},
		{Running, Complete, true},
		{Running, Running, false},
		{Complete, Aborted, false},
		{HitFinal, Complete, false},
		{Aborted, Running, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			t.Parallel()

			m := machine{status: tt.from}
			err := m.transition(tt.to, "")
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, m.status)
				return
			}
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tt.from, m.status)
		})
	}
}
