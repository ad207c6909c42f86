package elision

import (
	"github.com/mpyw/tmelide/internal/automaton"
	"github.com/mpyw/tmelide/internal/cfg"
	"github.com/mpyw/tmelide/internal/shadow"
)

// Augment copies g keeping only the shadow effects accepted by active, and
// surrounds it with the code outside the procedure:
//
//	caller [enter] ──▶ entry ··· exits ──▶ return [age] ◀──▶ outside [every symbol]
//	   ▲                                      │
//	   └──────────────────────────────────────┤
//	                                          └──▶ exit
//
// The caller node may have driven existing objects to any state before an
// activation starts. After it returns, outside code may emit every symbol
// of a on the objects that escaped, and may start the procedure again.
//
// It returns the augmented graph and the active shadows in graph order.
func Augment(g *cfg.Graph, a *automaton.Automaton, active func(id string) bool) (*cfg.Graph, []*shadow.Shadow, error) {
	entry, err := g.Entry()
	if err != nil {
		return nil, nil, err
	}

	aug := cfg.New(g.Name())
	var shadows []*shadow.Shadow
	for _, n := range g.Nodes() {
		var effects []cfg.Effect
		for _, e := range g.Effects(n) {
			if e.Kind == cfg.EffectShadow {
				if !active(e.Shadow.ID) {
					continue
				}
				shadows = append(shadows, e.Shadow)
			}
			effects = append(effects, e)
		}
		aug.AddNode(g.Label(n), effects...)
	}
	for _, n := range g.Nodes() {
		for _, succ := range g.Succs(n) {
			if err := aug.AddEdge(n, succ); err != nil {
				return nil, nil, err
			}
		}
	}

	symbols := a.Symbols()
	events := make([]cfg.Effect, len(symbols))
	for i, sym := range symbols {
		events[i] = cfg.Effect{Kind: cfg.EffectOutside, Symbol: sym}
	}

	caller := aug.AddNode("caller", cfg.Effect{Kind: cfg.EffectEnter, Reason: "procedure called"})
	ret := aug.AddNode("return", cfg.Effect{Kind: cfg.EffectAge, Reason: "procedure returned"})
	outside := aug.AddNode("outside", events...)
	exit := aug.AddNode("exit")

	edges := [][2]cfg.NodeID{
		{caller, entry},
		{ret, outside},
		{outside, ret},
		{ret, caller},
		{ret, exit},
	}
	for _, x := range g.Exits() {
		edges = append(edges, [2]cfg.NodeID{x, ret})
	}
	for _, e := range edges {
		if err := aug.AddEdge(e[0], e[1]); err != nil {
			return nil, nil, err
		}
	}
	if err := aug.SetEntry(caller); err != nil {
		return nil, nil, err
	}
	if err := aug.MarkExit(exit); err != nil {
		return nil, nil, err
	}
	return aug, shadows, nil
}
