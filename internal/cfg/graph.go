// Package cfg provides the procedure graph consumed by the reachability
// analysis.
//
// A Graph is a directed graph of nodes, each carrying an ordered list of
// effects. The analysis applies a node's effects in order to the
// configuration flowing into the node.
//
//	entry ──▶ n1 [shadow close(f=t0)] ──▶ n2 [taint] ──▶ exit
//	              ▲                        │
//	              └────────────────────────┘
package cfg

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mpyw/tmelide/internal/shadow"
)

// NodeID identifies a node within one Graph.
type NodeID int

// EffectKind classifies what a node does to the flowing configuration.
type EffectKind int

const (
	// EffectShadow executes an instrumentation point.
	EffectShadow EffectKind = iota
	// EffectTaint calls code that may execute instrumentation points the
	// graph does not model.
	EffectTaint
	// EffectAge marks the end of an activation of the procedure.
	EffectAge
	// EffectUnmodelable is a construct the analysis cannot reason about.
	EffectUnmodelable
	// EffectEnter marks the start of an activation: callers may have driven
	// objects that already exist to any state.
	EffectEnter
	// EffectOutside emits Symbol from code outside the procedure.
	EffectOutside
)

func (k EffectKind) String() string {
	switch k {
	case EffectShadow:
		return "shadow"
	case EffectTaint:
		return "taint"
	case EffectAge:
		return "age"
	case EffectUnmodelable:
		return "unmodelable"
	case EffectEnter:
		return "enter"
	case EffectOutside:
		return "outside"
	default:
		return fmt.Sprintf("EffectKind(%d)", int(k))
	}
}

// Effect is one step of a node. Shadow is set for EffectShadow and Symbol
// for EffectOutside; Reason describes the other effects.
type Effect struct {
	Kind   EffectKind
	Shadow *shadow.Shadow
	Symbol string
	Reason string
}

func (e Effect) String() string {
	switch e.Kind {
	case EffectShadow:
		return "shadow " + e.Shadow.String()
	case EffectOutside:
		return "outside " + e.Symbol
	default:
		if e.Reason == "" {
			return e.Kind.String()
		}
		return e.Kind.String() + " (" + e.Reason + ")"
	}
}

type node struct {
	label   string
	effects []Effect
	succs   []NodeID
	preds   []NodeID
}

// Graph is a procedure graph. The first node added is the entry unless
// SetEntry names another.
type Graph struct {
	name  string
	nodes []node
	entry NodeID
	exits []NodeID
}

// New creates an empty graph for the named procedure.
func New(name string) *Graph {
	return &Graph{name: name}
}

// Name returns the procedure name.
func (g *Graph) Name() string { return g.name }

// AddNode appends a node with the given effects.
func (g *Graph) AddNode(label string, effects ...Effect) NodeID {
	g.nodes = append(g.nodes, node{label: label, effects: slices.Clone(effects)})
	return NodeID(len(g.nodes) - 1)
}

// AddEffect appends an effect to an existing node.
func (g *Graph) AddEffect(n NodeID, e Effect) error {
	if !g.valid(n) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, n)
	}
	g.nodes[n].effects = append(g.nodes[n].effects, e)
	return nil
}

// AddEdge adds an edge from -> to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to NodeID) error {
	if !g.valid(from) {
		return fmt.Errorf("%w: edge source %d", ErrUnknownNode, from)
	}
	if !g.valid(to) {
		return fmt.Errorf("%w: edge target %d", ErrUnknownNode, to)
	}
	if slices.Contains(g.nodes[from].succs, to) {
		return nil
	}
	g.nodes[from].succs = append(g.nodes[from].succs, to)
	g.nodes[to].preds = append(g.nodes[to].preds, from)
	return nil
}

// MarkExit records n as a procedure exit.
func (g *Graph) MarkExit(n NodeID) error {
	if !g.valid(n) {
		return fmt.Errorf("%w: exit %d", ErrUnknownNode, n)
	}
	if !slices.Contains(g.exits, n) {
		g.exits = append(g.exits, n)
	}
	return nil
}

// SetEntry makes n the entry node.
func (g *Graph) SetEntry(n NodeID) error {
	if !g.valid(n) {
		return fmt.Errorf("%w: entry %d", ErrUnknownNode, n)
	}
	g.entry = n
	return nil
}

// Entry returns the entry node. It fails on an empty graph.
func (g *Graph) Entry() (NodeID, error) {
	if len(g.nodes) == 0 {
		return 0, fmt.Errorf("%w: graph %q has no entry", ErrUnknownNode, g.name)
	}
	return g.entry, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns all node IDs in insertion order.
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i := range ids {
		ids[i] = NodeID(i)
	}
	return ids
}

// Exits returns the exit nodes.
func (g *Graph) Exits() []NodeID { return slices.Clone(g.exits) }

// Succs returns the successors of n.
func (g *Graph) Succs(n NodeID) []NodeID {
	if !g.valid(n) {
		return nil
	}
	return slices.Clone(g.nodes[n].succs)
}

// Preds returns the predecessors of n.
func (g *Graph) Preds(n NodeID) []NodeID {
	if !g.valid(n) {
		return nil
	}
	return slices.Clone(g.nodes[n].preds)
}

// Effects returns the ordered effects of n.
func (g *Graph) Effects(n NodeID) []Effect {
	if !g.valid(n) {
		return nil
	}
	return slices.Clone(g.nodes[n].effects)
}

// Label returns the label of n.
func (g *Graph) Label(n NodeID) string {
	if !g.valid(n) {
		return ""
	}
	return g.nodes[n].label
}

// Shadows returns every shadow referenced by a shadow effect, in node and
// effect order.
func (g *Graph) Shadows() []*shadow.Shadow {
	var out []*shadow.Shadow
	for _, n := range g.nodes {
		for _, e := range n.effects {
			if e.Kind == EffectShadow {
				out = append(out, e.Shadow)
			}
		}
	}
	return out
}

// String renders the graph one node per line.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", g.name)
	for i, n := range g.nodes {
		fmt.Fprintf(&b, "  %d %s -> %v", i, n.label, n.succs)
		for _, e := range n.effects {
			fmt.Fprintf(&b, "\n    %s", e)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *Graph) valid(n NodeID) bool {
	return n >= 0 && int(n) < len(g.nodes)
}
