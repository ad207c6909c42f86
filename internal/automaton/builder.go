package automaton

import (
	"errors"
	"slices"
)

// Builder assembles an Automaton and validates it on Build.
//
// Construction errors are accumulated so that a single Build call reports
// every problem in a pattern definition.
type Builder struct {
	name      string
	states    []State
	byName    map[string]StateID
	edges     []Edge
	varOrder  map[string][]string
	skipLoops bool
	errs      []error
}

// NewBuilder creates a Builder for the named pattern.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		byName:   make(map[string]StateID),
		varOrder: make(map[string][]string),
	}
}

// State declares a state and returns its ID. Declaring a name twice is an
// error; the first declaration's ID is returned.
func (b *Builder) State(name string, initial, final bool) StateID {
	if id, ok := b.byName[name]; ok {
		b.errs = append(b.errs, malformedf("duplicate state %q", name))
		return id
	}
	id := StateID(len(b.states))
	b.states = append(b.states, State{ID: id, Name: name, Initial: initial, Final: final})
	b.byName[name] = id
	return id
}

// Lookup returns the ID of a declared state.
func (b *Builder) Lookup(name string) (StateID, bool) {
	id, ok := b.byName[name]
	return id, ok
}

// Symbol declares an event symbol with its variable order.
func (b *Builder) Symbol(name string, vars ...string) *Builder {
	if _, ok := b.varOrder[name]; ok {
		b.errs = append(b.errs, malformedf("duplicate symbol %q", name))
		return b
	}
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if v == "" {
			b.errs = append(b.errs, malformedf("symbol %q has an empty variable name", name))
			continue
		}
		if seen[v] {
			b.errs = append(b.errs, malformedf("symbol %q binds variable %q twice", name, v))
			continue
		}
		seen[v] = true
	}
	b.varOrder[name] = slices.Clone(vars)
	return b
}

// Edge adds a normal edge.
func (b *Builder) Edge(from, to StateID, symbol string) *Builder {
	b.edges = append(b.edges, Edge{Kind: EdgeNormal, Source: from, Target: to, Symbol: symbol})
	return b
}

// SkipEdge adds a skip edge. Build rejects it unless from == to and the state
// is not final.
func (b *Builder) SkipEdge(from, to StateID, symbol string) *Builder {
	b.edges = append(b.edges, Edge{Kind: EdgeSkip, Source: from, Target: to, Symbol: symbol})
	return b
}

// AddEdge adds an edge of any kind.
func (b *Builder) AddEdge(e Edge) *Builder {
	b.edges = append(b.edges, e)
	return b
}

// WithSkipLoops requests a skip loop for every declared symbol on every
// non-final state that does not declare one explicitly.
func (b *Builder) WithSkipLoops() *Builder {
	b.skipLoops = true
	return b
}

// Build validates the definition and returns the immutable automaton.
func (b *Builder) Build() (*Automaton, error) {
	errs := slices.Clone(b.errs)

	if len(b.states) == 0 {
		errs = append(errs, malformedf("automaton %q has no states", b.name))
	} else if !slices.ContainsFunc(b.states, func(s State) bool { return s.Initial }) {
		errs = append(errs, malformedf("automaton %q has no initial state", b.name))
	}

	edges := make([]Edge, 0, len(b.edges))
	seen := make(map[Edge]bool, len(b.edges))
	for _, e := range b.edges {
		if err := b.validateEdge(e); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		edges = append(edges, e)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if b.skipLoops {
		for _, s := range b.states {
			if s.Final {
				continue
			}
			for _, sym := range sortedKeys(b.varOrder) {
				loop := Edge{Kind: EdgeSkip, Source: s.ID, Target: s.ID, Symbol: sym}
				if !seen[loop] {
					seen[loop] = true
					edges = append(edges, loop)
				}
			}
		}
	}

	a := &Automaton{
		name:     b.name,
		states:   slices.Clone(b.states),
		edges:    edges,
		bySymbol: make(map[string][]Edge),
		varOrder: make(map[string][]string, len(b.varOrder)),
	}
	for sym, vars := range b.varOrder {
		a.varOrder[sym] = slices.Clone(vars)
	}
	for _, e := range edges {
		a.bySymbol[e.Symbol] = append(a.bySymbol[e.Symbol], e)
	}
	a.bound = computeBound(a.states, a.edges, a.varOrder)
	return a, nil
}

func (b *Builder) validateEdge(e Edge) error {
	n := StateID(len(b.states))
	if e.Source < 0 || e.Source >= n {
		return malformedf("edge %q has unknown source state %d", e.Symbol, e.Source)
	}
	if e.Target < 0 || e.Target >= n {
		return malformedf("edge %q has unknown target state %d", e.Symbol, e.Target)
	}
	if _, ok := b.varOrder[e.Symbol]; !ok {
		return malformedf("edge %s -> %s uses undeclared symbol %q",
			b.states[e.Source].Name, b.states[e.Target].Name, e.Symbol)
	}
	switch e.Kind {
	case EdgeNormal:
		return nil
	case EdgeSkip:
		if e.Source != e.Target {
			return malformedf("skip edge %q must loop, got %s -> %s",
				e.Symbol, b.states[e.Source].Name, b.states[e.Target].Name)
		}
		if b.states[e.Source].Final {
			return malformedf("skip edge %q on final state %s", e.Symbol, b.states[e.Source].Name)
		}
		return nil
	default:
		return malformedf("edge %q has invalid kind %d", e.Symbol, int(e.Kind))
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
