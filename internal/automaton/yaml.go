package automaton

import (
	"bytes"
	"encoding"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of an automaton.
//
//	name: double-close
//	skip_loops: false
//	states:
//	  - {name: s0, initial: true}
//	  - {name: s1}
//	  - {name: s2, final: true}
//	symbols:
//	  close: [f]
//	edges:
//	  - {from: s0, to: s1, symbol: close}
//	  - {from: s1, to: s2, symbol: close}
type Definition struct {
	Name      string              `yaml:"name"`
	SkipLoops bool                `yaml:"skip_loops"`
	States    []StateDefinition   `yaml:"states"`
	Symbols   map[string][]string `yaml:"symbols"`
	Edges     []EdgeDefinition    `yaml:"edges"`
}

// StateDefinition is one entry of Definition.States.
type StateDefinition struct {
	Name    string `yaml:"name"`
	Initial bool   `yaml:"initial"`
	Final   bool   `yaml:"final"`
}

// EdgeDefinition is one entry of Definition.Edges. Kind defaults to normal.
type EdgeDefinition struct {
	From   string   `yaml:"from"`
	To     string   `yaml:"to"`
	Symbol string   `yaml:"symbol"`
	Kind   EdgeKind `yaml:"kind"`
}

var (
	_ encoding.TextUnmarshaler = (*EdgeKind)(nil)
	_ encoding.TextMarshaler   = EdgeKind(0)
)

// UnmarshalText parses "normal" or "skip".
func (k *EdgeKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "normal":
		*k = EdgeNormal
		return nil
	case "skip":
		*k = EdgeSkip
		return nil
	default:
		return fmt.Errorf("unknown edge kind %q", b)
	}
}

// MarshalText returns the YAML spelling of the kind.
func (k EdgeKind) MarshalText() ([]byte, error) {
	switch k {
	case EdgeNormal, EdgeSkip:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal invalid EdgeKind(%d)", int(k))
	}
}

// Load decodes a YAML definition and builds the automaton.
func Load(r io.Reader) (*Automaton, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode automaton: %w", err)
	}
	return def.Build()
}

// LoadFile reads and builds the automaton stored at path.
func LoadFile(path string) (*Automaton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read automaton: %w", err)
	}
	a, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Build converts the definition through a Builder.
func (d *Definition) Build() (*Automaton, error) {
	b := NewBuilder(d.Name)
	for _, s := range d.States {
		b.State(s.Name, s.Initial, s.Final)
	}
	for _, sym := range sortedKeys(d.Symbols) {
		b.Symbol(sym, d.Symbols[sym]...)
	}
	for _, e := range d.Edges {
		from, ok := b.Lookup(e.From)
		if !ok {
			b.errs = append(b.errs, malformedf("edge %q references unknown state %q", e.Symbol, e.From))
			continue
		}
		to, ok := b.Lookup(e.To)
		if !ok {
			b.errs = append(b.errs, malformedf("edge %q references unknown state %q", e.Symbol, e.To))
			continue
		}
		b.AddEdge(Edge{Kind: e.Kind, Source: from, Target: to, Symbol: e.Symbol})
	}
	if d.SkipLoops {
		b.WithSkipLoops()
	}
	return b.Build()
}
