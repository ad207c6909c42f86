package cfg

import (
	"testing"

	"golang.org/x/tools/go/ssa"
)

func TestAnalyzer_CanReach(t *testing.T) {
	t.Parallel()

	a := New()

	// block1 -> block2 -> block3, block4 disconnected
	block1 := &ssa.BasicBlock{}
	block2 := &ssa.BasicBlock{}
	block3 := &ssa.BasicBlock{}
	block4 := &ssa.BasicBlock{}
	block1.Succs = []*ssa.BasicBlock{block2}
	block2.Succs = []*ssa.BasicBlock{block3}

	tests := []struct {
		name     string
		src, dst *ssa.BasicBlock
		expected bool
	}{
		{"nil", nil, nil, false},
		{"same block", block1, block1, true},
		{"direct", block1, block2, true},
		{"transitive", block1, block3, true},
		{"no back edge", block3, block1, false},
		{"disconnected", block1, block4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := a.CanReach(tt.src, tt.dst); got != tt.expected {
				t.Errorf("CanReach() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAnalyzer_DetectLoops(t *testing.T) {
	t.Parallel()

	a := New()

	if info := a.DetectLoops(&ssa.Function{}); info.Len() != 0 {
		t.Errorf("function without blocks has %d loop blocks", info.Len())
	}

	// entry -> head <-> body, head -> exit; body is listed last so the
	// loop is not a contiguous index range.
	entry := &ssa.BasicBlock{Index: 0}
	head := &ssa.BasicBlock{Index: 1}
	exit := &ssa.BasicBlock{Index: 2}
	body := &ssa.BasicBlock{Index: 3}
	self := &ssa.BasicBlock{Index: 4}
	entry.Succs = []*ssa.BasicBlock{head}
	head.Succs = []*ssa.BasicBlock{body, exit}
	body.Succs = []*ssa.BasicBlock{head}
	exit.Succs = []*ssa.BasicBlock{self}
	self.Succs = []*ssa.BasicBlock{self}

	fn := &ssa.Function{Blocks: []*ssa.BasicBlock{entry, head, exit, body, self}}
	info := a.DetectLoops(fn)

	for _, tt := range []struct {
		block *ssa.BasicBlock
		want  bool
	}{
		{entry, false},
		{head, true},
		{exit, false},
		{body, true},
		{self, true},
	} {
		if got := info.IsInLoop(tt.block); got != tt.want {
			t.Errorf("IsInLoop(block %d) = %v, want %v", tt.block.Index, got, tt.want)
		}
	}

	if !a.IsDefinedOutsideLoop(&ssa.Parameter{}, info) {
		t.Error("parameters are defined outside loops")
	}
	var nilInfo *LoopInfo
	if nilInfo.IsInLoop(head) {
		t.Error("nil LoopInfo has no loops")
	}
}
