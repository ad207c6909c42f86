// Package cfg provides control flow analysis of SSA functions for tmelide.
package cfg

import (
	"golang.org/x/tools/go/ssa"
)

// Analyzer provides control flow graph analysis for SSA functions.
// It is stateless and can be reused across multiple analyses.
type Analyzer struct{}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// LoopInfo contains information about loops in a function.
type LoopInfo struct {
	loopBlocks map[*ssa.BasicBlock]bool
}

// IsInLoop returns true if the block is inside a loop.
func (l *LoopInfo) IsInLoop(block *ssa.BasicBlock) bool {
	return l != nil && l.loopBlocks[block]
}

// Len returns the number of blocks inside loops.
func (l *LoopInfo) Len() int {
	if l == nil {
		return 0
	}
	return len(l.loopBlocks)
}

// CanReach checks if srcBlock can reach dstBlock in the CFG using BFS.
func (a *Analyzer) CanReach(src, dst *ssa.BasicBlock) bool {
	if src == nil || dst == nil {
		return false
	}
	if src == dst {
		return true
	}

	visited := make(map[*ssa.BasicBlock]bool)
	queue := []*ssa.BasicBlock{src}
	visited[src] = true

	for len(queue) > 0 {
		block := queue[0]
		queue = queue[1:]

		for _, succ := range block.Succs {
			if succ == dst {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return false
}

// DetectLoops analyzes the function and returns loop information.
// A block is inside a loop when it can reach itself through at least one
// edge, so a block outside loops executes at most once per activation.
func (a *Analyzer) DetectLoops(fn *ssa.Function) *LoopInfo {
	loopBlocks := make(map[*ssa.BasicBlock]bool)
	if fn == nil || fn.Blocks == nil {
		return &LoopInfo{loopBlocks: loopBlocks}
	}

	for _, block := range fn.Blocks {
		for _, succ := range block.Succs {
			if a.CanReach(succ, block) {
				loopBlocks[block] = true
				break
			}
		}
	}

	return &LoopInfo{loopBlocks: loopBlocks}
}

// IsDefinedOutsideLoop checks if a value is defined outside the loop.
// Values that are not instructions (parameters, free variables, globals,
// constants) are always outside.
func (a *Analyzer) IsDefinedOutsideLoop(v ssa.Value, loopInfo *LoopInfo) bool {
	instr, ok := v.(ssa.Instruction)
	if !ok {
		return true
	}

	block := instr.Block()
	if block == nil {
		return true
	}

	return !loopInfo.IsInLoop(block)
}
