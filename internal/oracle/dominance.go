/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package oracle

import (
	"github.com/cloudwego/simtfix/ir"
)

// Dominance answers dominance and post-dominance queries over a snapshot of a
// function. Post-dominance is computed on the reversed graph rooted at a
// virtual exit that succeeds every return block.
type Dominance struct {
	Fn   *ir.Func
	Dom  DominatorTree
	Pdom DominatorTree
	exit *ir.BasicBlock
}

// Block IDs are positive, so the virtual exit never shares a slot with a block.
const _ExitId = -1

func NewDominance(fn *ir.Func) *Dominance {
	exit := &ir.BasicBlock{Id: _ExitId, Name: "<exit>"}
	rets := fn.Returns()

	/* the reversed graph */
	pred := func(bb *ir.BasicBlock) []*ir.BasicBlock {
		if bb == exit {
			return rets
		} else {
			return bb.Pred
		}
	}

	/* build both trees */
	return &Dominance{
		Fn:   fn,
		Dom:  BuildDominatorTree(fn.Entry, (*ir.BasicBlock).Succs),
		Pdom: BuildDominatorTree(exit, pred),
		exit: exit,
	}
}

func (self *Dominance) Dominates(a *ir.BasicBlock, b *ir.BasicBlock) bool {
	return self.Dom.Dominates(a, b)
}

func (self *Dominance) StrictlyDominates(a *ir.BasicBlock, b *ir.BasicBlock) bool {
	return a != b && self.Dom.Dominates(a, b)
}

func (self *Dominance) NearestCommonDominator(a *ir.BasicBlock, b *ir.BasicBlock) *ir.BasicBlock {
	return self.Dom.Nearest(a, b)
}

// IDom returns the immediate dominator of bb, nil for the entry.
func (self *Dominance) IDom(bb *ir.BasicBlock) *ir.BasicBlock {
	return self.Dom.DominatedBy[bb.Id]
}

// Level returns the number of blocks that strictly dominate bb.
func (self *Dominance) Level(bb *ir.BasicBlock) int {
	if !self.Dom.Contains(bb) {
		return -1
	} else {
		return self.Dom.Depth[bb.Id]
	}
}

// IsReachable reports whether bb can be reached from the entry.
func (self *Dominance) IsReachable(bb *ir.BasicBlock) bool {
	return self.Dom.Contains(bb)
}

// ReachesExit reports whether some path from bb leads to a return.
func (self *Dominance) ReachesExit(bb *ir.BasicBlock) bool {
	return self.Pdom.Contains(bb)
}

// PostDominates reports whether every path from b to the exit passes a.
func (self *Dominance) PostDominates(a *ir.BasicBlock, b *ir.BasicBlock) bool {
	return self.Pdom.Dominates(a, b)
}

// NearestCommonPostDominator returns nil when the only common post-dominator
// is the virtual exit, or when either block cannot reach the exit.
func (self *Dominance) NearestCommonPostDominator(a *ir.BasicBlock, b *ir.BasicBlock) *ir.BasicBlock {
	if a == b {
		return a
	} else if p := self.Pdom.Nearest(a, b); p == self.exit {
		return nil
	} else {
		return p
	}
}

// IPDom returns the immediate post-dominator of bb, nil if it is the exit.
func (self *Dominance) IPDom(bb *ir.BasicBlock) *ir.BasicBlock {
	if p := self.Pdom.DominatedBy[bb.Id]; p == self.exit {
		return nil
	} else {
		return p
	}
}

// InstrDominates reports whether the instruction at p executes before the one at
// q on every path from the entry to q.
func (self *Dominance) InstrDominates(p ir.Pos, q ir.Pos) bool {
	if p.B == q.B {
		return p.IsPriorTo(q)
	} else {
		return self.Dom.Dominates(p.B, q.B)
	}
}

// InstrPostDominates reports whether the instruction at p executes after the one
// at q on every path from q to the exit.
func (self *Dominance) InstrPostDominates(p ir.Pos, q ir.Pos) bool {
	if p.B == q.B {
		return q.I <= p.I
	} else {
		return self.Pdom.Dominates(p.B, q.B)
	}
}
