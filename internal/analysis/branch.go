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

package analysis

import (
	"github.com/oleiade/lane"
	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/ir"
)

// BranchInfo describes the divergence behavior of one terminator.
type BranchInfo struct {
	ctx      *Context
	Block    *ir.BasicBlock
	Term     ir.IrTerminator
	Targets  []*ir.BasicBlock
	IPDom    *ir.BasicBlock
	Dominant bool
	Reconv   *ir.BasicBlock
	Relaxed  ir.Pos
	paths    map[int]*intsets.Sparse
}

func newBranchInfo(ctx *Context, bb *ir.BasicBlock) *BranchInfo {
	ipdom := ctx.Dom.IPDom(bb)
	return &BranchInfo{
		ctx:      ctx,
		Block:    bb,
		Term:     bb.Term,
		Targets:  bb.Succs(),
		IPDom:    ipdom,
		Dominant: ipdom != nil && ctx.Dom.Dominates(bb, ipdom),
		paths:    make(map[int]*intsets.Sparse),
	}
}

func (self *BranchInfo) String() string {
	return self.Block.String()
}

// Conditional reports whether the terminator can diverge.
func (self *BranchInfo) Conditional() bool {
	return len(self.Targets) > 1
}

// reconvergence selects the point where the hardware reconverges diverged
// threads. A branch that does not dominate its IPDOM reconverges at the IPDOM of
// its nearest dominating branch that does.
func (self *BranchInfo) reconvergence() *ir.BasicBlock {
	if !self.ctx.Opts.Nvidia || self.Dominant {
		return self.IPDom
	}

	/* climb the dominator tree */
	for p := self.ctx.Dom.IDom(self.Block); p != nil; p = self.ctx.Dom.IDom(p) {
		if br := self.ctx.branches[p.Id]; br != nil && br.Conditional() && br.Dominant {
			if self.ctx.Dom.PostDominates(br.IPDom, self.Block) {
				return br.IPDom
			}
		}
	}
	return self.IPDom
}

// ReconvPos is the first instruction of the reconvergence block, or an invalid
// position if the arms never reconverge before the exit.
func (self *BranchInfo) ReconvPos() ir.Pos {
	if self.Reconv == nil {
		return ir.Pos{}
	} else {
		return ir.Head(self.Reconv)
	}
}

// Path returns the blocks on the way from target to the reconvergence block,
// exclusive of the latter.
func (self *BranchInfo) Path(target *ir.BasicBlock) *intsets.Sparse {
	if v, ok := self.paths[target.Id]; ok {
		return v
	}

	/* forward search that never enters the reconvergence block */
	ret := new(intsets.Sparse)
	self.paths[target.Id] = ret

	/* the target itself may be the reconvergence point */
	if target == self.Reconv {
		return ret
	}

	/* breadth-first over the successors */
	q := lane.NewQueue()
	q.Enqueue(target)
	ret.Insert(target.Id)

	/* scan until the queue is empty */
	for !q.Empty() {
		for _, bb := range q.Dequeue().(*ir.BasicBlock).Succs() {
			if bb != self.Reconv && ret.Insert(bb.Id) {
				q.Enqueue(bb)
			}
		}
	}
	return ret
}

// ArmsOn returns the indices of the targets whose path contains bb.
func (self *BranchInfo) ArmsOn(bb *ir.BasicBlock) (ret []int) {
	for i, t := range self.Targets {
		if self.Path(t).Has(bb.Id) {
			ret = append(ret, i)
		}
	}
	return
}
