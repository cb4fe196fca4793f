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
	"fmt"

	"github.com/oleiade/lane"
	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/internal/stree"
	"github.com/cloudwego/simtfix/ir"
)

// LoopInfo holds the facts of one retreating edge.
type LoopInfo struct {
	ctx       *Context
	Branch    *BranchInfo
	Edge      *stree.Edge
	Arm       int
	Taken     *ir.BasicBlock
	NotTaken  *ir.BasicBlock
	Body      intsets.Sparse
	Exits     []*ir.BasicBlock
	ExitSuccs []*ir.BasicBlock
	ExitConds []ir.IrTerminator
	Instrs    []ir.IrNode

	FullLog *DepLog
	LoopLog *DepLog

	SharedLoads         []ir.MemoryAccess
	SharedLoadsFull     []ir.MemoryAccess
	SharedStores        []ir.MemoryAccess
	SharedStoresLoop    []ir.MemoryAccess
	SharedStoresRelaxed []ir.MemoryAccess
	Redefining          []ir.MemoryAccess
	RedefiningLoop      []ir.MemoryAccess
	RedefiningRelaxed   []ir.MemoryAccess
	Reachable           map[ir.IrNode]*intsets.Sparse
	Parallel            map[ir.IrNode]*intsets.Sparse

	InitReqPDOM         ir.Pos
	FinlReqPDOM         ir.Pos
	RelaxedReqPDOM      ir.Pos
	NeedsTransformation bool
	NeedsRelaxed        bool
	Unresolved          bool
}

func newLoopInfo(ctx *Context, e *stree.Edge) *LoopInfo {
	br := ctx.Branch(e.Src.Block)
	ret := &LoopInfo{
		ctx:    ctx,
		Branch: br,
		Edge:   e,
		Arm:    -1,
		Taken:  e.Dst.Block,
	}

	/* locate the taken arm */
	for i, t := range br.Targets {
		if t == ret.Taken {
			ret.Arm = i
			break
		}
	}

	/* two-way branches have a well defined exit arm */
	if len(br.Targets) == 2 {
		ret.NotTaken = br.Targets[1-ret.Arm]
	}
	return ret
}

func (self *LoopInfo) String() string {
	return fmt.Sprintf("loop(%s -> %s)", self.Branch.Block, self.Taken)
}

// Self is the block holding the retreating branch.
func (self *LoopInfo) Self() *ir.BasicBlock {
	return self.Branch.Block
}

func (self *LoopInfo) CreatesLoop() bool {
	return !self.Body.IsEmpty()
}

func (self *LoopInfo) Contains(bb *ir.BasicBlock) bool {
	return self.Body.Has(bb.Id)
}

// Loads returns the shared loads the exit conditions depend on.
func (self *LoopInfo) Loads() []ir.MemoryAccess {
	if self.ctx.Opts.FullSlice {
		return self.SharedLoadsFull
	} else {
		return self.SharedLoads
	}
}

func (self *LoopInfo) DependsOnShared() bool {
	return len(self.Loads()) != 0
}

func (self *LoopInfo) IsPotentiallyRedefined() bool {
	return len(self.Redefining) != 0
}

// Plan returns the reconvergence point the loop must be funneled through,
// and whether it needs to be transformed at all.
func (self *LoopInfo) Plan() (ir.Pos, bool) {
	if self.ctx.Opts.Relaxed {
		return self.RelaxedReqPDOM, self.NeedsRelaxed && self.RelaxedReqPDOM.IsValid()
	} else {
		return self.FinlReqPDOM, self.NeedsTransformation && !self.Unresolved
	}
}

// discover computes the body of the loop closed by the retreating edge.
func (self *LoopInfo) discover() {
	s := self.Self()
	t := self.Taken

	/* irregular loops come from the SCC decomposition */
	if self.Edge.Kind == stree.NotBackward {
		lv := self.ctx.Dom.Level(t)
		for _, bb := range self.ctx.SCC.Of(t) {
			if self.ctx.Dom.Level(bb) >= lv {
				self.Body.Insert(bb.Id)
			}
		}
		return
	}

	/* natural loop, the header is never expanded */
	q := lane.NewQueue()
	self.Body.Insert(t.Id)

	/* close under predecessors from the latch */
	if self.Body.Insert(s.Id) {
		q.Enqueue(s)
	}

	/* scan until the queue is empty */
	for !q.Empty() {
		for _, p := range q.Dequeue().(*ir.BasicBlock).Pred {
			if self.ctx.Dom.IsReachable(p) && self.Body.Insert(p.Id) {
				q.Enqueue(p)
			}
		}
	}
}

// shape lists exits, exit conditions and instructions of the body.
func (self *LoopInfo) shape() {
	var sv intsets.Sparse

	/* scan blocks in ID order */
	for _, id := range self.Body.AppendTo(nil) {
		bb := self.ctx.Fn.Block(id)
		self.Instrs = append(self.Instrs, Instrs(bb)...)

		/* blocks with an edge leaving the body */
		exit := false
		for _, s := range bb.Succs() {
			if !self.Body.Has(s.Id) {
				exit = true
				sv.Insert(s.Id)
			}
		}

		/* record the exit */
		if exit {
			self.Exits = append(self.Exits, bb)
			self.ExitConds = append(self.ExitConds, bb.Term)
		}
	}

	/* exit successors in ID order */
	for _, id := range sv.AppendTo(nil) {
		self.ExitSuccs = append(self.ExitSuccs, self.ctx.Fn.Block(id))
	}
}

// buildLoops creates one loop per retreating edge, and merges the bodies of
// loops sharing the same header.
func (self *Context) buildLoops() []*LoopInfo {
	var ret []*LoopInfo
	uni := make(map[int]*intsets.Sparse)

	/* discover every body */
	for _, e := range self.Tree.Retreating() {
		lp := newLoopInfo(self, e)
		lp.discover()
		ret = append(ret, lp)

		/* union per header */
		if u, ok := uni[lp.Taken.Id]; ok {
			u.UnionWith(&lp.Body)
		} else {
			u = new(intsets.Sparse)
			u.Copy(&lp.Body)
			uni[lp.Taken.Id] = u
		}
	}

	/* share the merged bodies */
	for _, lp := range ret {
		lp.Body.Copy(uni[lp.Taken.Id])
		lp.shape()
	}
	return ret
}
