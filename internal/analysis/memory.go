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

// sharedAccesses projects the shared or global memory accesses of nodes that
// read (or write) memory.
func (self *Context) sharedAccesses(nodes []ir.IrNode, write bool) (ret []ir.MemoryAccess) {
	for _, ins := range nodes {
		for _, m := range ir.Accesses(ins) {
			if (write && m.Writes() || !write && m.Reads()) && self.SpaceOf(m).IsShared() {
				ret = append(ret, m)
			}
		}
	}
	return
}

// reach walks forward from starts on barrier-free paths, and maps every
// instruction it meets to the set of divergent branches passed on the way.
// The walk never enters stop, nor a block outside limit when limit is set.
func (self *Context) reach(starts []*ir.BasicBlock, limit *intsets.Sparse, stop *ir.BasicBlock, base *intsets.Sparse) map[ir.IrNode]*intsets.Sparse {
	q := lane.NewQueue()
	in := make(map[int]*intsets.Sparse)
	ret := make(map[ir.IrNode]*intsets.Sparse)

	/* merge a branch set into a block */
	enter := func(bb *ir.BasicBlock, set *intsets.Sparse) {
		if bb == stop || self.Opts.IsBarrierBlock(bb.Name) {
			return
		}
		if limit != nil && !limit.Has(bb.Id) {
			return
		}
		if s, ok := in[bb.Id]; !ok {
			s = new(intsets.Sparse)
			s.Copy(set)
			in[bb.Id] = s
			q.Enqueue(bb)
		} else if s.UnionWith(set) {
			q.Enqueue(bb)
		}
	}

	/* seed the walk */
	for _, bb := range starts {
		enter(bb, base)
	}

	/* propagate until nothing changes */
	for !q.Empty() {
		bb := q.Dequeue().(*ir.BasicBlock)
		cur := in[bb.Id]
		blocked := false

		/* record the instructions until a barrier */
		for _, ins := range Instrs(bb) {
			if self.IsBarrier(ins) {
				blocked = true
				break
			}
			if s, ok := ret[ins]; ok {
				s.UnionWith(cur)
			} else {
				s = new(intsets.Sparse)
				s.Copy(cur)
				ret[ins] = s
			}
		}

		/* threads stop at the barrier */
		if blocked {
			continue
		}

		/* divergent branches are recorded on the way out */
		out := cur
		if br := self.Branch(bb); br != nil && br.Conditional() {
			out = new(intsets.Sparse)
			out.Copy(cur)
			out.Insert(bb.Id)
		}

		/* propagate to the successors */
		for _, s := range bb.Succs() {
			enter(s, out)
		}
	}
	return ret
}

func mergeInto(dst map[ir.IrNode]*intsets.Sparse, src map[ir.IrNode]*intsets.Sparse) {
	for ins, s := range src {
		if d, ok := dst[ins]; ok {
			d.UnionWith(s)
		} else {
			d = new(intsets.Sparse)
			d.Copy(s)
			dst[ins] = d
		}
	}
}

// reachable computes the instructions reachable from the loop exits.
func (self *LoopInfo) reachable() {
	self.Reachable = self.ctx.reach(self.ExitSuccs, nil, nil, new(intsets.Sparse))
}

// parallel computes the instructions that may run while threads are still in
// the loop: for every other divergent branch with the loop on one arm, the
// instructions on its other arms.
func (self *LoopInfo) parallel() {
	s := self.Self()
	self.Parallel = make(map[ir.IrNode]*intsets.Sparse)

	/* scan every divergent branch */
	for _, br := range self.ctx.Branches() {
		if br.Block == s || !br.Conditional() {
			continue
		}

		/* the loop must be on one of the arms */
		arms := br.ArmsOn(s)
		if len(arms) == 0 {
			continue
		}

		/* walk the other arms */
		for i, t := range br.Targets {
			if !containsInt(arms, i) {
				base := new(intsets.Sparse)
				base.Insert(br.Block.Id)
				mergeInto(self.Parallel, self.ctx.reach([]*ir.BasicBlock{t}, br.Path(t), br.Reconv, base))
			}
		}
	}
}

func containsInt(v []int, x int) bool {
	for _, i := range v {
		if i == x {
			return true
		}
	}
	return false
}

func (self *Context) sortedKeys(maps ...map[ir.IrNode]*intsets.Sparse) []ir.IrNode {
	var ret []ir.IrNode
	seen := make(map[ir.IrNode]bool)

	/* union of the keys */
	for _, m := range maps {
		for ins := range m {
			if !seen[ins] {
				seen[ins] = true
				ret = append(ret, ins)
			}
		}
	}

	/* stable order */
	self.sortNodes(ret)
	return ret
}

// classify computes the shared loads and stores of the loop.
func (self *LoopInfo) classify() {
	self.SharedLoads = self.ctx.sharedAccesses(self.LoopLog.Nodes(), false)
	self.SharedLoadsFull = self.ctx.sharedAccesses(self.FullLog.Nodes(), false)
	self.SharedStores = self.ctx.sharedAccesses(self.ctx.sortedKeys(self.Reachable, self.Parallel), true)
	self.SharedStoresLoop = self.ctx.sharedAccesses(self.Instrs, true)
	self.SharedStoresRelaxed = self.ctx.sharedAccesses(self.ctx.sortedKeys(self.Reachable), true)
}

// redefining selects the stores that may overwrite a load the exit depends on.
// The relaxed variant does not count a store that dominates the load.
func (self *Context) redefining(stores []ir.MemoryAccess, loads []ir.MemoryAccess, relaxed bool) (ret []ir.MemoryAccess) {
	for _, st := range stores {
		for _, ld := range loads {
			if relaxed && self.Dom.InstrDominates(self.Pos[st.Node], self.Pos[ld.Node]) {
				continue
			}
			if self.MayAlias(ld, st) {
				ret = append(ret, st)
				break
			}
		}
	}
	return
}

func (self *LoopInfo) hazards() {
	loads := self.Loads()
	self.Redefining = self.ctx.redefining(self.SharedStores, loads, false)
	self.RedefiningLoop = self.ctx.redefining(self.SharedStoresLoop, loads, false)
	self.RedefiningRelaxed = self.ctx.redefining(self.SharedStoresRelaxed, loads, true)
}

// slices runs the full and the within-loop dependency slicing from the exit
// conditions.
func (self *LoopInfo) slices() {
	roots := make([]ir.IrNode, 0, len(self.ExitConds))
	for _, t := range self.ExitConds {
		roots = append(roots, t)
	}
	self.FullLog = self.ctx.Slice(roots, nil)
	self.LoopLog = self.ctx.Slice(roots, &self.Body)
}
