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
	"sort"

	"github.com/oleiade/lane"
	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/ir"
)

// DepLog is an insertion-ordered set of instructions.
type DepLog struct {
	set  map[ir.IrNode]bool
	list []ir.IrNode
}

func newDepLog() *DepLog {
	return &DepLog{set: make(map[ir.IrNode]bool)}
}

func (self *DepLog) Add(ins ir.IrNode) bool {
	if self.set[ins] {
		return false
	} else {
		self.set[ins] = true
		self.list = append(self.list, ins)
		return true
	}
}

func (self *DepLog) Has(ins ir.IrNode) bool {
	return self.set[ins]
}

func (self *DepLog) Len() int {
	return len(self.list)
}

// Nodes returns the instructions in discovery order.
func (self *DepLog) Nodes() []ir.IrNode {
	return self.list
}

// Slice collects every instruction the roots depend on, through data operands,
// stores into the memory they read, Phi edges and control dependencies. When
// within is not nil the walk never leaves those blocks.
func (self *Context) Slice(roots []ir.IrNode, within *intsets.Sparse) *DepLog {
	q := lane.NewQueue()
	log := newDepLog()

	/* instructions outside the region terminate the walk */
	push := func(ins ir.IrNode) {
		if ins == nil {
			return
		}
		if within != nil && !within.Has(self.BlockOf(ins).Id) {
			return
		}
		if log.Add(ins) {
			q.Enqueue(ins)
		}
	}

	/* seed the worklist */
	for _, ins := range roots {
		push(ins)
	}

	/* scan until the queue is empty */
	for !q.Empty() {
		ins := q.Dequeue().(ir.IrNode)

		/* data dependencies */
		for _, dep := range self.dataDeps(ins) {
			push(dep)
		}

		/* control dependencies */
		for _, dep := range self.ControlDeps(self.BlockOf(ins)) {
			push(dep)
		}
	}
	return log
}

func (self *Context) dataDeps(ins ir.IrNode) (ret []ir.IrNode) {
	var ops []*ir.Reg
	var phi *ir.IrPhi

	/* Phi operands carry the branch of their incoming edge */
	if p, ok := ins.(*ir.IrPhi); ok {
		phi = p
		ops = p.Usages()
	} else if u, ok := ins.(ir.IrUsages); ok {
		ops = u.Usages()
	}

	/* edges into the Phi */
	if phi != nil {
		for _, bb := range phi.Blocks() {
			ret = append(ret, bb.Term)
		}
	}

	/* follow the definitions */
	for _, r := range ops {
		if r.IsSpecial() {
			continue
		}

		/* the defining instruction */
		if def, ok := self.Defs[*r]; ok {
			ret = append(ret, def.Node)
		}

		/* and every write through the pointer */
		if r.Ptr() {
			for _, u := range self.Users[*r] {
				if writes(u.Node) {
					ret = append(ret, u.Node)
				}
			}
		}
	}
	return
}

func writes(ins ir.IrNode) bool {
	for _, m := range ir.Accesses(ins) {
		if m.Writes() {
			return true
		}
	}
	return false
}

// ControlDeps returns the terminators bb is directly control-dependent on.
// The walk over the predecessors stops at the first block on each path that
// bb does not post-dominate.
func (self *Context) ControlDeps(bb *ir.BasicBlock) []ir.IrNode {
	if v, ok := self.ctrldeps[bb.Id]; ok {
		return v
	}

	/* walk the predecessors */
	var deps []*ir.BasicBlock
	var seen intsets.Sparse
	q := lane.NewQueue()

	/* seed with the direct predecessors */
	for _, p := range bb.Pred {
		if seen.Insert(p.Id) {
			q.Enqueue(p)
		}
	}

	/* scan until the queue is empty */
	for !q.Empty() {
		p := q.Dequeue().(*ir.BasicBlock)
		if !self.Dom.IsReachable(p) {
			continue
		}

		/* stop at the first divergent predecessor */
		if !self.Dom.PostDominates(bb, p) {
			deps = append(deps, p)
			continue
		}

		/* otherwise keep climbing */
		for _, pp := range p.Pred {
			if seen.Insert(pp.Id) {
				q.Enqueue(pp)
			}
		}
	}

	/* stable order */
	sort.Slice(deps, func(i int, j int) bool {
		return deps[i].Id < deps[j].Id
	})

	/* extract the terminators */
	ret := make([]ir.IrNode, 0, len(deps))
	for _, p := range deps {
		ret = append(ret, p.Term)
	}
	self.ctrldeps[bb.Id] = ret
	return ret
}
