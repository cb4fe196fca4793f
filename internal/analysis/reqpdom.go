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

	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

// CommonPDOM returns the earliest position that post-dominates both p and q.
// An invalid position means no such point exists before the exit.
func (self *Context) CommonPDOM(p ir.Pos, q ir.Pos) ir.Pos {
	if !p.IsValid() || !q.IsValid() {
		return ir.Pos{}
	}

	/* nearest common post-dominator block */
	bb := self.Dom.NearestCommonPostDominator(p.B, q.B)
	if bb == nil {
		return ir.Pos{}
	}

	/* pick the instruction */
	switch {
	case bb == p.B && bb == q.B:
		if p.I >= q.I {
			return p
		} else {
			return q
		}
	case bb == p.B:
		return p
	case bb == q.B:
		return q
	default:
		return ir.Head(bb)
	}
}

type _Folder struct {
	ctx *Context
	pos ir.Pos
	set bool
}

func (self *_Folder) fold(p ir.Pos) {
	if !self.set {
		self.pos, self.set = p, true
	} else {
		self.pos = self.ctx.CommonPDOM(self.pos, p)
	}
}

func (self *_Folder) foldBranches(ids ...*intsets.Sparse) {
	var all intsets.Sparse
	for _, s := range ids {
		if s != nil {
			all.UnionWith(s)
		}
	}
	for _, id := range all.AppendTo(nil) {
		self.fold(self.ctx.branches[id].ReconvPos())
	}
}

// reqPDOM folds the exit successors, every hazardous store and the
// reconvergence points of the branches guarding them.
func (self *LoopInfo) reqPDOM(stores []ir.MemoryAccess, withParallel bool) ir.Pos {
	fd := &_Folder{ctx: self.ctx}
	if len(self.ExitSuccs) == 0 {
		return ir.Pos{}
	}

	/* every exit must be covered */
	for _, bb := range self.ExitSuccs {
		fd.fold(ir.Head(bb))
	}

	/* and every hazardous store */
	for _, st := range stores {
		fd.fold(self.ctx.Pos[st.Node].Next())
		if withParallel {
			fd.foldBranches(self.Reachable[st.Node], self.Parallel[st.Node])
		} else {
			fd.foldBranches(self.Reachable[st.Node])
		}
	}
	return fd.pos
}

func (self *LoopInfo) initialReqPDOM() {
	self.InitReqPDOM = self.reqPDOM(self.Redefining, true)
	self.FinlReqPDOM = self.InitReqPDOM
	self.RelaxedReqPDOM = self.reqPDOM(self.RedefiningRelaxed, false)

	/* needs to be delayed past the natural reconvergence */
	if self.IsPotentiallyRedefined() {
		if !self.InitReqPDOM.IsValid() {
			self.Unresolved = true
		} else {
			self.NeedsTransformation = self.InitReqPDOM != self.Branch.ReconvPos()
		}
	}
}

// forward returns the blocks reachable from starts without entering stop.
func (self *Context) forward(starts []*ir.BasicBlock, stop *ir.BasicBlock) *intsets.Sparse {
	q := lane.NewQueue()
	ret := new(intsets.Sparse)

	/* seed the queue */
	for _, bb := range starts {
		if bb != stop && ret.Insert(bb.Id) {
			q.Enqueue(bb)
		}
	}

	/* scan until the queue is empty */
	for !q.Empty() {
		for _, bb := range q.Dequeue().(*ir.BasicBlock).Succs() {
			if bb != stop && ret.Insert(bb.Id) {
				q.Enqueue(bb)
			}
		}
	}
	return ret
}

func invariant(format string, args ...interface{}) {
	panic(oracle.Invariant(fmt.Sprintf(format, args...)))
}

// ResolveReqPDOM iterates the final reconvergence points of all loops to a
// fixed point.
func (self *Context) ResolveReqPDOM(loops []*LoopInfo) int {
	for n := 1; ; n++ {
		if n > self.Opts.MaxIterations {
			invariant("ReqPDOM resolution does not converge after %d iterations", self.Opts.MaxIterations)
		}

		/* one full sweep */
		changed := false
		for _, lp := range loops {
			if lp.resolve(loops) {
				changed = true
			}
		}

		/* converged */
		if !changed {
			opts.Trace("%s: ReqPDOM converged after %d iteration(s)", self.Fn.Name, n)
			return n
		}
	}
}

func (self *LoopInfo) resolve(loops []*LoopInfo) bool {
	old := self.FinlReqPDOM
	needs := self.NeedsTransformation

	/* nothing to resolve */
	if !old.IsValid() {
		return false
	}

	/* fold the loops between the exits and the reconvergence point */
	if self.NeedsTransformation {
		path := self.ctx.forward(self.ExitSuccs, old.B)
		for _, lp := range loops {
			if lp.Self() != self.Self() && path.Has(lp.Self().Id) && lp.FinlReqPDOM.IsValid() {
				self.FinlReqPDOM = self.ctx.CommonPDOM(self.FinlReqPDOM, lp.FinlReqPDOM)
			}
		}
	} else if len(self.RedefiningLoop) != 0 {
		for _, lp := range loops {
			if lp.Self() == self.Self() || !self.Contains(lp.Self()) || !lp.FinlReqPDOM.IsValid() {
				continue
			}

			/* the partner's fate is shared */
			self.FinlReqPDOM = self.ctx.CommonPDOM(self.FinlReqPDOM, lp.FinlReqPDOM)
			if lp.NeedsTransformation && (self.FinlReqPDOM == lp.FinlReqPDOM || self.FinlReqPDOM != self.InitReqPDOM) {
				self.NeedsTransformation = true
			}
		}
	}

	/* the point may have been lost */
	if !self.FinlReqPDOM.IsValid() {
		self.Unresolved = true
		self.NeedsTransformation = false
	}
	return self.FinlReqPDOM != old || self.NeedsTransformation != needs
}

// ResolveRelaxedReqPDOM is the fixed point of the relaxed reconvergence points
// over every divergent branch.
func (self *Context) ResolveRelaxedReqPDOM(loops []*LoopInfo) int {
	var brs []*BranchInfo
	for _, br := range self.Branches() {
		if br.Conditional() {
			br.Relaxed = br.ReconvPos()
			brs = append(brs, br)
		}
	}

	/* loops seed their own branch, latches that jump take part as well */
	seeded := make(map[*BranchInfo]bool)
	for _, lp := range loops {
		if !seeded[lp.Branch] {
			seeded[lp.Branch] = true
			lp.Branch.Relaxed = lp.RelaxedReqPDOM
			if !lp.Branch.Conditional() {
				brs = append(brs, lp.Branch)
			}
		} else {
			lp.Branch.Relaxed = self.CommonPDOM(lp.Branch.Relaxed, lp.RelaxedReqPDOM)
		}
	}

	/* iterate */
	for n := 1; ; n++ {
		if n > self.Opts.MaxIterations {
			invariant("relaxed ReqPDOM resolution does not converge after %d iterations", self.Opts.MaxIterations)
		}

		/* one full sweep */
		changed := false
		for _, br := range brs {
			old := br.Relaxed
			if !old.IsValid() {
				continue
			}

			/* fold every branch on the way to the point */
			path := self.forward(br.Targets, old.B)
			for _, other := range brs {
				if other != br && path.Has(other.Block.Id) && other.Relaxed.IsValid() {
					br.Relaxed = self.CommonPDOM(br.Relaxed, other.Relaxed)
				}
			}

			/* check for changes */
			if br.Relaxed != old {
				changed = true
			}
		}

		/* publish the results back to the loops */
		if !changed {
			for _, lp := range loops {
				lp.RelaxedReqPDOM = lp.Branch.Relaxed
				lp.NeedsRelaxed = len(lp.RedefiningRelaxed) != 0 && lp.RelaxedReqPDOM.IsValid() && lp.RelaxedReqPDOM != lp.Branch.ReconvPos()
			}
			return n
		}
	}
}
