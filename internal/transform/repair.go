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

package transform

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

// RepairDominance restores the dominance property of SSA after the graph has
// been re-shaped: every use that is no longer dominated by its definition is
// fed by new Phi nodes instead. Returns the number of rewritten uses.
type RepairDominance struct{}

type _Repair struct {
	fn    *ir.Func
	dom   *oracle.Dominance
	reg   ir.Reg
	def   *ir.BasicBlock
	reach *intsets.Sparse
	phis  map[int]*ir.IrPhi
}

// valueIn is the value of reg at the start of bb.
func (self *_Repair) valueIn(bb *ir.BasicBlock) ir.Reg {
	if bb != self.def && self.dom.Dominates(self.def, bb) {
		return self.reg
	} else if !self.reach.Has(bb.Id) {
		return ir.Undef(self.reg)
	} else if p, ok := self.phis[bb.Id]; ok {
		return p.R
	}

	/* add the Phi node before visiting the predecessors, loops end here */
	p := newPhi(self.fn, self.reg.Ptr())
	bb.Phi = append(bb.Phi, p)
	self.phis[bb.Id] = p

	/* collect the incoming values */
	for _, pred := range bb.Pred {
		p.SetIncoming(pred, self.valueOut(pred))
	}
	return p.R
}

// valueOut is the value of reg at the end of bb.
func (self *_Repair) valueOut(bb *ir.BasicBlock) ir.Reg {
	if bb == self.def {
		return self.reg
	} else {
		return self.valueIn(bb)
	}
}

func (self RepairDominance) Apply(fn *ir.Func) (ret int) {
	fn.Rebuild()
	defs := fn.Defs()
	users := fn.Users()
	dom := oracle.NewDominance(fn)

	/* visit the registers in a stable order */
	regs := make([]ir.Reg, 0, len(users))
	for r := range users {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i int, j int) bool {
		return regs[i] < regs[j]
	})

	/* check every use */
	for _, r := range regs {
		def, ok := defs[r]
		if !ok {
			continue
		}

		/* find the uses not dominated by the definition */
		var bad []ir.Use
		for _, u := range users[r] {
			if !self.dominated(dom, def, u) {
				bad = append(bad, u)
			}
		}
		if len(bad) == 0 {
			continue
		}

		/* build the Phi nodes lazily */
		rp := &_Repair{
			fn:    fn,
			dom:   dom,
			reg:   r,
			def:   def.Pos.B,
			reach: forward(def.Pos.B.Succs(), nil),
			phis:  make(map[int]*ir.IrPhi),
		}

		/* rewrite the uses */
		for _, u := range bad {
			if u.From != nil {
				*u.Ref = rp.valueOut(u.From)
			} else {
				*u.Ref = rp.valueIn(u.Pos.B)
			}
		}
		ret += len(bad)
	}
	return
}

// dominated reports whether u is a proper use of def. Uses in unreachable code
// are always accepted.
func (self RepairDominance) dominated(dom *oracle.Dominance, def ir.Def, u ir.Use) bool {
	if u.From != nil {
		return !dom.IsReachable(u.From) || dom.Dominates(def.Pos.B, u.From)
	} else {
		return !dom.IsReachable(u.Pos.B) || dom.InstrDominates(def.Pos, u.Pos)
	}
}
