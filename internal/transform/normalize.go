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

	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

type _Entry struct {
	From *ir.BasicBlock
	To   *ir.BasicBlock
}

// Normalize gives the region between the case targets of d and d itself a
// single entry block, so that the region forms a natural loop. Returns false
// if the region is already single entry.
func (self *Transformer) Normalize(d *Dispatch) bool {
	var tgts []*ir.BasicBlock
	self.fn.Rebuild()

	/* nothing to do without cases */
	for _, c := range d.Sw.Cases {
		if !containsBlock(tgts, c.To) {
			tgts = append(tgts, c.To)
		}
	}
	if len(tgts) == 0 {
		return false
	}

	/* the region lies between the case targets and the dispatch block */
	region := forward(tgts, d.D)
	region.IntersectionWith(backward(d.D))

	/* the continuation must not lead back into the region */
	if region.Has(d.Cont.Id) {
		opts.Trace("%s: %s continues into its own region", self.fn.Name, d)
		return false
	}

	/* find the edges entering the region */
	var edges []_Entry
	var heads []*ir.BasicBlock
	for _, bb := range self.fn.Blocks {
		if !region.Has(bb.Id) {
			continue
		}
		for _, p := range bb.Pred {
			if !region.Has(p.Id) {
				edges = append(edges, _Entry{From: p, To: bb})
				if !containsBlock(heads, bb) {
					heads = append(heads, bb)
				}
			}
		}
	}

	/* already single entry */
	if len(heads) < 2 {
		return false
	}

	/* add the header */
	hdr := self.pickHeader(heads, tgts)
	n := self.fn.CreateBlock()
	n.Name = "simt.header"
	sel := newPhi(self.fn, false)
	sw := &ir.IrSwitch{V: sel.R, Default: hdr}
	n.Phi = append(n.Phi, sel)
	n.Term = sw

	/* values for the Phi nodes of the original entries */
	moved := make(map[*ir.IrPhi]*ir.IrPhi)
	incoming := func(from *ir.BasicBlock, e _Entry) {
		for _, p := range e.To.Phi {
			np := moved[p]
			if np == nil {
				np = newPhi(self.fn, p.R.Ptr())
				moved[p] = np
				n.Phi = append(n.Phi, np)
			}
			np.SetIncoming(from, *p.V[e.From])
		}
	}

	/* re-route every entering edge */
	for _, e := range edges {
		var from *ir.BasicBlock
		if e.From == d.D {
			from = d.D
			sel.SetIncoming(d.D, d.Sel.R)
			self.caseOf(d, sw, e.To, hdr)
			ir.Retarget(d.D.Term, e.To, n)
		} else {
			from = self.fn.CreateBlock()
			from.Term = &ir.IrJump{To: n}
			ir.Retarget(e.From.Term, e.To, from)
			sel.SetIncoming(from, ir.Rz)

			/* the header is the default */
			if e.To != hdr {
				id := d.newId()
				c := &ir.IrConstInt{R: self.fn.NewReg(false), V: id}
				from.InsertBeforeTerm(c)
				sel.SetIncoming(from, c.R)
				sw.AddCase(id, e.To)
			}
		}
		incoming(from, e)
	}

	/* entries only come from the new header */
	self.fn.Rebuild()
	for _, e := range edges {
		for _, p := range e.To.Phi {
			delete(p.V, e.From)
			p.SetIncoming(n, moved[p].R)
		}
	}

	/* every Phi in the header must cover all of its predecessors */
	for _, np := range n.Phi {
		for _, p := range n.Pred {
			if _, ok := np.V[p]; !ok {
				np.SetIncoming(p, ir.Undef(np.R))
			}
		}
	}

	/* update the statistics */
	self.res.Headers++
	opts.Trace("%s: %s now enters its region through %s", self.fn.Name, d, n)
	return true
}

// caseOf copies the cases of d that select to into sw, unless to is the
// default of sw. It must run before the edges of d are retargeted.
func (self *Transformer) caseOf(d *Dispatch, sw *ir.IrSwitch, to *ir.BasicBlock, hdr *ir.BasicBlock) {
	if to == hdr {
		return
	}
	for _, c := range d.Sw.Cases {
		if c.To == to && sw.Target(c.V) != to {
			sw.AddCase(c.V, to)
		}
	}
}

// pickHeader prefers the entry dominating most of the other entries, then case
// targets, then the lowest ID.
func (self *Transformer) pickHeader(heads []*ir.BasicBlock, tgts []*ir.BasicBlock) *ir.BasicBlock {
	dom := oracle.NewDominance(self.fn)
	score := make(map[int]int, len(heads))

	/* count the dominated entries */
	for _, a := range heads {
		for _, b := range heads {
			if a != b && dom.Dominates(a, b) {
				score[a.Id]++
			}
		}
		if containsBlock(tgts, a) {
			score[a.Id]++
		}
	}

	/* highest score first */
	sort.Slice(heads, func(i int, j int) bool {
		if score[heads[i].Id] != score[heads[j].Id] {
			return score[heads[i].Id] > score[heads[j].Id]
		} else {
			return heads[i].Id < heads[j].Id
		}
	})
	return heads[0]
}
