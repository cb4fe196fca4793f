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
	"fmt"

	"github.com/cloudwego/simtfix/internal/analysis"
	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

// Request asks for the retreating edge of Term towards Taken to be funneled
// through a dispatch block placed right before Anchor.
type Request struct {
	Term   ir.IrTerminator
	Taken  *ir.BasicBlock
	Anchor ir.IrNode
}

// Requests extracts the loops of facts that need to be transformed.
func Requests(facts *analysis.Facts) []Request {
	var ret []Request
	for _, lp := range facts.Planned() {
		pos, _ := lp.Plan()
		ret = append(ret, Request{
			Term:   lp.Branch.Term,
			Taken:  lp.Taken,
			Anchor: pos.Node(),
		})
	}
	return ret
}

// Result counts what a transformation created.
type Result struct {
	Dispatches int `json:"dispatches"`
	Cases      int `json:"cases"`
	Merges     int `json:"merges"`
	Headers    int `json:"headers"`
	Repairs    int `json:"repairs"`
	Cleaned    int `json:"cleaned"`
}

// Dispatch is the selector Phi and switch funneling loops through one
// reconvergence point.
type Dispatch struct {
	D     *ir.BasicBlock
	Cont  *ir.BasicBlock
	Sel   *ir.IrPhi
	Sw    *ir.IrSwitch
	next  int64
	entry map[*ir.BasicBlock]*ir.BasicBlock
}

func (self *Dispatch) String() string {
	return fmt.Sprintf("dispatch(%s, %d cases)", self.D, len(self.Sw.Cases))
}

func (self *Dispatch) newId() int64 {
	self.next++
	return self.next
}

type Transformer struct {
	fn       *ir.Func
	opts     *opts.Options
	dispatch map[ir.IrNode]*Dispatch
	order    []*Dispatch
	replaced map[ir.IrNode]ir.IrNode
	res      Result
}

func NewTransformer(fn *ir.Func, o *opts.Options) *Transformer {
	return &Transformer{
		fn:       fn,
		opts:     o,
		dispatch: make(map[ir.IrNode]*Dispatch),
		replaced: make(map[ir.IrNode]ir.IrNode),
	}
}

// Apply transforms fn for every request, then restores the SSA invariants.
// A function without requests is left untouched.
func Apply(fn *ir.Func, reqs []Request, o *opts.Options) Result {
	if len(reqs) == 0 {
		return Result{}
	}

	/* funnel every loop */
	t := NewTransformer(fn, o)
	for _, rq := range reqs {
		t.Funnel(rq)
	}

	/* hardware reconvergence wants single entry loops */
	if o.Nvidia {
		for _, d := range t.order {
			t.Normalize(d)
		}
	}

	/* restore the invariants */
	fn.Rebuild()
	t.res.Repairs = RepairDominance{}.Apply(fn)
	t.res.Cleaned = CleanRedundantPHIs{}.Apply(fn)
	Check(fn)
	return t.res
}

// Dispatches returns the dispatch blocks in creation order.
func (self *Transformer) Dispatches() []*Dispatch {
	return self.order
}

func (self *Transformer) resolve(ins ir.IrNode) ir.IrNode {
	for {
		if v, ok := self.replaced[ins]; ok {
			ins = v
		} else {
			return ins
		}
	}
}

func invariant(format string, args ...interface{}) {
	panic(oracle.Invariant(fmt.Sprintf(format, args...)))
}

// DispatchAt returns the dispatch block placed right before anchor, splitting
// its block when it does not exist yet.
func (self *Transformer) DispatchAt(anchor ir.IrNode) *Dispatch {
	anchor = self.resolve(anchor)
	if d, ok := self.dispatch[anchor]; ok {
		return d
	}

	/* find the anchor */
	pos, ok := self.fn.Locate(anchor)
	if !ok {
		invariant("%s: anchor %s is not part of the function", self.fn.Name, anchor)
	}

	/* the terminator sits right after the instructions */
	h, k := pos.B, pos.I
	if k == ir.PosTerm {
		k = len(h.Ins)
	} else if k == ir.PosPhi {
		k = 0
	}

	/* the dispatch block keeps the predecessors of the anchor */
	var d *ir.BasicBlock
	var c *ir.BasicBlock
	if k == 0 {
		d = h
		c = splitAt(self.fn, h, 0)
	} else {
		d = splitAt(self.fn, h, k)
		c = splitAt(self.fn, d, 0)
	}

	/* selector is zero for every existing predecessor */
	self.fn.Rebuild()
	sel := newPhi(self.fn, false)
	for _, p := range d.Pred {
		sel.SetIncoming(p, ir.Rz)
	}

	/* replace the fallthrough with the switch */
	sw := &ir.IrSwitch{V: sel.R, Default: c}
	d.Phi = append(d.Phi, sel)
	d.Term = sw

	/* register the dispatch point */
	ret := &Dispatch{
		D:     d,
		Cont:  c,
		Sel:   sel,
		Sw:    sw,
		entry: make(map[*ir.BasicBlock]*ir.BasicBlock),
	}
	self.dispatch[anchor] = ret
	self.order = append(self.order, ret)
	self.res.Dispatches++
	opts.Trace("%s: created %s before %s", self.fn.Name, ret, anchor)
	return ret
}

// Funnel redirects the retreating edge of rq through its dispatch block.
func (self *Transformer) Funnel(rq Request) {
	d := self.DispatchAt(rq.Anchor)
	term := self.resolve(rq.Term).(ir.IrTerminator)
	tgt := rq.Taken

	/* the block holding the branch may have been split */
	pos, ok := self.fn.Locate(term)
	if !ok {
		invariant("%s: branch %s is not part of the function", self.fn.Name, term)
	}

	/* looping back through our own header changes nothing */
	s := pos.B
	if tgt == d.D {
		opts.Trace("%s: %s already loops through %s", self.fn.Name, s, d)
		return
	}

	/* the branch must still lead to the target */
	if !containsBlock(ir.Successors(term), tgt) {
		invariant("%s: %s does not branch to %s", self.fn.Name, s, tgt)
	}

	/* two way branches exiting to the dispatch block encode both edges with a select */
	selfref := false
	if br, ok := term.(*ir.IrBranch); ok && br.True != br.False && (br.True == d.D || br.False == d.D) {
		selfref = true
	} else if containsBlock(ir.Successors(term), d.D) {
		s = splitEdge(self.fn, s, tgt)
		term = s.Term
	}

	/* shared headers need a merge block */
	self.fn.Rebuild()
	if id, ok := d.Sw.CaseOf(tgt); ok {
		self.merge(d, s, term, tgt, id, selfref)
	} else if selfref {
		self.selfref(d, s, term.(*ir.IrBranch), tgt)
	} else {
		self.general(d, s, term, tgt)
	}
	self.fn.Rebuild()
}

// selector materializes the case id in s, masked by the branch condition when
// the other arm exits through the dispatch block.
func (self *Transformer) selector(s *ir.BasicBlock, term ir.IrTerminator, tgt *ir.BasicBlock, id int64, selfref bool) ir.Reg {
	c := &ir.IrConstInt{R: self.fn.NewReg(false), V: id}
	s.InsertBeforeTerm(c)

	/* plain edge */
	if !selfref {
		return c.R
	}

	/* loop again or exit */
	br := term.(*ir.IrBranch)
	sl := &ir.IrSelect{R: self.fn.NewReg(false), Cond: br.Cond, T: ir.Rz, F: ir.Rz}
	if br.True == tgt {
		sl.T = c.R
	} else {
		sl.F = c.R
	}

	/* add to the block */
	s.InsertBeforeTerm(sl)
	return sl.R
}

func (self *Transformer) jump(s *ir.BasicBlock, term ir.IrTerminator, to *ir.BasicBlock) {
	j := &ir.IrJump{To: to}
	s.Term = j
	self.replaced[term] = j
}

func (self *Transformer) general(d *Dispatch, s *ir.BasicBlock, term ir.IrTerminator, tgt *ir.BasicBlock) {
	id := d.newId()
	vals := self.backfill(d, s)

	/* the target is now entered from the dispatch block */
	for _, p := range tgt.Phi {
		if _, ok := p.V[d.D]; ok {
			invariant("%s: %s already has an edge from %s", self.fn.Name, tgt, d.D)
		}
		p.MoveIncoming(s, d.D)
	}

	/* redirect the branch */
	ir.Retarget(term, tgt, d.D)
	for q, v := range vals {
		q.SetIncoming(s, v)
	}

	/* add the case */
	d.Sel.SetIncoming(s, self.selector(s, term, tgt, id, false))
	d.Sw.AddCase(id, tgt)
	d.entry[tgt] = s
	self.res.Cases++
}

func (self *Transformer) selfref(d *Dispatch, s *ir.BasicBlock, term *ir.IrBranch, tgt *ir.BasicBlock) {
	id := d.newId()
	sv := self.selector(s, term, tgt, id, true)

	/* the target is now entered from the dispatch block */
	for _, p := range tgt.Phi {
		if _, ok := p.V[d.D]; ok {
			invariant("%s: %s already has an edge from %s", self.fn.Name, tgt, d.D)
		}
		p.MoveIncoming(s, d.D)
	}

	/* one edge carries both destinations */
	self.jump(s, term, d.D)
	d.Sel.SetIncoming(s, sv)
	d.Sw.AddCase(id, tgt)
	d.entry[tgt] = s
	self.res.Cases++
}

// merge funnels s into the block currently feeding the case of tgt.
func (self *Transformer) merge(d *Dispatch, s *ir.BasicBlock, term ir.IrTerminator, tgt *ir.BasicBlock, id int64, selfref bool) {
	e := d.entry[tgt]
	if e == nil {
		invariant("%s: case %d of %s has no incoming block", self.fn.Name, id, d)
	}

	/* values for the dispatch Phi nodes */
	var vals map[*ir.IrPhi]ir.Reg
	if !selfref {
		vals = self.backfill(d, s)
	}

	/* the merge block */
	m := self.fn.CreateBlock()
	m.Name = "simt.merge"
	m.Term = &ir.IrJump{To: d.D}
	sv := self.selector(s, term, tgt, id, selfref)

	/* re-home the dispatch Phi nodes */
	for _, q := range d.D.Phi {
		ve, ok := q.V[e]
		if !ok {
			invariant("%s: %s has no edge from %s", self.fn.Name, d, e)
		}

		/* the value coming from s */
		var vs ir.Reg
		switch {
		case q == d.Sel:
			vs = sv
		case selfref:
			vs = *q.V[s]
		default:
			vs = vals[q]
		}

		/* merge both */
		np := newPhi(self.fn, q.R.Ptr())
		np.SetIncoming(e, *ve)
		np.SetIncoming(s, vs)
		m.Phi = append(m.Phi, np)

		/* and replace the edges */
		delete(q.V, e)
		delete(q.V, s)
		q.SetIncoming(m, np.R)
	}

	/* re-home the target Phi nodes */
	for _, p := range tgt.Phi {
		vd, ok := p.V[d.D]
		if !ok {
			invariant("%s: %s is not a destination of %s", self.fn.Name, tgt, d)
		}
		vs, ok := p.V[s]
		if !ok {
			invariant("%s: %s has no edge from %s", self.fn.Name, tgt, s)
		}

		/* merge both */
		np := newPhi(self.fn, p.R.Ptr())
		np.SetIncoming(e, *vd)
		np.SetIncoming(s, *vs)
		m.Phi = append(m.Phi, np)

		/* the original Phi only sees the dispatch block */
		delete(p.V, s)
		p.SetIncoming(d.D, np.R)
	}

	/* point both branches to the merge block */
	ir.Retarget(e.Term, d.D, m)
	if selfref {
		self.jump(s, term, m)
	} else {
		ir.Retarget(term, tgt, m)
	}

	/* the merge block now feeds the case */
	d.entry[tgt] = m
	self.res.Merges++
	opts.Trace("%s: merged %s and %s into %s", self.fn.Name, e, s, m)
}

// backfill returns the values the dispatch Phi nodes receive along a new edge
// from s. The switch never falls through on such an edge, so the values are
// never observed.
func (self *Transformer) backfill(d *Dispatch, s *ir.BasicBlock) map[*ir.IrPhi]ir.Reg {
	ret := make(map[*ir.IrPhi]ir.Reg, len(d.D.Phi))
	for _, q := range d.D.Phi {
		if q != d.Sel {
			ret[q] = ir.Undef(q.R)
		}
	}
	return ret
}
