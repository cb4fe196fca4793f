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
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/simtfix/internal/cfgtest"
	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/ir"
)

func defaultOptions() *opts.Options {
	o := opts.GetDefaultOptions()
	return &o
}

func blocksNamed(fn *ir.Func, name string) (ret []*ir.BasicBlock) {
	for _, bb := range fn.Blocks {
		if bb.Name == name {
			ret = append(ret, bb)
		}
	}
	return
}

func TestTransform_General(t *testing.T) {
	fn, bbs := cfgtest.SpinWait()
	tr := NewTransformer(fn, defaultOptions())
	tr.Funnel(Request{Term: bbs["body"].Term, Taken: bbs["header"], Anchor: bbs["exit"].Term})
	require.Len(t, tr.Dispatches(), 1)
	d := tr.Dispatches()[0]

	/* the retreating edge goes through the dispatch block */
	require.Equal(t, d.D, bbs["body"].Term.(*ir.IrJump).To)
	require.Equal(t, bbs["header"], d.Sw.Target(1))
	require.Equal(t, d.Cont, d.Sw.Target(0))
	require.ElementsMatch(t, []*ir.BasicBlock{bbs["entry"], d.D}, bbs["header"].Pred)
	require.ElementsMatch(t, []*ir.BasicBlock{bbs["exit"], bbs["body"]}, d.D.Pred)

	/* the selector is the case ID on the new edge, zero otherwise */
	c := bbs["body"].Ins[len(bbs["body"].Ins)-1].(*ir.IrConstInt)
	require.Equal(t, int64(1), c.V)
	require.Equal(t, c.R, *d.Sel.V[bbs["body"]])
	require.Equal(t, ir.Rz, *d.Sel.V[bbs["exit"]])
	require.NotPanics(t, func() { Check(fn) })
}

func TestTransform_SelfReferential(t *testing.T) {
	fn, bbs := cfgtest.SelfLoop()
	loop := bbs["loop"]
	cond := loop.Term.(*ir.IrBranch).Cond

	/* the loop exits straight into the dispatch block */
	tr := NewTransformer(fn, defaultOptions())
	tr.Funnel(Request{Term: loop.Term, Taken: loop, Anchor: bbs["split"].Ins[0]})
	d := tr.Dispatches()[0]
	require.Equal(t, bbs["split"], d.D)

	/* both edges are folded into one */
	require.Equal(t, d.D, loop.Term.(*ir.IrJump).To)
	sl := loop.Ins[len(loop.Ins)-1].(*ir.IrSelect)
	require.Equal(t, cond, sl.Cond)
	require.Equal(t, ir.Rz, sl.F)
	require.Equal(t, sl.R, *d.Sel.V[loop])
	require.Equal(t, loop, d.Sw.Target(1))
	require.Equal(t, d.Cont, d.Sw.Default)
	require.NotPanics(t, func() { Check(fn) }, spew.Sdump(fn.String()))
}

func TestTransform_SharedHeader(t *testing.T) {
	fn, bbs := cfgtest.SharedHeader()
	reqs := []Request{
		{Term: bbs["left"].Term, Taken: bbs["header"], Anchor: bbs["mid"].Ins[0]},
		{Term: bbs["right"].Term, Taken: bbs["header"], Anchor: bbs["mid"].Ins[0]},
	}

	/* both loops share one case through a merge block */
	res := Apply(fn, reqs, defaultOptions())
	require.Equal(t, 1, res.Dispatches)
	require.Equal(t, 1, res.Cases)
	require.Equal(t, 1, res.Merges)
	require.Equal(t, 0, res.Headers)

	/* both latches lead to the merge block */
	ms := blocksNamed(fn, "simt.merge")
	require.Len(t, ms, 1)
	require.Equal(t, ms[0], bbs["left"].Term.(*ir.IrJump).To)
	require.Equal(t, ms[0], bbs["right"].Term.(*ir.IrJump).To)
	require.ElementsMatch(t, []*ir.BasicBlock{bbs["left"], bbs["right"]}, ms[0].Pred)

	/* the header Phi now sees the merged value */
	i := bbs["header"].Phi[0]
	require.Len(t, i.V, 2)
	require.Equal(t, ir.Rz, *i.V[bbs["entry"]])
	require.NoError(t, ir.Verify(fn))
}

func TestTransform_ChainedMerges(t *testing.T) {
	b := ir.NewBuilder("chained")
	entry := b.Block("entry")
	header := b.Block("header")
	arms := []*ir.BasicBlock{b.Block("a"), b.Block("b"), b.Block("c")}
	mid := b.Block("mid")
	exit := b.Block("exit")

	/* entry */
	flag := b.Global("shared_flag", ir.Shared)
	tid := b.ThreadId()
	b.Jump(header)

	/* header selects one of the arms */
	b.At(header)
	i := b.Phi(false)
	v := b.Load(flag, 4, ir.Shared)
	b.Switch(tid, arms[2], ir.SwitchCase{V: 1, To: arms[0]}, ir.SwitchCase{V: 2, To: arms[1]})
	b.Incoming(i, entry, ir.Rz)

	/* every arm loops back on its own condition */
	for _, bb := range arms {
		b.At(bb)
		x := b.Binary(ir.IrOpAdd, i, v)
		c := b.Binary(ir.IrCmpEq, x, ir.Rz)
		b.Branch(c, header, mid)
		b.Incoming(i, bb, x)
	}

	/* mid writes the flag */
	b.At(mid)
	one := b.Const(1)
	b.Store(one, flag, 4, ir.Shared)
	b.Jump(exit)
	b.At(exit)
	b.Return(i)

	/* funnel all three */
	fn := b.Build()
	var reqs []Request
	for _, bb := range arms {
		reqs = append(reqs, Request{Term: bb.Term, Taken: header, Anchor: mid.Ins[0]})
	}

	/* the merge blocks are chained */
	res := Apply(fn, reqs, defaultOptions())
	require.Equal(t, 1, res.Cases)
	require.Equal(t, 2, res.Merges)
	ms := blocksNamed(fn, "simt.merge")
	require.Len(t, ms, 2)
	require.Equal(t, ms[1], ms[0].Term.(*ir.IrJump).To)
	require.ElementsMatch(t, []*ir.BasicBlock{arms[0], arms[1]}, ms[0].Pred)
	require.ElementsMatch(t, []*ir.BasicBlock{ms[0], arms[2]}, ms[1].Pred)
	require.NoError(t, ir.Verify(fn))
}

func TestTransform_Normalize(t *testing.T) {
	fn, bbs := cfgtest.Irreducible()
	a, b := bbs["a"], bbs["b"]

	/* the cycle between a and b is entered from both sides */
	reqs := []Request{{Term: b.Term, Taken: a, Anchor: bbs["exit"].Term}}
	res := Apply(fn, reqs, defaultOptions())
	require.Equal(t, 1, res.Dispatches)
	require.Equal(t, 1, res.Headers)

	/* both a and b are now entered through the new header only */
	hs := blocksNamed(fn, "simt.header")
	require.Len(t, hs, 1)
	for _, bb := range []*ir.BasicBlock{a, b} {
		for _, p := range bb.Pred {
			require.True(t, p == hs[0] || p == a || p == b, "%s entered from %s", bb, p)
		}
	}
	require.NoError(t, ir.Verify(fn))
}

func twoSpins() (*ir.Func, map[string]*ir.BasicBlock) {
	b := ir.NewBuilder("spins")
	entry := b.Block("entry")
	a := b.Block("a")
	c := b.Block("b")
	x := b.Block("x")

	/* entry picks one of the spinning blocks */
	flag := b.Global("shared_flag", ir.Shared)
	tid := b.ThreadId()
	t := b.Binary(ir.IrCmpEq, tid, ir.Rz)
	b.Branch(t, a, c)

	/* both spin on the flag */
	for _, bb := range []*ir.BasicBlock{a, c} {
		b.At(bb)
		v := b.Load(flag, 4, ir.Shared)
		z := b.Binary(ir.IrCmpEq, v, ir.Rz)
		b.Branch(z, bb, x)
	}

	/* exit */
	b.At(x)
	b.Return()
	return b.Build(), map[string]*ir.BasicBlock{"entry": entry, "a": a, "b": c, "x": x}
}

// route follows the selector value that p passes to the header n.
func route(n *ir.BasicBlock, p *ir.BasicBlock) *ir.BasicBlock {
	sw := n.Term.(*ir.IrSwitch)
	v := *n.Phi[0].V[p]
	if v == ir.Rz {
		return sw.Default
	}
	for _, ins := range p.Ins {
		if c, ok := ins.(*ir.IrConstInt); ok && c.R == v {
			return sw.Target(c.V)
		}
	}
	return nil
}

func TestTransform_NormalizeDistinctHeaders(t *testing.T) {
	fn, bbs := twoSpins()
	a, b, x := bbs["a"], bbs["b"], bbs["x"]
	tr := NewTransformer(fn, defaultOptions())
	tr.Funnel(Request{Term: a.Term, Taken: a, Anchor: x.Term})
	tr.Funnel(Request{Term: b.Term, Taken: b, Anchor: x.Term})
	require.Len(t, tr.Dispatches(), 1)
	d := tr.Dispatches()[0]

	/* remember where every case goes */
	want := make(map[int64]*ir.BasicBlock)
	for _, c := range d.Sw.Cases {
		want[c.V] = c.To
	}
	require.Equal(t, map[int64]*ir.BasicBlock{1: a, 2: b}, want)

	/* a and b are both entered from the entry and the dispatch block */
	require.True(t, tr.Normalize(d))
	hs := blocksNamed(fn, "simt.header")
	require.Len(t, hs, 1)
	n := hs[0]
	sw := n.Term.(*ir.IrSwitch)

	/* every case still lands on its own loop */
	for id, to := range want {
		require.Equal(t, n, d.Sw.Target(id))
		require.Equal(t, to, sw.Target(id), "case %d lands in %s\n%s", id, sw.Target(id), fn)
	}

	/* the edges from the entry keep their targets too */
	require.Len(t, n.Pred, 3)
	var got []*ir.BasicBlock
	for _, p := range n.Pred {
		if p != d.D {
			require.Equal(t, []*ir.BasicBlock{bbs["entry"]}, p.Pred)
			got = append(got, route(n, p))
		}
	}
	require.ElementsMatch(t, []*ir.BasicBlock{a, b}, got)

	/* the latches jump to the dispatch block, so only the header enters */
	for _, bb := range []*ir.BasicBlock{a, b} {
		require.Equal(t, []*ir.BasicBlock{n}, bb.Pred)
		require.Equal(t, d.D, bb.Term.(*ir.IrJump).To)
	}
	require.NoError(t, ir.Verify(fn))
	require.NotPanics(t, func() { Check(fn) })
}

func TestTransform_NoRequests(t *testing.T) {
	fn, _ := cfgtest.WhileLoop()
	before := fn.String()
	require.Equal(t, Result{}, Apply(fn, nil, defaultOptions()))
	require.Equal(t, before, fn.String())
}

func TestRepairDominance(t *testing.T) {
	b := ir.NewBuilder("repair")
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	/* x is only defined on one side */
	c := b.Arg(0, false, ir.Generic)
	b.Branch(c, left, right)
	b.At(left)
	x := b.Const(42)
	b.Jump(join)
	b.At(right)
	b.Jump(join)
	b.At(join)
	b.Return(x)
	fn := b.Build()
	_ = entry

	/* the use now goes through a Phi node */
	require.Panics(t, func() { Check(fn) })
	require.Equal(t, 1, RepairDominance{}.Apply(fn))
	require.Len(t, join.Phi, 1)
	require.Equal(t, x, *join.Phi[0].V[left])
	require.Equal(t, ir.Ru, *join.Phi[0].V[right])
	require.Equal(t, join.Phi[0].R, join.Term.(*ir.IrReturn).R[0])
	require.NotPanics(t, func() { Check(fn) })
	require.Equal(t, 0, RepairDominance{}.Apply(fn))
}

func TestCleanRedundantPHIs(t *testing.T) {
	b := ir.NewBuilder("phis")
	entry := b.Block("entry")
	header := b.Block("header")
	exit := b.Block("exit")

	/* p only ever yields x, q and r are identical */
	x := b.Arg(0, false, ir.Generic)
	y := b.Arg(1, false, ir.Generic)
	b.Jump(header)
	b.At(header)
	p := b.Phi(false)
	q := b.Phi(false)
	r := b.Phi(false)
	s := b.Binary(ir.IrOpAdd, p, q)
	u := b.Binary(ir.IrOpAdd, s, r)
	c := b.Binary(ir.IrCmpLt, u, y)
	b.Branch(c, header, exit)
	b.Incoming(p, entry, x).Incoming(p, header, p)
	b.Incoming(q, entry, y).Incoming(q, header, u)
	b.Incoming(r, entry, y).Incoming(r, header, u)
	b.At(exit)
	b.Return(u)
	fn := b.Build()

	/* p is replaced by x, r by q */
	require.Equal(t, 2, CleanRedundantPHIs{}.Apply(fn))
	require.Len(t, header.Phi, 1)
	require.Equal(t, q, header.Phi[0].R)
	add := header.Ins[0].(*ir.IrBinaryExpr)
	require.Equal(t, x, add.X)
	require.Equal(t, q, header.Ins[1].(*ir.IrBinaryExpr).Y)
	require.Equal(t, 0, CleanRedundantPHIs{}.Apply(fn))
	require.NoError(t, ir.Verify(fn))
}

func TestUnifyReturns(t *testing.T) {
	fn, bbs := cfgtest.Diamond()
	r := bbs["join"].Phi[0].R

	/* a single return is left alone */
	require.False(t, UnifyReturns{}.Apply(fn))

	/* split the return into both arms */
	for _, name := range []string{"then", "else"} {
		bb := bbs[name]
		bb.Term = &ir.IrReturn{R: []ir.Reg{*bbs["join"].Phi[0].V[bb]}}
	}
	fn.Blocks = fn.Blocks[:len(fn.Blocks)-1]
	fn.Rebuild()
	require.Len(t, fn.Returns(), 2)

	/* both arms now jump to the merged return */
	require.True(t, UnifyReturns{}.Apply(fn))
	rets := fn.Returns()
	require.Len(t, rets, 1)
	require.Equal(t, "simt.return", rets[0].Name)
	require.Len(t, rets[0].Phi, 1)
	require.Len(t, rets[0].Phi[0].V, 2)
	require.NotEqual(t, r, rets[0].Phi[0].R)
	require.NoError(t, ir.Verify(fn))
}
