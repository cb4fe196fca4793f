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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/simtfix/internal/cfgtest"
	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/stree"
	"github.com/cloudwego/simtfix/ir"
)

func analyze(fn *ir.Func) *Facts {
	o := opts.GetDefaultOptions()
	return Analyze(fn, nil, nil, &o)
}

func TestBranch_Diamond(t *testing.T) {
	fn, bb := cfgtest.Diamond()
	ctx := analyze(fn).Ctx
	br := ctx.Branch(bb["entry"])
	require.True(t, br.Conditional())
	require.Equal(t, bb["join"], br.IPDom)
	require.Equal(t, bb["join"], br.Reconv)
	require.True(t, br.Path(bb["then"]).Has(bb["then"].Id))
	require.False(t, br.Path(bb["then"]).Has(bb["join"].Id))
	require.Equal(t, []int{1}, br.ArmsOn(bb["else"]))
	require.False(t, ctx.Branch(bb["then"]).Conditional())
}

func TestLoop_WhileLoop(t *testing.T) {
	fn, bb := cfgtest.WhileLoop()
	facts := analyze(fn)
	require.Len(t, facts.Loops, 1)

	/* a loop without memory accesses never needs a transformation */
	lp := facts.Loops[0]
	require.True(t, lp.CreatesLoop())
	require.Equal(t, bb["body"], lp.Self())
	require.Equal(t, bb["header"], lp.Taken)
	require.True(t, lp.Contains(bb["header"]))
	require.True(t, lp.Contains(bb["body"]))
	require.False(t, lp.Contains(bb["exit"]))
	require.Equal(t, []*ir.BasicBlock{bb["exit"]}, lp.ExitSuccs)
	require.False(t, lp.DependsOnShared())
	require.False(t, lp.IsPotentiallyRedefined())
	require.False(t, lp.NeedsTransformation)
	require.Empty(t, facts.Planned())
}

func TestLoop_SpinWait(t *testing.T) {
	fn, bb := cfgtest.SpinWait()
	facts := analyze(fn)
	require.Len(t, facts.Loops, 1)
	lp := facts.Loops[0]

	/* the exit depends on the flag, which is written after the loop */
	ld := bb["header"].Ins[0]
	st := bb["exit"].Ins[1]
	require.True(t, lp.DependsOnShared())
	require.True(t, lp.LoopLog.Has(ld))
	require.Len(t, lp.SharedLoads, 1)
	require.Equal(t, ld, lp.SharedLoads[0].Node)
	require.Len(t, lp.Redefining, 1)
	require.Equal(t, st, lp.Redefining[0].Node)
	require.Empty(t, lp.RedefiningLoop)

	/* the loop must wait until the store has been executed */
	pos, ok := lp.Plan()
	require.True(t, ok)
	require.Equal(t, ir.Pos{B: bb["exit"], I: ir.PosTerm}, pos)
	require.Equal(t, lp.InitReqPDOM, lp.FinlReqPDOM)
	require.Equal(t, ir.Head(bb["exit"]), lp.Branch.ReconvPos())
	require.True(t, facts.Ctx.Dom.InstrPostDominates(pos, facts.Ctx.Pos[st]))
	require.False(t, facts.Unresolved())
}

func TestLoop_SharedHeader(t *testing.T) {
	fn, bb := cfgtest.SharedHeader()
	facts := analyze(fn)
	require.Len(t, facts.Loops, 2)

	/* loops with the same header share the body */
	a, b := facts.Loops[0], facts.Loops[1]
	require.Equal(t, bb["header"], a.Taken)
	require.Equal(t, bb["header"], b.Taken)
	require.NotEqual(t, a.Self(), b.Self())
	require.True(t, a.Body.Equals(&b.Body))
	for _, name := range []string{"header", "left", "right"} {
		require.True(t, a.Contains(bb[name]), name)
	}
	require.False(t, a.Contains(bb["mid"]))
}

func TestLoop_BodyIsClosed(t *testing.T) {
	for seed := int64(0); seed < 64; seed++ {
		fn := cfgtest.Random(seed, 12)
		facts := analyze(fn)

		/* bodies hold the header, the latch of natural loops and reachable blocks only */
		for _, lp := range facts.Loops {
			require.True(t, lp.Contains(lp.Taken), "seed %d", seed)
			if lp.Edge.Kind != stree.NotBackward {
				require.True(t, lp.Contains(lp.Self()), "seed %d", seed)
			}
			for _, id := range lp.Body.AppendTo(nil) {
				require.True(t, facts.Ctx.Dom.IsReachable(fn.Block(id)), "seed %d", seed)
			}
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	fn, _ := cfgtest.SharedHeader()
	facts := analyze(fn)
	before := make([]ir.Pos, len(facts.Loops))
	for i, lp := range facts.Loops {
		before[i] = lp.FinlReqPDOM
	}

	/* a converged state does not move */
	require.Equal(t, 1, facts.Ctx.ResolveReqPDOM(facts.Loops))
	for i, lp := range facts.Loops {
		require.Equal(t, before[i], lp.FinlReqPDOM)
	}
}

func TestResolve_MaxIterations(t *testing.T) {
	fn, _ := cfgtest.SpinWait()
	facts := analyze(fn)
	facts.Ctx.Opts.MaxIterations = 0
	require.Panics(t, func() { facts.Ctx.ResolveReqPDOM(facts.Loops) })
}

func TestCommonPDOM(t *testing.T) {
	fn, bb := cfgtest.Diamond()
	ctx := analyze(fn).Ctx
	p := ir.Head(bb["then"])
	q := ir.Head(bb["else"])
	require.Equal(t, ir.Head(bb["join"]), ctx.CommonPDOM(p, q))
	require.Equal(t, ir.Head(bb["join"]), ctx.CommonPDOM(ir.Head(bb["join"]), p))
	require.False(t, ctx.CommonPDOM(ir.Pos{}, p).IsValid())
}

func TestStats(t *testing.T) {
	fn, _ := cfgtest.SpinWait()
	st := analyze(fn).Stats()
	require.Equal(t, Stats{
		Branches:       4,
		CondBranches:   1,
		Loops:          1,
		SharedLoops:    1,
		RedefinedLoops: 1,
		TransformLoops: 1,
	}, st)

	/* accumulate */
	var sum Stats
	sum.Add(st)
	sum.Add(st)
	require.Equal(t, 2, sum.Loops)
	require.Equal(t, 8, sum.Branches)
}
