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

package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/cloudwego/simtfix/internal/cfgtest"
	"github.com/cloudwego/simtfix/ir"
)

func TestDominance_Diamond(t *testing.T) {
	fn, bb := cfgtest.Diamond()
	dom := NewDominance(fn)
	require.True(t, dom.Dominates(bb["entry"], bb["join"]))
	require.False(t, dom.Dominates(bb["then"], bb["join"]))
	require.True(t, dom.StrictlyDominates(bb["entry"], bb["then"]))
	require.False(t, dom.StrictlyDominates(bb["then"], bb["then"]))
	require.Equal(t, bb["entry"], dom.NearestCommonDominator(bb["then"], bb["else"]))
	require.Equal(t, bb["entry"], dom.IDom(bb["join"]))
	require.Nil(t, dom.IDom(bb["entry"]))
	require.Equal(t, 0, dom.Level(bb["entry"]))
	require.Equal(t, 1, dom.Level(bb["join"]))
	require.True(t, dom.PostDominates(bb["join"], bb["entry"]))
	require.False(t, dom.PostDominates(bb["then"], bb["entry"]))
	require.Equal(t, bb["join"], dom.IPDom(bb["entry"]))
	require.Equal(t, bb["join"], dom.NearestCommonPostDominator(bb["then"], bb["else"]))
	require.Nil(t, dom.IPDom(bb["join"]))
}

func TestDominance_ZeroBlockId(t *testing.T) {
	fn, bb := cfgtest.Diamond()
	for _, b := range fn.Blocks {
		b.Id--
	}

	/* the entry is bb_0 now, which must not clash with the exit */
	require.Equal(t, 0, bb["entry"].Id)
	dom := NewDominance(fn)
	require.Equal(t, bb["join"], dom.IPDom(bb["entry"]))
	require.True(t, dom.PostDominates(bb["join"], bb["entry"]))
	require.True(t, dom.ReachesExit(bb["entry"]))
	require.Error(t, ir.Verify(fn))
}

func TestDominance_Loop(t *testing.T) {
	fn, bb := cfgtest.WhileLoop()
	dom := NewDominance(fn)
	require.True(t, dom.Dominates(bb["header"], bb["body"]))
	require.True(t, dom.PostDominates(bb["header"], bb["body"]))
	require.Equal(t, bb["header"], dom.IPDom(bb["body"]))
	require.Equal(t, bb["exit"], dom.IPDom(bb["header"]))
	require.True(t, dom.ReachesExit(bb["body"]))
}

func TestDominance_MultipleReturns(t *testing.T) {
	b := ir.NewBuilder("returns")
	entry := b.Block("entry")
	x := b.Block("x")
	y := b.Block("y")
	b.Branch(b.Arg(0, false, ir.Generic), x, y)
	b.At(x).Return()
	b.At(y).Return()
	dom := NewDominance(b.Build())
	require.Nil(t, dom.NearestCommonPostDominator(x, y))
	require.Nil(t, dom.IPDom(entry))
	require.True(t, dom.PostDominates(x, x))
}

func TestDominance_InfiniteLoop(t *testing.T) {
	b := ir.NewBuilder("spin")
	entry := b.Block("entry")
	spin := b.Block("spin")
	exit := b.Block("exit")
	b.Branch(b.Arg(0, false, ir.Generic), spin, exit)
	b.At(spin).Jump(spin)
	b.At(exit).Return()
	dom := NewDominance(b.Build())
	require.False(t, dom.ReachesExit(spin))
	require.True(t, dom.PostDominates(spin, spin))
	require.False(t, dom.PostDominates(exit, spin))
	require.Nil(t, dom.NearestCommonPostDominator(spin, exit))
	require.Equal(t, exit, dom.IPDom(entry))
}

func TestDominance_InstrQueries(t *testing.T) {
	fn, bb := cfgtest.SpinWait()
	dom := NewDominance(fn)
	h := bb["header"]
	require.True(t, dom.InstrDominates(ir.Pos{B: h, I: 0}, ir.Pos{B: h, I: 1}))
	require.False(t, dom.InstrDominates(ir.Pos{B: h, I: 1}, ir.Pos{B: h, I: 1}))
	require.True(t, dom.InstrDominates(ir.Pos{B: h, I: ir.PosPhi}, ir.Pos{B: h, I: ir.PosTerm}))
	require.True(t, dom.InstrPostDominates(ir.Pos{B: h, I: 1}, ir.Pos{B: h, I: 1}))
	require.True(t, dom.InstrPostDominates(ir.Head(bb["done"]), ir.Pos{B: h, I: 0}))
	require.False(t, dom.InstrPostDominates(ir.Head(bb["body"]), ir.Pos{B: h, I: 0}))
}

// gonum's Lengauer-Tarjan must agree with ours on every reachable block.
func TestDominance_CrossCheck(t *testing.T) {
	for seed := int64(1); seed <= 64; seed++ {
		fn := cfgtest.Random(seed, 12)
		dom := NewDominance(fn)
		g := simple.NewDirectedGraph()

		/* project the function */
		for _, bb := range fn.Blocks {
			g.AddNode(simple.Node(bb.Id))
		}
		for _, bb := range fn.Blocks {
			for _, s := range bb.Succs() {
				if s != bb {
					g.SetEdge(g.NewEdge(simple.Node(bb.Id), simple.Node(s.Id)))
				}
			}
		}

		/* compare the immediate dominators */
		ref := flow.Dominators(simple.Node(fn.Entry.Id), g)
		for _, bb := range fn.Blocks {
			if !dom.IsReachable(bb) || bb == fn.Entry {
				continue
			}
			idom := ref.DominatorOf(int64(bb.Id))
			require.NotNil(t, idom, "seed %d: %s", seed, bb)
			require.Equal(t, idom.ID(), int64(dom.IDom(bb).Id), "seed %d: %s\n%s", seed, bb, fn)
		}
	}
}
