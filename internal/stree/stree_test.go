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

package stree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/simtfix/internal/cfgtest"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

func build(fn *ir.Func) *SpanningTree {
	return Build(fn, oracle.NewDominance(fn))
}

func TestSpanningTree_WhileLoop(t *testing.T) {
	fn, bb := cfgtest.WhileLoop()
	st := build(fn)
	require.Equal(t, bb["entry"], st.Root.Block)
	require.Equal(t, Tree, st.Edge(bb["entry"], bb["header"]).Kind)
	require.Equal(t, Tree, st.Edge(bb["header"], bb["body"]).Kind)
	require.Equal(t, Tree, st.Edge(bb["header"], bb["exit"]).Kind)
	require.Equal(t, Backward, st.Edge(bb["body"], bb["header"]).Kind)
	require.Equal(t, Retreating, st.Edge(bb["body"], bb["header"]).Type)
	require.Len(t, st.Retreating(), 1)
	require.True(t, st.IsAncestor(bb["entry"], bb["body"]))
	require.False(t, st.IsAncestor(bb["body"], bb["body"]))
	require.True(t, st.Descendants(bb["header"]).Has(bb["exit"].Id))
}

func TestSpanningTree_Forward(t *testing.T) {
	b := ir.NewBuilder("forward")
	entry := b.Block("entry")
	mid := b.Block("mid")
	exit := b.Block("exit")
	b.Branch(b.Arg(0, false, ir.Generic), mid, exit)
	b.At(mid).Jump(exit)
	b.At(exit).Return()
	st := build(b.Build())
	require.Equal(t, Tree, st.Edge(entry, mid).Kind)
	require.Equal(t, Tree, st.Edge(mid, exit).Kind)
	require.Equal(t, Forward, st.Edge(entry, exit).Kind)
	require.Equal(t, Advancing, st.Edge(entry, exit).Type)
}

func TestSpanningTree_Cross(t *testing.T) {
	fn, bb := cfgtest.Diamond()
	st := build(fn)
	require.Equal(t, Tree, st.Edge(bb["then"], bb["join"]).Kind)
	require.Equal(t, Cross, st.Edge(bb["else"], bb["join"]).Type)
	require.Equal(t, NoKind, st.Edge(bb["else"], bb["join"]).Kind)
}

func TestSpanningTree_SelfLoop(t *testing.T) {
	fn, bb := cfgtest.SelfLoop()
	st := build(fn)
	e := st.Edge(bb["loop"], bb["loop"])
	require.Equal(t, Retreating, e.Type)
	require.Equal(t, Backward, e.Kind)
}

func TestSpanningTree_NotBackward(t *testing.T) {
	fn, bb := cfgtest.Irreducible()
	st := build(fn)
	rs := st.Retreating()
	require.Len(t, rs, 1)
	require.Equal(t, NotBackward, rs[0].Kind)
	require.Equal(t, bb["b"], rs[0].Src.Block)
	require.Equal(t, bb["a"], rs[0].Dst.Block)
}

func TestSpanningTree_Unreachable(t *testing.T) {
	b := ir.NewBuilder("dead")
	entry := b.Block("entry")
	dead := b.Block("dead")
	b.Return()
	b.At(dead).Jump(entry)
	st := build(b.Build())
	require.False(t, st.IsReached(dead))
	require.True(t, st.IsReached(entry))
	require.Nil(t, st.Edge(dead, entry))
	require.Empty(t, st.Edges())
}

func TestSpanningTree_Properties(t *testing.T) {
	for seed := int64(1); seed <= 128; seed++ {
		fn := cfgtest.Random(seed, 10)
		st := build(fn)
		dom := oracle.NewDominance(fn)
		ntree := 0

		/* every edge leaving a reached block is classified exactly once */
		nedge := 0
		for _, bb := range fn.Blocks {
			if st.IsReached(bb) {
				nedge += len(bb.Succs())
			}
		}
		require.Len(t, st.Edges(), nedge, "seed %d", seed)

		/* check each classification */
		for _, e := range st.Edges() {
			src, dst := e.Src.Block, e.Dst.Block
			switch e.Kind {
			case Tree:
				ntree++
				require.Equal(t, e.Src, e.Dst.Parent, "seed %d: %s", seed, e)
			case Forward:
				require.True(t, st.IsAncestor(src, dst), "seed %d: %s", seed, e)
			case Backward:
				require.True(t, src == dst || st.IsAncestor(dst, src), "seed %d: %s", seed, e)
				require.True(t, dom.Dominates(dst, src), "seed %d: %s", seed, e)
			case NotBackward:
				require.True(t, st.IsAncestor(dst, src), "seed %d: %s", seed, e)
				require.False(t, dom.Dominates(dst, src), "seed %d: %s", seed, e)
			case NoKind:
				require.Equal(t, Cross, e.Type)
				require.False(t, st.IsAncestor(src, dst) || st.IsAncestor(dst, src) || src == dst, "seed %d: %s", seed, e)
			}
		}

		/* tree edges form a spanning tree over the reached blocks */
		nreached := 0
		for _, bb := range fn.Blocks {
			if st.IsReached(bb) {
				nreached++
			}
		}
		require.Equal(t, nreached-1, ntree, "seed %d", seed)

		/* B ∈ descendants(A) iff A ∈ ancestors(B) */
		for _, a := range fn.Blocks {
			for _, b := range fn.Blocks {
				require.Equal(t,
					st.Descendants(a).Has(b.Id),
					st.Node(b).Ancestors.Has(a.Id),
					"seed %d: %s, %s", seed, a, b,
				)
			}
		}
	}
}
