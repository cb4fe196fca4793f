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
	"fmt"
	"sort"

	"github.com/oleiade/lane"
	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/ir"
)

type EdgeType uint8

const (
	Advancing EdgeType = iota
	Cross
	Retreating
)

func (self EdgeType) String() string {
	switch self {
	case Advancing:
		return "advancing"
	case Cross:
		return "cross"
	case Retreating:
		return "retreating"
	default:
		panic("unreachable")
	}
}

// EdgeKind refines Advancing edges into Tree or Forward, and Retreating edges
// into Backward or NotBackward. Cross edges have no sub-kind.
type EdgeKind uint8

const (
	NoKind EdgeKind = iota
	Tree
	Forward
	Backward
	NotBackward
)

func (self EdgeKind) String() string {
	switch self {
	case NoKind:
		return "cross"
	case Tree:
		return "tree"
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case NotBackward:
		return "not-backward"
	default:
		panic("unreachable")
	}
}

// Dominator is the dominance query the classifier needs.
type Dominator interface {
	Dominates(a *ir.BasicBlock, b *ir.BasicBlock) bool
}

type Node struct {
	Block       *ir.BasicBlock
	Parent      *Node
	Children    []*Node
	Ancestors   intsets.Sparse
	Descendants intsets.Sparse
}

func (self *Node) String() string {
	return self.Block.String()
}

type Edge struct {
	Src  *Node
	Dst  *Node
	Term ir.IrTerminator
	Type EdgeType
	Kind EdgeKind
}

func (self *Edge) String() string {
	return fmt.Sprintf("%s -> %s [%s]", self.Src, self.Dst, self.Kind)
}

type _EdgeKey struct {
	src int
	dst int
}

// SpanningTree is a depth-first spanning tree of a function with every edge
// of the function classified against it.
type SpanningTree struct {
	Root  *Node
	nodes map[int]*Node
	order []*Node
	edges []*Edge
	index map[_EdgeKey]*Edge
	tree  map[_EdgeKey]bool
}

// Build constructs the spanning tree rooted at the function entry and
// classifies every edge leaving a block reachable from the entry.
func Build(fn *ir.Func, dom Dominator) *SpanningTree {
	ret := &SpanningTree{
		nodes: make(map[int]*Node, len(fn.Blocks)),
		index: make(map[_EdgeKey]*Edge),
		tree:  make(map[_EdgeKey]bool),
	}

	/* one node per block */
	for _, bb := range fn.Blocks {
		ret.nodes[bb.Id] = &Node{Block: bb}
	}

	/* the tree must be complete before classifying */
	ret.Root = ret.nodes[fn.Entry.Id]
	ret.dfs()
	ret.closure()
	ret.classify(dom)
	return ret
}

func (self *SpanningTree) dfs() {
	st := lane.NewStack()
	st.Push(self.Root)
	self.order = append(self.order, self.Root)
	visited := map[int]bool{self.Root.Block.Id: true}

	/* scan until the stack is empty */
	for !st.Empty() {
		tail := true
		this := st.Head().(*Node)

		/* descend into the first unvisited successor */
		for _, bb := range this.Block.Succs() {
			if !visited[bb.Id] {
				p := self.nodes[bb.Id]
				tail = false
				visited[bb.Id] = true
				p.Parent = this
				this.Children = append(this.Children, p)
				self.tree[_EdgeKey{this.Block.Id, bb.Id}] = true
				self.order = append(self.order, p)
				st.Push(p)
				break
			}
		}

		/* all the successors are visited, pop the current node */
		if tail {
			st.Pop()
		}
	}
}

func (self *SpanningTree) closure() {
	/* parents come before children in pre-order */
	for _, p := range self.order {
		if p.Parent != nil {
			p.Ancestors.Copy(&p.Parent.Ancestors)
			p.Ancestors.Insert(p.Parent.Block.Id)
		}
	}

	/* and children before parents in reversed pre-order */
	for i := len(self.order) - 1; i >= 0; i-- {
		p := self.order[i]
		for _, c := range p.Children {
			p.Descendants.Insert(c.Block.Id)
			p.Descendants.UnionWith(&c.Descendants)
		}
	}
}

func (self *SpanningTree) classify(dom Dominator) {
	for _, src := range self.order {
		for _, bb := range src.Block.Succs() {
			dst := self.nodes[bb.Id]
			key := _EdgeKey{src.Block.Id, bb.Id}
			edge := &Edge{Src: src, Dst: dst, Term: src.Block.Term}

			/* classify the edge */
			switch {
			case self.tree[key]:
				edge.Type, edge.Kind = Advancing, Tree
			case dst.Ancestors.Has(src.Block.Id):
				edge.Type, edge.Kind = Advancing, Forward
			case src == dst || src.Ancestors.Has(dst.Block.Id):
				if edge.Type = Retreating; src == dst || dom.Dominates(dst.Block, src.Block) {
					edge.Kind = Backward
				} else {
					edge.Kind = NotBackward
				}
			default:
				edge.Type, edge.Kind = Cross, NoKind
			}

			/* add to edge list */
			self.index[key] = edge
			self.edges = append(self.edges, edge)
		}
	}
}

// Node returns the tree node of bb.
func (self *SpanningTree) Node(bb *ir.BasicBlock) *Node {
	return self.nodes[bb.Id]
}

// Edges returns every classified edge in DFS order of their sources.
func (self *SpanningTree) Edges() []*Edge {
	return self.edges
}

// Edge returns the classified edge from src to dst, or nil.
func (self *SpanningTree) Edge(src *ir.BasicBlock, dst *ir.BasicBlock) *Edge {
	return self.index[_EdgeKey{src.Id, dst.Id}]
}

// Retreating returns every retreating edge, ordered by source then target.
func (self *SpanningTree) Retreating() []*Edge {
	var ret []*Edge
	for _, e := range self.edges {
		if e.Type == Retreating {
			ret = append(ret, e)
		}
	}
	sort.Slice(ret, func(i int, j int) bool {
		if ret[i].Src.Block.Id != ret[j].Src.Block.Id {
			return ret[i].Src.Block.Id < ret[j].Src.Block.Id
		} else {
			return ret[i].Dst.Block.Id < ret[j].Dst.Block.Id
		}
	})
	return ret
}

// IsAncestor reports whether a is a strict ancestor of b.
func (self *SpanningTree) IsAncestor(a *ir.BasicBlock, b *ir.BasicBlock) bool {
	return self.nodes[b.Id].Ancestors.Has(a.Id)
}

// Descendants returns the strict descendants of bb.
func (self *SpanningTree) Descendants(bb *ir.BasicBlock) *intsets.Sparse {
	return &self.nodes[bb.Id].Descendants
}

// IsReached reports whether the DFS from the entry visited bb.
func (self *SpanningTree) IsReached(bb *ir.BasicBlock) bool {
	p := self.nodes[bb.Id]
	return p == self.Root || p.Parent != nil
}
