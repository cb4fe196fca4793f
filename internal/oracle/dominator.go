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

/** This is an implementation of the Lengauer-Tarjan algorithm described in
 *  https://doi.org/10.1145%2F357062.357071
 */

package oracle

import (
	"github.com/oleiade/lane"

	"github.com/cloudwego/simtfix/ir"
)

type _LtNode struct {
	semi     int
	node     *ir.BasicBlock
	dom      *_LtNode
	label    *_LtNode
	parent   *_LtNode
	ancestor *_LtNode
	pred     []*_LtNode
	bucket   map[*_LtNode]struct{}
}

type _LengauerTarjan struct {
	nodes  []*_LtNode
	vertex map[int]int
	succ   func(*ir.BasicBlock) []*ir.BasicBlock
}

func newLengauerTarjan(succ func(*ir.BasicBlock) []*ir.BasicBlock) *_LengauerTarjan {
	return &_LengauerTarjan{
		succ:   succ,
		vertex: make(map[int]int),
	}
}

func (self *_LengauerTarjan) visit(bb *ir.BasicBlock, parent *_LtNode) *_LtNode {
	i := len(self.nodes)
	self.vertex[bb.Id] = i

	/* create a new node */
	p := &_LtNode{
		semi:   i,
		node:   bb,
		parent: parent,
		bucket: make(map[*_LtNode]struct{}),
	}

	/* add to node list */
	p.label = p
	self.nodes = append(self.nodes, p)
	return p
}

func (self *_LengauerTarjan) dfs(root *ir.BasicBlock) {
	st := lane.NewStack()
	st.Push(self.visit(root, nil))

	/* number the vertices in depth-first pre-order */
	for !st.Empty() {
		tail := true
		this := st.Head().(*_LtNode)

		/* descend into the first unvisited successor */
		for _, w := range self.succ(this.node) {
			if _, ok := self.vertex[w.Id]; !ok {
				tail = false
				st.Push(self.visit(w, this))
				break
			}
		}

		/* all the successors are visited, pop the current node */
		if tail {
			st.Pop()
		}
	}

	/* add predecessors */
	for _, p := range self.nodes {
		for _, w := range self.succ(p.node) {
			q := self.nodes[self.vertex[w.Id]]
			q.pred = append(q.pred, p)
		}
	}
}

func (self *_LengauerTarjan) eval(p *_LtNode) *_LtNode {
	if p.ancestor == nil {
		return p
	} else {
		self.compress(p)
		return p.label
	}
}

func (self *_LengauerTarjan) link(p *_LtNode, q *_LtNode) {
	q.ancestor = p
}

func (self *_LengauerTarjan) compress(p *_LtNode) {
	if p.ancestor.ancestor != nil {
		self.compress(p.ancestor)
		if p.label.semi > p.ancestor.label.semi {
			p.label = p.ancestor.label
		}
		p.ancestor = p.ancestor.ancestor
	}
}

type DominatorTree struct {
	Root        *ir.BasicBlock
	DominatedBy map[int]*ir.BasicBlock
	DominatorOf map[int][]*ir.BasicBlock
	Depth       map[int]int
	pre         map[int]int
	post        map[int]int
}

func minInt(a int, b int) int {
	if a < b {
		return a
	} else {
		return b
	}
}

// BuildDominatorTree computes the dominator tree of the graph rooted at bb whose
// edges are given by succ. Nodes unreachable from bb are not part of the tree.
func BuildDominatorTree(bb *ir.BasicBlock, succ func(*ir.BasicBlock) []*ir.BasicBlock) DominatorTree {
	domby := make(map[int]*ir.BasicBlock)
	domof := make(map[int][]*ir.BasicBlock)

	/* Step 1: Carry out a depth-first search of the problem graph. Number the vertices
	 * from 1 to n as they are reached during the search. Initialize the variables used
	 * in succeeding steps. */
	lt := newLengauerTarjan(succ)
	lt.dfs(bb)

	/* perform Step 2 and Step 3 simultaneously */
	for i := len(lt.nodes) - 1; i > 0; i-- {
		p := lt.nodes[i]
		q := (*_LtNode)(nil)

		/* Step 2: Compute the semidominators of all vertices by applying Theorem 4.
		 * Carry out the computation vertex by vertex in decreasing order by number. */
		for _, v := range p.pred {
			q = lt.eval(v)
			p.semi = minInt(p.semi, q.semi)
		}

		/* link the ancestor */
		lt.link(p.parent, p)
		lt.nodes[p.semi].bucket[p] = struct{}{}

		/* Step 3: Implicitly define the immediate dominator of each vertex by applying Corollary 1 */
		for v := range p.parent.bucket {
			if q = lt.eval(v); q.semi < v.semi {
				v.dom = q
			} else {
				v.dom = p.parent
			}
		}

		/* clear the bucket */
		for v := range p.parent.bucket {
			delete(p.parent.bucket, v)
		}
	}

	/* Step 4: Explicitly define the immediate dominator of each vertex, carrying out the
	 * computation vertex by vertex in increasing order by number. */
	for _, p := range lt.nodes[1:] {
		if p.dom.node.Id != lt.nodes[p.semi].node.Id {
			p.dom = p.dom.dom
		}
	}

	/* map the dominator relations */
	for _, p := range lt.nodes[1:] {
		domby[p.node.Id] = p.dom.node
		domof[p.dom.node.Id] = append(domof[p.dom.node.Id], p.node)
	}

	/* construct the dominator tree */
	ret := DominatorTree{
		Root:        bb,
		DominatorOf: domof,
		DominatedBy: domby,
		Depth:       make(map[int]int, len(lt.nodes)),
		pre:         make(map[int]int, len(lt.nodes)),
		post:        make(map[int]int, len(lt.nodes)),
	}

	/* number the tree for constant time ancestor queries */
	ret.number()
	return ret
}

func (self *DominatorTree) number() {
	n := 0
	st := lane.NewStack()
	st.Push(self.Root)
	self.Depth[self.Root.Id] = 0
	self.pre[self.Root.Id] = n

	/* iterative pre/post-order walk over the tree */
	for !st.Empty() {
		tail := true
		this := st.Head().(*ir.BasicBlock)

		/* descend into the first unnumbered child */
		for _, c := range self.DominatorOf[this.Id] {
			if _, ok := self.pre[c.Id]; !ok {
				n++
				tail = false
				self.pre[c.Id] = n
				self.Depth[c.Id] = self.Depth[this.Id] + 1
				st.Push(c)
				break
			}
		}

		/* all the children are numbered */
		if tail {
			n++
			self.post[this.Id] = n
			st.Pop()
		}
	}
}

// Contains reports whether bb is part of the tree.
func (self *DominatorTree) Contains(bb *ir.BasicBlock) bool {
	_, ok := self.pre[bb.Id]
	return ok
}

// Dominates reports whether a dominates b (reflexively).
func (self *DominatorTree) Dominates(a *ir.BasicBlock, b *ir.BasicBlock) bool {
	if a == b {
		return true
	} else if !self.Contains(a) || !self.Contains(b) {
		return false
	} else {
		return self.pre[a.Id] <= self.pre[b.Id] && self.post[b.Id] <= self.post[a.Id]
	}
}

// Nearest returns the nearest common ancestor of a and b, or nil if either of
// them is not part of the tree.
func (self *DominatorTree) Nearest(a *ir.BasicBlock, b *ir.BasicBlock) *ir.BasicBlock {
	if !self.Contains(a) || !self.Contains(b) {
		return nil
	}

	/* bring both nodes to the same depth */
	for self.Depth[a.Id] > self.Depth[b.Id] {
		a = self.DominatedBy[a.Id]
	}
	for self.Depth[b.Id] > self.Depth[a.Id] {
		b = self.DominatedBy[b.Id]
	}

	/* then climb together */
	for a != b {
		a = self.DominatedBy[a.Id]
		b = self.DominatedBy[b.Id]
	}
	return a
}
