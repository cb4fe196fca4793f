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
	"sort"

	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/internal/stree"
	"github.com/cloudwego/simtfix/ir"
)

// Context is the read-only state shared by every branch and loop of a
// function. The function must not be modified while a Context is alive.
type Context struct {
	Fn    *ir.Func
	Dom   *oracle.Dominance
	Tree  *stree.SpanningTree
	SCC   *oracle.Components
	Host  oracle.Host
	Alias oracle.AliasOracle
	Opts  *opts.Options
	Defs  map[ir.Reg]ir.Def
	Users map[ir.Reg][]ir.Use
	Pos   map[ir.IrNode]ir.Pos

	branches map[int]*BranchInfo
	ctrldeps map[int][]ir.IrNode
}

// NewContext snapshots fn. The host and alias oracles default to the ones in
// the oracle package when nil.
func NewContext(fn *ir.Func, host oracle.Host, alias oracle.AliasOracle, o *opts.Options) *Context {
	dom := oracle.NewDominance(fn)
	ctx := &Context{
		Fn:       fn,
		Dom:      dom,
		Tree:     stree.Build(fn, dom),
		SCC:      oracle.SCCs(fn),
		Host:     host,
		Alias:    alias,
		Opts:     o,
		Defs:     fn.Defs(),
		Users:    fn.Users(),
		Pos:      fn.Positions(),
		branches: make(map[int]*BranchInfo),
		ctrldeps: make(map[int][]ir.IrNode),
	}

	/* default collaborators */
	if ctx.Host == nil {
		ctx.Host = oracle.NewHost(fn)
	}
	if ctx.Alias == nil {
		ctx.Alias = oracle.NewBaseAlias(fn)
	}

	/* one branch record per reachable block */
	for _, bb := range fn.Blocks {
		if dom.IsReachable(bb) && len(bb.Succs()) != 0 {
			ctx.branches[bb.Id] = newBranchInfo(ctx, bb)
		}
	}

	/* reconvergence depends on the dominating branches */
	for _, br := range ctx.branches {
		br.Reconv = br.reconvergence()
	}
	return ctx
}

// Branch returns the branch record of bb, nil if bb returns or is unreachable.
func (self *Context) Branch(bb *ir.BasicBlock) *BranchInfo {
	return self.branches[bb.Id]
}

// Branches returns every branch record ordered by block.
func (self *Context) Branches() []*BranchInfo {
	ret := make([]*BranchInfo, 0, len(self.branches))
	for _, v := range self.branches {
		ret = append(ret, v)
	}
	sort.Slice(ret, func(i int, j int) bool {
		return ret[i].Block.Id < ret[j].Block.Id
	})
	return ret
}

// BlockOf returns the block holding ins.
func (self *Context) BlockOf(ins ir.IrNode) *ir.BasicBlock {
	return self.Pos[ins].B
}

// Instrs lists every instruction of bb including Phi nodes and the terminator.
func Instrs(bb *ir.BasicBlock) []ir.IrNode {
	ret := make([]ir.IrNode, 0, len(bb.Phi)+len(bb.Ins)+1)
	for _, p := range bb.Phi {
		ret = append(ret, p)
	}
	ret = append(ret, bb.Ins...)
	if bb.Term != nil {
		ret = append(ret, bb.Term)
	}
	return ret
}

// IsBarrier reports whether ins is a barrier call.
func (self *Context) IsBarrier(ins ir.IrNode) bool {
	if v, ok := ins.(*ir.IrCall); ok {
		return self.Host.IsBarrier(v)
	} else {
		return false
	}
}

// SpaceOf resolves the address space of a memory access.
func (self *Context) SpaceOf(m ir.MemoryAccess) ir.AddrSpace {
	return self.Host.AddressSpace(m)
}

// MayAlias requires both accesses to target the same address space, then
// asks the alias oracle.
func (self *Context) MayAlias(a ir.MemoryAccess, b ir.MemoryAccess) bool {
	if self.SpaceOf(a) != self.SpaceOf(b) {
		return false
	} else {
		return self.Alias.MayAlias(a, b)
	}
}

// PosLess orders positions by block ID then by index.
func PosLess(a ir.Pos, b ir.Pos) bool {
	if a.B.Id != b.B.Id {
		return a.B.Id < b.B.Id
	} else {
		return a.I < b.I
	}
}

func (self *Context) sortNodes(v []ir.IrNode) {
	sort.SliceStable(v, func(i int, j int) bool {
		return PosLess(self.Pos[v[i]], self.Pos[v[j]])
	})
}
