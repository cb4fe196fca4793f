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
	"github.com/cloudwego/simtfix/ir"
)

// AliasOracle decides whether two memory accesses may touch the same location.
// Callers have already checked that both accesses target the same space.
type AliasOracle interface {
	MayAlias(a ir.MemoryAccess, b ir.MemoryAccess) bool
}

type _Bases struct {
	objs    []ir.IrNode
	unknown bool
}

type _Tracer struct {
	defs map[ir.Reg]ir.Def
	memo map[ir.Reg]*_Bases
}

func newTracer(fn *ir.Func) *_Tracer {
	return &_Tracer{
		defs: fn.Defs(),
		memo: make(map[ir.Reg]*_Bases),
	}
}

// bases traces a pointer back through address arithmetic, selects and Phi
// nodes to the objects it may point into.
func (self *_Tracer) bases(r ir.Reg) *_Bases {
	if v, ok := self.memo[r]; ok {
		return v
	}

	/* worklist over the pointer derivation graph */
	ret := new(_Bases)
	seen := map[ir.Reg]bool{r: true}
	work := []ir.Reg{r}

	/* cache early, the result is complete once the loop exits */
	self.memo[r] = ret
	for len(work) != 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		/* zero pointers point nowhere, undefined ones anywhere */
		if p.IsZero() {
			continue
		} else if p.IsSpecial() {
			ret.unknown = true
			continue
		}

		/* follow the definition */
		def, ok := self.defs[p]
		if !ok {
			ret.unknown = true
			continue
		}

		/* derived pointers */
		var next []ir.Reg
		switch v := def.Node.(type) {
		case *ir.IrLEA:
			next = []ir.Reg{v.Mem}
		case *ir.IrSelect:
			next = []ir.Reg{v.T, v.F}
		case *ir.IrUnaryExpr:
			next = []ir.Reg{v.V}
		case *ir.IrPhi:
			for _, u := range v.Usages() {
				next = append(next, *u)
			}
		case *ir.IrAlloca, *ir.IrGlobal, *ir.IrLoadArg:
			ret.objs = append(ret.objs, v)
		default:
			ret.unknown = true
		}

		/* add to the worklist */
		for _, n := range next {
			if !seen[n] {
				seen[n] = true
				work = append(work, n)
			}
		}
	}
	return ret
}

// identified reports whether v names a distinct object.
func identified(v ir.IrNode) bool {
	switch v.(type) {
	case *ir.IrAlloca, *ir.IrGlobal:
		return true
	default:
		return false
	}
}

func sameObject(a ir.IrNode, b ir.IrNode) bool {
	if ga, ok := a.(*ir.IrGlobal); ok {
		if gb, ok := b.(*ir.IrGlobal); ok {
			return ga.Name == gb.Name
		}
	}
	return a == b
}

// BaseAlias is the default alias oracle. Distinct allocas and globals never
// alias each other, everything else may alias.
type BaseAlias struct {
	tr *_Tracer
}

func NewBaseAlias(fn *ir.Func) *BaseAlias {
	return &BaseAlias{tr: newTracer(fn)}
}

func (self *BaseAlias) MayAlias(a ir.MemoryAccess, b ir.MemoryAccess) bool {
	x := self.tr.bases(*a.Ptr)
	y := self.tr.bases(*b.Ptr)

	/* unknown provenance may alias anything */
	if x.unknown || y.unknown {
		return true
	}

	/* check every pair of base objects */
	for _, p := range x.objs {
		for _, q := range y.objs {
			if !identified(p) || !identified(q) || sameObject(p, q) {
				return true
			}
		}
	}
	return false
}
