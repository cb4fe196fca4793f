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

package ir

import (
	"fmt"
	"sort"
	"strings"
)

type Module struct {
	Name  string
	Funcs []*Func
}

type Func struct {
	Name   string
	Entry  *BasicBlock
	Blocks []*BasicBlock
	nreg   int
}

// Def is the defining site of a register.
type Def struct {
	Node IrNode
	Pos  Pos
}

// Use is one operand slot referring to a register. For Phi operands From is the
// incoming block, and the use happens at the end of that block.
type Use struct {
	Node IrNode
	Pos  Pos
	From *BasicBlock
	Ref  *Reg
}

func NewFunc(name string) *Func {
	return &Func{Name: name, nreg: 1}
}

func (self *Func) MaxBlock() (ret int) {
	for _, bb := range self.Blocks {
		if bb.Id > ret {
			ret = bb.Id
		}
	}
	return
}

// CreateBlock allocates a new, empty block. The caller must set its terminator.
func (self *Func) CreateBlock() *BasicBlock {
	bb := &BasicBlock{Id: self.MaxBlock() + 1}
	self.Blocks = append(self.Blocks, bb)
	if self.Entry == nil {
		self.Entry = bb
	}
	return bb
}

func (self *Func) Block(id int) *BasicBlock {
	for _, bb := range self.Blocks {
		if bb.Id == id {
			return bb
		}
	}
	return nil
}

func (self *Func) NewReg(ptr bool) Reg {
	if self.nreg == 0 {
		self.nreg = 1
	}
	r := mkreg(ptr, self.nreg)
	self.nreg++
	return r
}

// Rebuild recomputes every derived relation (predecessor lists and the register
// counter) from the terminators and definitions. It must be called after any
// change to the shape of the graph.
func (self *Func) Rebuild() {
	for _, bb := range self.Blocks {
		bb.Pred = bb.Pred[:0]
	}

	/* predecessors come from the terminators only */
	for _, bb := range self.Blocks {
		if bb.Term == nil {
			continue
		}
		for _, succ := range Successors(bb.Term) {
			succ.Pred = append(succ.Pred, bb)
		}
	}

	/* keep the register counter above every defined register */
	for _, bb := range self.Blocks {
		for _, p := range bb.Phi {
			self.bump(p.R)
		}
		for _, ins := range bb.Ins {
			if d, ok := ins.(IrDefinitions); ok {
				for _, r := range d.Definitions() {
					self.bump(*r)
				}
			}
		}
	}
}

func (self *Func) bump(r Reg) {
	if !r.IsSpecial() && r.Index() >= self.nreg {
		self.nreg = r.Index() + 1
	}
}

// Returns lists all the blocks terminated by a return.
func (self *Func) Returns() (ret []*BasicBlock) {
	for _, bb := range self.Blocks {
		if _, ok := bb.Term.(*IrReturn); ok {
			ret = append(ret, bb)
		}
	}
	return
}

// Locate finds the current position of ins.
func (self *Func) Locate(ins IrNode) (Pos, bool) {
	for _, bb := range self.Blocks {
		if bb.Term == ins {
			return Pos{bb, PosTerm}, true
		}
		for _, p := range bb.Phi {
			if IrNode(p) == ins {
				return Pos{bb, PosPhi}, true
			}
		}
		for i, v := range bb.Ins {
			if v == ins {
				return Pos{bb, i}, true
			}
		}
	}
	return Pos{}, false
}

// Positions indexes every instruction of the function.
func (self *Func) Positions() map[IrNode]Pos {
	ret := make(map[IrNode]Pos)
	for _, bb := range self.Blocks {
		for _, p := range bb.Phi {
			ret[p] = Pos{bb, PosPhi}
		}
		for i, v := range bb.Ins {
			ret[v] = Pos{bb, i}
		}
		if bb.Term != nil {
			ret[bb.Term] = Pos{bb, PosTerm}
		}
	}
	return ret
}

func (self *Func) Defs() map[Reg]Def {
	ret := make(map[Reg]Def)
	for _, bb := range self.Blocks {
		for _, p := range bb.Phi {
			ret[p.R] = Def{Node: p, Pos: Pos{bb, PosPhi}}
		}
		for i, v := range bb.Ins {
			if d, ok := v.(IrDefinitions); ok {
				for _, r := range d.Definitions() {
					ret[*r] = Def{Node: v, Pos: Pos{bb, i}}
				}
			}
		}
	}
	return ret
}

func (self *Func) Users() map[Reg][]Use {
	ret := make(map[Reg][]Use)
	add := func(u Use) {
		if !u.Ref.IsSpecial() {
			ret[*u.Ref] = append(ret[*u.Ref], u)
		}
	}

	/* scan every operand slot */
	for _, bb := range self.Blocks {
		for _, p := range bb.Phi {
			for _, from := range p.Blocks() {
				add(Use{Node: p, Pos: Pos{bb, PosPhi}, From: from, Ref: p.V[from]})
			}
		}
		for i, v := range bb.Ins {
			if u, ok := v.(IrUsages); ok {
				for _, r := range u.Usages() {
					add(Use{Node: v, Pos: Pos{bb, i}, Ref: r})
				}
			}
		}
		if u, ok := bb.Term.(IrUsages); ok {
			for _, r := range u.Usages() {
				add(Use{Node: bb.Term, Pos: Pos{bb, PosTerm}, Ref: r})
			}
		}
	}
	return ret
}

// ReplaceUses rewrites every operand referring to old so it refers to r.
func (self *Func) ReplaceUses(old Reg, r Reg) (n int) {
	for _, u := range self.Users()[old] {
		*u.Ref = r
		n++
	}
	return
}

// Reachable returns the IDs of all the blocks reachable from the entry.
func (self *Func) Reachable() map[int]bool {
	ret := map[int]bool{self.Entry.Id: true}
	stack := []*BasicBlock{self.Entry}

	/* plain DFS over the successors */
	for len(stack) != 0 {
		bb := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range bb.Succs() {
			if !ret[s.Id] {
				ret[s.Id] = true
				stack = append(stack, s)
			}
		}
	}
	return ret
}

func (self *Func) String() string {
	buf := []string{fmt.Sprintf("func %s {", self.Name)}
	for _, bb := range self.Blocks {
		pred := make([]int, 0, len(bb.Pred))
		for _, p := range bb.Pred {
			pred = append(pred, p.Id)
		}
		sort.Ints(pred)
		head := fmt.Sprintf("%s:", bb)
		if len(pred) != 0 {
			head += fmt.Sprintf(" ; pred = %v", pred)
		}
		buf = append(buf, head)
		for _, p := range bb.Phi {
			buf = append(buf, "    "+p.String())
		}
		for _, v := range bb.Ins {
			buf = append(buf, "    "+v.String())
		}
		if bb.Term != nil {
			for _, ln := range strings.Split(bb.Term.String(), "\n") {
				buf = append(buf, "    "+ln)
			}
		}
	}
	buf = append(buf, "}")
	return strings.Join(buf, "\n")
}
