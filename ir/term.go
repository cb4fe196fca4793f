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
	"strings"
)

type IrSuccessors interface {
	Next() bool
	Block() *BasicBlock
	Value() (int64, bool)
	UpdateBlock(to *BasicBlock)
}

type IrTerminator interface {
	IrNode
	Successors() IrSuccessors
	irterminator()
}

func (*IrJump) irterminator()   {}
func (*IrBranch) irterminator() {}
func (*IrSwitch) irterminator() {}
func (*IrReturn) irterminator() {}

type _SlotSuccessors struct {
	i int
	b []**BasicBlock
	v []*int64
}

func (self *_SlotSuccessors) Next() bool {
	if self.i >= len(self.b) {
		return false
	} else {
		self.i++
		return true
	}
}

func (self *_SlotSuccessors) Block() *BasicBlock {
	return *self.b[self.i-1]
}

func (self *_SlotSuccessors) Value() (int64, bool) {
	if p := self.v[self.i-1]; p == nil {
		return 0, false
	} else {
		return *p, true
	}
}

func (self *_SlotSuccessors) UpdateBlock(to *BasicBlock) {
	*self.b[self.i-1] = to
}

type IrJump struct {
	To *BasicBlock
}

func (self *IrJump) String() string {
	return fmt.Sprintf("goto bb_%d", self.To.Id)
}

func (self *IrJump) Successors() IrSuccessors {
	return &_SlotSuccessors{
		b: []**BasicBlock{&self.To},
		v: []*int64{nil},
	}
}

var _BranchTaken = int64(1)

type IrBranch struct {
	Cond  Reg
	True  *BasicBlock
	False *BasicBlock
}

func (self *IrBranch) String() string {
	return fmt.Sprintf("br %s, bb_%d, bb_%d", self.Cond, self.True.Id, self.False.Id)
}

func (self *IrBranch) Usages() []*Reg {
	return []*Reg{&self.Cond}
}

func (self *IrBranch) Successors() IrSuccessors {
	return &_SlotSuccessors{
		b: []**BasicBlock{&self.True, &self.False},
		v: []*int64{&_BranchTaken, nil},
	}
}

type SwitchCase struct {
	V  int64
	To *BasicBlock
}

type IrSwitch struct {
	V       Reg
	Default *BasicBlock
	Cases   []SwitchCase
}

func (self *IrSwitch) String() string {
	nb := len(self.Cases)
	ret := make([]string, 0, nb+1)

	/* no branches */
	if nb == 0 {
		return fmt.Sprintf("switch %s { _ => bb_%d }", self.V, self.Default.Id)
	}

	/* add each case */
	for _, c := range self.Cases {
		ret = append(ret, fmt.Sprintf("  %d => bb_%d,", c.V, c.To.Id))
	}

	/* default branch */
	ret = append(ret, fmt.Sprintf(
		"  _ => bb_%d,",
		self.Default.Id,
	))

	/* join them together */
	return fmt.Sprintf(
		"switch %s {\n%s\n}",
		self.V,
		strings.Join(ret, "\n"),
	)
}

func (self *IrSwitch) Usages() []*Reg {
	return []*Reg{&self.V}
}

func (self *IrSwitch) Successors() IrSuccessors {
	nb := len(self.Cases)
	it := &_SlotSuccessors{
		b: make([]**BasicBlock, 0, nb+1),
		v: make([]*int64, 0, nb+1),
	}

	/* cases come first, in declaration order */
	for i := range self.Cases {
		it.b = append(it.b, &self.Cases[i].To)
		it.v = append(it.v, &self.Cases[i].V)
	}

	/* then the default branch */
	it.b = append(it.b, &self.Default)
	it.v = append(it.v, nil)
	return it
}

// CaseOf returns the first case value that targets bb.
func (self *IrSwitch) CaseOf(bb *BasicBlock) (int64, bool) {
	for _, c := range self.Cases {
		if c.To == bb {
			return c.V, true
		}
	}
	return 0, false
}

// Target returns the block selected by case value v.
func (self *IrSwitch) Target(v int64) *BasicBlock {
	for _, c := range self.Cases {
		if c.V == v {
			return c.To
		}
	}
	return self.Default
}

func (self *IrSwitch) AddCase(v int64, to *BasicBlock) {
	for _, c := range self.Cases {
		if c.V == v {
			panic(fmt.Sprintf("switch: duplicated case %d", v))
		}
	}
	self.Cases = append(self.Cases, SwitchCase{V: v, To: to})
}

type _EmptySuccessor struct{}

func (_EmptySuccessor) Next() bool                 { return false }
func (_EmptySuccessor) Block() *BasicBlock         { return nil }
func (_EmptySuccessor) Value() (int64, bool)       { return 0, false }
func (_EmptySuccessor) UpdateBlock(_ *BasicBlock) { panic("return has no successors") }

type IrReturn struct {
	R []Reg
}

func (self *IrReturn) String() string {
	return fmt.Sprintf("ret {%s}", regslicerepr(self.R))
}

func (self *IrReturn) Usages() []*Reg {
	return regsliceref(self.R)
}

func (self *IrReturn) Successors() IrSuccessors {
	return _EmptySuccessor{}
}

// Successors returns the distinct successors of a terminator in iteration order.
func Successors(term IrTerminator) []*BasicBlock {
	var ret []*BasicBlock
	for it := term.Successors(); it.Next(); {
		if bb := it.Block(); !containsBlock(ret, bb) {
			ret = append(ret, bb)
		}
	}
	return ret
}

// Retarget redirects every edge of term that goes to old so it goes to bb,
// returns the number of edges changed.
func Retarget(term IrTerminator, old *BasicBlock, bb *BasicBlock) (n int) {
	for it := term.Successors(); it.Next(); {
		if it.Block() == old {
			n++
			it.UpdateBlock(bb)
		}
	}
	return
}

func containsBlock(s []*BasicBlock, bb *BasicBlock) bool {
	for _, p := range s {
		if p == bb {
			return true
		}
	}
	return false
}
