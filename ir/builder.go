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
)

// Builder constructs functions one block at a time. The first block created
// is the entry block.
type Builder struct {
	fn  *Func
	cur *BasicBlock
	phi map[Reg]*IrPhi
}

func NewBuilder(name string) *Builder {
	return &Builder{
		fn:  NewFunc(name),
		phi: make(map[Reg]*IrPhi),
	}
}

func (self *Builder) Func() *Func {
	return self.fn
}

// Block creates a new named block without changing the insertion point, unless
// there is none yet.
func (self *Builder) Block(name string) *BasicBlock {
	bb := self.fn.CreateBlock()
	bb.Name = name
	if self.cur == nil {
		self.cur = bb
	}
	return bb
}

// At moves the insertion point to the end of bb.
func (self *Builder) At(bb *BasicBlock) *Builder {
	self.cur = bb
	return self
}

// Emit appends an arbitrary instruction to the current block.
func (self *Builder) Emit(ins IrNode) {
	self.emit(ins)
}

func (self *Builder) emit(ins IrNode) {
	if self.cur == nil {
		panic("builder: no insertion point")
	} else if self.cur.Term != nil {
		panic(fmt.Sprintf("builder: %s is already terminated", self.cur))
	} else {
		self.cur.Ins = append(self.cur.Ins, ins)
	}
}

func (self *Builder) term(t IrTerminator) {
	if self.cur == nil {
		panic("builder: no insertion point")
	} else if self.cur.Term != nil {
		panic(fmt.Sprintf("builder: %s is already terminated", self.cur))
	} else {
		self.cur.Term = t
	}
}

// Phi adds an empty Phi node to the current block, fill it with Incoming.
func (self *Builder) Phi(ptr bool) Reg {
	r := self.fn.NewReg(ptr)
	p := &IrPhi{R: r, V: make(map[*BasicBlock]*Reg)}
	self.cur.Phi = append(self.cur.Phi, p)
	self.phi[r] = p
	return r
}

func (self *Builder) Incoming(phi Reg, from *BasicBlock, v Reg) *Builder {
	if p, ok := self.phi[phi]; !ok {
		panic("builder: not a Phi node: " + phi.String())
	} else {
		p.SetIncoming(from, v)
		return self
	}
}

func (self *Builder) Const(v int64) Reg {
	r := self.fn.NewReg(false)
	self.emit(&IrConstInt{R: r, V: v})
	return r
}

func (self *Builder) Arg(id uint64, ptr bool, space AddrSpace) Reg {
	r := self.fn.NewReg(ptr)
	self.emit(&IrLoadArg{R: r, Id: id, Space: space})
	return r
}

func (self *Builder) Global(name string, space AddrSpace) Reg {
	r := self.fn.NewReg(true)
	self.emit(&IrGlobal{R: r, Name: name, Space: space})
	return r
}

func (self *Builder) Alloca(size int64, space AddrSpace) Reg {
	r := self.fn.NewReg(true)
	self.emit(&IrAlloca{R: r, Size: size, Space: space})
	return r
}

func (self *Builder) LEA(mem Reg, off Reg) Reg {
	r := self.fn.NewReg(true)
	self.emit(&IrLEA{R: r, Mem: mem, Off: off})
	return r
}

func (self *Builder) Unary(op IrUnaryOp, v Reg) Reg {
	r := self.fn.NewReg(v.Ptr() && op == IrOpCopy)
	self.emit(&IrUnaryExpr{R: r, V: v, Op: op})
	return r
}

func (self *Builder) Binary(op IrBinaryOp, x Reg, y Reg) Reg {
	r := self.fn.NewReg(false)
	self.emit(&IrBinaryExpr{R: r, X: x, Y: y, Op: op})
	return r
}

func (self *Builder) Select(cond Reg, t Reg, f Reg) Reg {
	r := self.fn.NewReg(t.Ptr())
	self.emit(&IrSelect{R: r, Cond: cond, T: t, F: f})
	return r
}

func (self *Builder) Load(mem Reg, size uint8, space AddrSpace) Reg {
	r := self.fn.NewReg(false)
	self.emit(&IrLoad{R: r, Mem: mem, Size: size, Space: space})
	return r
}

func (self *Builder) Store(v Reg, mem Reg, size uint8, space AddrSpace) *IrStore {
	ins := &IrStore{R: v, Mem: mem, Size: size, Space: space}
	self.emit(ins)
	return ins
}

func (self *Builder) AtomicRMW(op IrAtomicOp, mem Reg, v Reg, space AddrSpace) Reg {
	r := self.fn.NewReg(false)
	self.emit(&IrAtomicRMW{R: r, Mem: mem, V: v, Op: op, Space: space})
	return r
}

func (self *Builder) AtomicCAS(mem Reg, old Reg, nv Reg, space AddrSpace) Reg {
	r := self.fn.NewReg(false)
	self.emit(&IrAtomicCAS{R: r, Mem: mem, Old: old, New: nv, Space: space})
	return r
}

// Call emits a call with nout integer results.
func (self *Builder) Call(fn *Callee, nout int, in ...Reg) []Reg {
	out := make([]Reg, nout)
	for i := range out {
		out[i] = self.fn.NewReg(false)
	}
	self.emit(&IrCall{Fn: fn, In: in, Out: out})
	return out
}

func (self *Builder) Barrier() *IrCall {
	ins := &IrCall{Fn: &Callee{Name: "barrier", Kind: CallBarrier}}
	self.emit(ins)
	return ins
}

func (self *Builder) ThreadId() Reg {
	return self.Call(&Callee{Name: "tid", Kind: CallThreadId}, 1)[0]
}

func (self *Builder) Opaque(op string, ptr bool, in ...Reg) Reg {
	r := self.fn.NewReg(ptr)
	self.emit(&IrOpaque{Op: op, R: r, In: in})
	return r
}

func (self *Builder) Jump(to *BasicBlock) {
	self.term(&IrJump{To: to})
}

func (self *Builder) Branch(cond Reg, t *BasicBlock, f *BasicBlock) {
	self.term(&IrBranch{Cond: cond, True: t, False: f})
}

func (self *Builder) Switch(v Reg, def *BasicBlock, cases ...SwitchCase) {
	self.term(&IrSwitch{V: v, Default: def, Cases: cases})
}

func (self *Builder) Return(r ...Reg) {
	self.term(&IrReturn{R: r})
}

// Build finalizes the function and derives the predecessor lists.
func (self *Builder) Build() *Func {
	self.fn.Rebuild()
	return self.fn
}
