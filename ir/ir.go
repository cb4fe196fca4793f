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

type IrNode interface {
	fmt.Stringer
	irnode()
}

func (*IrPhi) irnode()        {}
func (*IrConstInt) irnode()   {}
func (*IrLoadArg) irnode()    {}
func (*IrGlobal) irnode()     {}
func (*IrAlloca) irnode()     {}
func (*IrLEA) irnode()        {}
func (*IrUnaryExpr) irnode()  {}
func (*IrBinaryExpr) irnode() {}
func (*IrSelect) irnode()     {}
func (*IrLoad) irnode()       {}
func (*IrStore) irnode()      {}
func (*IrAtomicRMW) irnode()  {}
func (*IrAtomicCAS) irnode()  {}
func (*IrCall) irnode()       {}
func (*IrOpaque) irnode()     {}
func (*IrJump) irnode()       {}
func (*IrBranch) irnode()     {}
func (*IrSwitch) irnode()     {}
func (*IrReturn) irnode()     {}

type IrUsages interface {
	IrNode
	Usages() []*Reg
}

type IrDefinitions interface {
	IrNode
	Definitions() []*Reg
}

type IrPhi struct {
	R Reg
	V map[*BasicBlock]*Reg
}

func (self *IrPhi) String() string {
	nb := len(self.V)
	ret := make([]string, 0, nb)
	phi := make([]struct {
		b int
		r Reg
	}, 0, nb)

	/* add each path */
	for bb, reg := range self.V {
		phi = append(phi, struct {
			b int
			r Reg
		}{b: bb.Id, r: *reg})
	}

	/* sort by basic block ID */
	sort.Slice(phi, func(i int, j int) bool {
		return phi[i].b < phi[j].b
	})

	/* dump as string */
	for _, p := range phi {
		ret = append(ret, fmt.Sprintf("bb_%d: %s", p.b, p.r))
	}

	/* join them together */
	return fmt.Sprintf(
		"%s = φ(%s)",
		self.R,
		strings.Join(ret, ", "),
	)
}

// Usages returns the incoming values ordered by incoming block ID.
func (self *IrPhi) Usages() []*Reg {
	bbs := self.Blocks()
	ret := make([]*Reg, 0, len(bbs))
	for _, bb := range bbs {
		ret = append(ret, self.V[bb])
	}
	return ret
}

func (self *IrPhi) Definitions() []*Reg {
	return []*Reg{&self.R}
}

// Blocks returns the incoming blocks ordered by ID.
func (self *IrPhi) Blocks() []*BasicBlock {
	ret := make([]*BasicBlock, 0, len(self.V))
	for bb := range self.V {
		ret = append(ret, bb)
	}
	sort.Slice(ret, func(i int, j int) bool {
		return ret[i].Id < ret[j].Id
	})
	return ret
}

// SetIncoming replaces (or adds) the incoming value from bb.
func (self *IrPhi) SetIncoming(bb *BasicBlock, r Reg) {
	if self.V == nil {
		self.V = make(map[*BasicBlock]*Reg)
	}
	v := new(Reg)
	*v = r
	self.V[bb] = v
}

// MoveIncoming re-homes the incoming edge from old to bb.
func (self *IrPhi) MoveIncoming(old *BasicBlock, bb *BasicBlock) bool {
	if r, ok := self.V[old]; !ok {
		return false
	} else {
		delete(self.V, old)
		self.V[bb] = r
		return true
	}
}

type IrConstInt struct {
	R Reg
	V int64
}

func (self *IrConstInt) String() string {
	return fmt.Sprintf("%s = const.i64 %d", self.R, self.V)
}

func (self *IrConstInt) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrLoadArg struct {
	R     Reg
	Id    uint64
	Space AddrSpace
}

func (self *IrLoadArg) String() string {
	if self.Space == Generic {
		return fmt.Sprintf("%s = load.arg(#%d)", self.R, self.Id)
	} else {
		return fmt.Sprintf("%s = load.arg(#%d) %s", self.R, self.Id, self.Space)
	}
}

func (self *IrLoadArg) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrGlobal struct {
	R     Reg
	Name  string
	Space AddrSpace
}

func (self *IrGlobal) String() string {
	return fmt.Sprintf("%s = &%s %s", self.R, self.Name, self.Space)
}

func (self *IrGlobal) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrAlloca struct {
	R     Reg
	Size  int64
	Space AddrSpace
}

func (self *IrAlloca) String() string {
	return fmt.Sprintf("%s = alloca %d %s", self.R, self.Size, self.Space)
}

func (self *IrAlloca) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrLEA struct {
	R   Reg
	Mem Reg
	Off Reg
}

func (self *IrLEA) String() string {
	return fmt.Sprintf("%s = &(%s)[%s]", self.R, self.Mem, self.Off)
}

func (self *IrLEA) Usages() []*Reg {
	return []*Reg{&self.Mem, &self.Off}
}

func (self *IrLEA) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type (
	IrUnaryOp  uint8
	IrBinaryOp uint8
	IrAtomicOp uint8
)

const (
	IrOpCopy IrUnaryOp = iota
	IrOpNegate
	IrOpNot
)

const (
	IrOpAdd IrBinaryOp = iota
	IrOpSub
	IrOpMul
	IrOpDiv
	IrOpRem
	IrOpAnd
	IrOpOr
	IrOpXor
	IrOpShl
	IrOpShr
	IrCmpEq
	IrCmpNe
	IrCmpLt
	IrCmpLe
	IrCmpGt
	IrCmpGe
)

const (
	IrAtomicAdd IrAtomicOp = iota
	IrAtomicXchg
	IrAtomicAnd
	IrAtomicOr
	IrAtomicXor
	IrAtomicMin
	IrAtomicMax
)

func (self IrUnaryOp) String() string {
	switch self {
	case IrOpCopy:
		return "copy"
	case IrOpNegate:
		return "-"
	case IrOpNot:
		return "!"
	default:
		panic("unreachable")
	}
}

func (self IrBinaryOp) String() string {
	switch self {
	case IrOpAdd:
		return "+"
	case IrOpSub:
		return "-"
	case IrOpMul:
		return "*"
	case IrOpDiv:
		return "/"
	case IrOpRem:
		return "%"
	case IrOpAnd:
		return "&"
	case IrOpOr:
		return "|"
	case IrOpXor:
		return "^"
	case IrOpShl:
		return "<<"
	case IrOpShr:
		return ">>"
	case IrCmpEq:
		return "=="
	case IrCmpNe:
		return "!="
	case IrCmpLt:
		return "<"
	case IrCmpLe:
		return "<="
	case IrCmpGt:
		return ">"
	case IrCmpGe:
		return ">="
	default:
		panic("unreachable")
	}
}

func (self IrAtomicOp) String() string {
	switch self {
	case IrAtomicAdd:
		return "add"
	case IrAtomicXchg:
		return "xchg"
	case IrAtomicAnd:
		return "and"
	case IrAtomicOr:
		return "or"
	case IrAtomicXor:
		return "xor"
	case IrAtomicMin:
		return "min"
	case IrAtomicMax:
		return "max"
	default:
		panic("unreachable")
	}
}

type IrUnaryExpr struct {
	R  Reg
	V  Reg
	Op IrUnaryOp
}

func (self *IrUnaryExpr) String() string {
	return fmt.Sprintf("%s = %s %s", self.R, self.Op, self.V)
}

func (self *IrUnaryExpr) Usages() []*Reg {
	return []*Reg{&self.V}
}

func (self *IrUnaryExpr) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrBinaryExpr struct {
	R  Reg
	X  Reg
	Y  Reg
	Op IrBinaryOp
}

func (self *IrBinaryExpr) String() string {
	return fmt.Sprintf("%s = %s %s %s", self.R, self.X, self.Op, self.Y)
}

func (self *IrBinaryExpr) Usages() []*Reg {
	return []*Reg{&self.X, &self.Y}
}

func (self *IrBinaryExpr) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrSelect struct {
	R    Reg
	Cond Reg
	T    Reg
	F    Reg
}

func (self *IrSelect) String() string {
	return fmt.Sprintf("%s = select %s, %s, %s", self.R, self.Cond, self.T, self.F)
}

func (self *IrSelect) Usages() []*Reg {
	return []*Reg{&self.Cond, &self.T, &self.F}
}

func (self *IrSelect) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrLoad struct {
	R     Reg
	Mem   Reg
	Size  uint8
	Space AddrSpace
}

func (self *IrLoad) String() string {
	return fmt.Sprintf("%s = load.u%d %s %s", self.R, self.Size*8, self.Space, self.Mem)
}

func (self *IrLoad) Usages() []*Reg {
	return []*Reg{&self.Mem}
}

func (self *IrLoad) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrStore struct {
	R     Reg
	Mem   Reg
	Size  uint8
	Space AddrSpace
}

func (self *IrStore) String() string {
	return fmt.Sprintf("store.u%d %s(%s -> *%s)", self.Size*8, self.Space, self.R, self.Mem)
}

func (self *IrStore) Usages() []*Reg {
	return []*Reg{&self.R, &self.Mem}
}

type IrAtomicRMW struct {
	R     Reg
	Mem   Reg
	V     Reg
	Op    IrAtomicOp
	Space AddrSpace
}

func (self *IrAtomicRMW) String() string {
	return fmt.Sprintf("%s = atomic.%s %s(*%s, %s)", self.R, self.Op, self.Space, self.Mem, self.V)
}

func (self *IrAtomicRMW) Usages() []*Reg {
	return []*Reg{&self.Mem, &self.V}
}

func (self *IrAtomicRMW) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type IrAtomicCAS struct {
	R     Reg
	Mem   Reg
	Old   Reg
	New   Reg
	Space AddrSpace
}

func (self *IrAtomicCAS) String() string {
	return fmt.Sprintf("%s = atomic.cas %s(*%s, %s, %s)", self.R, self.Space, self.Mem, self.Old, self.New)
}

func (self *IrAtomicCAS) Usages() []*Reg {
	return []*Reg{&self.Mem, &self.Old, &self.New}
}

func (self *IrAtomicCAS) Definitions() []*Reg {
	return []*Reg{&self.R}
}

type CallKind uint8

const (
	CallInternal CallKind = iota
	CallExternal
	CallInlineAsm
	CallBarrier
	CallThreadId
	CallMemCopy
	CallAtomic
)

func (self CallKind) String() string {
	switch self {
	case CallInternal:
		return "call"
	case CallExternal:
		return "ccall"
	case CallInlineAsm:
		return "asm"
	case CallBarrier:
		return "barrier"
	case CallThreadId:
		return "tid"
	case CallMemCopy:
		return "memcpy"
	case CallAtomic:
		return "atomic"
	default:
		panic("unreachable")
	}
}

type Callee struct {
	Name string
	Kind CallKind
}

func (self *Callee) String() string {
	return fmt.Sprintf("%s %s", self.Kind, self.Name)
}

type IrCall struct {
	Fn  *Callee
	In  []Reg
	Out []Reg
}

func (self *IrCall) String() string {
	if len(self.Out) == 0 {
		return fmt.Sprintf("%s, {%s}", self.Fn, regslicerepr(self.In))
	} else {
		return fmt.Sprintf("%s = %s, {%s}", regslicerepr(self.Out), self.Fn, regslicerepr(self.In))
	}
}

func (self *IrCall) Usages() []*Reg {
	return regsliceref(self.In)
}

func (self *IrCall) Definitions() []*Reg {
	return regsliceref(self.Out)
}

// IrOpaque is a value-producing instruction whose semantics the analysis does not
// model beyond its operands.
type IrOpaque struct {
	Op string
	R  Reg
	In []Reg
}

func (self *IrOpaque) String() string {
	return fmt.Sprintf("%s = %s {%s}", self.R, self.Op, regslicerepr(self.In))
}

func (self *IrOpaque) Usages() []*Reg {
	return regsliceref(self.In)
}

func (self *IrOpaque) Definitions() []*Reg {
	return []*Reg{&self.R}
}
