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

// Package frontend lowers Go functions in SSA form to the analyzer IR.
package frontend

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/ssa"

	"github.com/cloudwego/simtfix/ir"
)

// Config controls how Go constructs map to GPU concepts.
type Config struct {
	SharedPrefix string
	BarrierNames []string
	ThreadNames  []string
}

// DefaultConfig treats globals starting with "shared" as shared memory, and
// calls to Barrier / SyncThreads and ThreadID as the corresponding intrinsics.
func DefaultConfig() Config {
	return Config{
		SharedPrefix: "shared",
		BarrierNames: []string{"Barrier", "SyncThreads"},
		ThreadNames:  []string{"ThreadID"},
	}
}

var _Sizes = types.SizesFor("gc", "amd64")

type _Lowerer struct {
	cfg  Config
	src  *ssa.Function
	bd   *ir.Builder
	bbs  []*ir.BasicBlock
	regs map[ssa.Value]ir.Reg
	pro  []ir.IrNode
}

// Lower translates fn into a new function. Functions without a body cannot
// be lowered.
func Lower(fn *ssa.Function, cfg Config) (ret *ir.Func, err error) {
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("frontend: %s has no body", fn)
	}

	/* unsupported constructs panic while lowering */
	defer func() {
		if v := recover(); v != nil {
			ret, err = nil, fmt.Errorf("frontend: cannot lower %s: %v", fn, v)
		}
	}()

	/* lower the function */
	lw := &_Lowerer{
		cfg:  cfg,
		src:  fn,
		bd:   ir.NewBuilder(fn.String()),
		regs: make(map[ssa.Value]ir.Reg),
	}
	return lw.lower(), nil
}

func (self *_Lowerer) lower() *ir.Func {
	self.bbs = make([]*ir.BasicBlock, len(self.src.Blocks))

	/* one block per SSA block, Phi nodes first */
	for i, b := range self.src.Blocks {
		self.bbs[i] = self.bd.Block(fmt.Sprintf("%d.%s", b.Index, b.Comment))
		self.bd.At(self.bbs[i])
		for _, ins := range b.Instrs {
			if p, ok := ins.(*ssa.Phi); ok {
				self.regs[p] = self.bd.Phi(isPointer(p.Type()))
			}
		}
	}

	/* parameters are loaded in the prologue */
	for i, p := range self.src.Params {
		r := self.bd.Func().NewReg(isPointer(p.Type()))
		self.regs[p] = r
		self.pro = append(self.pro, &ir.IrLoadArg{R: r, Id: uint64(i)})
	}

	/* definitions come before uses in dominator order */
	for _, b := range self.src.DomPreorder() {
		self.bd.At(self.bbs[b.Index])
		for _, ins := range b.Instrs {
			if _, ok := ins.(*ssa.Phi); !ok {
				self.instr(ins)
			}
		}
	}

	/* now every value has a register */
	for _, b := range self.src.Blocks {
		for _, ins := range b.Instrs {
			if p, ok := ins.(*ssa.Phi); ok {
				for i, e := range p.Edges {
					self.bd.Incoming(self.regs[p], self.bbs[b.Preds[i].Index], self.value(e))
				}
			}
		}
	}

	/* blocks not visited are unreachable */
	for _, bb := range self.bbs {
		if bb.Term == nil {
			self.bd.At(bb)
			self.bd.Return()
		}
	}

	/* add the prologue */
	entry := self.bbs[0]
	entry.Ins = append(self.pro, entry.Ins...)
	return self.bd.Build()
}

func (self *_Lowerer) value(v ssa.Value) ir.Reg {
	if r, ok := self.regs[v]; ok {
		return r
	}

	/* values that are not instructions go to the prologue */
	var r ir.Reg
	switch x := v.(type) {
	case *ssa.Const:
		r = self.constant(x)
	case *ssa.Global:
		r = self.bd.Func().NewReg(true)
		self.pro = append(self.pro, &ir.IrGlobal{R: r, Name: x.Name(), Space: self.globalSpace(x)})
	case *ssa.Function, *ssa.Builtin, *ssa.FreeVar:
		r = self.bd.Func().NewReg(isPointer(v.Type()))
		self.pro = append(self.pro, &ir.IrOpaque{Op: v.Name(), R: r})
	case ssa.Instruction:
		return ir.Undef(self.bd.Func().NewReg(isPointer(v.Type())))
	default:
		panic(fmt.Sprintf("unsupported value %T", v))
	}

	/* cache the result */
	self.regs[v] = r
	return r
}

func (self *_Lowerer) constant(c *ssa.Const) ir.Reg {
	if isPointer(c.Type()) && c.IsNil() {
		return ir.Pn
	}

	/* integers and booleans are modeled, the rest is opaque */
	var v int64
	var ok bool
	switch {
	case c.Value == nil:
		ok = true
	case c.Value.Kind() == constant.Bool:
		if ok = true; constant.BoolVal(c.Value) {
			v = 1
		}
	case c.Value.Kind() == constant.Int:
		v, ok = constant.Int64Val(c.Value)
	}

	/* emit the constant */
	if ok {
		return self.intConst(v)
	} else {
		r := self.bd.Func().NewReg(false)
		self.pro = append(self.pro, &ir.IrOpaque{Op: "const", R: r})
		return r
	}
}

func (self *_Lowerer) intConst(v int64) ir.Reg {
	r := self.bd.Func().NewReg(false)
	self.pro = append(self.pro, &ir.IrConstInt{R: r, V: v})
	return r
}

func (self *_Lowerer) globalSpace(g *ssa.Global) ir.AddrSpace {
	if self.cfg.SharedPrefix != "" && strings.HasPrefix(g.Name(), self.cfg.SharedPrefix) {
		return ir.Shared
	} else {
		return ir.Global
	}
}

// space is the address space of a pointer known from its origin.
func (self *_Lowerer) space(v ssa.Value) ir.AddrSpace {
	switch x := v.(type) {
	case *ssa.Global:
		return self.globalSpace(x)
	case *ssa.FieldAddr:
		return self.space(x.X)
	case *ssa.IndexAddr:
		return self.space(x.X)
	default:
		return ir.Generic
	}
}

func (self *_Lowerer) define(ins ssa.Value, r ir.Reg) {
	self.regs[ins] = r
}

func (self *_Lowerer) instr(ins ssa.Instruction) {
	switch v := ins.(type) {
	case *ssa.DebugRef:
		return
	case *ssa.UnOp:
		self.unop(v)
	case *ssa.BinOp:
		self.binop(v)
	case *ssa.Store:
		self.bd.Store(self.value(v.Val), self.value(v.Addr), sizeOf(deref(v.Addr.Type())), self.space(v.Addr))
	case *ssa.Alloc:
		self.alloc(v)
	case *ssa.FieldAddr:
		self.define(v, self.bd.LEA(self.value(v.X), self.intConst(int64(v.Field))))
	case *ssa.IndexAddr:
		self.define(v, self.bd.LEA(self.value(v.X), self.value(v.Index)))
	case *ssa.Call:
		self.call(v)
	case *ssa.If:
		b := v.Block()
		self.bd.Branch(self.value(v.Cond), self.bbs[b.Succs[0].Index], self.bbs[b.Succs[1].Index])
	case *ssa.Jump:
		self.bd.Jump(self.bbs[v.Block().Succs[0].Index])
	case *ssa.Return:
		self.ret(v)
	case *ssa.Panic:
		self.abort()
	default:
		self.opaque(ins)
	}
}

func (self *_Lowerer) unop(v *ssa.UnOp) {
	x := self.value(v.X)
	switch v.Op {
	case token.MUL:
		r := self.bd.Func().NewReg(isPointer(v.Type()))
		self.bd.Emit(&ir.IrLoad{R: r, Mem: x, Size: sizeOf(v.Type()), Space: self.space(v.X)})
		self.define(v, r)
	case token.SUB:
		self.define(v, self.bd.Unary(ir.IrOpNegate, x))
	case token.NOT, token.XOR:
		self.define(v, self.bd.Unary(ir.IrOpNot, x))
	default:
		self.opaque(v)
	}
}

var _BinOps = map[token.Token]ir.IrBinaryOp{
	token.ADD: ir.IrOpAdd,
	token.SUB: ir.IrOpSub,
	token.MUL: ir.IrOpMul,
	token.QUO: ir.IrOpDiv,
	token.REM: ir.IrOpRem,
	token.AND: ir.IrOpAnd,
	token.OR:  ir.IrOpOr,
	token.XOR: ir.IrOpXor,
	token.SHL: ir.IrOpShl,
	token.SHR: ir.IrOpShr,
	token.EQL: ir.IrCmpEq,
	token.NEQ: ir.IrCmpNe,
	token.LSS: ir.IrCmpLt,
	token.LEQ: ir.IrCmpLe,
	token.GTR: ir.IrCmpGt,
	token.GEQ: ir.IrCmpGe,
}

func (self *_Lowerer) binop(v *ssa.BinOp) {
	if op, ok := _BinOps[v.Op]; !ok || isPointer(v.Type()) {
		self.opaque(v)
	} else {
		self.define(v, self.bd.Binary(op, self.value(v.X), self.value(v.Y)))
	}
}

func (self *_Lowerer) alloc(v *ssa.Alloc) {
	if v.Heap {
		self.define(v, self.bd.Alloca(int64(_Sizes.Sizeof(deref(v.Type()))), ir.Global))
	} else {
		self.define(v, self.bd.Alloca(int64(_Sizes.Sizeof(deref(v.Type()))), ir.Local))
	}
}

func (self *_Lowerer) call(v *ssa.Call) {
	var in []ir.Reg
	var kind ir.CallKind
	var name string

	/* dynamic calls are opaque */
	cc := &v.Call
	if cc.IsInvoke() {
		self.opaque(v)
		return
	}

	/* classify the callee */
	switch fn := cc.Value.(type) {
	case *ssa.Builtin:
		if name = fn.Name(); name != "copy" {
			self.opaque(v)
			return
		}
		kind = ir.CallMemCopy
	case *ssa.Function:
		name = fn.Name()
		kind = self.calleeKind(fn)
	default:
		self.opaque(v)
		return
	}

	/* lower the arguments */
	for _, a := range cc.Args {
		in = append(in, self.value(a))
	}

	/* at most one result, tuples are taken apart by opaque extractions */
	var out []ir.Reg
	if t, ok := v.Type().(*types.Tuple); !ok || t.Len() != 0 {
		out = []ir.Reg{self.bd.Func().NewReg(isPointer(v.Type()))}
		self.define(v, out[0])
	}

	/* emit the call */
	self.bd.Emit(&ir.IrCall{
		Fn:  &ir.Callee{Name: name, Kind: kind},
		In:  in,
		Out: out,
	})
}

func (self *_Lowerer) calleeKind(fn *ssa.Function) ir.CallKind {
	switch {
	case contains(self.cfg.BarrierNames, fn.Name()):
		return ir.CallBarrier
	case contains(self.cfg.ThreadNames, fn.Name()):
		return ir.CallThreadId
	case fn.Pkg != nil && fn.Pkg.Pkg.Path() == "sync/atomic":
		return ir.CallAtomic
	case len(fn.Blocks) == 0:
		return ir.CallExternal
	default:
		return ir.CallInternal
	}
}

func (self *_Lowerer) ret(v *ssa.Return) {
	rv := make([]ir.Reg, 0, len(v.Results))
	for _, r := range v.Results {
		rv = append(rv, self.value(r))
	}
	self.bd.Return(rv...)
}

// abort returns undefined values, panics never reconverge with other threads.
func (self *_Lowerer) abort() {
	res := self.src.Signature.Results()
	rv := make([]ir.Reg, res.Len())
	for i := range rv {
		rv[i] = ir.Undef(self.bd.Func().NewReg(isPointer(res.At(i).Type())))
	}
	self.bd.Return(rv...)
}

func (self *_Lowerer) opaque(ins ssa.Instruction) {
	var in []ir.Reg
	var ops []*ssa.Value

	/* collect the operands */
	for _, p := range ins.Operands(ops) {
		if p != nil && *p != nil {
			in = append(in, self.value(*p))
		}
	}

	/* instructions without a value still show their operands */
	op := strings.SplitN(fmt.Sprintf("%T", ins), ".", 2)[1]
	if v, ok := ins.(ssa.Value); ok {
		self.define(v, self.bd.Opaque(op, isPointer(v.Type()), in...))
	} else {
		self.bd.Opaque(op, false, in...)
	}
}

func isPointer(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	default:
		return false
	}
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	} else {
		return t
	}
}

func sizeOf(t types.Type) uint8 {
	if n := _Sizes.Sizeof(t); n <= 0 || n > 8 {
		return 8
	} else {
		return uint8(n)
	}
}

func contains(v []string, s string) bool {
	for _, x := range v {
		if x == s {
			return true
		}
	}
	return false
}
