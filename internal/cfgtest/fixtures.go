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

// Package cfgtest builds the small control-flow graphs shared by the tests.
package cfgtest

import (
	"github.com/cloudwego/simtfix/ir"
)

// Blocks indexes the blocks of a fixture by name.
type Blocks map[string]*ir.BasicBlock

func index(fn *ir.Func) Blocks {
	ret := make(Blocks, len(fn.Blocks))
	for _, bb := range fn.Blocks {
		ret[bb.Name] = bb
	}
	return ret
}

// Diamond is an if-then-else without loops.
//
//	entry -> then, else -> join
func Diamond() (*ir.Func, Blocks) {
	b := ir.NewBuilder("diamond")
	entry := b.Block("entry")
	then := b.Block("then")
	els := b.Block("else")
	join := b.Block("join")

	/* entry */
	x := b.Arg(0, false, ir.Generic)
	c := b.Binary(ir.IrCmpLt, x, ir.Rz)
	b.Branch(c, then, els)

	/* arms */
	b.At(then)
	v1 := b.Binary(ir.IrOpSub, ir.Rz, x)
	b.Jump(join)
	b.At(els)
	v2 := b.Unary(ir.IrOpCopy, x)
	b.Jump(join)

	/* join */
	b.At(join)
	r := b.Phi(false)
	b.Incoming(r, then, v1).Incoming(r, els, v2)
	b.Return(r)
	_ = entry
	return b.Build(), index(b.Func())
}

// WhileLoop is a counting loop with no memory accesses.
//
//	entry -> header <-> body, header -> exit
func WhileLoop() (*ir.Func, Blocks) {
	b := ir.NewBuilder("while")
	entry := b.Block("entry")
	header := b.Block("header")
	body := b.Block("body")
	exit := b.Block("exit")

	/* entry */
	n := b.Arg(0, false, ir.Generic)
	c0 := b.Const(0)
	b.Jump(header)

	/* header */
	b.At(header)
	i := b.Phi(false)
	c := b.Binary(ir.IrCmpLt, i, n)
	b.Branch(c, body, exit)

	/* body */
	b.At(body)
	one := b.Const(1)
	i2 := b.Binary(ir.IrOpAdd, i, one)
	b.Jump(header)

	/* exit */
	b.At(exit)
	b.Return(i)
	b.Incoming(i, entry, c0).Incoming(i, body, i2)
	return b.Build(), index(b.Func())
}

// SpinWait loops until a shared flag becomes non-zero, and the flag is
// written again once the loop is left.
//
//	entry -> header <-> body, header -> exit -> done
func SpinWait() (*ir.Func, Blocks) {
	b := ir.NewBuilder("spin")
	entry := b.Block("entry")
	header := b.Block("header")
	body := b.Block("body")
	exit := b.Block("exit")
	done := b.Block("done")

	/* entry */
	flag := b.Global("shared_flag", ir.Shared)
	b.Jump(header)

	/* header */
	b.At(header)
	v := b.Load(flag, 4, ir.Shared)
	c := b.Binary(ir.IrCmpEq, v, ir.Rz)
	b.Branch(c, body, exit)

	/* body */
	b.At(body)
	b.Jump(header)

	/* exit */
	b.At(exit)
	one := b.Const(1)
	b.Store(one, flag, 4, ir.Shared)
	b.Jump(done)

	/* done */
	b.At(done)
	b.Return(v)
	_ = entry
	return b.Build(), index(b.Func())
}

// SelfLoop is a single block spinning on a shared flag, with the flag
// written after the loop on one side of a divergent branch.
//
//	entry -> loop <-> loop, loop -> split -> store, join
func SelfLoop() (*ir.Func, Blocks) {
	b := ir.NewBuilder("self")
	entry := b.Block("entry")
	loop := b.Block("loop")
	split := b.Block("split")
	store := b.Block("store")
	join := b.Block("join")

	/* entry */
	flag := b.Global("shared_flag", ir.Shared)
	tid := b.ThreadId()
	b.Jump(loop)

	/* loop */
	b.At(loop)
	v := b.Load(flag, 4, ir.Shared)
	c := b.Binary(ir.IrCmpEq, v, ir.Rz)
	b.Branch(c, loop, split)

	/* split */
	b.At(split)
	t := b.Binary(ir.IrCmpEq, tid, ir.Rz)
	b.Branch(t, store, join)

	/* store */
	b.At(store)
	one := b.Const(1)
	b.Store(one, flag, 4, ir.Shared)
	b.Jump(join)

	/* join */
	b.At(join)
	b.Return()
	_ = entry
	return b.Build(), index(b.Func())
}

// SharedHeader has two retreating edges to the same header.
//
//	entry -> header -> left, right; left -> header, mid; right -> header, mid; mid -> exit
func SharedHeader() (*ir.Func, Blocks) {
	b := ir.NewBuilder("shared_header")
	entry := b.Block("entry")
	header := b.Block("header")
	left := b.Block("left")
	right := b.Block("right")
	mid := b.Block("mid")
	exit := b.Block("exit")

	/* entry */
	flag := b.Global("shared_flag", ir.Shared)
	tid := b.ThreadId()
	b.Jump(header)

	/* header */
	b.At(header)
	i := b.Phi(false)
	v := b.Load(flag, 4, ir.Shared)
	c := b.Binary(ir.IrCmpLt, tid, v)
	b.Branch(c, left, right)

	/* left */
	b.At(left)
	l := b.Binary(ir.IrOpAdd, i, v)
	lc := b.Binary(ir.IrCmpEq, l, ir.Rz)
	b.Branch(lc, header, mid)

	/* right */
	b.At(right)
	r := b.Binary(ir.IrOpSub, i, v)
	rc := b.Binary(ir.IrCmpEq, r, ir.Rz)
	b.Branch(rc, header, mid)

	/* mid */
	b.At(mid)
	one := b.Const(1)
	b.Store(one, flag, 4, ir.Shared)
	b.Jump(exit)

	/* exit */
	b.At(exit)
	b.Return(i)
	b.Incoming(i, entry, ir.Rz).Incoming(i, left, l).Incoming(i, right, r)
	return b.Build(), index(b.Func())
}

// Irreducible has a cycle with two entries.
//
//	entry -> a, b; a <-> b; a, b -> exit
func Irreducible() (*ir.Func, Blocks) {
	bd := ir.NewBuilder("irreducible")
	entry := bd.Block("entry")
	a := bd.Block("a")
	b := bd.Block("b")
	exit := bd.Block("exit")

	/* entry */
	x := bd.Arg(0, false, ir.Generic)
	c := bd.Binary(ir.IrCmpLt, x, ir.Rz)
	bd.Branch(c, a, b)

	/* a */
	bd.At(a)
	ca := bd.Binary(ir.IrCmpEq, x, ir.Rz)
	bd.Branch(ca, b, exit)

	/* b */
	bd.At(b)
	cb := bd.Binary(ir.IrCmpGt, x, ir.Rz)
	bd.Branch(cb, a, exit)

	/* exit */
	bd.At(exit)
	bd.Return()
	_ = entry
	return bd.Build(), index(bd.Func())
}
