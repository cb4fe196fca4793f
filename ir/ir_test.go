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
	"testing"

	"github.com/stretchr/testify/require"
)

func diamond() (*Func, []*BasicBlock) {
	b := NewBuilder("diamond")
	entry := b.Block("entry")
	then := b.Block("then")
	els := b.Block("else")
	join := b.Block("join")
	dead := b.Block("dead")

	/* entry */
	x := b.Arg(0, false, Generic)
	b.Branch(x, then, els)

	/* arms */
	b.At(then)
	v := b.Const(1)
	b.Jump(join)
	b.At(els)
	b.Jump(join)

	/* join */
	b.At(join)
	r := b.Phi(false)
	b.Incoming(r, then, v).Incoming(r, els, x)
	b.Return(r)

	/* never reached */
	b.At(dead)
	b.Jump(join)
	return b.Build(), []*BasicBlock{entry, then, els, join, dead}
}

func TestVerify(t *testing.T) {
	fn, bbs := diamond()
	require.Error(t, Verify(fn))
	bbs[3].Phi[0].SetIncoming(bbs[4], Ru)
	require.NoError(t, Verify(fn))
	require.Equal(t, 1, fn.Entry.Id)
	require.Len(t, bbs[3].Pred, 3)
}

func TestVerify_Malformed(t *testing.T) {
	fn, bbs := diamond()
	bbs[3].Phi[0].SetIncoming(bbs[4], Ru)

	/* exactly one definition per register */
	c := bbs[1].Ins[0].(*IrConstInt)
	bbs[2].Ins = append(bbs[2].Ins, &IrConstInt{R: c.R, V: 2})
	err := Verify(fn)
	require.Error(t, err)
	require.Equal(t, bbs[2].Id, err.(VerifyError).Block)

	/* unterminated block */
	bbs[2].Ins = bbs[2].Ins[:0]
	bbs[4].Term = nil
	fn.Rebuild()
	delete(bbs[3].Phi[0].V, bbs[4])
	err = Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not terminate")
}

func TestVerify_BlockIds(t *testing.T) {
	fn, bbs := diamond()
	bbs[3].Phi[0].SetIncoming(bbs[4], Ru)

	/* IDs start from one */
	bbs[0].Id = 0
	err := Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be positive")

	/* and never repeat */
	bbs[0].Id = bbs[1].Id
	err = Verify(fn)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicated block ID")
	bbs[0].Id = 1
	require.NoError(t, Verify(fn))
}

func TestFunc_Queries(t *testing.T) {
	fn, bbs := diamond()
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, fn.Reachable())
	require.Equal(t, []*BasicBlock{bbs[3]}, fn.Returns())

	/* positions */
	pos, ok := fn.Locate(bbs[3].Term)
	require.True(t, ok)
	require.Equal(t, Pos{bbs[3], PosTerm}, pos)
	pos, ok = fn.Locate(bbs[3].Phi[0])
	require.True(t, ok)
	require.Equal(t, "bb_4.phi", pos.String())
	require.Equal(t, Pos{bbs[2], PosTerm}, Head(bbs[2]))
	require.True(t, Pos{bbs[3], PosPhi}.IsPriorTo(Pos{bbs[3], PosTerm}))
	require.False(t, Pos{bbs[3], PosTerm}.IsPriorTo(Pos{bbs[3], PosTerm}))
	require.False(t, Pos{bbs[2], 0}.IsPriorTo(Pos{bbs[3], PosTerm}))

	/* def-use */
	x := bbs[0].Ins[0].(*IrLoadArg).R
	require.Len(t, fn.Users()[x], 2)
	require.Equal(t, 2, fn.ReplaceUses(x, Rz))
	require.Len(t, fn.Users()[x], 0)
	require.Equal(t, bbs[0], fn.Defs()[x].Pos.B)

	/* instructions go before the terminator */
	bbs[2].InsertBeforeTerm(&IrConstInt{R: Rz, V: 1})
	pos, ok = fn.Locate(bbs[2].Term)
	require.True(t, ok)
	require.Equal(t, Pos{bbs[2], PosTerm}, pos)
	require.Equal(t, Pos{bbs[2], 0}, Head(bbs[2]))
}

func TestSwitch(t *testing.T) {
	a := &BasicBlock{Id: 1}
	b := &BasicBlock{Id: 2}
	c := &BasicBlock{Id: 3}
	sw := &IrSwitch{V: Rz, Default: a}
	sw.AddCase(1, b)
	sw.AddCase(2, c)
	require.Panics(t, func() { sw.AddCase(1, a) })

	/* lookups */
	require.Equal(t, c, sw.Target(2))
	require.Equal(t, a, sw.Target(9))
	v, ok := sw.CaseOf(b)
	require.True(t, ok)
	require.Equal(t, int64(1), v)
	require.Equal(t, []*BasicBlock{b, c, a}, Successors(sw))

	/* edge surgery */
	require.Equal(t, 1, Retarget(sw, c, b))
	require.Equal(t, []*BasicBlock{b, a}, Successors(sw))
	require.Equal(t, 2, Retarget(sw, b, c))
}

func TestBranch_SameTarget(t *testing.T) {
	a := &BasicBlock{Id: 1}
	br := &IrBranch{Cond: Rz, True: a, False: a}
	require.Equal(t, []*BasicBlock{a}, Successors(br))
	require.Equal(t, "br $0, bb_1, bb_1", br.String())
}

func TestReg(t *testing.T) {
	require.True(t, Rz.IsZero())
	require.True(t, Pn.Ptr())
	require.True(t, Pu.IsUndef())
	require.Equal(t, Pu, Undef(Pn))
	require.Equal(t, Rz, Zero(Ru))
	require.True(t, Ru.IsSpecial())
	fn := NewFunc("f")
	r := fn.NewReg(true)
	require.True(t, r.Ptr())
	require.False(t, r.IsSpecial())
	require.Equal(t, 1, r.Index())
}

func TestBuilder_Terminated(t *testing.T) {
	b := NewBuilder("f")
	b.Block("entry")
	b.Return()
	require.Panics(t, func() { b.Const(1) })
}
