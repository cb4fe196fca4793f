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

package transform

import (
	"github.com/cloudwego/simtfix/ir"
)

func containsBlock(s []*ir.BasicBlock, bb *ir.BasicBlock) bool {
	for _, p := range s {
		if p == bb {
			return true
		}
	}
	return false
}

// splitAt moves the instructions from index i onwards, together with the
// terminator, into a new block that bb jumps to. Phi edges of the successors
// follow the terminator.
func splitAt(fn *ir.Func, bb *ir.BasicBlock, i int) *ir.BasicBlock {
	nb := fn.CreateBlock()
	nb.Ins = append([]ir.IrNode(nil), bb.Ins[i:]...)
	nb.Term = bb.Term

	/* the original block falls through */
	bb.Ins = bb.Ins[:i:i]
	bb.Term = &ir.IrJump{To: nb}

	/* update the Phi nodes */
	for _, s := range nb.Succs() {
		for _, p := range s.Phi {
			p.MoveIncoming(bb, nb)
		}
	}
	return nb
}

// splitEdge inserts an empty block on the edge from bb to to.
func splitEdge(fn *ir.Func, bb *ir.BasicBlock, to *ir.BasicBlock) *ir.BasicBlock {
	nb := fn.CreateBlock()
	nb.Term = &ir.IrJump{To: to}
	ir.Retarget(bb.Term, to, nb)

	/* update the Phi nodes */
	for _, p := range to.Phi {
		p.MoveIncoming(bb, nb)
	}
	return nb
}

func newPhi(fn *ir.Func, ptr bool) *ir.IrPhi {
	return &ir.IrPhi{
		R: fn.NewReg(ptr),
		V: make(map[*ir.BasicBlock]*ir.Reg),
	}
}
