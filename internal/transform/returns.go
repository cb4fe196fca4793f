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

// UnifyReturns merges every return block into a single one, so that every
// block reaching the exit has a real post-dominator.
type UnifyReturns struct{}

func (UnifyReturns) Apply(fn *ir.Func) bool {
	rets := fn.Returns()
	if len(rets) < 2 {
		return false
	}

	/* all the returns must agree on the arity */
	first := rets[0].Term.(*ir.IrReturn)
	for _, bb := range rets[1:] {
		if len(bb.Term.(*ir.IrReturn).R) != len(first.R) {
			return false
		}
	}

	/* the new return block */
	ret := fn.CreateBlock()
	ret.Name = "simt.return"
	vals := make([]ir.Reg, len(first.R))

	/* one Phi per returned value */
	for i := range vals {
		p := newPhi(fn, first.R[i].Ptr())
		for _, bb := range rets {
			p.SetIncoming(bb, bb.Term.(*ir.IrReturn).R[i])
		}
		vals[i] = p.R
		ret.Phi = append(ret.Phi, p)
	}

	/* redirect the old returns */
	for _, bb := range rets {
		bb.Term = &ir.IrJump{To: ret}
	}

	/* rebuild the CFG */
	ret.Term = &ir.IrReturn{R: vals}
	fn.Rebuild()
	return true
}
