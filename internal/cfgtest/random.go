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

package cfgtest

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/cloudwego/simtfix/ir"
)

// Random generates a function with n blocks and arbitrary control flow. The
// last block always returns, every other block jumps, branches, switches or
// returns at random.
func Random(seed int64, n int) *ir.Func {
	return random(seed, n, false)
}

// RandomShared is Random with shared memory traffic: branch conditions load a
// shared flag, and some blocks store to it.
func RandomShared(seed int64, n int) *ir.Func {
	return random(seed, n, true)
}

func random(seed int64, n int, shared bool) *ir.Func {
	fk := gofakeit.New(seed)
	bd := ir.NewBuilder(fmt.Sprintf("random_%d", seed))
	bbs := make([]*ir.BasicBlock, n)

	/* allocate the blocks first */
	for i := range bbs {
		bbs[i] = bd.Block(fmt.Sprintf("b%d", i))
	}

	/* the entry defines the condition */
	bd.At(bbs[0])
	x := bd.Arg(0, false, ir.Generic)
	flag := bd.Global("shared_flag", ir.Shared)
	pick := func() *ir.BasicBlock { return bbs[fk.Number(0, n-1)] }

	/* terminate every block */
	for i, bb := range bbs {
		bd.At(bb)
		if shared && fk.Number(0, 3) == 0 {
			bd.Store(bd.Const(int64(i)), flag, 4, ir.Shared)
		}
		if i == n-1 {
			bd.Return()
			continue
		}

		/* conditions come from the flag when there is memory traffic */
		v := x
		if shared {
			v = bd.Load(flag, 4, ir.Shared)
		}

		/* skew towards branches to get interesting graphs */
		switch fk.Number(0, 9) {
		case 0:
			bd.Return()
		case 1, 2, 3:
			bd.Jump(pick())
		case 4:
			bd.Switch(v, pick(), ir.SwitchCase{V: 1, To: pick()}, ir.SwitchCase{V: 2, To: pick()})
		default:
			bd.Branch(bd.Binary(ir.IrCmpLt, v, bd.Const(int64(i))), pick(), pick())
		}
	}
	return bd.Build()
}
