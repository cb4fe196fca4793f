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
	"github.com/oleiade/lane"
	"golang.org/x/tools/container/intsets"

	"github.com/cloudwego/simtfix/ir"
)

// flood visits every block reachable from starts through next, never entering
// stop. The starts are part of the result.
func flood(starts []*ir.BasicBlock, stop *ir.BasicBlock, next func(*ir.BasicBlock) []*ir.BasicBlock) *intsets.Sparse {
	q := lane.NewQueue()
	ret := new(intsets.Sparse)

	/* add the starting points */
	for _, bb := range starts {
		if bb != stop && ret.Insert(bb.Id) {
			q.Enqueue(bb)
		}
	}

	/* scan until the queue is empty */
	for !q.Empty() {
		for _, bb := range next(q.Dequeue().(*ir.BasicBlock)) {
			if bb != stop && ret.Insert(bb.Id) {
				q.Enqueue(bb)
			}
		}
	}
	return ret
}

func succs(bb *ir.BasicBlock) []*ir.BasicBlock { return bb.Succs() }
func preds(bb *ir.BasicBlock) []*ir.BasicBlock { return bb.Pred }

// forward returns the blocks reachable from starts without passing stop.
func forward(starts []*ir.BasicBlock, stop *ir.BasicBlock) *intsets.Sparse {
	return flood(starts, stop, succs)
}

// backward returns the blocks that reach bb, bb excluded. Predecessors must be
// up to date.
func backward(bb *ir.BasicBlock) *intsets.Sparse {
	return flood(bb.Pred, nil, preds)
}
