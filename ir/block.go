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

type BasicBlock struct {
	Id   int
	Name string
	Phi  []*IrPhi
	Ins  []IrNode
	Pred []*BasicBlock
	Term IrTerminator
}

func (self *BasicBlock) String() string {
	if self.Name == "" {
		return fmt.Sprintf("bb_%d", self.Id)
	} else {
		return fmt.Sprintf("bb_%d(%s)", self.Id, self.Name)
	}
}

// Succs returns the distinct successors of this block.
func (self *BasicBlock) Succs() []*BasicBlock {
	if self.Term == nil {
		return nil
	} else {
		return Successors(self.Term)
	}
}

// At returns the instruction at index i, where PosTerm (or len(Ins)) is
// the terminator.
func (self *BasicBlock) At(i int) IrNode {
	if i == PosTerm || i == len(self.Ins) {
		return self.Term
	} else if i < 0 {
		return nil
	} else {
		return self.Ins[i]
	}
}

// HasPred reports whether p is a (cached) predecessor of this block.
func (self *BasicBlock) HasPred(p *BasicBlock) bool {
	return containsBlock(self.Pred, p)
}

// InsertBeforeTerm appends ins to the body, right before the terminator.
func (self *BasicBlock) InsertBeforeTerm(ins ...IrNode) {
	self.Ins = append(self.Ins, ins...)
}
