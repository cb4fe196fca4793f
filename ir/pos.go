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
	"math"
)

const (
	PosPhi  = -1
	PosTerm = math.MaxInt32
)

// Pos is the position of an instruction within a function. All Phi nodes of a
// block share the position PosPhi since they execute simultaneously on entry.
type Pos struct {
	B *BasicBlock
	I int
}

func (self Pos) String() string {
	if self.B == nil {
		return "exit"
	} else if self.I == PosTerm {
		return fmt.Sprintf("bb_%d.term", self.B.Id)
	} else if self.I == PosPhi {
		return fmt.Sprintf("bb_%d.phi", self.B.Id)
	} else {
		return fmt.Sprintf("bb_%d.ins[%d]", self.B.Id, self.I)
	}
}

// Head returns the position of the first non-Phi instruction of bb.
func Head(bb *BasicBlock) Pos {
	if len(bb.Ins) == 0 {
		return Pos{bb, PosTerm}
	} else {
		return Pos{bb, 0}
	}
}

// IsValid reports whether the position refers to a block.
func (self Pos) IsValid() bool {
	return self.B != nil
}

// Node returns the instruction at this position, nil for Phi positions.
func (self Pos) Node() IrNode {
	return self.B.At(self.I)
}

// Next returns the position of the instruction following this one.
func (self Pos) Next() Pos {
	if self.I == PosTerm {
		panic("pos: no instruction after the terminator")
	} else if self.I+1 >= len(self.B.Ins) {
		return Pos{self.B, PosTerm}
	} else {
		return Pos{self.B, self.I + 1}
	}
}

// IsPriorTo reports whether this position executes before other within the
// same block.
func (self Pos) IsPriorTo(other Pos) bool {
	return self.B == other.B && self.I < other.I
}
