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

// VerifyError describes a malformed function.
type VerifyError struct {
	Func   string
	Block  int
	Reason string
}

func (self VerifyError) Error() string {
	return fmt.Sprintf("ir: malformed function %s at bb_%d: %s", self.Func, self.Block, self.Reason)
}

// Verify checks the structural invariants of fn: block IDs are positive and
// unique, every block is terminated and its successors belong to the function,
// Phi nodes have exactly one incoming value per predecessor, and every register
// is defined once.
func Verify(fn *Func) error {
	defs := make(map[Reg]bool)
	owns := make(map[*BasicBlock]bool, len(fn.Blocks))

	/* the entry must be one of the blocks, IDs are positive and distinct */
	ids := make(map[int]bool, len(fn.Blocks))
	for _, bb := range fn.Blocks {
		if bb.Id <= 0 {
			return VerifyError{fn.Name, bb.Id, "block ID must be positive"}
		} else if ids[bb.Id] {
			return VerifyError{fn.Name, bb.Id, "duplicated block ID"}
		}
		ids[bb.Id] = true
		owns[bb] = true
	}
	if fn.Entry == nil || !owns[fn.Entry] {
		return VerifyError{Func: fn.Name, Reason: "missing entry block"}
	}

	/* check every block */
	for _, bb := range fn.Blocks {
		if bb.Term == nil {
			return VerifyError{fn.Name, bb.Id, "block does not terminate"}
		}

		/* successors must be owned by this function */
		for _, s := range bb.Succs() {
			if !owns[s] {
				return VerifyError{fn.Name, bb.Id, fmt.Sprintf("foreign successor bb_%d", s.Id)}
			}
		}

		/* Phi nodes must match the predecessors exactly */
		for _, p := range bb.Phi {
			if len(p.V) != len(bb.Pred) {
				return VerifyError{fn.Name, bb.Id, fmt.Sprintf("%s: %d incoming values for %d predecessors", p.R, len(p.V), len(bb.Pred))}
			}
			for from := range p.V {
				if !bb.HasPred(from) {
					return VerifyError{fn.Name, bb.Id, fmt.Sprintf("%s: bb_%d is not a predecessor", p.R, from.Id)}
				}
			}
			if err := define(defs, p.R); err != "" {
				return VerifyError{fn.Name, bb.Id, err}
			}
		}

		/* registers are defined exactly once */
		for _, v := range bb.Ins {
			if _, ok := v.(IrTerminator); ok {
				return VerifyError{fn.Name, bb.Id, "terminator in the middle of a block"}
			}
			if d, ok := v.(IrDefinitions); ok {
				for _, r := range d.Definitions() {
					if err := define(defs, *r); err != "" {
						return VerifyError{fn.Name, bb.Id, err}
					}
				}
			}
		}
	}
	return nil
}

func define(defs map[Reg]bool, r Reg) string {
	if r.IsSpecial() {
		return "definition of special register " + r.String()
	} else if defs[r] {
		return "register redefined: " + r.String()
	} else {
		defs[r] = true
		return ""
	}
}
