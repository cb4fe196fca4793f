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

// CleanRedundantPHIs removes Phi nodes that always yield the same value, and
// merges identical Phi nodes within a block. Returns the number of removed
// Phi nodes.
type CleanRedundantPHIs struct{}

func (self CleanRedundantPHIs) Apply(fn *ir.Func) (ret int) {
	for {
		if n := self.pass(fn); n == 0 {
			return
		} else {
			ret += n
		}
	}
}

func (self CleanRedundantPHIs) pass(fn *ir.Func) int {
	users := fn.Users()
	repl := make(map[ir.Reg]ir.Reg)

	/* find the redundant ones */
	for _, bb := range fn.Blocks {
		for _, p := range bb.Phi {
			if len(p.V) != 0 {
				if r, ok := self.single(p); ok {
					repl[p.R] = r
				}
			} else if len(users[p.R]) != 0 {
				invariant("%s: %s has no incoming value but is still used", fn.Name, p.R)
			} else {
				repl[p.R] = ir.Undef(p.R)
			}
		}
		self.dedup(bb, repl)
	}

	/* nothing to clean */
	if len(repl) == 0 {
		return 0
	}

	/* drop the Phi nodes */
	for _, bb := range fn.Blocks {
		phi := bb.Phi
		bb.Phi = bb.Phi[:0]
		for _, p := range phi {
			if _, ok := repl[p.R]; !ok {
				bb.Phi = append(bb.Phi, p)
			}
		}
	}

	/* rewrite the users */
	for r := range repl {
		v := resolve(repl, r)
		for _, u := range users[r] {
			*u.Ref = v
		}
	}
	return len(repl)
}

// single returns the only value of p other than p itself.
func (self CleanRedundantPHIs) single(p *ir.IrPhi) (ir.Reg, bool) {
	var ret ir.Reg
	var set bool

	/* every incoming value must be the same */
	for _, r := range p.V {
		if *r == p.R {
			continue
		} else if !set {
			ret, set = *r, true
		} else if *r != ret {
			return 0, false
		}
	}

	/* only refers to itself */
	if !set {
		return ir.Undef(p.R), true
	} else {
		return ret, true
	}
}

func (self CleanRedundantPHIs) dedup(bb *ir.BasicBlock, repl map[ir.Reg]ir.Reg) {
	for i, p := range bb.Phi {
		if _, ok := repl[p.R]; ok {
			continue
		}
		for _, q := range bb.Phi[:i] {
			if _, ok := repl[q.R]; !ok && p.R.Ptr() == q.R.Ptr() && samePhi(p, q) {
				repl[p.R] = q.R
				break
			}
		}
	}
}

func samePhi(p *ir.IrPhi, q *ir.IrPhi) bool {
	if len(p.V) != len(q.V) {
		return false
	}
	for bb, r := range p.V {
		if v, ok := q.V[bb]; !ok || *v != *r {
			return false
		}
	}
	return true
}

// resolve follows the replacement chain of r, cycles are undefined values.
func resolve(repl map[ir.Reg]ir.Reg, r ir.Reg) ir.Reg {
	seen := map[ir.Reg]bool{r: true}
	for {
		v, ok := repl[r]
		if !ok {
			return r
		} else if seen[v] {
			return ir.Undef(r)
		} else {
			r = v
			seen[v] = true
		}
	}
}
