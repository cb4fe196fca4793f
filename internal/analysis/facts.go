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

package analysis

import (
	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

// Stats are the per-function counters.
type Stats struct {
	Branches        int `json:"branches"`
	CondBranches    int `json:"cond_branches"`
	Loops           int `json:"loops"`
	SharedLoops     int `json:"shared_loops"`
	RedefinedLoops  int `json:"redefined_loops"`
	TransformLoops  int `json:"transform_loops"`
	UnresolvedLoops int `json:"unresolved_loops"`
}

// Add accumulates other into self.
func (self *Stats) Add(other Stats) {
	self.Branches += other.Branches
	self.CondBranches += other.CondBranches
	self.Loops += other.Loops
	self.SharedLoops += other.SharedLoops
	self.RedefinedLoops += other.RedefinedLoops
	self.TransformLoops += other.TransformLoops
	self.UnresolvedLoops += other.UnresolvedLoops
}

// Facts is the complete analysis result of one function.
type Facts struct {
	Ctx        *Context
	Loops      []*LoopInfo
	Iterations int
}

// Analyze computes every branch and loop fact of fn. The host and alias
// oracles may be nil.
func Analyze(fn *ir.Func, host oracle.Host, alias oracle.AliasOracle, o *opts.Options) *Facts {
	ctx := NewContext(fn, host, alias, o)
	loops := ctx.buildLoops()

	/* per-loop facts are independent of each other */
	for _, lp := range loops {
		lp.slices()
		lp.reachable()
		lp.parallel()
		lp.classify()
		lp.hazards()
		lp.initialReqPDOM()
	}

	/* resolution needs all of them */
	ret := &Facts{Ctx: ctx, Loops: loops}
	ret.Iterations = ctx.ResolveReqPDOM(loops)
	ctx.ResolveRelaxedReqPDOM(loops)

	/* dump the decisions */
	for _, lp := range loops {
		if pos, ok := lp.Plan(); ok {
			opts.Trace("%s: %s is funneled through %s", fn.Name, lp, pos)
		}
	}
	return ret
}

// Planned returns the loops that must be transformed.
func (self *Facts) Planned() (ret []*LoopInfo) {
	for _, lp := range self.Loops {
		if _, ok := lp.Plan(); ok {
			ret = append(ret, lp)
		}
	}
	return
}

// Unresolved reports whether some potentially redefined loop has no
// reconvergence point before the exit.
func (self *Facts) Unresolved() bool {
	for _, lp := range self.Loops {
		if lp.Unresolved {
			return true
		}
	}
	return false
}

func (self *Facts) Stats() Stats {
	var ret Stats
	for _, br := range self.Ctx.Branches() {
		ret.Branches++
		if br.Conditional() {
			ret.CondBranches++
		}
	}

	/* loop counters */
	for _, lp := range self.Loops {
		if !lp.CreatesLoop() {
			continue
		}
		ret.Loops++
		if lp.DependsOnShared() {
			ret.SharedLoops++
		}
		if lp.IsPotentiallyRedefined() {
			ret.RedefinedLoops++
		}
		if _, ok := lp.Plan(); ok {
			ret.TransformLoops++
		}
		if lp.Unresolved {
			ret.UnresolvedLoops++
		}
	}
	return ret
}
