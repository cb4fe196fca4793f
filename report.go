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

package simtfix

import (
	"github.com/cloudwego/simtfix/internal/analysis"
	"github.com/cloudwego/simtfix/internal/transform"
)

// Stats counts the branches and loops of one function, or a whole module.
type Stats struct {
	Branches        int `json:"branches"`
	CondBranches    int `json:"cond_branches"`
	Loops           int `json:"loops"`
	SharedLoops     int `json:"shared_loops"`
	RedefinedLoops  int `json:"redefined_loops"`
	TransformLoops  int `json:"transform_loops"`
	UnresolvedLoops int `json:"unresolved_loops"`
}

func (self *Stats) add(other Stats) {
	self.Branches += other.Branches
	self.CondBranches += other.CondBranches
	self.Loops += other.Loops
	self.SharedLoops += other.SharedLoops
	self.RedefinedLoops += other.RedefinedLoops
	self.TransformLoops += other.TransformLoops
	self.UnresolvedLoops += other.UnresolvedLoops
}

// Changes counts what the transformation added to a function.
type Changes struct {
	Dispatches int `json:"dispatches"`
	Cases      int `json:"cases"`
	Merges     int `json:"merges"`
	Headers    int `json:"headers"`
	Repairs    int `json:"repairs"`
	Cleaned    int `json:"cleaned"`
}

// LoopReport describes one retreating edge.
type LoopReport struct {
	Latch      string `json:"latch"`
	Header     string `json:"header"`
	Shared     bool   `json:"shared"`
	Redefined  bool   `json:"redefined"`
	Unresolved bool   `json:"unresolved"`
	ReqPDOM    string `json:"reqpdom,omitempty"`
}

// FuncReport is the outcome of one function.
type FuncReport struct {
	Func           string       `json:"func"`
	Stats          Stats        `json:"stats"`
	Loops          []LoopReport `json:"loops,omitempty"`
	UnifiedReturns bool         `json:"unified_returns,omitempty"`
	Transformed    bool         `json:"transformed"`
	Changes        Changes      `json:"changes"`
}

// Report is the outcome of a whole module.
type Report struct {
	Module string       `json:"module"`
	Funcs  []FuncReport `json:"funcs"`
	Stats  Stats        `json:"stats"`
}

func newFuncReport(name string, facts *analysis.Facts) FuncReport {
	st := facts.Stats()
	ret := FuncReport{
		Func: name,
		Stats: Stats{
			Branches:        st.Branches,
			CondBranches:    st.CondBranches,
			Loops:           st.Loops,
			SharedLoops:     st.SharedLoops,
			RedefinedLoops:  st.RedefinedLoops,
			TransformLoops:  st.TransformLoops,
			UnresolvedLoops: st.UnresolvedLoops,
		},
	}

	/* describe every loop */
	for _, lp := range facts.Loops {
		lr := LoopReport{
			Latch:      lp.Self().String(),
			Header:     lp.Taken.String(),
			Shared:     lp.DependsOnShared(),
			Redefined:  lp.IsPotentiallyRedefined(),
			Unresolved: lp.Unresolved,
		}
		if pos, ok := lp.Plan(); ok {
			lr.ReqPDOM = pos.String()
		}
		ret.Loops = append(ret.Loops, lr)
	}
	return ret
}

func newChanges(res transform.Result) Changes {
	return Changes{
		Dispatches: res.Dispatches,
		Cases:      res.Cases,
		Merges:     res.Merges,
		Headers:    res.Headers,
		Repairs:    res.Repairs,
		Cleaned:    res.Cleaned,
	}
}
