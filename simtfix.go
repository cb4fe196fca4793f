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

// Package simtfix detects loops whose exit depends on shared memory written by
// threads that only run after the loop has reconverged, and rewrites the
// control flow so that those threads are scheduled before the loop spins again.
package simtfix

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cloudwego/simtfix/internal/analysis"
	"github.com/cloudwego/simtfix/internal/opts"
	"github.com/cloudwego/simtfix/internal/transform"
	"github.com/cloudwego/simtfix/ir"
)

// Analyze runs the analysis on fn, and transforms it in place if any of its
// loops may deadlock. Functions without such loops are left untouched.
func Analyze(fn *ir.Func, options ...Option) (FuncReport, error) {
	o := makeOptions(options)
	return analyze(fn, &o)
}

// Run analyzes and transforms every function of m. Functions are independent
// from each other; the first error aborts the whole run.
func Run(m *ir.Module, options ...Option) (Report, error) {
	var eg errgroup.Group
	o := makeOptions(options)
	ret := Report{Module: m.Name, Funcs: make([]FuncReport, len(m.Funcs))}

	/* limit the number of concurrent functions */
	if o.Parallelism > 0 {
		eg.SetLimit(o.Parallelism)
	}

	/* process every function */
	for i, fn := range m.Funcs {
		i, fn := i, fn
		eg.Go(func() error {
			r, err := analyze(fn, &o)
			ret.Funcs[i] = r
			return err
		})
	}

	/* no partial results */
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	/* module statistics */
	for _, f := range ret.Funcs {
		ret.Stats.add(f.Stats)
	}
	return ret, nil
}

func analyze(fn *ir.Func, o *opts.Options) (ret FuncReport, err error) {
	if err = ir.Verify(fn); err != nil {
		return FuncReport{}, InputError{Func: fn.Name, Reason: err.Error()}
	}

	/* internal invariants are reported as errors */
	defer func() {
		if v := recover(); v != nil {
			ret, err = FuncReport{}, InvariantError{Func: fn.Name, Reason: fmt.Sprint(v)}
		}
	}()

	/* blocks reaching only one of many returns have no reconvergence point */
	unified := false
	facts := analysis.Analyze(fn, nil, nil, o)
	if facts.Unresolved() && (transform.UnifyReturns{}).Apply(fn) {
		unified = true
		facts = analysis.Analyze(fn, nil, nil, o)
	}

	/* report the facts */
	ret = newFuncReport(fn.Name, facts)
	ret.UnifiedReturns = unified

	/* transform if needed */
	if reqs := transform.Requests(facts); len(reqs) != 0 {
		ret.Transformed = true
		ret.Changes = newChanges(transform.Apply(fn, reqs, o))
	}
	return
}
