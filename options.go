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
	"fmt"

	"github.com/cloudwego/simtfix/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithRelaxed selects the relaxed reconvergence points, which ignore stores
// on parallel paths and stores that dominate the load they redefine.
//
// The default value of this option is "false".
func WithRelaxed(v bool) Option {
	return func(o *opts.Options) { o.Relaxed = v }
}

// WithNvidia models the reconvergence behavior of NVIDIA hardware: branches
// that do not dominate their immediate post-dominator reconverge at the one of
// their nearest dominating branch, and irregular loops are normalized to a
// single entry after the transformation.
//
// The default value of this option is "true".
func WithNvidia(v bool) Option {
	return func(o *opts.Options) { o.Nvidia = v }
}

// WithFullSlice makes the exit conditions depend on every shared load in
// their dependency slice, not only on the ones inside the loop.
//
// The default value of this option is "false".
func WithFullSlice(v bool) Option {
	return func(o *opts.Options) { o.FullSlice = v }
}

// WithMaxIterations bounds the fixed point iterations of the reconvergence
// point resolution. Exceeding it is reported as an InvariantError.
//
// This value can also be configured with the `SIMTFIX_MAX_ITERATIONS`
// environment variable.
//
// The default value of this option is "10000".
func WithMaxIterations(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("simtfix: invalid max iterations: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxIterations = n }
	}
}

// WithParallelism sets how many functions of a module are processed at the
// same time. Set this option to "0" removes the limit.
//
// This value can also be configured with the `SIMTFIX_PARALLELISM`
// environment variable.
//
// The default value of this option is "1".
func WithParallelism(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("simtfix: invalid parallelism: %d", n))
	} else {
		return func(o *opts.Options) { o.Parallelism = n }
	}
}

// WithBarrierBlock sets the name of the blocks that stand for a lowered
// barrier. Threads never walk past such a block. An empty name disables it.
//
// This value can also be configured with the `SIMTFIX_BARRIER_BLOCK`
// environment variable.
//
// The default value of this option is "bar.sync".
func WithBarrierBlock(name string) Option {
	return func(o *opts.Options) { o.BarrierBlock = name }
}

func makeOptions(options []Option) opts.Options {
	ret := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&ret)
	}
	return ret
}
