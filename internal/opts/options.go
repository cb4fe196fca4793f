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

package opts

type Options struct {
	Relaxed       bool
	Nvidia        bool
	FullSlice     bool
	MaxIterations int
	Parallelism   int
	BarrierBlock  string
}

// IsBarrierBlock reports whether a block with this name stands for a
// pre-lowered barrier.
func (self *Options) IsBarrierBlock(name string) bool {
	return self.BarrierBlock != "" && name == self.BarrierBlock
}

func GetDefaultOptions() Options {
	return Options{
		Relaxed:       false,
		Nvidia:        true,
		FullSlice:     false,
		MaxIterations: MaxIterations,
		Parallelism:   Parallelism,
		BarrierBlock:  BarrierBlock,
	}
}
