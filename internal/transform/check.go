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
	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/ir"
)

// Check panics with an invariant violation if fn is malformed, or if a
// reachable use is not dominated by its definition.
func Check(fn *ir.Func) {
	fn.Rebuild()
	if err := ir.Verify(fn); err != nil {
		invariant("%v", err)
	}

	/* every reachable use must be dominated */
	defs := fn.Defs()
	dom := oracle.NewDominance(fn)
	for r, us := range fn.Users() {
		def, ok := defs[r]
		if !ok {
			invariant("%s: %s is never defined", fn.Name, r)
		}
		for _, u := range us {
			if !(RepairDominance{}).dominated(dom, def, u) {
				invariant("%s: %s at %s is not dominated by its definition", fn.Name, r, u.Pos)
			}
		}
	}
}
