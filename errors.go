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
)

// InputError occurs when the function handed to the analyzer is malformed.
type InputError struct {
	Func   string
	Reason string
}

func (self InputError) Error() string {
	return fmt.Sprintf("InputError(%s): %s", self.Func, self.Reason)
}

// InvariantError occurs when an internal invariant of the analysis or the
// transformation is violated. It always indicates a bug in simtfix.
type InvariantError struct {
	Func   string
	Reason string
}

func (self InvariantError) Error() string {
	return fmt.Sprintf("InvariantError(%s): %s", self.Func, self.Reason)
}
