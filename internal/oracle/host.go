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

package oracle

import (
	"github.com/cloudwego/simtfix/ir"
)

// Host supplies the target-specific classification predicates.
type Host interface {
	IsBarrier(call *ir.IrCall) bool
	IsThreadId(call *ir.IrCall) bool
	IsMemIntrinsic(call *ir.IrCall) bool
	AddressSpace(m ir.MemoryAccess) ir.AddrSpace
}

// DefaultHost classifies calls by their callee kind, and resolves generic
// accesses to the space of the objects the pointer is derived from.
type DefaultHost struct {
	tr *_Tracer
}

func NewHost(fn *ir.Func) *DefaultHost {
	return &DefaultHost{tr: newTracer(fn)}
}

func (self *DefaultHost) IsBarrier(call *ir.IrCall) bool {
	return call.Fn.Kind == ir.CallBarrier
}

func (self *DefaultHost) IsThreadId(call *ir.IrCall) bool {
	return call.Fn.Kind == ir.CallThreadId
}

func (self *DefaultHost) IsMemIntrinsic(call *ir.IrCall) bool {
	return call.Fn.Kind == ir.CallMemCopy || call.Fn.Kind == ir.CallAtomic
}

func (self *DefaultHost) AddressSpace(m ir.MemoryAccess) ir.AddrSpace {
	if m.Space != ir.Generic {
		return m.Space
	}

	/* resolve from the base objects */
	sp := ir.Generic
	bs := self.tr.bases(*m.Ptr)
	if bs.unknown {
		return ir.Generic
	}

	/* all the bases must agree */
	for _, v := range bs.objs {
		var s ir.AddrSpace
		switch p := v.(type) {
		case *ir.IrAlloca:
			s = p.Space
		case *ir.IrGlobal:
			s = p.Space
		case *ir.IrLoadArg:
			s = p.Space
		}
		if sp == ir.Generic {
			sp = s
		} else if s != sp {
			return ir.Generic
		}
	}
	return sp
}
