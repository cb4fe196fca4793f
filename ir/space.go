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

// AddrSpace is the memory space a pointer refers to. Only Shared and Global
// matter for cross-thread hazards.
type AddrSpace uint8

const (
	Generic AddrSpace = iota
	Global
	Shared
	Local
	Constant
)

func (self AddrSpace) String() string {
	switch self {
	case Generic:
		return "generic"
	case Global:
		return "global"
	case Shared:
		return "shared"
	case Local:
		return "local"
	case Constant:
		return "const"
	default:
		panic("unreachable")
	}
}

// IsShared reports whether accesses to this space are visible to other threads.
func (self AddrSpace) IsShared() bool {
	return self == Shared || self == Global
}

type AccessKind uint8

const (
	AccessRead AccessKind = 1 << iota
	AccessWrite
)

const (
	AccessReadWrite = AccessRead | AccessWrite
)

// MemoryAccess is the memory-effect projection of an instruction.
type MemoryAccess struct {
	Node  IrNode
	Kind  AccessKind
	Space AddrSpace
	Ptr   *Reg
}

func (self MemoryAccess) Reads() bool {
	return self.Kind&AccessRead != 0
}

func (self MemoryAccess) Writes() bool {
	return self.Kind&AccessWrite != 0
}

// Accesses returns every memory access performed by ins. Calls to ordinary
// functions with a body are assumed to read and write through all of their
// pointer arguments.
func Accesses(ins IrNode) []MemoryAccess {
	switch v := ins.(type) {
	case *IrLoad:
		return []MemoryAccess{{Node: v, Kind: AccessRead, Space: v.Space, Ptr: &v.Mem}}
	case *IrStore:
		return []MemoryAccess{{Node: v, Kind: AccessWrite, Space: v.Space, Ptr: &v.Mem}}
	case *IrAtomicRMW:
		return []MemoryAccess{{Node: v, Kind: AccessReadWrite, Space: v.Space, Ptr: &v.Mem}}
	case *IrAtomicCAS:
		return []MemoryAccess{{Node: v, Kind: AccessReadWrite, Space: v.Space, Ptr: &v.Mem}}
	case *IrCall:
		return callAccesses(v)
	default:
		return nil
	}
}

func callAccesses(v *IrCall) (ret []MemoryAccess) {
	switch v.Fn.Kind {
	case CallBarrier, CallThreadId, CallInlineAsm, CallExternal:
		return nil

	/* memcpy(dst, src, len) */
	case CallMemCopy:
		if len(v.In) >= 2 {
			ret = append(ret,
				MemoryAccess{Node: v, Kind: AccessWrite, Ptr: &v.In[0]},
				MemoryAccess{Node: v, Kind: AccessRead, Ptr: &v.In[1]},
			)
		}
		return

	/* atomic intrinsics operate on their first argument */
	case CallAtomic:
		if len(v.In) >= 1 {
			ret = append(ret, MemoryAccess{Node: v, Kind: AccessReadWrite, Ptr: &v.In[0]})
		}
		return

	/* everything else touches every pointer argument */
	default:
		for i := range v.In {
			if v.In[i].Ptr() && !v.In[i].IsSpecial() {
				ret = append(ret, MemoryAccess{Node: v, Kind: AccessReadWrite, Ptr: &v.In[i]})
			}
		}
		return
	}
}
