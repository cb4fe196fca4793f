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

import (
	"fmt"
)

// Reg is an SSA value. Every instruction that produces a value defines exactly one
// register, and registers are never redefined.
type Reg uint64

const (
	_B_ptr  = 63
	_B_kind = 59
)

const (
	_M_ptr  = 1
	_M_kind = 0x0f
)

const (
	_R_ptr   = _M_ptr << _B_ptr
	_R_kind  = _M_kind << _B_kind
	_R_index = (1 << _B_kind) - 1
)

const (
	_K_norm  = 0
	_K_zero  = 13
	_K_undef = 14
)

const (
	Rz Reg = (0 << _B_ptr) | (_K_zero << _B_kind)
	Pn Reg = (1 << _B_ptr) | (_K_zero << _B_kind)
)

const (
	Ru Reg = (0 << _B_ptr) | (_K_undef << _B_kind)
	Pu Reg = (1 << _B_ptr) | (_K_undef << _B_kind)
)

func mkreg(ptr bool, i int) Reg {
	if i < 0 || i > _R_index {
		panic("mkreg: invalid register index")
	} else if ptr {
		return _R_ptr | Reg(i)
	} else {
		return Reg(i)
	}
}

// Undef returns the undefined placeholder with the same pointer-ness as r.
func Undef(r Reg) Reg {
	if r.Ptr() {
		return Pu
	} else {
		return Ru
	}
}

// Zero returns the zero constant with the same pointer-ness as r.
func Zero(r Reg) Reg {
	if r.Ptr() {
		return Pn
	} else {
		return Rz
	}
}

func (self Reg) Ptr() bool {
	return self&_R_ptr != 0
}

func (self Reg) Index() int {
	return int(self & _R_index)
}

func (self Reg) kind() uint8 {
	return uint8((self & _R_kind) >> _B_kind)
}

// IsZero reports whether r is one of the zero constants.
func (self Reg) IsZero() bool {
	return self.kind() == _K_zero
}

// IsUndef reports whether r is one of the undefined placeholders.
func (self Reg) IsUndef() bool {
	return self.kind() == _K_undef
}

// IsSpecial reports whether r is a zero or undefined register, which has no
// defining instruction.
func (self Reg) IsSpecial() bool {
	return self.kind() != _K_norm
}

func (self Reg) String() string {
	switch self.kind() {
	case _K_zero:
		if self.Ptr() {
			return "nil"
		} else {
			return "$0"
		}
	case _K_undef:
		if self.Ptr() {
			return "undef.p"
		} else {
			return "undef"
		}
	default:
		if self.Ptr() {
			return fmt.Sprintf("%%p%d", self.Index())
		} else {
			return fmt.Sprintf("%%r%d", self.Index())
		}
	}
}

func regsliceref(v []Reg) (r []*Reg) {
	r = make([]*Reg, len(v))
	for i := range v {
		r[i] = &v[i]
	}
	return
}

func regslicerepr(v []Reg) string {
	buf := make([]byte, 0, len(v)*4)
	for i, r := range v {
		if i != 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, r.String()...)
	}
	return string(buf)
}
