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

package frontend

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/cloudwego/simtfix"
	"github.com/cloudwego/simtfix/ir"
)

const _KernelSource = `
package kernel

var sharedFlag int32
var counter int32

func ThreadID() int32 { return counter }
func Barrier() {}

func Spin() int32 {
	for sharedFlag == 0 {
	}
	sharedFlag = 1
	return sharedFlag
}

func Sync(n int32) int32 {
	t := ThreadID()
	if t < n {
		counter = t
	}
	Barrier()
	return counter
}
`

func buildKernel(t *testing.T) *ssa.Package {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "kernel.go", _KernelSource, 0)
	require.NoError(t, err)
	tc := &types.Config{Importer: importer.Default()}
	pkg, _, err := ssautil.BuildPackage(tc, fset, types.NewPackage("kernel", "kernel"), []*ast.File{f}, ssa.SanityCheckFunctions)
	require.NoError(t, err)
	return pkg
}

func instrs(fn *ir.Func) (ret []ir.IrNode) {
	for _, bb := range fn.Blocks {
		ret = append(ret, bb.Ins...)
	}
	return
}

func TestLower_Spin(t *testing.T) {
	pkg := buildKernel(t)
	fn, err := Lower(pkg.Func("Spin"), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, ir.Verify(fn))
	require.Equal(t, "kernel.Spin", fn.Name)

	/* the flag lives in shared memory */
	var loads, stores int
	for _, ins := range instrs(fn) {
		switch v := ins.(type) {
		case *ir.IrGlobal:
			require.Equal(t, "sharedFlag", v.Name)
			require.Equal(t, ir.Shared, v.Space)
		case *ir.IrLoad:
			require.Equal(t, ir.Shared, v.Space)
			require.Equal(t, uint8(4), v.Size)
			loads++
		case *ir.IrStore:
			stores++
		}
	}
	require.Equal(t, 2, loads)
	require.Equal(t, 1, stores)

	/* and the spinning loop gets funneled */
	rep, err := simtfix.Analyze(fn)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Stats.Loops)
	require.True(t, rep.Transformed)
}

func TestLower_Intrinsics(t *testing.T) {
	pkg := buildKernel(t)
	fn, err := Lower(pkg.Func("Sync"), DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, ir.Verify(fn))

	/* calls are classified by name */
	kinds := make(map[string]ir.CallKind)
	for _, ins := range instrs(fn) {
		if c, ok := ins.(*ir.IrCall); ok {
			kinds[c.Fn.Name] = c.Fn.Kind
			if c.Fn.Kind == ir.CallBarrier {
				require.Empty(t, c.Out)
			}
		}
	}
	require.Equal(t, map[string]ir.CallKind{
		"ThreadID": ir.CallThreadId,
		"Barrier":  ir.CallBarrier,
	}, kinds)

	/* the parameter is loaded in the entry block */
	_, ok := fn.Entry.Ins[0].(*ir.IrLoadArg)
	require.True(t, ok)
}

func TestLowerPackage(t *testing.T) {
	pkg := buildKernel(t)
	m, err := LowerPackage(pkg, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "kernel", m.Name)

	/* functions come ordered by name */
	var names []string
	for _, fn := range m.Funcs {
		names = append(names, fn.Name)
	}
	require.Equal(t, []string{"kernel.Barrier", "kernel.Spin", "kernel.Sync", "kernel.ThreadID"}, names)
}
