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

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/simtfix"
)

func sampleReport() simtfix.Report {
	return simtfix.Report{
		Module: "kernel",
		Stats:  simtfix.Stats{Loops: 1, TransformLoops: 1},
		Funcs: []simtfix.FuncReport{{
			Func:        "kernel.Spin",
			Transformed: true,
			Stats:       simtfix.Stats{Loops: 1, TransformLoops: 1},
			Loops: []simtfix.LoopReport{{
				Latch:     "bb_3",
				Header:    "bb_2",
				Shared:    true,
				Redefined: true,
				ReqPDOM:   "bb_4:1",
			}},
		}},
	}
}

func TestEmit_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, emit(&buf, sampleReport(), false))
	require.Equal(t,
		"kernel: 1 loops, 1 transformed, 0 unresolved\n"+
			"    kernel.Spin: bb_3 -> bb_2 [shared redefined reconverge=bb_4:1]\n",
		buf.String(),
	)
}

func TestEmit_JSON(t *testing.T) {
	var buf bytes.Buffer
	var rep simtfix.Report
	require.NoError(t, emit(&buf, sampleReport(), true))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	require.Equal(t, sampleReport(), rep)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, table(&buf, sampleReport().Funcs))
	require.Contains(t, buf.String(), "loops=1 transformed=1 unresolved=0\n")
	require.Contains(t, buf.String(), "total: 1 functions, 1 loops, 1 transformed, 0 unresolved\n")
}

func TestLoopFlags(t *testing.T) {
	require.Equal(t, "", loopFlags(simtfix.LoopReport{}))
	require.Equal(t, " [unresolved]", loopFlags(simtfix.LoopReport{Unresolved: true}))
}

func TestFileName(t *testing.T) {
	require.Equal(t, "example.com_k.T.Run", fileName("(*example.com/k.T).Run"))
}
