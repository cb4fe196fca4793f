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

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/simtfix"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports")
	st, err := Open(path, false)
	require.NoError(t, err)

	/* two modules */
	require.NoError(t, st.Put(simtfix.Report{
		Module: "a",
		Funcs: []simtfix.FuncReport{
			{Func: "a.Spin", Transformed: true, Stats: simtfix.Stats{Loops: 1, TransformLoops: 1}},
			{Func: "a.Copy"},
		},
	}))
	require.NoError(t, st.Put(simtfix.Report{
		Module: "b",
		Funcs:  []simtfix.FuncReport{{Func: "b.Main"}},
	}))

	/* point lookups */
	fr, ok, err := st.Get("a", "a.Spin")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, fr.Transformed)
	require.Equal(t, 1, fr.Stats.TransformLoops)
	_, ok, err = st.Get("a", "a.Missing")
	require.NoError(t, err)
	require.False(t, ok)

	/* prefix scans are ordered by key */
	ls, err := st.List("a")
	require.NoError(t, err)
	require.Len(t, ls, 2)
	require.Equal(t, "a.Copy", ls[0].Func)
	require.Equal(t, "a.Spin", ls[1].Func)
	all, err := st.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NoError(t, st.Close())

	/* read only reopen */
	st, err = Open(path, true)
	require.NoError(t, err)
	ls, err = st.List("b")
	require.NoError(t, err)
	require.Len(t, ls, 1)
	require.NoError(t, st.Close())
}

func TestStore_ReadOnlyMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), true)
	require.Error(t, err)
}

func TestUpperBound(t *testing.T) {
	require.Equal(t, []byte("report;"), upperBound([]byte("report:")))
	require.Equal(t, []byte("b"), upperBound([]byte{'a', 0xff}))
	require.Nil(t, upperBound([]byte{0xff}))
}
