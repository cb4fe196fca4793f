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

// Package store persists function reports in a Pebble database.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/cloudwego/simtfix"
)

// Key format: report:<module>:<func> -> JSON
var _PrefixReport = []byte("report:")

type Store struct {
	db *pebble.DB
}

// Open opens or creates the database at path. A read only database must
// already exist.
func Open(path string, readOnly bool) (*Store, error) {
	if readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("store: database does not exist: %s", path)
		}
	}

	/* open the database */
	db, err := pebble.Open(path, &pebble.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (self *Store) Close() error {
	return self.db.Close()
}

func reportKey(module string, fn string) []byte {
	return []byte(string(_PrefixReport) + module + ":" + fn)
}

func modulePrefix(module string) []byte {
	if module == "" {
		return _PrefixReport
	} else {
		return []byte(string(_PrefixReport) + module + ":")
	}
}

// upperBound is the smallest key greater than every key with prefix p.
func upperBound(p []byte) []byte {
	ret := append([]byte(nil), p...)
	for i := len(ret) - 1; i >= 0; i-- {
		if ret[i] < 0xff {
			ret[i]++
			return ret[:i+1]
		}
	}
	return nil
}

// Put stores every function report of r in one batch.
func (self *Store) Put(r simtfix.Report) error {
	b := self.db.NewBatch()
	defer b.Close()

	/* one key per function */
	for _, f := range r.Funcs {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", f.Func, err)
		}
		if err = b.Set(reportKey(r.Module, f.Func), data, nil); err != nil {
			return fmt.Errorf("store: write %s: %w", f.Func, err)
		}
	}
	return b.Commit(pebble.Sync)
}

// Get loads the report of one function, false if it was never stored.
func (self *Store) Get(module string, fn string) (simtfix.FuncReport, bool, error) {
	var ret simtfix.FuncReport
	data, closer, err := self.db.Get(reportKey(module, fn))

	/* missing keys are not errors */
	if err == pebble.ErrNotFound {
		return ret, false, nil
	} else if err != nil {
		return ret, false, fmt.Errorf("store: read %s: %w", fn, err)
	}

	/* decode the report */
	defer closer.Close()
	if err = json.Unmarshal(data, &ret); err != nil {
		return ret, false, fmt.Errorf("store: decode %s: %w", fn, err)
	}
	return ret, true, nil
}

// List returns the stored reports of module in key order, or of every module
// if module is empty.
func (self *Store) List(module string) ([]simtfix.FuncReport, error) {
	var ret []simtfix.FuncReport
	prefix := modulePrefix(module)

	/* scan the prefix */
	it, err := self.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan: %w", err)
	}

	/* decode every value */
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		var fr simtfix.FuncReport
		if err = json.Unmarshal(it.Value(), &fr); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", it.Key(), err)
		}
		ret = append(ret, fr)
	}
	return ret, it.Error()
}
