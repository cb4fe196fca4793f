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

import (
	"log"
	"os"
	"strconv"
)

const (
	_DefaultMaxIterations = 10000 // fixed points that take longer than this are bugs
	_DefaultParallelism   = 1     // one function at a time
	_DefaultBarrierBlock  = "bar.sync"
)

var (
	MaxIterations = parseOrDefault("SIMTFIX_MAX_ITERATIONS", _DefaultMaxIterations, 1)
	Parallelism   = parseOrDefault("SIMTFIX_PARALLELISM", _DefaultParallelism, 0)
	BarrierBlock  = stringOrDefault("SIMTFIX_BARRIER_BLOCK", _DefaultBarrierBlock)
	Debug         = os.Getenv("SIMTFIX_DEBUG") != ""
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("simtfix: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("simtfix: value too small for " + key)
	} else {
		return ret
	}
}

func stringOrDefault(key string, def string) string {
	if env, ok := os.LookupEnv(key); !ok {
		return def
	} else {
		return env
	}
}

// Trace writes a debug line when SIMTFIX_DEBUG is set.
func Trace(format string, args ...interface{}) {
	if Debug {
		log.Printf("simtfix: "+format, args...)
	}
}
