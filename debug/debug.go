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

// Package debug renders functions for inspection.
package debug

import (
	"fmt"
	"strings"

	"github.com/cloudwego/simtfix/internal/oracle"
	"github.com/cloudwego/simtfix/internal/stree"
	"github.com/cloudwego/simtfix/ir"
)

const _SimtPrefix = "simt."

// Dump returns the textual form of fn.
func Dump(fn *ir.Func) string {
	return fn.String()
}

// Dot renders the control flow graph of fn in Graphviz format. Every edge
// leaving a reachable block is labeled with its spanning tree class, and
// blocks created by the transformation are filled.
func Dot(fn *ir.Func) string {
	var sb strings.Builder
	fn.Rebuild()
	st := stree.Build(fn, oracle.NewDominance(fn))

	/* graph header */
	fmt.Fprintf(&sb, "digraph %q {\n", fn.Name)
	sb.WriteString("    node [shape=box fontname=monospace];\n")

	/* one node per block */
	for _, bb := range fn.Blocks {
		attrs := fmt.Sprintf("label=%q", bb.String())
		if strings.HasPrefix(bb.Name, _SimtPrefix) {
			attrs += " style=filled fillcolor=lightgrey"
		}
		if bb == fn.Entry {
			attrs += " peripheries=2"
		}
		fmt.Fprintf(&sb, "    b%d [%s];\n", bb.Id, attrs)
	}

	/* one edge per successor slot */
	for _, bb := range fn.Blocks {
		if bb.Term == nil {
			continue
		}
		for it := bb.Term.Successors(); it.Next(); {
			to := it.Block()
			label := slotLabel(bb.Term, it)
			if e := st.Edge(bb, to); e != nil {
				label = strings.TrimPrefix(label+" "+e.Kind.String(), " ")
			}
			if label == "" {
				fmt.Fprintf(&sb, "    b%d -> b%d;\n", bb.Id, to.Id)
			} else {
				fmt.Fprintf(&sb, "    b%d -> b%d [label=%q];\n", bb.Id, to.Id, label)
			}
		}
	}

	/* graph footer */
	sb.WriteString("}\n")
	return sb.String()
}

func slotLabel(term ir.IrTerminator, it ir.IrSuccessors) string {
	v, ok := it.Value()
	switch term.(type) {
	case *ir.IrBranch:
		if ok {
			return "T"
		} else {
			return "F"
		}
	case *ir.IrSwitch:
		if ok {
			return fmt.Sprintf("%d", v)
		} else {
			return "_"
		}
	default:
		return ""
	}
}
