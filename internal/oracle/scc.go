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
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/cloudwego/simtfix/ir"
)

// Components is the strongly-connected-component decomposition of a function.
type Components struct {
	List [][]*ir.BasicBlock
	of   map[int]int
}

func SCCs(fn *ir.Func) *Components {
	g := simple.NewDirectedGraph()
	bbs := make(map[int64]*ir.BasicBlock, len(fn.Blocks))

	/* add every block as a node */
	for _, bb := range fn.Blocks {
		g.AddNode(simple.Node(bb.Id))
		bbs[int64(bb.Id)] = bb
	}

	/* self loops do not change the components */
	for _, bb := range fn.Blocks {
		for _, s := range bb.Succs() {
			if s != bb {
				g.SetEdge(g.NewEdge(simple.Node(bb.Id), simple.Node(s.Id)))
			}
		}
	}

	/* Tarjan's algorithm */
	ret := &Components{of: make(map[int]int, len(fn.Blocks))}
	for _, c := range topo.TarjanSCC(g) {
		v := make([]*ir.BasicBlock, 0, len(c))
		for _, n := range c {
			v = append(v, bbs[n.ID()])
		}
		sort.Slice(v, func(i int, j int) bool {
			return v[i].Id < v[j].Id
		})
		for _, bb := range v {
			ret.of[bb.Id] = len(ret.List)
		}
		ret.List = append(ret.List, v)
	}
	return ret
}

// Of returns the component containing bb.
func (self *Components) Of(bb *ir.BasicBlock) []*ir.BasicBlock {
	if i, ok := self.of[bb.Id]; !ok {
		return nil
	} else {
		return self.List[i]
	}
}
