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
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/cloudwego/simtfix/ir"
)

// Load type-checks the packages matching patterns and builds their SSA form.
func Load(dir string, patterns ...string) ([]*ssa.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps |
			packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo,
		Dir:   dir,
		Tests: false,
	}

	/* load the packages */
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("frontend: load packages: %w", err)
	}

	/* refuse packages with errors */
	var errs strings.Builder
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errs.WriteString(e.Error() + "\n")
		}
	})
	if errs.Len() > 0 {
		return nil, fmt.Errorf("frontend: packages contain errors:\n%s", errs.String())
	}

	/* build the SSA form of everything */
	prog, ret := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()

	/* packages without types are dropped */
	out := ret[:0]
	for _, p := range ret {
		if p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// Functions lists the functions with a body declared in pkg, including
// methods and closures, ordered by name.
func Functions(pkg *ssa.Package) []*ssa.Function {
	var ret []*ssa.Function
	for fn := range ssautil.AllFunctions(pkg.Prog) {
		if fn.Pkg == pkg && fn.Synthetic == "" && len(fn.Blocks) != 0 {
			ret = append(ret, fn)
		}
	}
	sort.Slice(ret, func(i int, j int) bool {
		return ret[i].String() < ret[j].String()
	})
	return ret
}

// LowerPackage lowers every function of pkg into one module.
func LowerPackage(pkg *ssa.Package, cfg Config) (*ir.Module, error) {
	ret := &ir.Module{Name: pkg.Pkg.Path()}
	for _, fn := range Functions(pkg) {
		if f, err := Lower(fn, cfg); err != nil {
			return nil, err
		} else {
			ret.Funcs = append(ret.Funcs, f)
		}
	}
	return ret, nil
}
