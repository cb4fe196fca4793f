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

// Command simtfix finds loops of Go kernels that may deadlock under SIMT
// execution and reports the reconvergence fixes applied to them.
//
//	simtfix check [-relaxed] [-nvidia=false] [-json] [-dump] [-dot dir] [-db path] [-C dir] <patterns>
//	simtfix stats -db path [-module name]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/simtfix"
	"github.com/cloudwego/simtfix/debug"
	"github.com/cloudwego/simtfix/internal/frontend"
	"github.com/cloudwego/simtfix/internal/store"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("simtfix: ")

	/* dispatch the sub command */
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "check":
		err := check(os.Args[2:], os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
	case "stats":
		err := stats(os.Args[2:], os.Stdout)
		if err != nil {
			log.Fatal(err)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: simtfix check [flags] <patterns>")
	fmt.Fprintln(os.Stderr, "       simtfix stats -db path [-module name]")
	os.Exit(2)
}

type _CheckFlags struct {
	relaxed  bool
	nvidia   bool
	full     bool
	json     bool
	dump     bool
	dot      string
	db       string
	dir      string
	jobs     int
	barriers string
}

func check(args []string, w io.Writer) error {
	var cf _CheckFlags
	fs := flag.NewFlagSet("check", flag.ExitOnError)

	/* register flags */
	fs.BoolVar(&cf.relaxed, "relaxed", false, "relaxed store classification")
	fs.BoolVar(&cf.nvidia, "nvidia", true, "normalize multi-entry regions")
	fs.BoolVar(&cf.full, "full-slice", false, "slice the whole latch block")
	fs.BoolVar(&cf.json, "json", false, "print reports as JSON")
	fs.BoolVar(&cf.dump, "dump", false, "print every transformed function")
	fs.StringVar(&cf.dot, "dot", "", "write Graphviz files of transformed functions to `dir`")
	fs.StringVar(&cf.db, "db", "", "store the reports in the database at `path`")
	fs.StringVar(&cf.dir, "C", ".", "load packages relative to `dir`")
	fs.IntVar(&cf.jobs, "j", 0, "functions analyzed in parallel, 0 for unlimited")
	fs.StringVar(&cf.barriers, "barriers", "Barrier,SyncThreads", "comma separated barrier function names")
	_ = fs.Parse(args)

	/* load the packages */
	if fs.NArg() == 0 {
		return fmt.Errorf("check: no packages given")
	}
	pkgs, err := frontend.Load(cf.dir, fs.Args()...)
	if err != nil {
		return err
	}

	/* open the store if any */
	var st *store.Store
	if cf.db != "" {
		if st, err = store.Open(cf.db, false); err != nil {
			return err
		}
		defer st.Close()
	}

	/* lowering configuration */
	cfg := frontend.DefaultConfig()
	cfg.BarrierNames = strings.Split(cf.barriers, ",")
	options := []simtfix.Option{
		simtfix.WithRelaxed(cf.relaxed),
		simtfix.WithNvidia(cf.nvidia),
		simtfix.WithFullSlice(cf.full),
		simtfix.WithParallelism(cf.jobs),
	}

	/* analyze every package */
	for _, pkg := range pkgs {
		m, err := frontend.LowerPackage(pkg, cfg)
		if err != nil {
			return err
		}
		rep, err := simtfix.Run(m, options...)
		if err != nil {
			return err
		}
		if err = emit(w, rep, cf.json); err != nil {
			return err
		}

		/* transformed functions */
		for i, fr := range rep.Funcs {
			if !fr.Transformed {
				continue
			}
			if cf.dump {
				fmt.Fprintln(w, debug.Dump(m.Funcs[i]))
			}
			if cf.dot != "" {
				name := filepath.Join(cf.dot, fileName(fr.Func)+".dot")
				if err = os.WriteFile(name, []byte(debug.Dot(m.Funcs[i])), 0o644); err != nil {
					return fmt.Errorf("check: write %s: %w", name, err)
				}
			}
		}

		/* persist the reports */
		if st != nil {
			if err = st.Put(rep); err != nil {
				return err
			}
			log.Printf("stored %d reports of %s", len(rep.Funcs), rep.Module)
		}
	}
	return nil
}

func stats(args []string, w io.Writer) error {
	var db, module string
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.StringVar(&db, "db", "", "database `path`")
	fs.StringVar(&module, "module", "", "only list reports of `name`")
	_ = fs.Parse(args)

	/* the database is required */
	if db == "" {
		return fmt.Errorf("stats: -db is required")
	}
	st, err := store.Open(db, true)
	if err != nil {
		return err
	}

	/* list the reports */
	defer st.Close()
	ls, err := st.List(module)
	if err != nil {
		return err
	}
	return table(w, ls)
}

func emit(w io.Writer, rep simtfix.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	/* one line per function with loops */
	fmt.Fprintf(w, "%s: %d loops, %d transformed, %d unresolved\n",
		rep.Module,
		rep.Stats.Loops,
		rep.Stats.TransformLoops,
		rep.Stats.UnresolvedLoops,
	)
	for _, fr := range rep.Funcs {
		for _, lp := range fr.Loops {
			fmt.Fprintf(w, "    %s: %s -> %s%s\n", fr.Func, lp.Latch, lp.Header, loopFlags(lp))
		}
	}
	return nil
}

func table(w io.Writer, ls []simtfix.FuncReport) error {
	var tot simtfix.Stats
	for _, fr := range ls {
		_, err := fmt.Fprintf(w, "%-48s loops=%d transformed=%d unresolved=%d\n",
			fr.Func,
			fr.Stats.Loops,
			fr.Stats.TransformLoops,
			fr.Stats.UnresolvedLoops,
		)
		if err != nil {
			return err
		}
		tot.Loops += fr.Stats.Loops
		tot.TransformLoops += fr.Stats.TransformLoops
		tot.UnresolvedLoops += fr.Stats.UnresolvedLoops
	}
	_, err := fmt.Fprintf(w, "total: %d functions, %d loops, %d transformed, %d unresolved\n",
		len(ls),
		tot.Loops,
		tot.TransformLoops,
		tot.UnresolvedLoops,
	)
	return err
}

func loopFlags(lp simtfix.LoopReport) string {
	var fv []string
	if lp.Shared {
		fv = append(fv, "shared")
	}
	if lp.Redefined {
		fv = append(fv, "redefined")
	}
	if lp.Unresolved {
		fv = append(fv, "unresolved")
	}
	if lp.ReqPDOM != "" {
		fv = append(fv, "reconverge="+lp.ReqPDOM)
	}
	if len(fv) == 0 {
		return ""
	} else {
		return " [" + strings.Join(fv, " ") + "]"
	}
}

func fileName(fn string) string {
	return strings.NewReplacer("/", "_", "*", "", "(", "", ")", "").Replace(fn)
}
