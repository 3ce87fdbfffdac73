package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Using a separate function ensures all defers
// execute even on error paths, unlike os.Exit which skips deferred calls.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	conf, inputs, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if conf.Workers == 0 {
		conf.Workers = runtime.GOMAXPROCS(0)
	}

	prog := NewProgressTo(stderr, conf.Verbose)

	// Phase 1: Read IR files
	loaded, err := LoadInputs(inputs, prog)
	if err != nil {
		return err
	}

	// Phase 2: Build one graph per function
	funcs, err := BuildGraphs(ctx, loaded, conf, prog)
	if err != nil {
		return err
	}

	if conf.Dump {
		for _, fg := range funcs {
			if _, err := io.WriteString(stdout, fg.Graph.String()); err != nil {
				return fmt.Errorf("dump: %w", err)
			}
		}
	}

	if conf.DB == "" {
		return nil
	}

	cpg := NewCPG()

	// Phase 3: Instructions, variables, CFG, def/use, reaching definitions
	ExtractCFGAndDFG(loaded.Units, funcs, cpg, prog)

	// Phase 4: Control dependence and (post-)dominator trees
	ExtractCDG(funcs, cpg, prog)

	// Phase 5: Call graph
	BuildCallGraph(funcs, cpg, prog)

	// Phase 6: Function metrics, then fan-in/fan-out from the call graph
	ComputeMetrics(funcs, cpg, prog)
	ComputeFanInOut(cpg)

	cpg.AddNode(Node{
		ID:   "META_DATA",
		Kind: "meta_data",
		Name: "CPG Metadata",
		Properties: map[string]any{
			"language":  "tiger-ir",
			"version":   "1.0",
			"generator": "tigercfg",
			"inputs":    inputs,
			"files":     len(loaded.Units),
		},
	})

	// Phase 7: Write SQLite
	if err := WriteDB(conf.DB, cpg, conf.Validate, prog); err != nil {
		return err
	}

	prog.Log("Done. %d nodes, %d edges.", len(cpg.Nodes), len(cpg.Edges))
	return nil
}
