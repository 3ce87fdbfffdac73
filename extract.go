package main

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"tigercfg/cfg"
	"tigercfg/ir"
)

// BuildGraphs builds the graph of every loaded function that the config does
// not skip. Graphs come back in input order.
func BuildGraphs(ctx context.Context, res *LoadResult, conf *Config, prog *Progress) ([]FuncGraph, error) {
	prog.Log("Building control-flow graphs (%d workers)...", conf.Workers)

	var (
		fns     []*ir.Function
		funcs   []FuncGraph
		skipped int
	)
	for _, u := range res.Units {
		for _, fn := range u.Program.Functions {
			if conf.Skip(fn.Name) {
				prog.Verbose("  skipping %s in %s", fn.Name, u.File)
				skipped++
				continue
			}
			fns = append(fns, fn)
			funcs = append(funcs, FuncGraph{File: u.File, Func: fn})
		}
	}

	graphs, err := cfg.BuildAll(ctx, fns, conf.Workers)
	if err != nil {
		return nil, fmt.Errorf("build graphs: %w", err)
	}
	for i, g := range graphs {
		funcs[i].Graph = g
	}

	prog.Log("Built %d graphs (%d skipped)", len(funcs), skipped)
	return funcs, nil
}

// ExtractCFGAndDFG adds file, function, variable, and instruction nodes plus
// cfg, def, use, and dfg edges for every graph.
func ExtractCFGAndDFG(units []*Unit, funcs []FuncGraph, cpg *CPG, prog *Progress) {
	prog.Log("Extracting CFG + def/use...")

	for _, u := range units {
		cpg.Sources[u.File] = u.Source
		cpg.AddNode(Node{
			ID:   FileID(u.File),
			Kind: "file",
			Name: path.Base(u.File),
			File: u.File,
			Properties: map[string]any{
				"functions": len(u.Program.Functions),
			},
		})
	}

	var instrNodes, varNodes, cfgEdges, defEdges, useEdges, dfgEdges int

	for _, fg := range funcs {
		g := fg.Graph
		funcID := fg.ID()
		instrs := g.Instructions()

		cpg.AddNode(Node{
			ID:       funcID,
			Kind:     "function",
			Name:     fg.Func.Name,
			File:     fg.File,
			Line:     instrs[0].SrcLine,
			EndLine:  instrs[len(instrs)-1].SrcLine,
			TypeInfo: signature(fg.Func),
			Properties: map[string]any{
				"base":         g.Base(),
				"instructions": g.Len(),
				"return_type":  fg.Func.ReturnType.String(),
			},
		})
		cpg.AddEdge(Edge{Source: FileID(fg.File), Target: funcID, Kind: "contains"})

		for k, v := range fg.Func.Params {
			addVariable(cpg, fg, v, map[string]any{"param": true, "position": k})
			varNodes++
		}
		for _, v := range fg.Func.Locals {
			addVariable(cpg, fg, v, map[string]any{"param": false})
			varNodes++
		}

		for i, in := range instrs {
			cpg.AddNode(Node{
				ID:             InstrID(funcID, i),
				Kind:           "instruction",
				Name:           in.Op.String(),
				File:           fg.File,
				Line:           in.SrcLine,
				EndLine:        in.SrcLine,
				ParentFunction: funcID,
				Properties: map[string]any{
					"index":       i,
					"global_line": in.Line,
					"text":        in.String(),
				},
			})
			instrNodes++
		}

		// CFG entry edge: function → first instruction
		cpg.AddEdge(Edge{
			Source: funcID, Target: InstrID(funcID, 0),
			Kind:       "cfg",
			Properties: map[string]any{"label": "entry"},
		})
		cfgEdges++

		for i := range instrs {
			outs := g.Outgoing(i)
			// CFG exit edges: instructions without successors → function
			if len(outs) == 0 {
				cpg.AddEdge(Edge{
					Source: InstrID(funcID, i), Target: funcID,
					Kind:       "cfg",
					Properties: map[string]any{"label": "exit"},
				})
				cfgEdges++
				continue
			}
			// A branch to the next instruction yields the same pair twice;
			// the taken edge comes first and wins.
			kinds := g.OutgoingKinds(i)
			for k, j := range outs {
				if cpg.AddEdge(Edge{
					Source:     InstrID(funcID, i),
					Target:     InstrID(funcID, j),
					Kind:       "cfg",
					Properties: map[string]any{"label": kinds[k].String()},
				}) {
					cfgEdges++
				}
			}
		}

		for i := range instrs {
			instrID := InstrID(funcID, i)
			for _, name := range distinct(g.Defs(i)) {
				cpg.AddEdge(Edge{
					Source: instrID, Target: VarID(funcID, name),
					Kind:       "def",
					Properties: map[string]any{"var": name},
				})
				defEdges++
			}
			uses := g.Uses(i)
			for _, name := range distinct(uses) {
				cpg.AddEdge(Edge{
					Source: VarID(funcID, name), Target: instrID,
					Kind: "use",
					Properties: map[string]any{
						"var":   name,
						"index": slices.Index(uses, name),
						"count": count(uses, name),
					},
				})
				useEdges++
			}
		}

		// DFG edges: reaching definition → use
		sites, byVar, reach := reachingDefs(g)
		for i := range instrs {
			for _, name := range distinct(g.Uses(i)) {
				for _, s := range byVar[name] {
					if !reach[i].Test(s) {
						continue
					}
					if cpg.AddEdge(Edge{
						Source: InstrID(funcID, sites[s].instr), Target: InstrID(funcID, i),
						Kind:       "dfg",
						Properties: map[string]any{"var": name},
					}) {
						dfgEdges++
					}
				}
			}
		}
	}

	prog.Log("Created %d instruction nodes, %d variable nodes", instrNodes, varNodes)
	prog.Log("Created %d CFG edges, %d def edges, %d use edges, %d DFG edges", cfgEdges, defEdges, useEdges, dfgEdges)
}

func addVariable(cpg *CPG, fg FuncGraph, v *ir.Variable, props map[string]any) {
	funcID := fg.ID()
	cpg.AddNode(Node{
		ID:             VarID(funcID, v.Name),
		Kind:           "variable",
		Name:           v.Name,
		File:           fg.File,
		ParentFunction: funcID,
		TypeInfo:       v.Type.String(),
		Properties:     props,
	})
	cpg.AddEdge(Edge{Source: funcID, Target: VarID(funcID, v.Name), Kind: "declares"})
}

// signature renders a function header the way it appears in IR text.
func signature(fn *ir.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type.String() + " " + p.Name
	}
	return fmt.Sprintf("%s %s(%s)", fn.ReturnType, fn.Name, strings.Join(params, ", "))
}

func count(names []string, name string) int {
	var c int
	for _, n := range names {
		if n == name {
			c++
		}
	}
	return c
}
