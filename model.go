package main

import (
	"github.com/goccy/go-json"

	"tigercfg/cfg"
	"tigercfg/ir"
)

// Node represents a vertex in the exported graph.
type Node struct {
	ID             string
	Kind           string
	Name           string
	File           string // path of the IR file as given on the command line
	Line           int    // line in File
	EndLine        int
	ParentFunction string // node ID of enclosing function, or ""
	TypeInfo       string
	Properties     map[string]any
}

// Edge represents a directed edge in the exported graph.
type Edge struct {
	Source     string
	Target     string
	Kind       string
	Properties map[string]any
}

// Metrics holds computed metrics for a single function.
type Metrics struct {
	FunctionID           string
	Instructions         int
	Edges                int
	CyclomaticComplexity int
	Branches             int
	Calls                int
	Defs                 int
	Uses                 int
	FanIn                int
	FanOut               int
	NumParams            int
	Recursive            bool
}

// FuncGraph ties a built graph to the function and file it came from.
type FuncGraph struct {
	File  string
	Func  *ir.Function
	Graph *cfg.Graph
}

// ID returns the node ID of the function.
func (fg FuncGraph) ID() string { return FuncID(fg.File, fg.Func.Name) }

type edgeKey struct {
	Source, Target, Kind string
}

// CPG accumulates the whole graph in memory before flushing to SQLite.
type CPG struct {
	Nodes    []Node
	Edges    []Edge
	nodeSeen map[string]struct{}
	edgeSeen map[edgeKey]struct{}
	Sources  map[string]string   // file → content
	Metrics  map[string]*Metrics // function_id → metrics
}

// NewCPG creates an empty CPG ready for population.
func NewCPG() *CPG {
	return &CPG{
		nodeSeen: make(map[string]struct{}),
		edgeSeen: make(map[edgeKey]struct{}),
		Sources:  make(map[string]string),
		Metrics:  make(map[string]*Metrics),
	}
}

// AddNode appends a node, deduplicating by ID (first wins).
func (g *CPG) AddNode(n Node) {
	if _, dup := g.nodeSeen[n.ID]; dup {
		return
	}
	g.nodeSeen[n.ID] = struct{}{}
	g.Nodes = append(g.Nodes, n)
}

// HasNode reports whether a node with the given ID was added.
func (g *CPG) HasNode(id string) bool {
	_, ok := g.nodeSeen[id]
	return ok
}

// AddEdge appends an edge unless one with the same (source, target, kind)
// exists. It reports whether the edge was added.
func (g *CPG) AddEdge(e Edge) bool {
	k := edgeKey{e.Source, e.Target, e.Kind}
	if _, dup := g.edgeSeen[k]; dup {
		return false
	}
	g.edgeSeen[k] = struct{}{}
	g.Edges = append(g.Edges, e)
	return true
}

// PropsJSON marshals a properties map to a JSON string, or "" if empty.
func PropsJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}
