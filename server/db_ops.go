package main

import (
	"database/sql"
	"fmt"
	"strings"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (Node, error) {
	var n Node
	var file, pf, ti, text sql.NullString
	var line, endLine, index sql.NullInt64
	if err := r.Scan(&n.ID, &n.Kind, &n.Name, &file, &line, &endLine, &pf, &ti, &index, &text); err != nil {
		return Node{}, err
	}
	n.File = nullStringJSON{file}
	n.Line = nullInt64JSON{line}
	n.EndLine = nullInt64JSON{endLine}
	n.ParentFunction = nullStringJSON{pf}
	n.TypeInfo = nullStringJSON{ti}
	n.Index = nullInt64JSON{index}
	n.Text = nullStringJSON{text}
	return n, nil
}

func (db *DB) queryNodes(query string, args ...any) ([]Node, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Node returns one node by id; sql.ErrNoRows if it does not exist.
func (db *DB) Node(id string) (Node, error) {
	return scanNode(db.QueryRow(queryNodeByID, id))
}

// Search returns nodes whose name contains pattern, optionally of one kind.
func (db *DB) Search(pattern, kind string, limit int) ([]Node, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return db.queryNodes(querySearch, "%"+pattern+"%", kind, kind, limit)
}

// Functions lists defined functions with their metrics, optionally for one file.
func (db *DB) Functions(file string, limit int) ([]FunctionSummary, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	rows, err := db.Query(queryFunctions, file, file, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FunctionSummary{}
	for rows.Next() {
		var f FunctionSummary
		if err := rows.Scan(&f.ID, &f.Name, &f.File, &f.Line, &f.EndLine, &f.Signature,
			&f.Instructions, &f.Edges, &f.Complexity, &f.Branches, &f.Calls,
			&f.FanIn, &f.FanOut, &f.NumParams, &f.Recursive); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Subgraph returns function nodeID with its callers and callees and the call
// edges among them, capped at maxSubgraphNodes. sql.ErrNoRows if nodeID is unknown.
func (db *DB) Subgraph(nodeID string, limit int) (*Subgraph, error) {
	if limit <= 0 || limit > maxSubgraphNodes {
		limit = maxSubgraphNodes
	}
	center, err := db.Node(nodeID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(queryFunctionNeighborhood, nodeID, nodeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	nodes := []Node{center}
	ids := []string{nodeID}
	seen := map[string]bool{nodeID: true}
	for rows.Next() {
		var n Node
		var file sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&n.Direction, &n.ID, &n.Name, &file, &line); err != nil {
			return nil, err
		}
		n.Kind = "function"
		n.File = nullStringJSON{file}
		n.Line = nullInt64JSON{line}
		nodes = append(nodes, n)
		if !seen[n.ID] {
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	edges, err := db.edgesAmong(ids, "'call'")
	if err != nil {
		return nil, err
	}
	return &Subgraph{Nodes: nodes, Edges: edges}, nil
}

// CFG returns the instruction nodes of functionID and its cfg edges,
// including the entry and exit edges to the function node itself.
func (db *DB) CFG(functionID string) (*Subgraph, error) {
	fn, err := db.Node(functionID)
	if err != nil {
		return nil, err
	}
	if fn.Kind != "function" {
		return nil, sql.ErrNoRows
	}
	instrs, err := db.queryNodes(queryFunctionInstructions, functionID)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(queryFunctionCFGEdges, functionID, functionID, functionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	edges := []Edge{}
	for rows.Next() {
		var e Edge
		var label sql.NullString
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind, &label); err != nil {
			return nil, err
		}
		e.Label = nullStringJSON{label}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Subgraph{Nodes: append([]Node{fn}, instrs...), Edges: edges}, nil
}

// DefUse returns the variables instruction nodeID defines and uses and the
// instructions whose definitions reach it.
func (db *DB) DefUse(nodeID string) (*DefUse, error) {
	in, err := db.Node(nodeID)
	if err != nil {
		return nil, err
	}
	if in.Kind != "instruction" {
		return nil, sql.ErrNoRows
	}
	defs, err := db.queryStrings(queryDefs, nodeID)
	if err != nil {
		return nil, err
	}
	uses, err := db.queryStrings(queryUses, nodeID)
	if err != nil {
		return nil, err
	}
	reaching, err := db.queryNodes(queryReachingDefs, nodeID)
	if err != nil {
		return nil, err
	}
	return &DefUse{Instruction: in, Defs: defs, Uses: uses, Reaching: reaching}, nil
}

func (db *DB) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Source returns file content by path (key in sources table).
func (db *DB) Source(filePath string) (string, error) {
	var content string
	err := db.QueryRow(querySourceByFile, filePath).Scan(&filePath, &content)
	return content, err
}

// sliceKinds maps the over parameter of a slice to the edge kinds it follows.
var sliceKinds = map[string]string{
	"data": "'def','use','dfg','param_in','param_out'",
	"cfg":  "'cfg'",
	"cdg":  "'cdg'",
	"call": "'call'",
}

// Slice returns the backward or forward closure of nodeID over one edge
// family as a subgraph.
func (db *DB) Slice(nodeID, direction, over string, limit int) (*Subgraph, error) {
	if limit <= 0 || limit > maxSubgraphNodes {
		limit = maxSubgraphNodes
	}
	kinds, ok := sliceKinds[over]
	if !ok {
		return nil, fmt.Errorf("unknown slice edge family %q", over)
	}
	query := queryBackwardSlice
	if direction == "forward" {
		query = queryForwardSlice
	}
	nodes, err := db.queryNodes(fmt.Sprintf(query, kinds), nodeID, limit)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, sql.ErrNoRows
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	edges, err := db.edgesAmong(ids, kinds)
	if err != nil {
		return nil, err
	}
	return &Subgraph{Nodes: nodes, Edges: edges}, nil
}

// edgesAmong returns edges of the given kinds whose endpoints are both in ids.
func (db *DB) edgesAmong(ids []string, kinds string) ([]Edge, error) {
	edges := []Edge{}
	if len(ids) == 0 {
		return edges, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := fmt.Sprintf(`SELECT source, target, kind, json_extract(properties, '$.label') FROM edges
WHERE source IN (%s) AND target IN (%s) AND kind IN (%s) LIMIT 1000`, ph, ph, kinds)
	args := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Edge
		var label sql.NullString
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind, &label); err != nil {
			return nil, err
		}
		e.Label = nullStringJSON{label}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
