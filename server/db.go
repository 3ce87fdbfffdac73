package main

import (
	"database/sql"

	"github.com/goccy/go-json"
)

// nullStringJSON marshals as string or null (for API contract: "file": "x" or "file": null).
type nullStringJSON struct{ sql.NullString }

func (n nullStringJSON) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}

func (n *nullStringJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.String, n.Valid = s, true
	return nil
}

// nullInt64JSON marshals as number or null.
type nullInt64JSON struct{ sql.NullInt64 }

func (n nullInt64JSON) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Int64)
}

func (n *nullInt64JSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	n.Int64, n.Valid = i, true
	return nil
}

// DB wraps *sql.DB and provides graph query helpers.
type DB struct {
	*sql.DB
}

// NewDB returns a DB wrapper.
func NewDB(db *sql.DB) *DB {
	return &DB{DB: db}
}

// Node is a graph node for API responses.
type Node struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Name           string         `json:"name"`
	File           nullStringJSON `json:"file"`
	Line           nullInt64JSON  `json:"line"`
	EndLine        nullInt64JSON  `json:"end_line,omitempty"`
	ParentFunction nullStringJSON `json:"parent_function,omitempty"`
	TypeInfo       nullStringJSON `json:"type_info,omitempty"`
	Index          nullInt64JSON  `json:"index,omitempty"`
	Text           nullStringJSON `json:"text,omitempty"`
	Direction      string         `json:"direction,omitempty"` // caller/callee from neighborhood
}

// Edge is a graph edge for API responses.
type Edge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Kind   string         `json:"kind"`
	Label  nullStringJSON `json:"label,omitempty"` // taken/fallthrough/entry/exit on cfg edges
}

// Subgraph is the unified response format: nodes + edges.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// FunctionSummary is one function with its metrics.
type FunctionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	File         string `json:"file"`
	Line         int    `json:"line"`
	EndLine      int    `json:"end_line"`
	Signature    string `json:"signature"`
	Instructions int    `json:"instructions"`
	Edges        int    `json:"edges"`
	Complexity   int    `json:"complexity"`
	Branches     int    `json:"branches"`
	Calls        int    `json:"calls"`
	FanIn        int    `json:"fan_in"`
	FanOut       int    `json:"fan_out"`
	NumParams    int    `json:"num_params"`
	Recursive    bool   `json:"recursive"`
}

// DefUse lists what one instruction defines and uses, and the definitions
// that reach it.
type DefUse struct {
	Instruction Node     `json:"instruction"`
	Defs        []string `json:"defs"`
	Uses        []string `json:"uses"`
	Reaching    []Node   `json:"reaching_defs"`
}

const maxSubgraphNodes = 200
