package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// queryLimit parses the optional limit parameter; 0 selects the default.
func queryLimit(r *http.Request, route string) int {
	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if limitStr != "" && err != nil {
		log.Printf("%s: invalid limit %q, using default", route, limitStr)
	}
	return limit
}

// requireParam writes 400 and reports false when name is missing.
func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		http.Error(w, "missing query parameter "+name, http.StatusBadRequest)
		return "", false
	}
	return v, true
}

// writeResult writes v as JSON, or 404 for sql.ErrNoRows and 500 otherwise.
func writeResult(w http.ResponseWriter, v any, err error, notFound string) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		http.Error(w, notFound, http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, v)
	}
}

func (a *App) handleFunctions(w http.ResponseWriter, r *http.Request) {
	list, err := a.db.Functions(r.URL.Query().Get("file"), queryLimit(r, "functions"))
	writeResult(w, list, err, "")
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := requireParam(w, r, "q")
	if !ok {
		return
	}
	nodes, err := a.db.Search(q, r.URL.Query().Get("kind"), queryLimit(r, "search"))
	writeResult(w, nodes, err, "")
}

func (a *App) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := requireParam(w, r, "node_id")
	if !ok {
		return
	}
	sg, err := a.db.Subgraph(nodeID, queryLimit(r, "subgraph"))
	writeResult(w, sg, err, "node not found")
}

func (a *App) handleCFG(w http.ResponseWriter, r *http.Request) {
	fn, ok := requireParam(w, r, "function")
	if !ok {
		return
	}
	sg, err := a.db.CFG(fn)
	writeResult(w, sg, err, "function not found")
}

func (a *App) handleDefUse(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := requireParam(w, r, "node_id")
	if !ok {
		return
	}
	du, err := a.db.DefUse(nodeID)
	writeResult(w, du, err, "instruction not found")
}

func (a *App) handleSource(w http.ResponseWriter, r *http.Request) {
	file, ok := requireParam(w, r, "file")
	if !ok {
		return
	}
	content, err := a.db.Source(file)
	writeResult(w, map[string]string{"file": file, "content": content}, err, "file not found")
}

func (a *App) handleSlice(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := requireParam(w, r, "node_id")
	if !ok {
		return
	}
	direction := r.URL.Query().Get("direction")
	switch direction {
	case "":
		direction = "backward"
	case "backward", "forward":
	default:
		http.Error(w, "direction must be backward or forward", http.StatusBadRequest)
		return
	}
	over := r.URL.Query().Get("over")
	if over == "" {
		over = "data"
	}
	if _, ok := sliceKinds[over]; !ok {
		http.Error(w, "over must be one of data, cfg, cdg, call", http.StatusBadRequest)
		return
	}
	sg, err := a.db.Slice(nodeID, direction, over, queryLimit(r, "slice"))
	writeResult(w, sg, err, "node not found")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
