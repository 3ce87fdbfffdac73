package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const batchSize = 50000

// WriteDB writes the CPG to a SQLite database file, replacing any existing
// file at path.
func WriteDB(path string, cpg *CPG, validate bool, prog *Progress) error {
	prog.Log("Writing SQLite to %s ...", path)

	_ = os.Remove(path) // ignore if doesn't exist

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
		"PRAGMA journal_mode = WAL",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	// Create tables without indexes (deferred creation for speed)
	if err := createTables(conn); err != nil {
		return err
	}

	if err := insertAll(conn, cpg, prog); err != nil {
		return err
	}

	// Clean up orphan edges before indexing
	if err := sqlitex.ExecuteTransient(conn,
		`DELETE FROM edges WHERE source NOT IN (SELECT id FROM nodes) OR target NOT IN (SELECT id FROM nodes)`,
		nil); err != nil {
		return fmt.Errorf("orphan cleanup: %w", err)
	}
	if changes := conn.Changes(); changes > 0 {
		prog.Log("Removed %d orphan edges", changes)
	}

	prog.Log("Creating indexes...")
	if err := createIndexes(conn); err != nil {
		return err
	}

	prog.Log("Building FTS5 index...")
	if err := createFTS(conn); err != nil {
		return err
	}

	prog.Log("Computing summary statistics...")
	if err := createSummaryStats(conn); err != nil {
		return err
	}

	prog.Log("Creating analysis views...")
	if err := createAnalysisViews(conn); err != nil {
		return err
	}

	if err := sqlitex.ExecuteTransient(conn, "ANALYZE", nil); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if validate {
		if err := runValidation(conn, prog); err != nil {
			return err
		}
	}

	info, _ := os.Stat(path)
	if info != nil {
		prog.Log("Wrote %s (%d KB)", path, info.Size()/1024)
	}
	return nil
}

// insertAll bulk-inserts the CPG in one immediate transaction.
func insertAll(conn *sqlite.Conn, cpg *CPG, prog *Progress) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err := insertNodes(conn, cpg.Nodes, prog); err != nil {
		return err
	}
	if err := insertEdges(conn, cpg.Edges, prog); err != nil {
		return err
	}
	if err := insertSources(conn, cpg.Sources, prog); err != nil {
		return err
	}
	return insertMetrics(conn, cpg.Metrics, prog)
}

func createTables(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE nodes (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    file TEXT,
    line INTEGER,
    end_line INTEGER,
    parent_function TEXT,
    type_info TEXT,
    properties TEXT
);

CREATE TABLE edges (
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    kind TEXT NOT NULL,
    properties TEXT
);

CREATE TABLE sources (
    file TEXT PRIMARY KEY,
    content TEXT NOT NULL
);

CREATE TABLE metrics (
    function_id TEXT PRIMARY KEY,
    instructions INTEGER,
    edges INTEGER,
    cyclomatic_complexity INTEGER,
    branches INTEGER,
    calls INTEGER,
    defs INTEGER,
    uses INTEGER,
    fan_in INTEGER,
    fan_out INTEGER,
    num_params INTEGER,
    recursive INTEGER
);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

func createIndexes(conn *sqlite.Conn) error {
	indexes := `
CREATE INDEX idx_nodes_kind ON nodes(kind);
CREATE INDEX idx_nodes_name ON nodes(name);
CREATE INDEX idx_nodes_file ON nodes(file);
CREATE INDEX idx_nodes_parent ON nodes(parent_function);
CREATE INDEX idx_edges_source ON edges(source, kind);
CREATE INDEX idx_edges_target ON edges(target, kind);
CREATE INDEX idx_edges_kind ON edges(kind);
`
	return sqlitex.ExecuteScript(conn, indexes, nil)
}

func insertNodes(conn *sqlite.Conn, nodes []Node, prog *Progress) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO nodes (id, kind, name, file, line, end_line, parent_function, type_info, properties) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare node insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, n := range nodes {
		stmt.BindText(1, n.ID)
		stmt.BindText(2, n.Kind)
		stmt.BindText(3, n.Name)
		bindTextOrNull(stmt, 4, n.File)
		bindIntOrNull(stmt, 5, n.Line)
		bindIntOrNull(stmt, 6, n.EndLine)
		bindTextOrNull(stmt, 7, n.ParentFunction)
		bindTextOrNull(stmt, 8, n.TypeInfo)
		bindTextOrNull(stmt, 9, PropsJSON(n.Properties))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
		_ = stmt.Reset()

		if (i+1)%batchSize == 0 {
			prog.Verbose("  inserted %d/%d nodes", i+1, len(nodes))
		}
	}

	prog.Log("Inserted %d nodes", len(nodes))
	return nil
}

func insertEdges(conn *sqlite.Conn, edges []Edge, prog *Progress) error {
	stmt, err := conn.Prepare(`INSERT INTO edges (source, target, kind, properties) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, e := range edges {
		stmt.BindText(1, e.Source)
		stmt.BindText(2, e.Target)
		stmt.BindText(3, e.Kind)
		bindTextOrNull(stmt, 4, PropsJSON(e.Properties))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert edge %s→%s: %w", e.Source, e.Target, err)
		}
		_ = stmt.Reset()

		if (i+1)%batchSize == 0 {
			prog.Verbose("  inserted %d/%d edges", i+1, len(edges))
		}
	}

	prog.Log("Inserted %d edges", len(edges))
	return nil
}

func insertSources(conn *sqlite.Conn, sources map[string]string, prog *Progress) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO sources (file, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare source insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, file := range slices.Sorted(maps.Keys(sources)) {
		stmt.BindText(1, file)
		stmt.BindText(2, sources[file])

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert source %s: %w", file, err)
		}
		_ = stmt.Reset()
	}

	prog.Log("Inserted %d source files", len(sources))
	return nil
}

func insertMetrics(conn *sqlite.Conn, metrics map[string]*Metrics, prog *Progress) error {
	stmt, err := conn.Prepare(`INSERT OR IGNORE INTO metrics (function_id, instructions, edges, cyclomatic_complexity, branches, calls, defs, uses, fan_in, fan_out, num_params, recursive) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare metrics insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for _, id := range slices.Sorted(maps.Keys(metrics)) {
		m := metrics[id]
		stmt.BindText(1, m.FunctionID)
		stmt.BindInt64(2, int64(m.Instructions))
		stmt.BindInt64(3, int64(m.Edges))
		stmt.BindInt64(4, int64(m.CyclomaticComplexity))
		stmt.BindInt64(5, int64(m.Branches))
		stmt.BindInt64(6, int64(m.Calls))
		stmt.BindInt64(7, int64(m.Defs))
		stmt.BindInt64(8, int64(m.Uses))
		stmt.BindInt64(9, int64(m.FanIn))
		stmt.BindInt64(10, int64(m.FanOut))
		stmt.BindInt64(11, int64(m.NumParams))
		stmt.BindBool(12, m.Recursive)

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert metric %s: %w", m.FunctionID, err)
		}
		_ = stmt.Reset()
	}

	prog.Log("Inserted %d function metrics", len(metrics))
	return nil
}

// createFTS builds an FTS5 virtual table for full-text search over IR text.
func createFTS(conn *sqlite.Conn) error {
	fts := `
CREATE VIRTUAL TABLE sources_fts USING fts5(file, content, content=sources, content_rowid=rowid);
INSERT INTO sources_fts(sources_fts) VALUES('rebuild');
`
	return sqlitex.ExecuteScript(conn, fts, nil)
}

// createSummaryStats builds pre-computed summary tables for viewers.
func createSummaryStats(conn *sqlite.Conn) error {
	ddl := `
CREATE TABLE stats_node_kinds AS
  SELECT kind, COUNT(*) as count FROM nodes GROUP BY kind ORDER BY count DESC;

CREATE TABLE stats_edge_kinds AS
  SELECT kind, COUNT(*) as count FROM edges GROUP BY kind ORDER BY count DESC;

CREATE TABLE stats_overview AS
  SELECT
    (SELECT COUNT(*) FROM nodes) as total_nodes,
    (SELECT COUNT(*) FROM edges) as total_edges,
    (SELECT COUNT(*) FROM sources) as total_files,
    (SELECT COUNT(*) FROM nodes WHERE kind='function' AND file IS NOT NULL) as total_functions,
    (SELECT COUNT(*) FROM nodes WHERE kind='instruction') as total_instructions,
    (SELECT COUNT(*) FROM nodes WHERE kind='function' AND file IS NULL) as total_external;
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

// createAnalysisViews creates SQL views over the graph tables.
func createAnalysisViews(conn *sqlite.Conn) error {
	ddl := `
-- Flattened call graph with readable names
CREATE VIEW v_call_graph AS
  SELECT caller.name AS caller, callee.name AS callee,
         caller.file AS caller_file,
         json_extract(e.properties, '$.sites') AS sites,
         CASE WHEN callee.file IS NULL THEN 1 ELSE 0 END AS external
  FROM edges e
  JOIN nodes caller ON caller.id = e.source
  JOIN nodes callee ON callee.id = e.target
  WHERE e.kind = 'call';

-- Instruction-level control flow with rendered instruction text
CREATE VIEW v_cfg AS
  SELECT src.parent_function AS function_id,
         json_extract(src.properties, '$.index') AS from_index,
         json_extract(dst.properties, '$.index') AS to_index,
         json_extract(src.properties, '$.text') AS from_text,
         json_extract(dst.properties, '$.text') AS to_text,
         json_extract(e.properties, '$.label') AS label
  FROM edges e
  JOIN nodes src ON src.id = e.source AND src.kind = 'instruction'
  JOIN nodes dst ON dst.id = e.target AND dst.kind = 'instruction'
  WHERE e.kind = 'cfg';

-- Def and use sets per instruction
CREATE VIEW v_def_use AS
  SELECT i.id AS instruction_id, i.parent_function AS function_id,
         json_extract(i.properties, '$.text') AS text,
         e.kind AS access, v.name AS variable
  FROM edges e
  JOIN nodes i ON i.id = CASE e.kind WHEN 'def' THEN e.source ELSE e.target END
  JOIN nodes v ON v.id = CASE e.kind WHEN 'def' THEN e.target ELSE e.source END
  WHERE e.kind IN ('def', 'use');

-- Instructions unreachable from the function entry
CREATE VIEW v_unreachable AS
  WITH RECURSIVE reach(id) AS (
    SELECT e.target FROM edges e
    WHERE e.kind = 'cfg' AND json_extract(e.properties, '$.label') = 'entry'
    UNION
    SELECT e.target FROM edges e JOIN reach r ON e.source = r.id
    WHERE e.kind = 'cfg'
  )
  SELECT n.id, n.parent_function, json_extract(n.properties, '$.text') AS text
  FROM nodes n
  WHERE n.kind = 'instruction' AND n.id NOT IN (SELECT id FROM reach);
`
	return sqlitex.ExecuteScript(conn, ddl, nil)
}

func runValidation(conn *sqlite.Conn, prog *Progress) error {
	prog.Log("Running validation queries...")

	count := func(query string) (int64, error) {
		var n int64
		err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt64(0)
				return nil
			},
		})
		return n, err
	}

	orphans, err := count(`SELECT COUNT(*) FROM edges WHERE source NOT IN (SELECT id FROM nodes) OR target NOT IN (SELECT id FROM nodes)`)
	if err != nil {
		return fmt.Errorf("orphan check: %w", err)
	}
	if orphans > 0 {
		prog.Log("  WARNING: %d orphan edges (referencing non-existent nodes)", orphans)
	} else {
		prog.Log("  OK: zero orphan edges")
	}

	noEntry, err := count(`SELECT COUNT(*) FROM nodes f WHERE f.kind = 'function' AND f.file IS NOT NULL
		AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.source = f.id AND e.kind = 'cfg')`)
	if err != nil {
		return fmt.Errorf("entry check: %w", err)
	}
	if noEntry > 0 {
		prog.Log("  WARNING: %d functions without a cfg entry edge", noEntry)
	} else {
		prog.Log("  OK: every function has a cfg entry edge")
	}

	unreachable, err := count(`SELECT COUNT(*) FROM v_unreachable`)
	if err != nil {
		return fmt.Errorf("reachability check: %w", err)
	}
	prog.Log("  %d instructions unreachable from their function entry", unreachable)

	for _, q := range []struct{ label, query string }{
		{"nodes", `SELECT kind, COUNT(*) FROM nodes GROUP BY kind ORDER BY COUNT(*) DESC`},
		{"edges", `SELECT kind, COUNT(*) FROM edges GROUP BY kind ORDER BY COUNT(*) DESC`},
	} {
		if err := sqlitex.ExecuteTransient(conn, q.query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				prog.Log("  %s: %s = %d", q.label, stmt.ColumnText(0), stmt.ColumnInt64(1))
				return nil
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions for nullable bindings.

func bindTextOrNull(stmt *sqlite.Stmt, param int, val string) {
	if val == "" {
		stmt.BindNull(param)
	} else {
		stmt.BindText(param, val)
	}
}

func bindIntOrNull(stmt *sqlite.Stmt, param, val int) {
	if val == 0 {
		stmt.BindNull(param)
	} else {
		stmt.BindInt64(param, int64(val))
	}
}
