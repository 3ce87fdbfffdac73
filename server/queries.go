package main

// SQL constants aligned with the tables written by the generator's db.go.

const nodeColumns = `n.id, n.kind, n.name, n.file, n.line, n.end_line, n.parent_function, n.type_info,
  json_extract(n.properties, '$.index'), json_extract(n.properties, '$.text')`

const querySearch = `
SELECT ` + nodeColumns + `
FROM nodes n
WHERE n.name LIKE ? AND (? = '' OR n.kind = ?)
ORDER BY n.kind, n.name, n.id
LIMIT ?
`

const queryNodeByID = `SELECT ` + nodeColumns + ` FROM nodes n WHERE n.id = ?`

const queryFunctions = `
SELECT n.id, n.name, n.file, COALESCE(n.line, 0), COALESCE(n.end_line, 0), COALESCE(n.type_info, ''),
  COALESCE(m.instructions, 0), COALESCE(m.edges, 0), COALESCE(m.cyclomatic_complexity, 0),
  COALESCE(m.branches, 0), COALESCE(m.calls, 0), COALESCE(m.fan_in, 0), COALESCE(m.fan_out, 0),
  COALESCE(m.num_params, 0), COALESCE(m.recursive, 0)
FROM nodes n LEFT JOIN metrics m ON m.function_id = n.id
WHERE n.kind = 'function' AND n.file IS NOT NULL AND (? = '' OR n.file = ?)
ORDER BY n.file, n.line
LIMIT ?
`

const queryFunctionNeighborhood = `
SELECT 'caller' AS direction, n.id, n.name, n.file, n.line
FROM edges e JOIN nodes n ON n.id = e.source
WHERE e.target = ? AND e.kind = 'call' AND n.kind = 'function'
UNION ALL
SELECT 'callee' AS direction, n.id, n.name, n.file, n.line
FROM edges e JOIN nodes n ON n.id = e.target
WHERE e.source = ? AND e.kind = 'call' AND n.kind = 'function'
ORDER BY direction, name
LIMIT ?
`

const queryFunctionInstructions = `
SELECT ` + nodeColumns + `
FROM nodes n
WHERE n.parent_function = ? AND n.kind = 'instruction'
ORDER BY json_extract(n.properties, '$.index')
`

const queryFunctionCFGEdges = `
SELECT e.source, e.target, e.kind, json_extract(e.properties, '$.label')
FROM edges e
WHERE e.kind = 'cfg' AND (e.source = ? OR e.target = ?
  OR e.source IN (SELECT id FROM nodes WHERE parent_function = ? AND kind = 'instruction'))
`

const queryDefs = `
SELECT v.name FROM edges e JOIN nodes v ON v.id = e.target
WHERE e.source = ? AND e.kind = 'def'
ORDER BY v.name
`

const queryUses = `
SELECT v.name FROM edges e JOIN nodes v ON v.id = e.source
WHERE e.target = ? AND e.kind = 'use'
ORDER BY json_extract(e.properties, '$.index')
`

const queryReachingDefs = `
SELECT ` + nodeColumns + `
FROM edges e JOIN nodes n ON n.id = e.source
WHERE e.target = ? AND e.kind = 'dfg'
ORDER BY json_extract(n.properties, '$.index')
`

const querySourceByFile = `SELECT file, content FROM sources WHERE file = ?`

// Slice queries walk one edge family; %s is replaced by the edge kinds.

const queryBackwardSlice = `
WITH RECURSIVE slice(id, depth) AS (
  SELECT ?, 0
  UNION
  SELECT e.source, s.depth + 1
  FROM slice s JOIN edges e ON e.target = s.id
  WHERE e.kind IN (%s) AND s.depth < 50
)
SELECT DISTINCT ` + nodeColumns + `
FROM slice s JOIN nodes n ON n.id = s.id
ORDER BY n.file, n.line, n.id
LIMIT ?
`

const queryForwardSlice = `
WITH RECURSIVE slice(id, depth) AS (
  SELECT ?, 0
  UNION
  SELECT e.target, s.depth + 1
  FROM slice s JOIN edges e ON e.source = s.id
  WHERE e.kind IN (%s) AND s.depth < 50
)
SELECT DISTINCT ` + nodeColumns + `
FROM slice s JOIN nodes n ON n.id = s.id
ORDER BY n.file, n.line, n.id
LIMIT ?
`
