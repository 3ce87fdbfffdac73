package main

import "tigercfg/cfg"

// ExtractCDG computes control dependence from the instruction-level CFG using
// post-dominator trees, and emits dom and pdom tree edges.
//
// An instruction w is control-dependent on a branch u when w post-dominates a
// successor of u but does not strictly post-dominate u. Edges run
// branch → dependent instruction.
func ExtractCDG(funcs []FuncGraph, cpg *CPG, prog *Progress) {
	prog.Log("Extracting CDG (control dependence)...")

	var cdgEdges, domEdges, pdomEdges, cdgFuncs int

	for _, fg := range funcs {
		g := fg.Graph
		n := g.Len()
		if n < 2 {
			continue
		}
		funcID := fg.ID()
		succs := successors(g)
		ipdom := postDominators(succs)

		// For each CFG edge (u → v) of a branch, walk from v up the pdom tree
		// and stop at ipdom(u). Each visited w depends on u.
		for u, outs := range succs {
			if len(outs) < 2 {
				continue
			}
			for _, v := range outs {
				for w := v; w != -1 && w != ipdom[u]; w = ipdom[w] {
					if cpg.AddEdge(Edge{
						Source: InstrID(funcID, u),
						Target: InstrID(funcID, w),
						Kind:   "cdg",
					}) {
						cdgEdges++
					}
				}
			}
		}

		idom := dominators(succs)
		for i := 0; i < n; i++ {
			if idom[i] >= 0 {
				cpg.AddEdge(Edge{
					Source: InstrID(funcID, idom[i]),
					Target: InstrID(funcID, i),
					Kind:   "dom",
				})
				domEdges++
			}
			if ipdom[i] >= 0 {
				cpg.AddEdge(Edge{
					Source: InstrID(funcID, ipdom[i]),
					Target: InstrID(funcID, i),
					Kind:   "pdom",
				})
				pdomEdges++
			}
		}

		cdgFuncs++
	}

	prog.Log("Created %d CDG, %d dom, %d pdom edges across %d functions", cdgEdges, domEdges, pdomEdges, cdgFuncs)
}

// successors copies the outgoing lists of g into an adjacency list.
func successors(g *cfg.Graph) [][]int {
	succs := make([][]int, g.Len())
	for i := range succs {
		succs[i] = g.Outgoing(i)
	}
	return succs
}

// dominators returns the immediate dominator of every instruction, with the
// entry at index 0. The entry and unreachable instructions get -1.
func dominators(succs [][]int) []int {
	idom := immediateDominators(succs, 0)
	idom[0] = -1
	return idom
}

// postDominators computes the immediate post-dominator tree on the reversed
// CFG with a virtual exit joined to every instruction without successors.
//
// ipdom[i] == -1 means i is post-dominated only by the virtual exit (it is an
// exit, or it cannot reach one).
func postDominators(succs [][]int) []int {
	n := len(succs)
	vExit := n

	var exits []int
	for i, outs := range succs {
		if len(outs) == 0 {
			exits = append(exits, i)
		}
	}

	ipdom := make([]int, n)
	if len(exits) == 0 {
		// Infinite loop with no exit: no post-dominators
		for i := range ipdom {
			ipdom[i] = -1
		}
		return ipdom
	}

	// Edge (i → j) becomes (j → i); the virtual exit reaches each exit.
	rev := make([][]int, n+1)
	for i, outs := range succs {
		for _, j := range outs {
			rev[j] = append(rev[j], i)
		}
	}
	rev[vExit] = append(rev[vExit], exits...)

	idom := immediateDominators(rev, vExit)
	for i := 0; i < n; i++ {
		if d := idom[i]; d >= 0 && d < n {
			ipdom[i] = d
		} else {
			ipdom[i] = -1
		}
	}
	return ipdom
}

// immediateDominators runs the Cooper-Harvey-Kennedy iterative algorithm on
// the graph adj rooted at root. idom[root] == root; nodes unreachable from
// root get -1.
func immediateDominators(adj [][]int, root int) []int {
	total := len(adj)
	rpo := reversePostorder(adj, root)

	rpoPos := make([]int, total)
	for i := range rpoPos {
		rpoPos[i] = -1
	}
	for i, node := range rpo {
		rpoPos[node] = i
	}

	preds := make([][]int, total)
	for from, neighbors := range adj {
		for _, to := range neighbors {
			preds[to] = append(preds[to], from)
		}
	}

	idom := make([]int, total)
	for i := range idom {
		idom[i] = -1
	}
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}

			newIdom := -1
			for _, p := range preds[b] {
				if idom[p] != -1 {
					newIdom = p
					break
				}
			}
			if newIdom == -1 {
				continue
			}

			for _, p := range preds[b] {
				if p == newIdom || idom[p] == -1 {
					continue
				}
				newIdom = chkIntersect(idom, rpoPos, p, newIdom)
			}

			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// chkIntersect finds the nearest common ancestor of a and b in the dominator
// tree, walking by RPO position.
func chkIntersect(idom, rpoPos []int, a, b int) int {
	for a != b {
		for rpoPos[a] > rpoPos[b] {
			a = idom[a]
		}
		for rpoPos[b] > rpoPos[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder lists the nodes reachable from root in reverse postorder.
func reversePostorder(adj [][]int, root int) []int {
	visited := make([]bool, len(adj))
	order := make([]int, 0, len(adj))

	type frame struct{ node, next int }
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(adj[top.node]) {
			succ := adj[top.node][top.next]
			top.next++
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, frame{node: succ})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
