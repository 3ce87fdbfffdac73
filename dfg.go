package main

import (
	"github.com/bits-and-blooms/bitset"

	"tigercfg/cfg"
)

// defSite is a definition of one variable at a local instruction index.
type defSite struct {
	instr int
	name  string
}

// reachingDefs runs the classic forward may-analysis over g. It returns the
// definition sites of the function, the site indices grouped by variable, and
// for each instruction the set of sites reaching its entry.
func reachingDefs(g *cfg.Graph) ([]defSite, map[string][]uint, []*bitset.BitSet) {
	n := g.Len()
	var sites []defSite
	byVar := make(map[string][]uint)
	for i := 0; i < n; i++ {
		for _, name := range distinct(g.Defs(i)) {
			byVar[name] = append(byVar[name], uint(len(sites)))
			sites = append(sites, defSite{instr: i, name: name})
		}
	}

	m := uint(len(sites))
	gen := make([]*bitset.BitSet, n)
	kill := make([]*bitset.BitSet, n)
	for i := range gen {
		gen[i] = bitset.New(m)
		kill[i] = bitset.New(m)
	}
	for s, site := range sites {
		gen[site.instr].Set(uint(s))
		for _, other := range byVar[site.name] {
			kill[site.instr].Set(other)
		}
	}

	in := make([]*bitset.BitSet, n)
	out := make([]*bitset.BitSet, n)
	queued := make([]bool, n)
	work := make([]int, 0, n)
	for i := 0; i < n; i++ {
		in[i] = bitset.New(m)
		out[i] = gen[i].Clone()
		work = append(work, i)
		queued[i] = true
	}
	for len(work) > 0 {
		i := work[0]
		work = work[1:]
		queued[i] = false

		acc := bitset.New(m)
		for _, p := range g.Incoming(i) {
			acc.InPlaceUnion(out[p])
		}
		in[i] = acc
		next := acc.Difference(kill[i]).Union(gen[i])
		if next.Equal(out[i]) {
			continue
		}
		out[i] = next
		for _, s := range g.Outgoing(i) {
			if !queued[s] {
				queued[s] = true
				work = append(work, s)
			}
		}
	}
	return sites, byVar, in
}

// distinct returns names without repeats, keeping first occurrences.
func distinct(names []string) []string {
	if len(names) < 2 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		dup := false
		for _, o := range out {
			if o == n {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return out
}
