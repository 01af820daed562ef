package graph

import "fmt"

// TopoResult holds the result of topological sorting.
type TopoResult struct {
	// Order lists tables parents first.
	Order []string
	// HasCycle is true if the graph contains a cycle.
	HasCycle bool
	// CycleTables lists tables left unsorted because of cycles, in input order.
	CycleTables []string
}

// Complete returns Order followed by any cycle tables, so every input table appears once.
func (r TopoResult) Complete() []string {
	out := make([]string, 0, len(r.Order)+len(r.CycleTables))
	out = append(out, r.Order...)
	return append(out, r.CycleTables...)
}

// Reverse returns Complete in reverse: children before parents.
func (r TopoResult) Reverse() []string {
	all := r.Complete()
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all
}

// TopoSort runs Kahn's algorithm over a subset of the graph's tables.
// Ties are broken by input order, so the result is deterministic for a sorted input.
func TopoSort(g *Graph, tables []string) TopoResult {
	inSubset := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSubset[t] = true
	}

	pending := make(map[string]int, len(tables))
	below := make(map[string][]string)
	for _, t := range tables {
		for _, p := range g.Parents[t] {
			if inSubset[p] {
				pending[t]++
				below[p] = append(below[p], t)
			}
		}
	}

	var queue []string
	for _, t := range tables {
		if pending[t] == 0 {
			queue = append(queue, t)
		}
	}

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, child := range below[node] {
			pending[child]--
			if pending[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	result := TopoResult{Order: order}
	if len(order) < len(tables) {
		result.HasCycle = true
		for _, t := range tables {
			if pending[t] > 0 {
				result.CycleTables = append(result.CycleTables, t)
			}
		}
	}
	return result
}

// TopoSortAll sorts every table in the graph.
func TopoSortAll(g *Graph) TopoResult {
	return TopoSort(g, g.Tables)
}

// ValidateCycles returns an error naming the tables caught in FK cycles.
func ValidateCycles(result TopoResult) error {
	if !result.HasCycle {
		return nil
	}
	return fmt.Errorf("circular foreign keys among tables: %v", result.CycleTables)
}
