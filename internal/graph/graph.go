package graph

import "sort"

// Source is a set of tables whose columns may reference other tables by name.
type Source interface {
	TableNames() []string
	ForeignKeys(table string) []string
}

// Edge represents a directed edge from child to parent (FK direction).
type Edge struct {
	Column      string // FK column on the child; equals ParentTable in the catalog naming scheme
	ChildTable  string
	ParentTable string
}

// Graph is a directed graph built from FK relationships between catalog tables.
type Graph struct {
	// Tables lists the table names in the graph, sorted.
	Tables []string

	// Edges are non-self-referential FK edges (child → parent)
	Edges []Edge

	// SelfRefs holds tables with a column named after themselves
	SelfRefs map[string]bool

	// Children maps parent name → list of child names
	Children map[string][]string

	// Parents maps child name → list of parent names
	Parents map[string][]string

	// adjacency for undirected connectivity
	Adjacency map[string]map[string]bool

	present map[string]bool
}

// Build constructs a directed graph from the tables of src.
// Tables in excludeSet are skipped, and so are FKs into them.
func Build(src Source, excludeSet map[string]bool) *Graph {
	g := &Graph{
		SelfRefs:  make(map[string]bool),
		Children:  make(map[string][]string),
		Parents:   make(map[string][]string),
		Adjacency: make(map[string]map[string]bool),
		present:   make(map[string]bool),
	}

	for _, name := range src.TableNames() {
		if excludeSet[name] {
			continue
		}
		g.Tables = append(g.Tables, name)
		g.present[name] = true
		g.Adjacency[name] = make(map[string]bool)
	}
	sort.Strings(g.Tables)

	for _, name := range g.Tables {
		for _, parent := range src.ForeignKeys(name) {
			if !g.present[parent] {
				continue // parent table not in scope
			}
			if parent == name {
				g.SelfRefs[name] = true
				continue
			}
			g.Edges = append(g.Edges, Edge{Column: parent, ChildTable: name, ParentTable: parent})
			g.Children[parent] = append(g.Children[parent], name)
			g.Parents[name] = append(g.Parents[name], parent)
			g.Adjacency[name][parent] = true
			g.Adjacency[parent][name] = true
		}
	}

	return g
}

// Has reports whether the table is part of the graph.
func (g *Graph) Has(table string) bool {
	return g.present[table]
}

// Roots returns tables that reference no other table, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.Tables {
		if len(g.Parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}
