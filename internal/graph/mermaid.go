package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// FactTable is drawn with its own node shape.
const FactTable = "data_catalog_entry"

// printer keeps the first write error so writers can format freely and
// check once at the end.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

// WriteMermaid writes the graph as a Mermaid flowchart, one subgraph per
// connected component. Edges point from the referencing table to the
// referenced one; an edge is labelled only when the column name differs
// from the parent table.
func WriteMermaid(w io.Writer, g *Graph) error {
	p := &printer{w: w}
	p.printf("graph LR\n")

	for i, comp := range FindComponents(g) {
		p.printf("    subgraph %s\n", mermaidID(componentName(comp, i)))
		for _, t := range comp.Tables {
			p.printf("        %s\n", mermaidNode(t))
		}

		members := make(map[string]bool, len(comp.Tables))
		for _, t := range comp.Tables {
			members[t] = true
		}
		seen := make(map[string]bool)
		for _, e := range g.Edges {
			if !members[e.ChildTable] {
				continue
			}
			key := e.ChildTable + "\x00" + e.ParentTable
			if seen[key] {
				continue
			}
			seen[key] = true
			p.printf("        %s%s%s\n", mermaidID(e.ChildTable), arrow(e.Column, e.ParentTable), mermaidID(e.ParentTable))
		}
		for _, t := range comp.Tables {
			if g.SelfRefs[t] {
				p.printf("        %s -.-> %s\n", mermaidID(t), mermaidID(t))
			}
		}
		p.printf("    end\n")
	}
	return p.err
}

func arrow(column, parent string) string {
	if column == "" || column == parent {
		return " --> "
	}
	return " -->|" + column + "| "
}

func componentName(c Component, i int) string {
	for _, t := range c.Tables {
		if t == FactTable {
			return "catalog"
		}
	}
	if len(c.Tables) == 1 {
		return c.Tables[0]
	}
	return fmt.Sprintf("group_%d", i+1)
}

func mermaidNode(table string) string {
	if table == FactTable {
		return mermaidID(table) + "[[" + table + "]]"
	}
	return mermaidID(table) + "[" + table + "]"
}

// WriteText writes a summary of the graph to w: counts, then each component
// in load order (referenced tables first) with the tables every table
// references and how many reference it.
func WriteText(w io.Writer, g *Graph) error {
	p := &printer{w: w}
	components := FindComponents(g)

	p.printf("Tables: %d\n", len(g.Tables))
	p.printf("Foreign Keys: %d\n", len(g.Edges)+len(g.SelfRefs))
	p.printf("Connected Components: %d\n", len(components))

	if all := TopoSortAll(g); all.HasCycle {
		p.printf("Circular references: %s\n", strings.Join(all.CycleTables, ", "))
	}
	if len(g.SelfRefs) > 0 {
		self := make([]string, 0, len(g.SelfRefs))
		for t := range g.SelfRefs {
			self = append(self, t)
		}
		sort.Strings(self)
		p.printf("Self-referencing tables: %s\n", strings.Join(self, ", "))
	}
	p.printf("Lookup tables: %s\n", strings.Join(g.Roots(), ", "))

	for i, comp := range components {
		p.printf("\n[%s] %d table(s)\n", componentName(comp, i), len(comp.Tables))
		sorted := TopoSort(g, comp.Tables)
		for j, t := range sorted.Complete() {
			line := fmt.Sprintf("  %2d. %s", j+1, t)
			if ps := g.Parents[t]; len(ps) > 0 {
				line += " -> " + strings.Join(ps, ", ")
			}
			if n := len(g.Children[t]); n > 0 {
				line += fmt.Sprintf(" (referenced by %d)", n)
			}
			p.printf("%s\n", line)
		}
		if sorted.HasCycle {
			p.printf("  cycle: %s\n", strings.Join(sorted.CycleTables, ", "))
		}
	}
	return p.err
}

// mermaidID converts a table name to a Mermaid-safe node ID.
func mermaidID(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}
