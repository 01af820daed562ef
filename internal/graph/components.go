package graph

import "sort"

// Component is a group of tables linked by foreign keys in either direction.
type Component struct {
	Tables []string
}

// FindComponents groups tables by undirected reachability. Tables inside
// a component are sorted and components are ordered by their first table.
func FindComponents(g *Graph) []Component {
	visited := make(map[string]bool)
	var components []Component

	for _, name := range g.Tables {
		if visited[name] {
			continue
		}
		members := reach(g, name, visited)
		sort.Strings(members)
		components = append(components, Component{Tables: members})
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i].Tables[0] < components[j].Tables[0]
	})
	return components
}

func reach(g *Graph, start string, visited map[string]bool) []string {
	queue := []string{start}
	visited[start] = true
	var result []string

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for neighbor := range g.Adjacency[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	return result
}
