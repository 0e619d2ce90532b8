package orchestrator

import (
	"sort"

	"edasetup/internal/stage"
)

// Graph is an immutable, validated DAG of stages.
type Graph struct {
	stages   []stage.Stage
	index    map[string]int
	incoming [][]int
	outgoing [][]int
	order    []int
}

// NewGraph builds and validates a Graph.
//
// Validation rejects:
//   - empty or duplicate stage names
//   - dependencies on unknown stages
//   - duplicate dependencies
//   - self dependencies
//   - any cycle (direct or indirect)
func NewGraph(stages []stage.Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, invalidf("no stages")
	}

	index := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, invalidf("stage name is required")
		}
		if _, exists := index[s.Name]; exists {
			return nil, invalidf("duplicate stage name: %q", s.Name)
		}
		index[s.Name] = i
	}

	incoming := make([][]int, len(stages))
	outgoing := make([][]int, len(stages))
	for i, s := range stages {
		seen := make(map[string]bool, len(s.DependsOn))
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return nil, invalidf("self dependency: %q", s.Name)
			}
			j, ok := index[dep]
			if !ok {
				return nil, invalidf("stage %q depends on unknown stage %q", s.Name, dep)
			}
			if seen[dep] {
				return nil, invalidf("stage %q lists dependency %q twice", s.Name, dep)
			}
			seen[dep] = true
			incoming[i] = append(incoming[i], j)
			outgoing[j] = append(outgoing[j], i)
		}
	}
	for i := range outgoing {
		sort.Ints(outgoing[i])
	}

	g := &Graph{
		stages:   append([]stage.Stage(nil), stages...),
		index:    index,
		incoming: incoming,
		outgoing: outgoing,
	}
	order, err := g.topoOrder()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// topoOrder is Kahn's algorithm; among ready stages the one declared first
// is emitted first, which keeps the order deterministic.
func (g *Graph) topoOrder() ([]int, error) {
	indeg := make([]int, len(g.stages))
	for i := range g.stages {
		indeg[i] = len(g.incoming[i])
	}

	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(g.stages))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, child := range g.outgoing[next] {
			indeg[child]--
			if indeg[child] == 0 {
				ready = insertSorted(ready, child)
			}
		}
	}

	if len(order) != len(g.stages) {
		var stuck []string
		for i, d := range indeg {
			if d > 0 {
				stuck = append(stuck, g.stages[i].Name)
			}
		}
		return nil, cycleError(stuck)
	}
	return order, nil
}

func insertSorted(list []int, v int) []int {
	pos := sort.SearchInts(list, v)
	list = append(list, 0)
	copy(list[pos+1:], list[pos:])
	list[pos] = v
	return list
}

// Stage returns a stage by name.
func (g *Graph) Stage(name string) (stage.Stage, bool) {
	i, ok := g.index[name]
	if !ok {
		return stage.Stage{}, false
	}
	return g.stages[i], true
}

// TopologicalOrder returns stage names in execution order.
func (g *Graph) TopologicalOrder() []string {
	names := make([]string, 0, len(g.order))
	for _, i := range g.order {
		names = append(names, g.stages[i].Name)
	}
	return names
}

// Dependents returns every stage that depends on name directly or
// transitively, in execution order.
func (g *Graph) Dependents(name string) []string {
	start, ok := g.index[name]
	if !ok {
		return nil
	}
	reach := make([]bool, len(g.stages))
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.outgoing[cur] {
			if !reach[child] {
				reach[child] = true
				queue = append(queue, child)
			}
		}
	}

	var out []string
	for _, i := range g.order {
		if reach[i] {
			out = append(out, g.stages[i].Name)
		}
	}
	return out
}
