package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/pipeline"
)

// Graph is the validated dependency graph of one pipeline. It is immutable
// once built and safe for concurrent reads.
type Graph struct {
	order      []string
	index      map[string]int
	steps      map[string]*pipeline.StepDefinition
	deps       map[string][]string
	dependents map[string][]string
}

// Build derives the graph of p and validates it: every reference must exist
// and the graph must be acyclic. Failures are definition errors.
func Build(p *pipeline.Pipeline) (*Graph, error) {
	g := &Graph{
		order:      make([]string, 0, len(p.Steps)),
		index:      make(map[string]int, len(p.Steps)),
		steps:      make(map[string]*pipeline.StepDefinition, len(p.Steps)),
		deps:       make(map[string][]string, len(p.Steps)),
		dependents: make(map[string][]string, len(p.Steps)),
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		if _, dup := g.steps[s.ID]; dup {
			return nil, errors.Definition(fmt.Sprintf("duplicate step id %q", s.ID)).WithDetail("step_id", s.ID)
		}
		g.index[s.ID] = i
		g.order = append(g.order, s.ID)
		g.steps[s.ID] = s
	}

	previous := ""
	for _, id := range g.order {
		s := g.steps[id]
		if s.DependsOn == nil {
			if previous != "" {
				g.addEdge(previous, id)
			}
		} else {
			for _, dep := range s.DependsOn {
				if _, ok := g.steps[dep]; !ok {
					return nil, errors.Definition(fmt.Sprintf("step %s depends on unknown step %q", id, dep)).
						WithDetail("step_id", id)
				}
				g.addEdge(dep, id)
			}
		}
		if cond, ok := s.Config.(*pipeline.ConditionConfig); ok {
			for _, target := range cond.Targets() {
				if _, ok := g.steps[target]; !ok {
					return nil, errors.Definition(fmt.Sprintf("condition %s targets unknown step %q", id, target)).
						WithDetail("step_id", id)
				}
				g.addEdge(id, target)
			}
		}
		if s.IsEnabled() {
			previous = id
		}
	}

	for _, id := range g.order {
		g.sortByIndex(g.deps[id])
		g.sortByIndex(g.dependents[id])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, errors.Definition("dependency cycle: "+strings.Join(cycle, " -> ")).
			WithDetail("cycle", cycle)
	}
	return g, nil
}

func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.deps[to] {
		if existing == from {
			return
		}
	}
	g.deps[to] = append(g.deps[to], from)
	g.dependents[from] = append(g.dependents[from], to)
}

func (g *Graph) sortByIndex(ids []string) {
	sort.SliceStable(ids, func(a, b int) bool { return g.index[ids[a]] < g.index[ids[b]] })
}

const (
	white = iota // unvisited
	grey         // on the current path
	black        // fully explored
)

// findCycle runs a three-color DFS along dependency edges and returns the
// first cycle found as a closed path, or nil.
func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.order))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		path = append(path, id)
		for _, next := range g.dependents[id] {
			switch color[next] {
			case grey:
				for i, s := range path {
					if s == next {
						cycle = append(append([]string{}, path[i:]...), next)
						break
					}
				}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// Order returns step ids in definition order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.order) }

// Step returns the definition of id, or nil.
func (g *Graph) Step(id string) *pipeline.StepDefinition {
	return g.steps[id]
}

// Deps returns the effective dependencies of id in definition order.
func (g *Graph) Deps(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the steps that depend directly on id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}
