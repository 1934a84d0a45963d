package dag

// Ready returns, in definition order, the steps that have not started and
// whose dependencies are all done.
func (g *Graph) Ready(done, started func(id string) bool) []string {
	var ready []string
	for _, id := range g.order {
		if started(id) {
			continue
		}
		ok := true
		for _, dep := range g.deps[id] {
			if !done(dep) {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// Levels groups steps with Kahn's algorithm: every step lands in a level
// strictly after all of its dependencies. Steps within a level keep
// definition order.
func (g *Graph) Levels() [][]string {
	inDegree := make(map[string]int, len(g.order))
	var queue []string
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var levels [][]string
	for len(queue) > 0 {
		levels = append(levels, queue)
		var next []string
		for _, id := range queue {
			for _, dep := range g.dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		g.sortByIndex(next)
		queue = next
	}
	return levels
}

// TopologicalOrder flattens Levels into a single order.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, 0, len(g.order))
	for _, level := range g.Levels() {
		out = append(out, level...)
	}
	return out
}

// Descendants returns every step reachable from id along dependency edges,
// in definition order.
func (g *Graph) Descendants(id string) []string {
	seen := map[string]bool{}
	stack := append([]string(nil), g.dependents[id]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, g.dependents[n]...)
	}
	out := make([]string, 0, len(seen))
	for _, s := range g.order {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}
