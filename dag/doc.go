// Package dag builds the dependency graph of a pipeline and answers the
// scheduling questions the coordinator asks: which steps are ready, in what
// levels the graph can run, and what lies downstream of a step.
//
// Edges come from three sources: explicit depends_on lists, the sequential
// default (a step without depends_on follows the preceding enabled step), and
// condition branches (every branch target depends on its condition step).
//
//	g, err := dag.Build(p)
//	if err != nil {
//		return err // a DEFINITION_ERROR naming the cycle or dangling reference
//	}
//	for _, level := range g.Levels() {
//		...
//	}
package dag
