package plan

// MissingDependency is a step referencing an id no step in the plan carries.
type MissingDependency struct {
	Step       string
	Dependency string
}

// StepGraph summarizes the dependency graph over implementation step ids.
// It is advisory: nothing rejects a plan because of what it finds.
type StepGraph struct {
	Missing    []MissingDependency
	Duplicates []string
	// Cycles holds each detected cycle as a path whose first and last ids match.
	Cycles [][]string
}

// Clean reports whether the graph has no anomalies.
func (g StepGraph) Clean() bool {
	return len(g.Missing) == 0 && len(g.Duplicates) == 0 && len(g.Cycles) == 0
}

// AnalyzeSteps inspects the dependency edges between steps.
func AnalyzeSteps(steps []ImplementationStep) StepGraph {
	var g StepGraph

	edges := make(map[string][]string, len(steps))
	var order []string
	seen := map[string]bool{}
	for _, s := range steps {
		if seen[s.ID] {
			g.Duplicates = append(g.Duplicates, s.ID)
			edges[s.ID] = append(edges[s.ID], s.Dependencies...)
			continue
		}
		seen[s.ID] = true
		order = append(order, s.ID)
		edges[s.ID] = append([]string(nil), s.Dependencies...)
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			if !seen[dep] {
				g.Missing = append(g.Missing, MissingDependency{Step: s.ID, Dependency: dep})
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(order))
	var stack []string
	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range edges[id] {
			if !seen[dep] {
				continue
			}
			switch color[dep] {
			case white:
				visit(dep)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle := append([]string(nil), stack[i:]...)
						g.Cycles = append(g.Cycles, append(cycle, dep))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}
	for _, id := range order {
		if color[id] == white {
			visit(id)
		}
	}
	return g
}
