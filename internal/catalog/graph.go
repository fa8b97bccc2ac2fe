package catalog

import (
	"fmt"
	"sort"
)

// topoOrder runs Kahn's algorithm over the prerequisite graph. The ready
// set is kept sorted so the resulting order is deterministic. Prerequisite
// IDs that do not resolve to a loaded topic are ignored for ordering; the
// selector treats them as satisfied.
func topoOrder(topics map[string]Topic) ([]string, error) {
	indegree := make(map[string]int, len(topics))
	dependents := make(map[string][]string, len(topics))

	for id := range topics {
		indegree[id] = 0
	}
	for id, t := range topics {
		for _, pre := range t.Prerequisites {
			if _, known := topics[pre]; !known {
				continue
			}
			indegree[id]++
			dependents[pre] = append(dependents[pre], id)
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(topics))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		changed := false
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}

	if len(order) != len(topics) {
		return nil, fmt.Errorf("prerequisite graph contains a cycle (%d of %d topics ordered)", len(order), len(topics))
	}
	return order, nil
}
