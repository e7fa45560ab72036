package schema

// SortTablesByFKCount orders tables so that referenced tables come before the
// tables whose foreign keys point at them. Only references between tables of
// the given slice count. Cycles are broken by a score: fewer unsatisfied
// dependencies first, and a table that sits on a two-table cycle gets a boost.
// The second result lists the tables that were placed to break a cycle.
func SortTablesByFKCount(tables []*Table) (sorted []*Table, broken []*Table) {
	deps := make(map[*Table][]*Table, len(tables))
	member := make(map[*Table]bool, len(tables))
	for _, t := range tables {
		member[t] = true
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys() {
			if ref := fk.Target(); ref != nil && ref != t && member[ref] {
				deps[t] = append(deps[t], ref)
			}
		}
	}

	processed := make(map[*Table]bool, len(tables))
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: tables whose dependencies are all placed
		for _, t := range tables {
			if processed[t] {
				continue
			}
			ready := true
			for _, d := range deps[t] {
				if !processed[d] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, t)
				processed[t] = true
				added = true
			}
		}

		// Pass 2: cycle, place the best candidate
		if !added {
			var best *Table
			bestScore := 0
			for _, t := range tables {
				if processed[t] {
					continue
				}
				score := 0
				for _, d := range deps[t] {
					if processed[d] {
						continue
					}
					score -= 100
					for _, back := range deps[d] {
						if back == t {
							score += 500
							break
						}
					}
				}
				if best == nil || score > bestScore || (score == bestScore && t.Name() < best.Name()) {
					best, bestScore = t, score
				}
			}
			sorted = append(sorted, best)
			processed[best] = true
			broken = append(broken, best)
		}
	}
	return sorted, broken
}
