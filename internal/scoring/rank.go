package scoring

import "sort"

// Rank returns a new slice ordered working-first, then by composite score
// descending. Ties keep their input order. Nil entries are dropped.
func Rank(results []*EvaluatedCandidate) []*EvaluatedCandidate {
	ranked := make([]*EvaluatedCandidate, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if wa, wb := a.IsWorking(), b.IsWorking(); wa != wb {
			return wa
		}
		return a.CompositeScore > b.CompositeScore
	})
	return ranked
}
