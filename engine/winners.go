package engine

import "sort"

// ResolveWinners returns every actor whose owned-cell count equals the
// maximum across the ledger, in ascending address order. Ties are
// preserved: multiple simultaneous winners are expected. An empty ledger
// yields an empty set.
func ResolveWinners(counts map[string]uint64) []string {
	var max uint64
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	if max == 0 {
		return nil
	}
	var winners []string
	for actor, n := range counts {
		if n == max {
			winners = append(winners, actor)
		}
	}
	sort.Strings(winners)
	return winners
}
