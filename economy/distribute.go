package economy

import "sort"

// PayoutShare is one actor's computed slice of a prize pool.
type PayoutShare struct {
	Actor  string
	Count  uint64
	Amount uint64
}

// ComputePayouts apportions pool across the given actor->count ledger,
// proportional to cells held:
//
//	share = floor(pool * count / total)
//
// Shares are returned in ascending actor order so the computation is
// deterministic. The second return value is the floor-truncation remainder
// that was not allocated; callers keep it in the pool. An empty pool or
// ledger yields no payouts. Actors with a zero count are skipped.
func ComputePayouts(pool uint64, counts map[string]uint64) ([]PayoutShare, uint64) {
	if pool == 0 || len(counts) == 0 {
		return nil, pool
	}

	var total uint64
	actors := make([]string, 0, len(counts))
	for actor, n := range counts {
		if n == 0 {
			continue
		}
		total += n
		actors = append(actors, actor)
	}
	if total == 0 {
		return nil, pool
	}
	sort.Strings(actors)

	shares := make([]PayoutShare, 0, len(actors))
	remainder := pool
	for _, actor := range actors {
		n := counts[actor]
		amount := mulDiv(pool, n, total)
		shares = append(shares, PayoutShare{Actor: actor, Count: n, Amount: amount})
		remainder -= amount
	}
	return shares, remainder
}
