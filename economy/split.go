package economy

import "fmt"

// Shares is the partition of one payment. PrevOwner + Pool + Operator
// always sums exactly to the amount that was split: the floor-truncation
// remainder (Carry, kept for reporting) is folded into Pool so every unit
// is accounted for exactly once.
type Shares struct {
	PrevOwner uint64
	Pool      uint64
	Operator  uint64
	Carry     uint64
}

// Splitter partitions a payment between the previous occupant, the prize
// pool, and the operator. Percentages are fixed at construction and must
// sum to 100. When a cell has no previous owner, the unclaimed owner share
// is redirected to the pool.
type Splitter struct {
	ownerPct    uint64
	poolPct     uint64
	operatorPct uint64
}

// NewSplitter validates that the percentages sum to exactly 100.
func NewSplitter(ownerPct, poolPct, operatorPct uint64) (*Splitter, error) {
	if ownerPct+poolPct+operatorPct != 100 {
		return nil, fmt.Errorf("split percentages %d/%d/%d must sum to 100",
			ownerPct, poolPct, operatorPct)
	}
	return &Splitter{ownerPct: ownerPct, poolPct: poolPct, operatorPct: operatorPct}, nil
}

// Split partitions amount. The full amount tendered is split, not just the
// listed price: overpayment flows into the shares, there is no refund.
func (s *Splitter) Split(amount uint64, hasPrevOwner bool) Shares {
	var sh Shares
	sh.Operator = mulDiv(amount, s.operatorPct, 100)
	if hasPrevOwner {
		sh.PrevOwner = mulDiv(amount, s.ownerPct, 100)
		sh.Pool = mulDiv(amount, s.poolPct, 100)
	} else {
		sh.Pool = mulDiv(amount, s.ownerPct+s.poolPct, 100)
	}
	sh.Carry = amount - (sh.PrevOwner + sh.Pool + sh.Operator)
	sh.Pool += sh.Carry
	return sh
}
