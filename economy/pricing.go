// Package economy implements the pure money arithmetic of the game:
// price escalation, payment splitting, and prize apportionment. Everything
// is integer-only uint64 math; floor truncation is the rounding rule
// throughout.
package economy

import (
	"fmt"
	"math"
	"math/bits"
)

// mulDiv computes floor(a*b/den) with a 128-bit intermediate so the product
// cannot overflow. Results that would not fit a uint64 saturate at
// math.MaxUint64.
func mulDiv(a, b, den uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= den {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// Pricer maps a cell's current price to its next price after a purchase:
//
//	next = floor(current * num / den)
//
// Repeated compounding with floor truncation slightly under-escalates
// versus exact multiplication; this is the deliberate, reproducible
// behavior. With the default 110/100 ratio each purchase raises the price
// by 10%.
type Pricer struct {
	num, den uint64
}

// NewPricer validates the multiplier ratio. num must exceed den so prices
// strictly increase, which the rest of the ledger relies on.
func NewPricer(num, den uint64) (*Pricer, error) {
	if den == 0 {
		return nil, fmt.Errorf("price multiplier denominator must be > 0")
	}
	if num <= den {
		return nil, fmt.Errorf("price multiplier %d/%d must be > 1", num, den)
	}
	return &Pricer{num: num, den: den}, nil
}

// Next returns the escalated price. Saturates at math.MaxUint64 rather
// than wrapping.
func (p *Pricer) Next(current uint64) uint64 {
	return mulDiv(current, p.num, p.den)
}

// Escalates reports whether Next would strictly increase price. Used at
// config validation: floor(p*num/den) > p iff p*(num-den) >= den, and once
// that holds for the initial price it holds for every later price.
func (p *Pricer) Escalates(price uint64) bool {
	return mulDiv(price, p.num-p.den, 1) >= p.den
}
