// Package core defines the domain types and interfaces of the gridpot
// ledger: cells, accounts, game cycles, receipts, and the State contract
// that storage implements.
package core

// Cell is one addressable unit of the grid. Owner is an actor address;
// the empty string means unowned. Tag is an opaque payload (the UI uses it
// for color) with no semantics in the ledger beyond "non-empty when owned".
// Cycle records which game cycle last wrote the cell: a cell whose Cycle is
// older than the current cycle is treated as fresh (unowned, at the initial
// price) the next time it is touched, and physically rewritten at that
// moment. This lazy reset avoids an O(width*height) sweep on every cycle
// boundary.
type Cell struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Owner string `json:"owner,omitempty"`
	Price uint64 `json:"price"`
	Tag   string `json:"tag,omitempty"`
	Cycle uint64 `json:"cycle"`
}

// CellView is the read-only projection of a cell returned to callers.
type CellView struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Owner string `json:"owner,omitempty"`
	Price uint64 `json:"price"`
	Tag   string `json:"tag,omitempty"`
}

// Coord is a grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Account holds an actor's native-unit balance. Address is the 40-char hex
// actor address.
type Account struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// Cycle is the persisted game-cycle record. Exactly one cycle is current at
// any time; ID increments on every transition. Timestamps are unix nanos.
type Cycle struct {
	ID             uint64 `json:"id"`
	Active         bool   `json:"active"`
	StartedAt      int64  `json:"started_at"`
	LastActivityAt int64  `json:"last_activity_at"`
	WindowNanos    int64  `json:"window_nanos"`
	PrizePool      uint64 `json:"prize_pool"`
}

// CycleStatus is the caller-facing view of the current cycle.
type CycleStatus struct {
	ID            uint64 `json:"id"`
	Active        bool   `json:"active"`
	RemainingNano int64  `json:"remaining_nanos"`
	PrizePool     uint64 `json:"prize_pool"`
}
