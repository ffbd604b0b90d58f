// Package engine coordinates the gridpot ledger: it owns the world state
// behind a single mutex and exposes the purchase, query, and cycle
// operations. Every operation appears to execute in total order; nothing
// else mutates cells, counts, accounts, or the cycle record.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gridpot/core"
	"gridpot/crypto"
	"gridpot/economy"
	"gridpot/events"
)

// Paymaster is the payment-transfer capability the engine consumes. The
// bank package implements it over world state. Implementations must not
// call back into the Service: they run while its lock is held.
type Paymaster interface {
	Debit(address string, amount uint64) error
	Credit(address string, amount uint64) error
	Balance(address string) (uint64, error)
}

// Params are the immutable game constants, validated at construction.
type Params struct {
	Width        int
	Height       int
	InitialPrice uint64
	PriceNum     uint64 // escalation multiplier numerator
	PriceDen     uint64 // escalation multiplier denominator
	OwnerPct     uint64 // previous-owner share of each payment
	PoolPct      uint64 // prize-pool share
	OperatorPct  uint64 // operator fee
	Window       time.Duration
	Operator     string // address receiving the operator fee
}

// Service is the coordinating ledger object. All state access, reads
// included, happens under mu: the StateDB write buffer is not safe for
// concurrent use.
type Service struct {
	mu       sync.Mutex
	params   Params
	state    core.State
	pricer   *economy.Pricer
	splitter *economy.Splitter
	bank     Paymaster
	journal  *core.Journal
	emitter  *events.Emitter
	signer   crypto.PrivateKey
	now      func() time.Time
}

// NewService validates params and wires the service. Invalid game constants
// (percentages not summing to 100, a non-escalating multiplier, a degenerate
// grid) are configuration errors rejected here, never at call time. now may
// be nil, in which case time.Now is used; tests inject a fake clock.
func NewService(
	params Params,
	state core.State,
	bank Paymaster,
	journal *core.Journal,
	emitter *events.Emitter,
	signer crypto.PrivateKey,
	now func() time.Time,
) (*Service, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, fmt.Errorf("grid %dx%d: dimensions must be positive", params.Width, params.Height)
	}
	if params.InitialPrice == 0 {
		return nil, errors.New("initial price must be > 0")
	}
	if params.Window <= 0 {
		return nil, errors.New("inactivity window must be > 0")
	}
	if params.Operator == "" {
		return nil, errors.New("operator address required")
	}
	pricer, err := economy.NewPricer(params.PriceNum, params.PriceDen)
	if err != nil {
		return nil, err
	}
	if !pricer.Escalates(params.InitialPrice) {
		return nil, fmt.Errorf("multiplier %d/%d does not escalate initial price %d",
			params.PriceNum, params.PriceDen, params.InitialPrice)
	}
	splitter, err := economy.NewSplitter(params.OwnerPct, params.PoolPct, params.OperatorPct)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		params:   params,
		state:    state,
		pricer:   pricer,
		splitter: splitter,
		bank:     bank,
		journal:  journal,
		emitter:  emitter,
		signer:   signer,
		now:      now,
	}, nil
}

// Params returns the game constants.
func (s *Service) Params() Params {
	return s.params
}

func (s *Service) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.params.Width && y < s.params.Height
}

// resolveCell applies the lazy-reset rule: a cell that was never written,
// or was last written by an older cycle, reads as fresh. The returned cell
// is a private copy the caller may mutate.
func (s *Service) resolveCell(x, y int, cycleID uint64) (*core.Cell, error) {
	c, err := s.state.GetCell(x, y)
	if errors.Is(err, core.ErrNotFound) || (err == nil && c.Cycle < cycleID) {
		return &core.Cell{X: x, Y: y, Price: s.params.InitialPrice, Cycle: cycleID}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CellAt returns the caller-facing view of a cell, lazy reset applied.
func (s *Service) CellAt(x, y int) (*core.CellView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inBounds(x, y) {
		return nil, core.ErrOutOfBounds
	}
	cycle, err := s.state.GetCycle()
	if err != nil {
		return nil, fmt.Errorf("load cycle: %w", err)
	}
	c, err := s.resolveCell(x, y, cycle.ID)
	if err != nil {
		return nil, err
	}
	return &core.CellView{X: c.X, Y: c.Y, Owner: c.Owner, Price: c.Price, Tag: c.Tag}, nil
}

// CycleState returns the current cycle's caller-facing status.
func (s *Service) CycleState() (*core.CycleStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycle, err := s.state.GetCycle()
	if err != nil {
		return nil, fmt.Errorf("load cycle: %w", err)
	}
	return &core.CycleStatus{
		ID:            cycle.ID,
		Active:        cycle.Active,
		RemainingNano: remaining(cycle, s.now().UnixNano()),
		PrizePool:     cycle.PrizePool,
	}, nil
}

// Balance returns an actor's account balance.
func (s *Service) Balance(address string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Balance(address)
}

// remaining returns nanoseconds until the inactivity deadline, 0 if the
// cycle is inactive or the window already elapsed.
func remaining(c *core.Cycle, nowNanos int64) int64 {
	if !c.Active {
		return 0
	}
	left := c.WindowNanos - (nowNanos - c.LastActivityAt)
	if left < 0 {
		return 0
	}
	return left
}
