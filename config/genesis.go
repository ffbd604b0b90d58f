package config

import (
	"errors"
	"fmt"
	"time"

	"gridpot/core"
)

// InitState seeds a fresh database: it credits the genesis allocation and
// opens cycle 1. A database that already holds a cycle record is left
// untouched, so restarts preserve all invariants. Returns true if seeding
// happened.
func InitState(cfg *Config, state core.State, now time.Time) (bool, error) {
	_, err := state.GetCycle()
	if err == nil {
		return false, nil // existing world
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, fmt.Errorf("probe cycle record: %w", err)
	}

	for address, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{Address: address, Balance: balance}
		if err := state.SetAccount(acc); err != nil {
			return false, err
		}
	}

	nanos := now.UnixNano()
	first := &core.Cycle{
		ID:             1,
		Active:         true,
		StartedAt:      nanos,
		LastActivityAt: nanos,
		WindowNanos:    cfg.Game.Window().Nanoseconds(),
		PrizePool:      0,
	}
	if err := state.SetCycle(first); err != nil {
		return false, err
	}
	if err := state.Commit(); err != nil {
		return false, fmt.Errorf("commit genesis state: %w", err)
	}
	return true, nil
}
