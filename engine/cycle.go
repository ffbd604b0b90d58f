package engine

import (
	"fmt"
	"log"

	"gridpot/core"
	"gridpot/economy"
	"gridpot/events"
)

// TryEndCycle ends the current cycle if its inactivity window has elapsed
// and opens the next one. It returns false without touching anything when
// the deadline has not passed, so any caller may invoke it at any time:
// the first call past the deadline settles, later calls see the fresh
// cycle and no-op.
//
// Settlement order: resolve the winner set, apportion the prize pool over
// it, credit each winner (individually best-effort: a failed payout is
// reported and its amount returns to the pool), clear the ownership
// ledger, then open cycle N+1. Cells are not swept; the lazy-reset rule
// retires them on next touch. The whole transition is one journal entry
// and one state commit.
func (s *Service) TryEndCycle() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixNano()
	cycle, err := s.state.GetCycle()
	if err != nil {
		return false, fmt.Errorf("load cycle: %w", err)
	}
	if !shouldEnd(cycle, now) {
		return false, nil
	}

	snapID, err := s.state.Snapshot()
	if err != nil {
		return false, fmt.Errorf("snapshot: %w", err)
	}

	receipt, payoutEvents, err := s.settle(cycle, now)
	if err != nil {
		if revertErr := s.state.RevertToSnapshot(snapID); revertErr != nil {
			return false, fmt.Errorf("revert after settlement failure: %w (revert: %v)", err, revertErr)
		}
		return false, err
	}

	receipt.StateRoot = s.state.ComputeRoot()
	receipt.Sign(s.signer)
	if err := s.journal.Append(receipt); err != nil {
		if revertErr := s.state.RevertToSnapshot(snapID); revertErr != nil {
			return false, fmt.Errorf("journal append: %w (revert: %v)", err, revertErr)
		}
		return false, fmt.Errorf("journal append: %w", err)
	}
	if err := s.state.Commit(); err != nil {
		log.Fatalf("[engine] FATAL: receipt %d journaled but state commit failed: %v", receipt.Seq, err)
	}

	st := receipt.Settlement
	s.emitter.Emit(events.Event{
		Type:  events.EventCycleEnded,
		Seq:   receipt.Seq,
		Cycle: cycle.ID,
		Data: map[string]any{
			"winners":      st.Winners,
			"pool":         st.PoolBefore,
			"pool_carried": st.PoolCarried,
		},
	})
	for _, ev := range payoutEvents {
		ev.Seq = receipt.Seq
		s.emitter.Emit(ev)
	}
	s.emitter.Emit(events.Event{
		Type:  events.EventCycleStarted,
		Seq:   receipt.Seq,
		Cycle: st.NextCycle,
		Data:  map[string]any{"window_nanos": s.params.Window.Nanoseconds()},
	})

	log.Printf("[engine] cycle %d settled: %d winner(s), pool %d, carried %d",
		cycle.ID, len(st.Winners), st.PoolBefore, st.PoolCarried)
	return true, nil
}

// shouldEnd reports whether the cycle's inactivity deadline has passed.
func shouldEnd(c *core.Cycle, nowNanos int64) bool {
	return c.Active && nowNanos-c.LastActivityAt >= c.WindowNanos
}

// settle performs the state mutation of a cycle transition inside the
// caller's snapshot and builds the settlement receipt.
func (s *Service) settle(cycle *core.Cycle, nowNanos int64) (*core.Receipt, []events.Event, error) {
	counts, err := s.state.Counts()
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	winners := ResolveWinners(counts)

	winnerCounts := make(map[string]uint64, len(winners))
	for _, w := range winners {
		winnerCounts[w] = counts[w]
	}
	shares, carried := economy.ComputePayouts(cycle.PrizePool, winnerCounts)

	payouts := make([]core.Payout, 0, len(shares))
	var payoutEvents []events.Event
	for _, sh := range shares {
		p := core.Payout{Actor: sh.Actor, Count: sh.Count, Amount: sh.Amount, Paid: true}
		if err := s.bank.Credit(sh.Actor, sh.Amount); err != nil {
			// Individually best-effort: report, return the amount to
			// the pool, keep settling the rest.
			p.Paid = false
			p.Error = err.Error()
			carried += sh.Amount
			payoutEvents = append(payoutEvents, events.Event{
				Type:  events.EventPayoutFailed,
				Cycle: cycle.ID,
				Data:  map[string]any{"actor": sh.Actor, "amount": sh.Amount, "error": err.Error()},
			})
		} else {
			payoutEvents = append(payoutEvents, events.Event{
				Type:  events.EventPrizePaid,
				Cycle: cycle.ID,
				Data:  map[string]any{"actor": sh.Actor, "amount": sh.Amount},
			})
		}
		payouts = append(payouts, p)
	}

	if err := s.state.ClearCounts(); err != nil {
		return nil, nil, fmt.Errorf("clear ledger: %w", err)
	}

	next := &core.Cycle{
		ID:             cycle.ID + 1,
		Active:         true,
		StartedAt:      nowNanos,
		LastActivityAt: nowNanos,
		WindowNanos:    s.params.Window.Nanoseconds(),
		PrizePool:      carried,
	}
	if err := s.state.SetCycle(next); err != nil {
		return nil, nil, err
	}

	receipt := &core.Receipt{
		Seq:       s.journal.NextSeq(),
		Kind:      core.ReceiptSettlement,
		Cycle:     cycle.ID,
		Timestamp: nowNanos,
		Settlement: &core.SettlementRecord{
			Winners:     winners,
			Payouts:     payouts,
			PoolBefore:  cycle.PrizePool,
			PoolCarried: carried,
			NextCycle:   next.ID,
		},
	}
	return receipt, payoutEvents, nil
}
