package engine

import (
	"errors"
	"fmt"
	"log"

	"gridpot/core"
	"gridpot/events"
)

// Purchase processes one escalating-price purchase end to end:
// validate, price, split, mutate, disburse. Validation errors return before
// any mutation; once mutation begins, a failed transfer rolls the whole
// operation back via the state snapshot. On success the receipt is
// journaled before the state commit, following the persist-then-flush
// order, and the purchase event fires after both.
func (s *Service) Purchase(x, y int, tag, buyer string, amount uint64) (*core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ---- validate ----
	cycle, err := s.state.GetCycle()
	if err != nil {
		return nil, fmt.Errorf("load cycle: %w", err)
	}
	if !cycle.Active {
		return nil, core.ErrGameNotActive
	}
	if !s.inBounds(x, y) {
		return nil, core.ErrOutOfBounds
	}
	if tag == "" {
		return nil, errors.New("tag must not be empty")
	}
	if buyer == "" {
		return nil, errors.New("buyer address required")
	}

	cell, err := s.resolveCell(x, y, cycle.ID)
	if err != nil {
		return nil, err
	}
	if amount < cell.Price {
		return nil, fmt.Errorf("%w: price %d, tendered %d", core.ErrInsufficientPayment, cell.Price, amount)
	}
	if cell.Owner == buyer {
		return nil, core.ErrAlreadyOwner
	}

	// ---- price & split ----
	prevOwner := cell.Owner
	newPrice := s.pricer.Next(cell.Price)
	shares := s.splitter.Split(amount, prevOwner != "")

	snapID, err := s.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	// ---- mutate, then disburse ----
	if err := s.applyPurchase(cycle, cell, buyer, tag, newPrice, amount, shares.PrevOwner, shares.Operator, shares.Pool); err != nil {
		if revertErr := s.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert after purchase failure: %w (revert: %v)", err, revertErr)
		}
		return nil, err
	}

	// ---- journal & commit ----
	receipt := &core.Receipt{
		Seq:       s.journal.NextSeq(),
		Kind:      core.ReceiptPurchase,
		Cycle:     cycle.ID,
		Timestamp: s.now().UnixNano(),
		Purchase: &core.PurchaseRecord{
			X:             x,
			Y:             y,
			Buyer:         buyer,
			PrevOwner:     prevOwner,
			Tag:           tag,
			AmountPaid:    amount,
			OwnerShare:    shares.PrevOwner,
			PoolShare:     shares.Pool,
			OperatorShare: shares.Operator,
			NewPrice:      newPrice,
		},
	}
	// Digest the write buffer BEFORE flushing so a journal failure leaves
	// nothing persisted.
	receipt.StateRoot = s.state.ComputeRoot()
	receipt.Sign(s.signer)

	if err := s.journal.Append(receipt); err != nil {
		if revertErr := s.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("journal append: %w (revert: %v)", err, revertErr)
		}
		return nil, fmt.Errorf("journal append: %w", err)
	}
	if err := s.state.Commit(); err != nil {
		log.Fatalf("[engine] FATAL: receipt %d journaled but state commit failed: %v", receipt.Seq, err)
	}

	s.emitter.Emit(events.Event{
		Type:  events.EventCellPurchased,
		Seq:   receipt.Seq,
		Cycle: cycle.ID,
		Data: map[string]any{
			"x":          x,
			"y":          y,
			"buyer":      buyer,
			"prev_owner": prevOwner,
			"tag":        tag,
			"amount":     amount,
			"new_price":  newPrice,
		},
	})
	return receipt, nil
}

// applyPurchase performs the mutate and disburse steps inside the snapshot.
// Ledger counters move exactly once per purchase: decrement the previous
// owner (if any), increment the buyer.
func (s *Service) applyPurchase(
	cycle *core.Cycle,
	cell *core.Cell,
	buyer, tag string,
	newPrice, amount, ownerShare, operatorShare, poolShare uint64,
) error {
	prevOwner := cell.Owner

	if prevOwner != "" {
		n, err := s.state.GetCount(prevOwner)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("ledger corrupt: %s owns %d,%d but has zero count", prevOwner, cell.X, cell.Y)
		}
		if err := s.state.SetCount(prevOwner, n-1); err != nil {
			return err
		}
	}
	n, err := s.state.GetCount(buyer)
	if err != nil {
		return err
	}
	if err := s.state.SetCount(buyer, n+1); err != nil {
		return err
	}

	cell.Owner = buyer
	cell.Price = newPrice
	cell.Tag = tag
	cell.Cycle = cycle.ID
	if err := s.state.SetCell(cell); err != nil {
		return err
	}

	cycle.LastActivityAt = s.now().UnixNano()
	cycle.PrizePool += poolShare
	if err := s.state.SetCycle(cycle); err != nil {
		return err
	}

	// Disburse only after internal state is finalized. The paymaster runs
	// under the service lock and cannot reenter Purchase.
	if err := s.bank.Debit(buyer, amount); err != nil {
		return fmt.Errorf("%w: debit buyer: %v", core.ErrTransferFailed, err)
	}
	if prevOwner != "" && ownerShare > 0 {
		if err := s.bank.Credit(prevOwner, ownerShare); err != nil {
			return fmt.Errorf("%w: credit previous owner: %v", core.ErrTransferFailed, err)
		}
	}
	if operatorShare > 0 {
		if err := s.bank.Credit(s.params.Operator, operatorShare); err != nil {
			return fmt.Errorf("%w: credit operator: %v", core.ErrTransferFailed, err)
		}
	}
	return nil
}
