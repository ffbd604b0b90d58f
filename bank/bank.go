// Package bank is the in-process payment-transfer capability: it moves
// native units between accounts stored in world state. The engine consumes
// it behind the engine.Paymaster interface; a failed debit or credit
// surfaces as core.ErrTransferFailed at the call site.
package bank

import (
	"fmt"
	"math"

	"gridpot/core"
)

// Bank moves balances on a core.State. It holds no state of its own and no
// lock: callers serialize access (the engine runs every operation under its
// service mutex).
type Bank struct {
	state core.State
}

// New creates a Bank over state.
func New(state core.State) *Bank {
	return &Bank{state: state}
}

// Balance returns the current balance of address.
func (b *Bank) Balance(address string) (uint64, error) {
	acc, err := b.state.GetAccount(address)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Debit removes amount from the account, failing if funds are insufficient.
func (b *Bank) Debit(address string, amount uint64) error {
	acc, err := b.state.GetAccount(address)
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return fmt.Errorf("insufficient funds: %s has %d, needs %d", address, acc.Balance, amount)
	}
	acc.Balance -= amount
	return b.state.SetAccount(acc)
}

// Credit adds amount to the account, failing on balance overflow.
func (b *Bank) Credit(address string, amount uint64) error {
	if address == "" {
		return fmt.Errorf("credit requires a recipient address")
	}
	acc, err := b.state.GetAccount(address)
	if err != nil {
		return err
	}
	if acc.Balance > math.MaxUint64-amount {
		return fmt.Errorf("balance overflow for %s", address)
	}
	acc.Balance += amount
	return b.state.SetAccount(acc)
}
