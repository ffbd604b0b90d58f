package engine_test

import (
	"errors"
	"math"
	"testing"

	"gridpot/core"
)

// TestFirstPurchase walks one unowned-cell purchase: the full payment is
// split 99 to the pool (owner share redirected) and 1 to the operator, the
// cell flips to the buyer at the escalated price, and a signed receipt
// lands in the journal.
func TestFirstPurchase(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1000)

	receipt, err := f.svc.Purchase(0, 0, "gm", "alice", 100)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	if got := f.balance(t, "alice"); got != 900 {
		t.Errorf("alice balance: got %d want 900", got)
	}
	if got := f.balance(t, operatorAddr); got != 1 {
		t.Errorf("operator balance: got %d want 1", got)
	}
	if got := f.pool(t); got != 99 {
		t.Errorf("pool: got %d want 99", got)
	}

	view, err := f.svc.CellAt(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if view.Owner != "alice" || view.Price != 110 || view.Tag != "gm" {
		t.Errorf("cell after purchase: got %+v", view)
	}

	counts, err := f.state.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if counts["alice"] != 1 {
		t.Errorf("alice count: got %d want 1", counts["alice"])
	}

	if receipt.Seq != 1 || receipt.Kind != core.ReceiptPurchase {
		t.Errorf("receipt header: got %+v", receipt)
	}
	if receipt.Purchase.PoolShare != 99 || receipt.Purchase.OwnerShare != 0 || receipt.Purchase.OperatorShare != 1 {
		t.Errorf("receipt shares: got %+v", receipt.Purchase)
	}
	if err := receipt.Verify(); err != nil {
		t.Errorf("receipt signature: %v", err)
	}
	if f.journal.Tip() != 1 {
		t.Errorf("journal tip: got %d want 1", f.journal.Tip())
	}
}

// TestResalePaysPreviousOwner checks the 84/15/1 resale flow at price 110:
// the previous owner receives 92, the pool gains 17 (15% floor plus the
// rounding carry), the operator 1.
func TestResalePaysPreviousOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1000)
	f.fund(t, "bob", 1000)

	if _, err := f.svc.Purchase(1, 1, "first", "alice", 100); err != nil {
		t.Fatal(err)
	}
	receipt, err := f.svc.Purchase(1, 1, "mine now", "bob", 110)
	if err != nil {
		t.Fatalf("resale: %v", err)
	}

	if got := f.balance(t, "alice"); got != 992 { // 1000 - 100 + 92
		t.Errorf("alice balance: got %d want 992", got)
	}
	if got := f.balance(t, "bob"); got != 890 {
		t.Errorf("bob balance: got %d want 890", got)
	}
	if got := f.pool(t); got != 116 { // 99 + 17
		t.Errorf("pool: got %d want 116", got)
	}
	if got := f.balance(t, operatorAddr); got != 2 {
		t.Errorf("operator balance: got %d want 2", got)
	}

	if receipt.Purchase.PrevOwner != "alice" || receipt.Purchase.OwnerShare != 92 {
		t.Errorf("receipt: got %+v", receipt.Purchase)
	}
	if receipt.Purchase.NewPrice != 121 {
		t.Errorf("new price: got %d want 121", receipt.Purchase.NewPrice)
	}

	counts, _ := f.state.Counts()
	if counts["bob"] != 1 {
		t.Errorf("bob count: got %d want 1", counts["bob"])
	}
	if _, ok := counts["alice"]; ok {
		t.Error("alice should have no ledger entry after losing her only cell")
	}
}

// TestPurchaseValidation covers every rejection path; none may mutate
// state or consume a journal sequence.
func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10_000)
	if _, err := f.svc.Purchase(0, 0, "held", "alice", 100); err != nil {
		t.Fatal(err)
	}
	tipBefore := f.journal.Tip()

	cases := []struct {
		name    string
		x, y    int
		tag     string
		buyer   string
		amount  uint64
		wantErr error
	}{
		{"out of bounds x", 4, 0, "t", "bob", 100, core.ErrOutOfBounds},
		{"negative y", 0, -1, "t", "bob", 100, core.ErrOutOfBounds},
		{"underpayment", 1, 0, "t", "bob", 99, core.ErrInsufficientPayment},
		{"already owner", 0, 0, "t", "alice", 110, core.ErrAlreadyOwner},
	}
	for _, tc := range cases {
		if _, err := f.svc.Purchase(tc.x, tc.y, tc.tag, tc.buyer, tc.amount); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v want %v", tc.name, err, tc.wantErr)
		}
	}

	if _, err := f.svc.Purchase(1, 0, "", "bob", 100); err == nil {
		t.Error("empty tag should be rejected")
	}
	if _, err := f.svc.Purchase(1, 0, "t", "", 100); err == nil {
		t.Error("empty buyer should be rejected")
	}

	if f.journal.Tip() != tipBefore {
		t.Errorf("rejections consumed journal sequences: tip %d want %d", f.journal.Tip(), tipBefore)
	}
	view, _ := f.svc.CellAt(0, 0)
	if view.Owner != "alice" || view.Price != 110 {
		t.Errorf("cell mutated by rejected purchases: %+v", view)
	}
}

// TestPurchaseInactiveCycle rejects purchases while no cycle is running.
func TestPurchaseInactiveCycle(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1000)

	cycle, err := f.state.GetCycle()
	if err != nil {
		t.Fatal(err)
	}
	cycle.Active = false
	if err := f.state.SetCycle(cycle); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Purchase(0, 0, "t", "alice", 100); !errors.Is(err, core.ErrGameNotActive) {
		t.Errorf("got %v want ErrGameNotActive", err)
	}
}

// TestPurchaseRollsBackOnFailedDebit verifies an unfunded buyer leaves no
// trace: no cell flip, no ledger entry, no pool growth, no receipt.
func TestPurchaseRollsBackOnFailedDebit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Purchase(0, 0, "t", "pauper", 100)
	if !errors.Is(err, core.ErrTransferFailed) {
		t.Fatalf("got %v want ErrTransferFailed", err)
	}

	view, _ := f.svc.CellAt(0, 0)
	if view.Owner != "" || view.Price != 100 {
		t.Errorf("cell mutated by failed purchase: %+v", view)
	}
	counts, _ := f.state.Counts()
	if len(counts) != 0 {
		t.Errorf("ledger mutated: %v", counts)
	}
	if got := f.pool(t); got != 0 {
		t.Errorf("pool mutated: %d", got)
	}
	if f.journal.Tip() != 0 {
		t.Errorf("journal tip: got %d want 0", f.journal.Tip())
	}
}

// TestOverpaymentFullySplit splits the tendered amount, not the listed
// price, with no refund.
func TestOverpaymentFullySplit(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1000)

	receipt, err := f.svc.Purchase(0, 0, "t", "alice", 150)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, "alice"); got != 850 {
		t.Errorf("alice balance: got %d want 850", got)
	}
	// 1% of 150 floors to 1; the rest goes to the pool.
	if got := f.pool(t); got != 149 {
		t.Errorf("pool: got %d want 149", got)
	}
	// Escalation applies to the listed price, not the tendered amount.
	if receipt.Purchase.NewPrice != 110 {
		t.Errorf("new price: got %d want 110", receipt.Purchase.NewPrice)
	}
}

// TestLedgerConservation checks that money only moves, never appears or
// vanishes: balances plus the prize pool stay constant across purchases.
func TestLedgerConservation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 5000)
	f.fund(t, "bob", 5000)
	const total = 10_000

	buys := []struct {
		x, y   int
		buyer  string
		amount uint64
	}{
		{0, 0, "alice", 100},
		{1, 0, "bob", 100},
		{0, 0, "bob", 110},
		{0, 0, "alice", 121},
		{2, 2, "alice", 137}, // overpayment
	}
	for i, b := range buys {
		if _, err := f.svc.Purchase(b.x, b.y, "tag", b.buyer, b.amount); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
		sum := f.balance(t, "alice") + f.balance(t, "bob") + f.balance(t, operatorAddr) + f.pool(t)
		if sum != total {
			t.Fatalf("after purchase %d: total %d want %d", i, sum, total)
		}
	}
}

// TestPriceEscalationNeverSaturatesLedger sanity-checks the escalation
// chain stays usable far above realistic prices.
func TestPriceEscalationNeverOverflows(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", math.MaxUint64/2)
	f.fund(t, "bob", math.MaxUint64/2)

	price := uint64(100)
	buyers := []string{"alice", "bob"}
	for i := 0; i < 40; i++ {
		buyer := buyers[i%2]
		r, err := f.svc.Purchase(3, 3, "flip", buyer, price)
		if err != nil {
			t.Fatalf("flip %d at %d: %v", i, price, err)
		}
		if r.Purchase.NewPrice <= price {
			t.Fatalf("price did not escalate: %d -> %d", price, r.Purchase.NewPrice)
		}
		price = r.Purchase.NewPrice
	}
}
