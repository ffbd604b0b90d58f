package economy

import "testing"

// TestComputePayoutsProportional apportions by cell count with floor
// truncation.
func TestComputePayoutsProportional(t *testing.T) {
	shares, rem := ComputePayouts(100, map[string]uint64{"alice": 3, "bob": 1})
	if len(shares) != 2 {
		t.Fatalf("got %d shares want 2", len(shares))
	}
	if shares[0].Actor != "alice" || shares[0].Amount != 75 {
		t.Errorf("alice: got %+v want 75", shares[0])
	}
	if shares[1].Actor != "bob" || shares[1].Amount != 25 {
		t.Errorf("bob: got %+v want 25", shares[1])
	}
	if rem != 0 {
		t.Errorf("remainder: got %d want 0", rem)
	}
}

// TestComputePayoutsRemainder keeps the unallocated truncation remainder.
func TestComputePayoutsRemainder(t *testing.T) {
	shares, rem := ComputePayouts(100, map[string]uint64{"a": 1, "b": 1, "c": 1})
	var paid uint64
	for _, sh := range shares {
		if sh.Amount != 33 {
			t.Errorf("%s: got %d want 33", sh.Actor, sh.Amount)
		}
		paid += sh.Amount
	}
	if rem != 1 || paid+rem != 100 {
		t.Errorf("remainder: got %d (paid %d) want 1", rem, paid)
	}
}

// TestComputePayoutsEmpty returns the pool untouched when there is nothing
// to distribute or nobody to distribute to.
func TestComputePayoutsEmpty(t *testing.T) {
	if shares, rem := ComputePayouts(0, map[string]uint64{"a": 1}); shares != nil || rem != 0 {
		t.Errorf("empty pool: got %v, %d", shares, rem)
	}
	if shares, rem := ComputePayouts(50, nil); shares != nil || rem != 50 {
		t.Errorf("empty ledger: got %v, %d", shares, rem)
	}
	if shares, rem := ComputePayouts(50, map[string]uint64{"a": 0}); shares != nil || rem != 50 {
		t.Errorf("zero counts: got %v, %d", shares, rem)
	}
}

// TestComputePayoutsDeterministic returns shares in ascending actor order.
func TestComputePayoutsDeterministic(t *testing.T) {
	counts := map[string]uint64{"zed": 1, "ann": 1, "mid": 1}
	shares, _ := ComputePayouts(300, counts)
	want := []string{"ann", "mid", "zed"}
	for i, sh := range shares {
		if sh.Actor != want[i] {
			t.Errorf("position %d: got %s want %s", i, sh.Actor, want[i])
		}
	}
}
