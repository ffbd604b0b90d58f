package economy

import "testing"

// TestSplitterValidation rejects percentage sets that do not sum to 100.
func TestSplitterValidation(t *testing.T) {
	if _, err := NewSplitter(84, 23, 1); err == nil {
		t.Error("84/23/1 sums to 108, should be rejected")
	}
	if _, err := NewSplitter(50, 50, 50); err == nil {
		t.Error("oversubscribed split should be rejected")
	}
	if _, err := NewSplitter(84, 15, 1); err != nil {
		t.Errorf("84/15/1 should be valid: %v", err)
	}
}

// TestSplitWithPrevOwner checks the canonical 84/15/1 resale split of 110:
// 92 to the previous owner, 16 to the pool plus the carry of 1, 1 to the
// operator.
func TestSplitWithPrevOwner(t *testing.T) {
	s, err := NewSplitter(84, 15, 1)
	if err != nil {
		t.Fatal(err)
	}
	sh := s.Split(110, true)
	if sh.PrevOwner != 92 {
		t.Errorf("prev owner: got %d want 92", sh.PrevOwner)
	}
	if sh.Operator != 1 {
		t.Errorf("operator: got %d want 1", sh.Operator)
	}
	if sh.Carry != 1 {
		t.Errorf("carry: got %d want 1", sh.Carry)
	}
	if sh.Pool != 17 {
		t.Errorf("pool: got %d want 17 (16 + carry 1)", sh.Pool)
	}
}

// TestSplitUnowned redirects the unclaimed owner share to the pool: a
// first purchase of 100 yields 99 to the pool and 1 to the operator.
func TestSplitUnowned(t *testing.T) {
	s, _ := NewSplitter(84, 15, 1)
	sh := s.Split(100, false)
	if sh.PrevOwner != 0 {
		t.Errorf("prev owner: got %d want 0", sh.PrevOwner)
	}
	if sh.Pool != 99 {
		t.Errorf("pool: got %d want 99", sh.Pool)
	}
	if sh.Operator != 1 {
		t.Errorf("operator: got %d want 1", sh.Operator)
	}
}

// TestSplitExact verifies every unit of the amount is accounted for
// exactly once, for both ownership cases, across a range of amounts.
func TestSplitExact(t *testing.T) {
	s, _ := NewSplitter(84, 15, 1)
	for amount := uint64(1); amount <= 5000; amount++ {
		for _, owned := range []bool{true, false} {
			sh := s.Split(amount, owned)
			if sum := sh.PrevOwner + sh.Pool + sh.Operator; sum != amount {
				t.Fatalf("Split(%d, %v): shares sum to %d", amount, owned, sum)
			}
		}
	}
}

// TestSplitOverpayment splits the full tendered amount, not the listed
// price.
func TestSplitOverpayment(t *testing.T) {
	s, _ := NewSplitter(84, 15, 1)
	sh := s.Split(150, true)
	if sum := sh.PrevOwner + sh.Pool + sh.Operator; sum != 150 {
		t.Errorf("overpayment not fully split: sum %d want 150", sum)
	}
	if sh.PrevOwner != 126 {
		t.Errorf("prev owner: got %d want 126", sh.PrevOwner)
	}
}
