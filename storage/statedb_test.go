package storage_test

import (
	"errors"
	"testing"

	"gridpot/core"
	"gridpot/internal/testutil"
	"gridpot/storage"
)

// TestStateDBCellRoundtrip stores and reloads a cell through the write
// buffer and after a commit.
func TestStateDBCellRoundtrip(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)

	if _, err := s.GetCell(1, 2); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing cell: got %v want ErrNotFound", err)
	}

	c := &core.Cell{X: 1, Y: 2, Owner: "alice", Price: 110, Tag: "hi", Cycle: 1}
	if err := s.SetCell(c); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCell(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *c {
		t.Errorf("buffered read: got %+v want %+v", got, c)
	}

	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	// A fresh StateDB over the same DB must see the committed cell.
	got, err = storage.NewStateDB(db).GetCell(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "alice" {
		t.Errorf("persisted read: got %+v", got)
	}
}

// TestStateDBCounts verifies the zero-count-deletes-entry rule.
func TestStateDBCounts(t *testing.T) {
	s := testutil.NewStateDB()

	if n, err := s.GetCount("ghost"); err != nil || n != 0 {
		t.Errorf("unknown actor: got %d, %v", n, err)
	}
	if err := s.SetCount("alice", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCount("bob", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCount("bob", 0); err != nil {
		t.Fatal(err)
	}

	counts, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts["alice"] != 3 {
		t.Errorf("counts: got %v", counts)
	}

	if err := s.ClearCounts(); err != nil {
		t.Fatal(err)
	}
	counts, _ = s.Counts()
	if len(counts) != 0 {
		t.Errorf("counts after clear: got %v", counts)
	}
}

// TestStateDBAccountZeroValue returns an empty account for unknown
// addresses instead of an error.
func TestStateDBAccountZeroValue(t *testing.T) {
	s := testutil.NewStateDB()
	acc, err := s.GetAccount("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if acc.Address != "nobody" || acc.Balance != 0 {
		t.Errorf("zero account: got %+v", acc)
	}

	acc.Balance = 500
	if err := s.SetAccount(acc); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetAccount("nobody")
	if got.Balance != 500 {
		t.Errorf("balance: got %d want 500", got.Balance)
	}
}

// TestStateDBSnapshotRevert rolls the write buffer back to a snapshot,
// including deletions made after it.
func TestStateDBSnapshotRevert(t *testing.T) {
	s := testutil.NewStateDB()
	if err := s.SetCount("alice", 2); err != nil {
		t.Fatal(err)
	}

	id, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetCount("alice", 0); err != nil { // delete
		t.Fatal(err)
	}
	if err := s.SetCount("bob", 7); err != nil {
		t.Fatal(err)
	}

	if err := s.RevertToSnapshot(id); err != nil {
		t.Fatal(err)
	}
	counts, _ := s.Counts()
	if counts["alice"] != 2 {
		t.Errorf("alice after revert: got %d want 2", counts["alice"])
	}
	if _, ok := counts["bob"]; ok {
		t.Error("bob should not survive the revert")
	}

	if err := s.RevertToSnapshot(99); err == nil {
		t.Error("invalid snapshot id should error")
	}
}

// TestStateDBComputeRoot is deterministic, sensitive to writes, and does
// not itself mutate state.
func TestStateDBComputeRoot(t *testing.T) {
	s := testutil.NewStateDB()
	if err := s.SetCycle(&core.Cycle{ID: 1, Active: true}); err != nil {
		t.Fatal(err)
	}

	r1 := s.ComputeRoot()
	if r1 != s.ComputeRoot() {
		t.Error("root not deterministic")
	}

	if err := s.SetCount("alice", 1); err != nil {
		t.Fatal(err)
	}
	r2 := s.ComputeRoot()
	if r2 == r1 {
		t.Error("root unchanged after write")
	}

	// Same logical state in a separate instance yields the same root.
	s2 := testutil.NewStateDB()
	if err := s2.SetCycle(&core.Cycle{ID: 1, Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := s2.SetCount("alice", 1); err != nil {
		t.Fatal(err)
	}
	if s2.ComputeRoot() != r2 {
		t.Error("equal states produced different roots")
	}
}

// TestLevelReceiptStore exercises the receipt key layout and the atomic
// tip pointer against a real temp database.
func TestLevelReceiptStore(t *testing.T) {
	db, err := storage.NewLevelDB(t.TempDir() + "/db")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := storage.NewLevelReceiptStore(db)

	if tip, err := store.TipSeq(); err != nil || tip != 0 {
		t.Fatalf("empty tip: got %d, %v", tip, err)
	}

	r := &core.Receipt{Seq: 1, Kind: core.ReceiptPurchase, Cycle: 1,
		Purchase: &core.PurchaseRecord{X: 0, Y: 0, Buyer: "alice", AmountPaid: 100}}
	if err := store.CommitReceipt(r); err != nil {
		t.Fatal(err)
	}

	if tip, _ := store.TipSeq(); tip != 1 {
		t.Errorf("tip: got %d want 1", tip)
	}
	got, err := store.GetReceipt(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Purchase.Buyer != "alice" {
		t.Errorf("receipt: got %+v", got)
	}
	if _, err := store.GetReceipt(2); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing receipt: got %v", err)
	}
}
