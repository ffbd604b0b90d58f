package core

import (
	"fmt"
	"sync"
)

// ReceiptStore is the persistence interface used by Journal.
// Implementations live in the storage package.
type ReceiptStore interface {
	GetReceipt(seq uint64) (*Receipt, error)
	// CommitReceipt atomically writes the receipt and advances the tip
	// pointer in a single batch operation.
	CommitReceipt(r *Receipt) error
	// TipSeq returns the sequence of the newest receipt, or (0, nil) for
	// an empty journal.
	TipSeq() (uint64, error)
}

// Journal manages the append-only receipt log: it validates sequence
// continuity on append and tracks the tip across restarts.
type Journal struct {
	mu    sync.RWMutex
	store ReceiptStore
	tip   uint64
}

// NewJournal returns a Journal backed by store. Call Init() to load the
// persisted tip.
func NewJournal(store ReceiptStore) *Journal {
	return &Journal{store: store}
}

// Init loads the persisted tip sequence from the store.
func (j *Journal) Init() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	tip, err := j.store.TipSeq()
	if err != nil {
		return fmt.Errorf("load journal tip: %w", err)
	}
	j.tip = tip
	return nil
}

// NextSeq returns the sequence the next appended receipt must carry.
func (j *Journal) NextSeq() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.tip + 1
}

// Append validates sequence continuity, persists the receipt and advances
// the tip.
func (j *Journal) Append(r *Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if r.Seq != j.tip+1 {
		return fmt.Errorf("receipt seq %d does not follow tip %d", r.Seq, j.tip)
	}
	if err := j.store.CommitReceipt(r); err != nil {
		return fmt.Errorf("commit receipt: %w", err)
	}
	j.tip = r.Seq
	return nil
}

// Get returns the receipt at seq.
func (j *Journal) Get(seq uint64) (*Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.store.GetReceipt(seq)
}

// Tip returns the sequence of the newest receipt (0 for an empty journal).
func (j *Journal) Tip() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.tip
}
