package core

// State is the full world-state interface: cells, ownership counts,
// accounts, and the current cycle record. Implementations must be
// snapshot-able so the engine can roll back failed operations. All mutation
// goes through the engine; no other component writes State directly.
type State interface {
	// Cells. GetCell returns ErrNotFound for a never-written coordinate;
	// the engine applies the lazy-reset rule on top of the raw record.
	GetCell(x, y int) (*Cell, error)
	SetCell(c *Cell) error

	// Ownership ledger: actor address -> count of cells currently owned.
	// Invariant: the sum of counts equals the number of owned cells.
	GetCount(actor string) (uint64, error)
	SetCount(actor string, n uint64) error
	// Counts returns the full ledger (actors with zero count excluded).
	Counts() (map[string]uint64, error)
	// ClearCounts removes every ledger entry. Called on cycle transition.
	ClearCounts() error

	// Accounts. GetAccount returns a zero-balance account for an unknown
	// address.
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Current cycle record. GetCycle returns ErrNotFound on a fresh DB.
	GetCycle() (*Cycle, error)
	SetCycle(c *Cycle) error

	// Snapshot / rollback / commit.
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state digest from the current
	// write buffer without flushing. Call this before signing a receipt.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the digest for the receipt.
	Commit() error
}
