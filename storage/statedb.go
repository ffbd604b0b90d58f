package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gridpot/core"
	"gridpot/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated by registerPrefix(). ComputeRoot() iterates
// these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixCell    = registerPrefix("cell:")
	prefixCount   = registerPrefix("own:")
	prefixAccount = registerPrefix("acct:")
	prefixCycle   = registerPrefix("cyc:")
)

var cycleKey = prefixCycle + "current"

func cellKey(x, y int) string {
	return fmt.Sprintf("%s%d:%d", prefixCell, x, y)
}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback, and deterministic state-digest computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

// merged returns the union of persisted entries under prefix and the write
// buffer, with deletions applied.
func (s *StateDB) merged(prefix string) map[string][]byte {
	out := make(map[string][]byte)
	it := s.db.NewIterator([]byte(prefix))
	for it.Next() {
		k := string(it.Key())
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		out[k] = v
	}
	it.Release()
	for k, v := range s.dirty {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	for k := range s.deleted {
		if strings.HasPrefix(k, prefix) {
			delete(out, k)
		}
	}
	return out
}

// ---- Cells ----

func (s *StateDB) GetCell(x, y int) (*core.Cell, error) {
	data, err := s.get(cellKey(x, y))
	if err != nil {
		return nil, err
	}
	var c core.Cell
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCell(c *core.Cell) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.set(cellKey(c.X, c.Y), data)
	return nil
}

// ---- Ownership ledger ----

func (s *StateDB) GetCount(actor string) (uint64, error) {
	data, err := s.get(prefixCount + actor)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt count for %s: %w", actor, err)
	}
	return n, nil
}

// SetCount writes the actor's owned-cell count; a zero count removes the
// ledger entry so Counts() never reports zero-count actors.
func (s *StateDB) SetCount(actor string, n uint64) error {
	if n == 0 {
		s.del(prefixCount + actor)
		return nil
	}
	s.set(prefixCount+actor, []byte(strconv.FormatUint(n, 10)))
	return nil
}

func (s *StateDB) Counts() (map[string]uint64, error) {
	out := make(map[string]uint64)
	for k, v := range s.merged(prefixCount) {
		actor := strings.TrimPrefix(k, prefixCount)
		n, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt count for %s: %w", actor, err)
		}
		out[actor] = n
	}
	return out, nil
}

func (s *StateDB) ClearCounts() error {
	for k := range s.merged(prefixCount) {
		s.del(k)
	}
	return nil
}

// ---- Accounts ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- Cycle ----

func (s *StateDB) GetCycle() (*core.Cycle, error) {
	data, err := s.get(cycleKey)
	if err != nil {
		return nil, err
	}
	var c core.Cycle
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCycle(c *core.Cycle) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.set(cycleKey, data)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries with the current write buffer, then
// hashes the sorted key-value pairs using length-prefix encoding. It does
// NOT flush or modify state, so it is safe to call before signing a receipt.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		for k, v := range s.merged(prefix) {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// batch and then clears it. Call ComputeRoot() before signing the receipt,
// then call Commit() after the receipt is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
