package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"gridpot/core"
)

// LevelDB implements DB using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, core.ErrNotFound
	}
	return val, err
}

func (l *LevelDB) Set(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelBatch) Reset()                { b.batch.Reset() }
func (b *levelBatch) Write() error          { return b.db.Write(b.batch, nil) }

// ---- ReceiptStore implementation ----

const journalTipKey = "journal:tip"

// LevelReceiptStore implements core.ReceiptStore on top of LevelDB.
type LevelReceiptStore struct {
	db *LevelDB
}

// NewLevelReceiptStore wraps a LevelDB instance as a ReceiptStore.
func NewLevelReceiptStore(db *LevelDB) *LevelReceiptStore {
	return &LevelReceiptStore{db: db}
}

func receiptKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("rcpt:%020d", seq))
}

func (s *LevelReceiptStore) GetReceipt(seq uint64) (*core.Receipt, error) {
	data, err := s.db.Get(receiptKey(seq))
	if err != nil {
		return nil, err
	}
	var r core.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CommitReceipt writes the receipt and the tip pointer in one batch so a
// crash cannot leave the journal pointing past a missing record.
func (s *LevelReceiptStore) CommitReceipt(r *core.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var tip [8]byte
	binary.BigEndian.PutUint64(tip[:], r.Seq)

	batch := s.db.NewBatch()
	batch.Set(receiptKey(r.Seq), data)
	batch.Set([]byte(journalTipKey), tip[:])
	return batch.Write()
}

func (s *LevelReceiptStore) TipSeq() (uint64, error) {
	val, err := s.db.Get([]byte(journalTipKey))
	if err == core.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt journal tip (%d bytes)", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
