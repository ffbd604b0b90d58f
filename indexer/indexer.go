// Package indexer maintains a secondary index actor -> owned coordinates
// so the API can answer get_owned_cells without scanning the grid. It is
// rebuilt from events only; the ownership ledger in world state stays the
// source of truth for counts.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"gridpot/core"
	"gridpot/events"
	"gridpot/storage"
)

const prefixOwnerCells = "idx:owner:cell:"

// Indexer subscribes to ledger events and updates the owner lookup table.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventCellPurchased, idx.onCellPurchased)
	emitter.Subscribe(events.EventCycleEnded, idx.onCycleEnded)
	return idx
}

// OwnedCells returns the coordinates currently owned by actor.
func (idx *Indexer) OwnedCells(actor string) ([]core.Coord, error) {
	return idx.getList(prefixOwnerCells + actor)
}

// ---- event handlers ----

func (idx *Indexer) onCellPurchased(ev events.Event) {
	buyer, _ := ev.Data["buyer"].(string)
	prev, _ := ev.Data["prev_owner"].(string)
	x, xok := asInt(ev.Data["x"])
	y, yok := asInt(ev.Data["y"])
	if buyer == "" || !xok || !yok {
		return
	}
	c := core.Coord{X: x, Y: y}
	if prev != "" {
		if err := idx.removeFromList(prefixOwnerCells+prev, c); err != nil {
			return
		}
	}
	_ = idx.addToList(prefixOwnerCells+buyer, c)
}

// onCycleEnded drops every owner list: ownership resets on a cycle
// transition even though cells are only lazily rewritten.
func (idx *Indexer) onCycleEnded(events.Event) {
	it := idx.db.NewIterator([]byte(prefixOwnerCells))
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		keys = append(keys, k)
	}
	for _, k := range keys {
		_ = idx.db.Delete(k)
	}
}

// asInt tolerates both int (in-process events) and float64 (events that
// round-tripped through JSON).
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]core.Coord, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var cells []core.Coord
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return cells, nil
}

func (idx *Indexer) addToList(key string, c core.Coord) error {
	cells, _ := idx.getList(key)
	cells = append(cells, c)
	data, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key string, c core.Coord) error {
	cells, _ := idx.getList(key)
	filtered := cells[:0]
	for _, cur := range cells {
		if cur != c {
			filtered = append(filtered, cur)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
