package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
)

// RollbackTo discards every version strictly above height and restores height
// as the head. Rolling back to the current head (or beyond it) is a no-op.
// Trie nodes are left in the table: they are content-addressed, so orphaned
// nodes are unreachable rather than harmful.
func (r *Repository) RollbackTo(height uint64) (cursor core.Cursor, err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("rollback_to", err, started)
	}()

	cursor, err = r.Cursor()
	if err != nil {
		return core.Cursor{}, err
	}
	if !cursor.HasHead() || height >= cursor.Head() {
		return cursor, nil
	}

	header, err := r.HeaderByHeight(height)
	if err != nil {
		return core.Cursor{}, fmt.Errorf("rollback target %d: %w", height, err)
	}
	roots, err := r.RootsAt(height)
	if err != nil {
		return core.Cursor{}, fmt.Errorf("rollback target %d: %w", height, err)
	}

	next := cursor
	next.NextHeight = height + 1
	next.HeadHash = header.Hash
	next.Root = roots.Global
	if next.GatewayFetched > height {
		next.GatewayFetched = height
	}
	if next.SettlementFetched > height {
		next.SettlementFetched = height
	}

	orphans, err := r.heightsBeyond(height + 1)
	if err != nil {
		return core.Cursor{}, err
	}
	r.logger.Info("rolling back",
		zap.Uint64("from", cursor.Head()),
		zap.Uint64("to", height),
		zap.Int("versions", len(orphans)))

	if err = r.truncate(orphans, next); err != nil {
		return core.Cursor{}, err
	}
	return next, nil
}

// truncate removes the listed versions and persists the new cursor in the
// same batch, so an interrupted rollback is re-runnable on recovery.
func (r *Repository) truncate(heights []uint64, cursor core.Cursor) error {
	batch := new(leveldb.Batch)

	for _, height := range heights {
		raw, err := r.db.Get(heightKey(prefixJournal, height), nil)
		switch {
		case errors.Is(err, leveldb.ErrNotFound):
			// No journal means nothing height-scoped beyond the index rows.
		case err != nil:
			return fmt.Errorf("read journal at height %d: %w", height, err)
		default:
			var journal JournalRecord
			if err := json.Unmarshal(raw, &journal); err != nil {
				return fmt.Errorf("decode journal at height %d: %w", height, err)
			}
			for i := range journal.Contracts {
				batch.Delete(feltHeightKey(prefixContract, &journal.Contracts[i], height))
			}
			for i := range journal.Classes {
				batch.Delete(feltHeightKey(prefixClass, &journal.Classes[i], height))
			}
			batch.Delete(feltKey(prefixHashIdx, &journal.BlockHash))
		}
		batch.Delete(heightKey(prefixRoots, height))
		batch.Delete(heightKey(prefixHeader, height))
		batch.Delete(heightKey(prefixJournal, height))
	}

	cursorRaw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	batch.Put(keyCursor, cursorRaw)

	if err := r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write truncate batch: %w", err)
	}
	return nil
}
