package leveldb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/trie"
)

// Commit is everything one block introduces, applied as a single durable
// batch.
type Commit struct {
	Height    uint64
	Header    *core.Header
	Roots     RootsRecord
	Nodes     map[felt.Felt]*trie.Node
	Contracts map[felt.Felt]ContractRecord
	Classes   map[felt.Felt]ClassRecord
	Cursor    core.Cursor
}

// Apply persists the commit atomically. The store enforces the strict height
// ordering: the committed height must equal the cursor's next height.
func (r *Repository) Apply(commit *Commit) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("apply_commit", err, started)
	}()

	cursor, err := r.Cursor()
	if err != nil {
		return err
	}
	if commit.Height != cursor.NextHeight {
		return fmt.Errorf("commit height %d out of order, store expects %d", commit.Height, cursor.NextHeight)
	}
	if commit.Header == nil {
		return fmt.Errorf("commit at height %d has no header", commit.Height)
	}

	batch := new(leveldb.Batch)

	for hash, node := range commit.Nodes {
		batch.Put(feltKey(prefixNode, &hash), node.Encode())
	}

	journal := JournalRecord{BlockHash: commit.Header.Hash}
	for addr, record := range commit.Contracts {
		raw, marshalErr := json.Marshal(record)
		if marshalErr != nil {
			return fmt.Errorf("encode contract %s: %w", addr, marshalErr)
		}
		batch.Put(feltHeightKey(prefixContract, &addr, commit.Height), raw)
		journal.Contracts = append(journal.Contracts, addr)
	}
	for classHash, record := range commit.Classes {
		raw, marshalErr := json.Marshal(record)
		if marshalErr != nil {
			return fmt.Errorf("encode class %s: %w", classHash, marshalErr)
		}
		batch.Put(feltHeightKey(prefixClass, &classHash, commit.Height), raw)
		journal.Classes = append(journal.Classes, classHash)
	}

	rootsRaw, err := json.Marshal(commit.Roots)
	if err != nil {
		return fmt.Errorf("encode roots: %w", err)
	}
	batch.Put(heightKey(prefixRoots, commit.Height), rootsRaw)

	headerRaw, err := json.Marshal(commit.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	batch.Put(heightKey(prefixHeader, commit.Height), headerRaw)
	batch.Put(feltKey(prefixHashIdx, &commit.Header.Hash), binary.BigEndian.AppendUint64(nil, commit.Height))

	journalRaw, err := json.Marshal(journal)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	batch.Put(heightKey(prefixJournal, commit.Height), journalRaw)

	cursorRaw, err := json.Marshal(commit.Cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	batch.Put(keyCursor, cursorRaw)

	if err = r.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write commit batch at height %d: %w", commit.Height, err)
	}
	return nil
}

// SaveCursor persists cursor bookkeeping (fetch positions, reconcile flag)
// outside a block commit.
func (r *Repository) SaveCursor(cursor core.Cursor) (err error) {
	started := time.Now()
	defer func() {
		r.metrics.Observe("save_cursor", err, started)
	}()

	raw, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err = r.db.Put(keyCursor, raw, nil); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}
