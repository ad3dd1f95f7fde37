package leveldb

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/trie"
)

// Node resolves a committed trie node by content hash, satisfying
// trie.NodeReader.
func (r *Repository) Node(hash *felt.Felt) (*trie.Node, error) {
	raw, err := r.db.Get(feltKey(prefixNode, hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("node %s: %w", hash, trie.ErrNodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read node %s: %w", hash, err)
	}
	node, err := trie.DecodeNode(raw)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", hash, err)
	}
	return node, nil
}

// RootsAt returns the trie roots committed at height.
func (r *Repository) RootsAt(height uint64) (RootsRecord, error) {
	raw, err := r.db.Get(heightKey(prefixRoots, height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return RootsRecord{}, fmt.Errorf("roots at height %d: %w", height, ErrNotFound)
	}
	if err != nil {
		return RootsRecord{}, fmt.Errorf("read roots at height %d: %w", height, err)
	}
	var roots RootsRecord
	if err := json.Unmarshal(raw, &roots); err != nil {
		return RootsRecord{}, fmt.Errorf("decode roots at height %d: %w", height, err)
	}
	return roots, nil
}

// RootOf returns the global state root committed at height.
func (r *Repository) RootOf(height uint64) (felt.Felt, error) {
	roots, err := r.RootsAt(height)
	if err != nil {
		return felt.Felt{}, err
	}
	return roots.Global, nil
}

// HeaderByHeight returns the committed header at height.
func (r *Repository) HeaderByHeight(height uint64) (*core.Header, error) {
	raw, err := r.db.Get(heightKey(prefixHeader, height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("header at height %d: %w", height, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read header at height %d: %w", height, err)
	}
	var header core.Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode header at height %d: %w", height, err)
	}
	return &header, nil
}

// HeaderByHash returns the committed header with the given block hash.
func (r *Repository) HeaderByHash(hash *felt.Felt) (*core.Header, error) {
	raw, err := r.db.Get(feltKey(prefixHashIdx, hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("header with hash %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read hash index %s: %w", hash, err)
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("hash index %s holds %d bytes, want 8", hash, len(raw))
	}
	return r.HeaderByHeight(binary.BigEndian.Uint64(raw))
}

// ContractAt returns the newest contract record at or below maxHeight.
func (r *Repository) ContractAt(addr *felt.Felt, maxHeight uint64) (ContractRecord, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("contract_at", err, started)
	}()

	raw, found, lookupErr := r.newestAtOrBelow(prefixContract, addr, maxHeight)
	if lookupErr != nil {
		err = lookupErr
		return ContractRecord{}, err
	}
	if !found {
		err = fmt.Errorf("contract %s at height %d: %w", addr, maxHeight, ErrNotFound)
		return ContractRecord{}, err
	}
	var record ContractRecord
	if err = json.Unmarshal(raw, &record); err != nil {
		err = fmt.Errorf("decode contract %s: %w", addr, err)
		return ContractRecord{}, err
	}
	return record, nil
}

// ClassAt returns the newest class record at or below maxHeight.
func (r *Repository) ClassAt(classHash *felt.Felt, maxHeight uint64) (ClassRecord, error) {
	started := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("class_at", err, started)
	}()

	raw, found, lookupErr := r.newestAtOrBelow(prefixClass, classHash, maxHeight)
	if lookupErr != nil {
		err = lookupErr
		return ClassRecord{}, err
	}
	if !found {
		err = fmt.Errorf("class %s at height %d: %w", classHash, maxHeight, ErrNotFound)
		return ClassRecord{}, err
	}
	var record ClassRecord
	if err = json.Unmarshal(raw, &record); err != nil {
		err = fmt.Errorf("decode class %s: %w", classHash, err)
		return ClassRecord{}, err
	}
	return record, nil
}

// newestAtOrBelow seeks the highest height-suffixed entry for an entity not
// exceeding maxHeight.
func (r *Repository) newestAtOrBelow(prefix []byte, entity *felt.Felt, maxHeight uint64) ([]byte, bool, error) {
	bounds := &util.Range{
		Start: feltKey(prefix, entity),
		Limit: feltHeightKey(prefix, entity, maxHeight+1),
	}
	iter := r.db.NewIterator(bounds, nil)
	defer iter.Release()

	if !iter.Last() {
		return nil, false, iter.Error()
	}
	value := append([]byte(nil), iter.Value()...)
	if err := iter.Error(); err != nil {
		return nil, false, fmt.Errorf("scan history: %w", err)
	}
	return value, true, nil
}

// heightsBeyond lists committed root-index heights at or above nextHeight.
func (r *Repository) heightsBeyond(nextHeight uint64) ([]uint64, error) {
	iter := r.db.NewIterator(util.BytesPrefix(prefixRoots), nil)
	defer iter.Release()

	var heights []uint64
	for ok := iter.Seek(heightKey(prefixRoots, nextHeight)); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixRoots)+8 {
			return nil, fmt.Errorf("malformed roots key of %d bytes", len(key))
		}
		heights = append(heights, binary.BigEndian.Uint64(key[len(prefixRoots):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan roots index: %w", err)
	}
	return heights, nil
}
