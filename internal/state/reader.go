package state

import (
	"errors"
	"fmt"

	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/storage/leveldb"
	"github.com/microbecode/madara/internal/trie"
)

// Read-side accessors consumed by the external query layer. All reads run
// against committed versions only: values are resolved through the
// content-addressed tries, so a version stays readable unchanged while newer
// versions are committed concurrently.

// LatestHeight resolves the committed head height, or ErrNotFound on an
// empty chain. Callers use it to translate a "latest" version selector.
func (s *State) LatestHeight() (uint64, error) {
	cursor, err := s.store.Cursor()
	if err != nil {
		return 0, err
	}
	if !cursor.HasHead() {
		return 0, fmt.Errorf("empty chain: %w", leveldb.ErrNotFound)
	}
	return cursor.Head(), nil
}

// StorageAt returns the value of a contract storage slot at the given
// committed height. Absent slots read as the zero felt once the contract
// exists; an unknown contract is ErrNotFound.
func (s *State) StorageAt(addr, key *felt.Felt, height uint64) (felt.Felt, error) {
	record, err := s.store.ContractAt(addr, height)
	if err != nil {
		return felt.Felt{}, err
	}
	storageTrie := trie.New(s.store, record.StorageRoot, SchemeForHeight(height, s.cfg.UnifiedForkHeight).Hash)
	value, err := storageTrie.Get(key)
	if err != nil {
		return felt.Felt{}, fmt.Errorf("read storage %s of %s: %w", key, addr, err)
	}
	return value, nil
}

// NonceAt returns a contract's nonce at the given committed height.
func (s *State) NonceAt(addr *felt.Felt, height uint64) (felt.Felt, error) {
	record, err := s.store.ContractAt(addr, height)
	if err != nil {
		return felt.Felt{}, err
	}
	return record.Nonce, nil
}

// ClassHashAt returns a contract's class hash at the given committed height.
func (s *State) ClassHashAt(addr *felt.Felt, height uint64) (felt.Felt, error) {
	record, err := s.store.ContractAt(addr, height)
	if err != nil {
		return felt.Felt{}, err
	}
	return record.ClassHash, nil
}

// CompiledClassHashAt returns the compiled class hash of a declared class at
// the given committed height.
func (s *State) CompiledClassHashAt(classHash *felt.Felt, height uint64) (felt.Felt, error) {
	record, err := s.store.ClassAt(classHash, height)
	if err != nil {
		return felt.Felt{}, err
	}
	return record.CompiledClassHash, nil
}

// IsNotFound reports whether err denotes a missing version or record.
func IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}
