package leveldb

import (
	"encoding/binary"

	"github.com/microbecode/madara/internal/felt"
)

// Key space, one byte of prefix each. Trie nodes are content-addressed and
// shared across versions; everything height-scoped is journaled so rollback
// can delete exactly what a block introduced.
var (
	prefixNode     = []byte("n") // node hash → encoded trie node
	prefixRoots    = []byte("r") // height → roots record
	prefixHeader   = []byte("b") // height → header
	prefixHashIdx  = []byte("h") // block hash → height
	prefixContract = []byte("c") // contract address || height → contract record
	prefixClass    = []byte("k") // class hash || height → class record
	prefixJournal  = []byte("j") // height → journal record
	keyCursor      = []byte("s")
)

// ContractRecord is the committed state of one contract at one height.
type ContractRecord struct {
	ClassHash   felt.Felt `json:"class_hash"`
	Nonce       felt.Felt `json:"nonce"`
	StorageRoot felt.Felt `json:"storage_root"`
}

// ClassRecord is a declared class at one height.
type ClassRecord struct {
	CompiledClassHash felt.Felt `json:"compiled_class_hash"`
}

// RootsRecord holds the trie roots committed at one height.
type RootsRecord struct {
	Global    felt.Felt `json:"global"`
	Contracts felt.Felt `json:"contracts"`
	Classes   felt.Felt `json:"classes"`
}

// JournalRecord lists what a height touched, for precise rollback.
type JournalRecord struct {
	BlockHash felt.Felt   `json:"block_hash"`
	Contracts []felt.Felt `json:"contracts"`
	Classes   []felt.Felt `json:"classes"`
}

func heightKey(prefix []byte, height uint64) []byte {
	out := make([]byte, 0, len(prefix)+8)
	out = append(out, prefix...)
	return binary.BigEndian.AppendUint64(out, height)
}

func feltKey(prefix []byte, f *felt.Felt) []byte {
	raw := f.Bytes()
	out := make([]byte, 0, len(prefix)+felt.Bytes)
	out = append(out, prefix...)
	return append(out, raw[:]...)
}

// feltHeightKey orders per-entity history by height so the newest record at
// or below a version is one reverse seek away.
func feltHeightKey(prefix []byte, f *felt.Felt, height uint64) []byte {
	return binary.BigEndian.AppendUint64(feltKey(prefix, f), height)
}
