// Package core holds the chain data model shared by the sources, the state
// engine and the sync pipeline.
package core

import (
	"fmt"

	"github.com/microbecode/madara/internal/felt"
)

// Header is an accepted block header. Immutable once stored; addressable by
// height and by hash.
type Header struct {
	Number                uint64    `json:"block_number"`
	Hash                  felt.Felt `json:"block_hash"`
	ParentHash            felt.Felt `json:"parent_block_hash"`
	GlobalStateRoot       felt.Felt `json:"state_root"`
	SequencerAddress      felt.Felt `json:"sequencer_address"`
	Timestamp             uint64    `json:"timestamp"`
	TransactionCommitment felt.Felt `json:"transaction_commitment"`
	EventCommitment       felt.Felt `json:"event_commitment"`
	ProtocolVersion       string    `json:"starknet_version"`
}

// StorageEntry is a single storage slot write. Entries keep the order the
// source delivered them in so duplicate keys remain detectable.
type StorageEntry struct {
	Key   felt.Felt `json:"key"`
	Value felt.Felt `json:"value"`
}

// StateDiff is the set of state changes introduced by one block.
type StateDiff struct {
	// StorageDiffs maps a contract address to its slot writes.
	StorageDiffs map[felt.Felt][]StorageEntry
	// Nonces maps a contract address to its new nonce.
	Nonces map[felt.Felt]felt.Felt
	// DeployedContracts maps a newly deployed address to its class hash.
	DeployedContracts map[felt.Felt]felt.Felt
	// ReplacedClasses maps an existing address to its replacement class hash.
	ReplacedClasses map[felt.Felt]felt.Felt
	// DeclaredClasses maps a class hash to its compiled class hash.
	DeclaredClasses map[felt.Felt]felt.Felt
}

// Validate rejects diffs that are malformed regardless of prior state.
// Duplicate slot keys within one contract's writes are an error even when the
// values agree: the diff length is an externally committed quantity, so
// silent deduplication would change what the network signed off on.
func (d *StateDiff) Validate() error {
	for addr, entries := range d.StorageDiffs {
		seen := make(map[felt.Felt]struct{}, len(entries))
		for _, entry := range entries {
			if _, ok := seen[entry.Key]; ok {
				return fmt.Errorf("duplicate storage key %s for contract %s", entry.Key, addr)
			}
			seen[entry.Key] = struct{}{}
		}
	}
	for addr, classHash := range d.DeployedContracts {
		if classHash.IsZero() {
			return fmt.Errorf("contract %s deployed with zero class hash", addr)
		}
		if _, ok := d.ReplacedClasses[addr]; ok {
			return fmt.Errorf("contract %s both deployed and class-replaced in one diff", addr)
		}
	}
	return nil
}

// Length is the number of individual mutations in the diff.
func (d *StateDiff) Length() int {
	n := len(d.Nonces) + len(d.DeployedContracts) + len(d.ReplacedClasses) + len(d.DeclaredClasses)
	for _, entries := range d.StorageDiffs {
		n += len(entries)
	}
	return n
}

// BlockWithDiff is the unit flowing from a source to the orchestrator.
type BlockWithDiff struct {
	Header *Header
	Diff   *StateDiff
}

// Cursor tracks sync progress. NextHeight is the next block to apply, so the
// zero value means an empty chain; the committed head is NextHeight-1 when
// HasHead reports true. Mutated only by the orchestrator and persisted in the
// same transaction as each commit.
type Cursor struct {
	NextHeight        uint64    `json:"next_height"`
	HeadHash          felt.Felt `json:"head_hash"`
	Root              felt.Felt `json:"root"`
	GatewayFetched    uint64    `json:"gateway_fetched"`
	SettlementFetched uint64    `json:"settlement_fetched"`
	Reconciling       bool      `json:"reconciling"`
}

// Progress is the orchestrator's per-source bookkeeping, folded into the
// persisted cursor: transactionally with every commit, and through
// SaveProgress for changes that have no commit to ride on.
type Progress struct {
	GatewayFetched    uint64
	SettlementFetched uint64
	Reconciling       bool
}

// HasHead reports whether any block has been committed.
func (c Cursor) HasHead() bool {
	return c.NextHeight > 0
}

// Head returns the committed head height. Callers must check HasHead first.
func (c Cursor) Head() uint64 {
	return c.NextHeight - 1
}
