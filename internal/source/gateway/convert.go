package gateway

import (
	"fmt"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/felt"
)

// ToCore converts the wire representation into the internal block model.
// List-shaped diff sections become maps; duplicate entries are rejected here
// because the map form would silently drop them.
func (u *StateUpdateWithBlock) ToCore() (*core.BlockWithDiff, error) {
	if !u.StateUpdate.BlockHash.IsZero() && !u.StateUpdate.BlockHash.Equal(&u.Block.BlockHash) {
		return nil, fmt.Errorf("state update is for block %s, got block %s", u.StateUpdate.BlockHash, u.Block.BlockHash)
	}

	diff := &core.StateDiff{
		StorageDiffs:      make(map[felt.Felt][]core.StorageEntry, len(u.StateUpdate.StateDiff.StorageDiffs)),
		Nonces:            u.StateUpdate.StateDiff.Nonces,
		DeployedContracts: make(map[felt.Felt]felt.Felt, len(u.StateUpdate.StateDiff.DeployedContracts)),
		ReplacedClasses:   make(map[felt.Felt]felt.Felt, len(u.StateUpdate.StateDiff.ReplacedClasses)),
		DeclaredClasses:   make(map[felt.Felt]felt.Felt, len(u.StateUpdate.StateDiff.DeclaredClasses)),
	}

	for addr, entries := range u.StateUpdate.StateDiff.StorageDiffs {
		converted := make([]core.StorageEntry, len(entries))
		for i, entry := range entries {
			converted[i] = core.StorageEntry{Key: entry.Key, Value: entry.Value}
		}
		diff.StorageDiffs[addr] = converted
	}
	for _, deployed := range u.StateUpdate.StateDiff.DeployedContracts {
		if _, ok := diff.DeployedContracts[deployed.Address]; ok {
			return nil, fmt.Errorf("contract %s listed as deployed twice", deployed.Address)
		}
		diff.DeployedContracts[deployed.Address] = deployed.ClassHash
	}
	for _, replaced := range u.StateUpdate.StateDiff.ReplacedClasses {
		if _, ok := diff.ReplacedClasses[replaced.Address]; ok {
			return nil, fmt.Errorf("contract %s listed as class-replaced twice", replaced.Address)
		}
		diff.ReplacedClasses[replaced.Address] = replaced.ClassHash
	}
	for _, declared := range u.StateUpdate.StateDiff.DeclaredClasses {
		if _, ok := diff.DeclaredClasses[declared.ClassHash]; ok {
			return nil, fmt.Errorf("class %s declared twice", declared.ClassHash)
		}
		diff.DeclaredClasses[declared.ClassHash] = declared.CompiledClassHash
	}

	header := &core.Header{
		Number:          u.Block.BlockNumber,
		Hash:            u.Block.BlockHash,
		ParentHash:      u.Block.ParentBlockHash,
		GlobalStateRoot: u.Block.StateRoot,
		Timestamp:       u.Block.Timestamp,
		ProtocolVersion: u.Block.StarknetVersion,
	}
	if u.Block.SequencerAddress != nil {
		header.SequencerAddress = *u.Block.SequencerAddress
	}
	if u.Block.TransactionCommitment != nil {
		header.TransactionCommitment = *u.Block.TransactionCommitment
	}
	if u.Block.EventCommitment != nil {
		header.EventCommitment = *u.Block.EventCommitment
	}

	return &core.BlockWithDiff{Header: header, Diff: diff}, nil
}
