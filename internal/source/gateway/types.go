package gateway

import (
	"github.com/microbecode/madara/internal/felt"
)

// Wire types of the feeder gateway. Field names follow the gateway's JSON;
// optional fields the gateway omits on old blocks are pointers.

// Block is the block envelope of a get_block or includeBlock response.
type Block struct {
	BlockHash             felt.Felt  `json:"block_hash"`
	BlockNumber           uint64     `json:"block_number"`
	ParentBlockHash       felt.Felt  `json:"parent_block_hash"`
	StateRoot             felt.Felt  `json:"state_root"`
	SequencerAddress      *felt.Felt `json:"sequencer_address"`
	Timestamp             uint64     `json:"timestamp"`
	TransactionCommitment *felt.Felt `json:"transaction_commitment"`
	EventCommitment       *felt.Felt `json:"event_commitment"`
	StarknetVersion       string     `json:"starknet_version"`
}

// StorageEntry is one slot write inside storage_diffs.
type StorageEntry struct {
	Key   felt.Felt `json:"key"`
	Value felt.Felt `json:"value"`
}

// DeployedContract binds a new contract address to its class.
type DeployedContract struct {
	Address   felt.Felt `json:"address"`
	ClassHash felt.Felt `json:"class_hash"`
}

// ReplacedClass rebinds an existing contract address to another class.
type ReplacedClass struct {
	Address   felt.Felt `json:"address"`
	ClassHash felt.Felt `json:"class_hash"`
}

// DeclaredClass registers a class hash with its compiled counterpart.
type DeclaredClass struct {
	ClassHash         felt.Felt `json:"class_hash"`
	CompiledClassHash felt.Felt `json:"compiled_class_hash"`
}

// StateDiff is the state_diff object of a state update.
type StateDiff struct {
	StorageDiffs      map[felt.Felt][]StorageEntry `json:"storage_diffs"`
	Nonces            map[felt.Felt]felt.Felt      `json:"nonces"`
	DeployedContracts []DeployedContract           `json:"deployed_contracts"`
	ReplacedClasses   []ReplacedClass              `json:"replaced_classes"`
	DeclaredClasses   []DeclaredClass              `json:"declared_classes"`
	// OldDeclaredContracts lists legacy class declarations. They carry no
	// compiled class hash and never enter the classes trie.
	OldDeclaredContracts []felt.Felt `json:"old_declared_contracts"`
}

// StateUpdate is the state update envelope.
type StateUpdate struct {
	BlockHash felt.Felt `json:"block_hash"`
	NewRoot   felt.Felt `json:"new_root"`
	OldRoot   felt.Felt `json:"old_root"`
	StateDiff StateDiff `json:"state_diff"`
}

// StateUpdateWithBlock is the get_state_update?includeBlock=true response.
type StateUpdateWithBlock struct {
	Block       Block       `json:"block"`
	StateUpdate StateUpdate `json:"state_update"`
}
