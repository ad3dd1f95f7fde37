package state

import (
	"github.com/microbecode/madara/internal/crypto"
	"github.com/microbecode/madara/internal/felt"
)

// Revision selects the commitment composition for a block. The network
// changed its state commitment at a protocol fork: before it the global root
// was simply the contracts-trie root, after it the classes trie joins the
// composition under a domain-separation tag.
type Revision int

const (
	// RevisionLegacy commits contracts only; the classes trie is unused.
	RevisionLegacy Revision = iota
	// RevisionUnified combines the contracts and classes tries under the
	// state version tag.
	RevisionUnified
)

// Domain-separation tags, the ASCII tag bytes read as field elements.
var (
	stateVersionTag = mustTag("STARKNET_STATE_V0")
	classLeafTag    = mustTag("CONTRACT_CLASS_LEAF_V0")
)

func mustTag(tag string) felt.Felt {
	f, err := felt.FromBytes([]byte(tag))
	if err != nil {
		panic(err)
	}
	return f
}

// Scheme is the hash composition for one revision. Hash parameterizes the
// family so a revision can swap it without touching trie or leaf structure.
type Scheme struct {
	Revision Revision
	Hash     crypto.HashFn
}

// SchemeForHeight returns the scheme in force at the given block height.
// unifiedForkHeight is the first height using the unified composition; zero
// means the chain has used it from genesis.
func SchemeForHeight(height, unifiedForkHeight uint64) Scheme {
	revision := RevisionUnified
	if height < unifiedForkHeight {
		revision = RevisionLegacy
	}
	return Scheme{Revision: revision, Hash: crypto.Pedersen}
}

// GlobalRoot combines the two trie roots into the block's state commitment.
// An empty classes trie keeps the commitment equal to the contracts root, so
// chains without declared classes stay compatible across revisions.
func (s Scheme) GlobalRoot(contractsRoot, classesRoot felt.Felt) felt.Felt {
	if s.Revision == RevisionLegacy || classesRoot.IsZero() {
		return contractsRoot
	}
	inner := s.Hash(&stateVersionTag, &contractsRoot)
	return s.Hash(&inner, &classesRoot)
}

// ContractLeaf derives the contracts-trie leaf for one contract:
// H(H(H(class_hash, storage_root), nonce), 0).
func (s Scheme) ContractLeaf(classHash, storageRoot, nonce felt.Felt) felt.Felt {
	acc := s.Hash(&classHash, &storageRoot)
	acc = s.Hash(&acc, &nonce)
	return s.Hash(&acc, &felt.Zero)
}

// ClassLeaf derives the classes-trie leaf for a declared class.
func (s Scheme) ClassLeaf(compiledClassHash felt.Felt) felt.Felt {
	return s.Hash(&classLeafTag, &compiledClassHash)
}
