// Package state applies block state diffs to the versioned tries and derives
// the per-block state commitment.
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/storage/leveldb"
	"github.com/microbecode/madara/internal/trie"
	"github.com/microbecode/madara/pkg/workerpool"
)

var (
	// ErrInvalidDiff marks a malformed state diff. The height is not
	// advanced; the caller may retry the same height from another source.
	ErrInvalidDiff = errors.New("invalid state diff")
	// ErrOutOfOrder marks an attempt to stage or commit a height other than
	// the cursor's next height.
	ErrOutOfOrder = errors.New("height out of order")
)

// Store is the durable backend the state engine runs against.
type Store interface {
	trie.NodeReader

	Cursor() (core.Cursor, error)
	RootsAt(height uint64) (leveldb.RootsRecord, error)
	RootOf(height uint64) (felt.Felt, error)
	ContractAt(addr *felt.Felt, maxHeight uint64) (leveldb.ContractRecord, error)
	ClassAt(classHash *felt.Felt, maxHeight uint64) (leveldb.ClassRecord, error)
	HeaderByHeight(height uint64) (*core.Header, error)
	Apply(commit *leveldb.Commit) error
	SaveCursor(cursor core.Cursor) error
	RollbackTo(height uint64) (core.Cursor, error)
}

// Config tunes the state engine.
type Config struct {
	// UnifiedForkHeight is the first height committed under the unified
	// scheme; zero means from genesis.
	UnifiedForkHeight uint64
	// Workers bounds the per-block contract staging parallelism.
	Workers int
}

const defaultWorkers = 4

// State owns all trie mutation. Exactly one goroutine may call Stage,
// Commit and RollbackTo; reads against committed versions are unrestricted.
type State struct {
	store  Store
	logger *zap.Logger
	cfg    Config
}

// New builds a State over the given store.
func New(store Store, logger *zap.Logger, cfg Config) (*State, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &State{store: store, logger: logger.Named("state"), cfg: cfg}, nil
}

// Staged is a fully computed but not yet durable version. Discarding it has
// no effect on the store.
type Staged struct {
	Height    uint64
	Diff      *core.StateDiff
	Nodes     map[felt.Felt]*trie.Node
	Roots     leveldb.RootsRecord
	Contracts map[felt.Felt]leveldb.ContractRecord
	Classes   map[felt.Felt]leveldb.ClassRecord
}

// Cursor returns the persisted sync cursor.
func (s *State) Cursor() (core.Cursor, error) {
	return s.store.Cursor()
}

// RootOf returns the committed global root at height.
func (s *State) RootOf(height uint64) (felt.Felt, error) {
	return s.store.RootOf(height)
}

// HeaderByHeight returns the committed header at height.
func (s *State) HeaderByHeight(height uint64) (*core.Header, error) {
	return s.store.HeaderByHeight(height)
}

// RollbackTo restores height as the head, discarding everything above it.
func (s *State) RollbackTo(height uint64) (core.Cursor, error) {
	return s.store.RollbackTo(height)
}

// Stage translates the diff for the given height into trie mutations and
// computes the resulting sub-trie roots. Nothing is persisted.
func (s *State) Stage(ctx context.Context, height uint64, diff *core.StateDiff) (*Staged, error) {
	if err := diff.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDiff, err)
	}
	cursor, err := s.store.Cursor()
	if err != nil {
		return nil, err
	}
	if height != cursor.NextHeight {
		return nil, fmt.Errorf("%w: staging %d, store expects %d", ErrOutOfOrder, height, cursor.NextHeight)
	}

	var prevRoots leveldb.RootsRecord
	if cursor.HasHead() {
		prevRoots, err = s.store.RootsAt(cursor.Head())
		if err != nil {
			return nil, fmt.Errorf("load previous roots: %w", err)
		}
	}

	scheme := SchemeForHeight(height, s.cfg.UnifiedForkHeight)
	staged := &Staged{
		Height:    height,
		Diff:      diff,
		Nodes:     make(map[felt.Felt]*trie.Node),
		Contracts: make(map[felt.Felt]leveldb.ContractRecord),
		Classes:   make(map[felt.Felt]leveldb.ClassRecord),
	}

	if err := s.stageClasses(staged, scheme, prevRoots.Classes); err != nil {
		return nil, err
	}
	if err := s.stageContracts(ctx, staged, scheme, prevRoots.Contracts); err != nil {
		return nil, err
	}

	staged.Roots.Global = s.Commitment(staged)
	return staged, nil
}

// Commitment derives the global state commitment of a staged version.
// Deterministic and side-effect free; safe to call before committing.
func (s *State) Commitment(staged *Staged) felt.Felt {
	scheme := SchemeForHeight(staged.Height, s.cfg.UnifiedForkHeight)
	return scheme.GlobalRoot(staged.Roots.Contracts, staged.Roots.Classes)
}

// Commit persists the staged version under the given header, folding the
// caller's source bookkeeping into the cursor of the same batch, and returns
// the advanced cursor. The store applies everything in one batch; on error
// the previous head remains fully intact.
func (s *State) Commit(staged *Staged, header *core.Header, progress core.Progress) (core.Cursor, error) {
	if header.Number != staged.Height {
		return core.Cursor{}, fmt.Errorf("%w: header %d does not match staged %d", ErrOutOfOrder, header.Number, staged.Height)
	}
	cursor, err := s.store.Cursor()
	if err != nil {
		return core.Cursor{}, err
	}
	if staged.Height != cursor.NextHeight {
		return core.Cursor{}, fmt.Errorf("%w: committing %d, store expects %d", ErrOutOfOrder, staged.Height, cursor.NextHeight)
	}

	next := mergeProgress(cursor, progress)
	next.NextHeight = staged.Height + 1
	next.HeadHash = header.Hash
	next.Root = staged.Roots.Global

	if err := s.store.Apply(&leveldb.Commit{
		Height:    staged.Height,
		Header:    header,
		Roots:     staged.Roots,
		Nodes:     staged.Nodes,
		Contracts: staged.Contracts,
		Classes:   staged.Classes,
		Cursor:    next,
	}); err != nil {
		return core.Cursor{}, err
	}

	s.logger.Debug("committed version",
		zap.Uint64("height", staged.Height),
		zap.Stringer("root", staged.Roots.Global),
		zap.Int("nodes", len(staged.Nodes)))
	return next, nil
}

// SaveProgress persists source bookkeeping outside a block commit, for
// changes with no commit to carry them, like the reconcile flag.
func (s *State) SaveProgress(progress core.Progress) error {
	cursor, err := s.store.Cursor()
	if err != nil {
		return err
	}
	return s.store.SaveCursor(mergeProgress(cursor, progress))
}

// mergeProgress folds bookkeeping into a cursor. Fetch positions only ever
// move forward; the reconcile flag is taken as-is.
func mergeProgress(cursor core.Cursor, progress core.Progress) core.Cursor {
	cursor.GatewayFetched = max(cursor.GatewayFetched, progress.GatewayFetched)
	cursor.SettlementFetched = max(cursor.SettlementFetched, progress.SettlementFetched)
	cursor.Reconciling = progress.Reconciling
	return cursor
}

func (s *State) stageClasses(staged *Staged, scheme Scheme, prevRoot felt.Felt) error {
	if len(staged.Diff.DeclaredClasses) == 0 {
		staged.Roots.Classes = prevRoot
		return nil
	}

	classesTrie := trie.New(s.store, prevRoot, scheme.Hash)
	for classHash, compiled := range staged.Diff.DeclaredClasses {
		leaf := scheme.ClassLeaf(compiled)
		if err := classesTrie.Update(&classHash, &leaf); err != nil {
			return fmt.Errorf("stage class %s: %w", classHash, err)
		}
		staged.Classes[classHash] = leveldb.ClassRecord{CompiledClassHash: compiled}
	}
	root, nodes := classesTrie.Commit()
	staged.Roots.Classes = root
	mergeNodes(staged.Nodes, nodes)
	return nil
}

func (s *State) stageContracts(ctx context.Context, staged *Staged, scheme Scheme, prevRoot felt.Felt) error {
	touched := touchedContracts(staged.Diff)
	if len(touched) == 0 {
		staged.Roots.Contracts = prevRoot
		return nil
	}

	var mu sync.Mutex
	records := make(map[felt.Felt]leveldb.ContractRecord, len(touched))

	// Independent contracts own independent storage sub-tries, so they are
	// staged in parallel; the shared contracts trie is updated after.
	err := workerpool.Process(ctx, s.cfg.Workers, touched, func(ctx context.Context, addr felt.Felt) error {
		record, nodes, err := s.stageContract(staged, scheme, addr)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		records[addr] = record
		mergeNodes(staged.Nodes, nodes)
		return nil
	}, nil)
	if err != nil {
		return err
	}

	contractsTrie := trie.New(s.store, prevRoot, scheme.Hash)
	for addr, record := range records {
		leaf := scheme.ContractLeaf(record.ClassHash, record.StorageRoot, record.Nonce)
		if err := contractsTrie.Update(&addr, &leaf); err != nil {
			return fmt.Errorf("stage contract leaf %s: %w", addr, err)
		}
		staged.Contracts[addr] = record
	}
	root, nodes := contractsTrie.Commit()
	staged.Roots.Contracts = root
	mergeNodes(staged.Nodes, nodes)
	return nil
}

func (s *State) stageContract(staged *Staged, scheme Scheme, addr felt.Felt) (leveldb.ContractRecord, *trie.NodeSet, error) {
	diff := staged.Diff
	record, deployed, err := s.contractBefore(&addr, staged.Height)
	if err != nil {
		return leveldb.ContractRecord{}, nil, err
	}

	if classHash, ok := diff.DeployedContracts[addr]; ok {
		if deployed {
			return leveldb.ContractRecord{}, nil, fmt.Errorf("%w: contract %s deployed twice", ErrInvalidDiff, addr)
		}
		if err := s.requireDeclared(diff, &classHash, staged.Height); err != nil {
			return leveldb.ContractRecord{}, nil, err
		}
		record = leveldb.ContractRecord{ClassHash: classHash}
		deployed = true
	}

	// Reserved low addresses are protocol bookkeeping contracts; they are
	// written without a deployment.
	if !deployed && !isSystemContract(&addr) {
		return leveldb.ContractRecord{}, nil, fmt.Errorf("%w: mutation of undeployed contract %s", ErrInvalidDiff, addr)
	}

	if classHash, ok := diff.ReplacedClasses[addr]; ok {
		if !deployed {
			return leveldb.ContractRecord{}, nil, fmt.Errorf("%w: class replacement on undeployed contract %s", ErrInvalidDiff, addr)
		}
		if err := s.requireDeclared(diff, &classHash, staged.Height); err != nil {
			return leveldb.ContractRecord{}, nil, err
		}
		record.ClassHash = classHash
	}

	if nonce, ok := diff.Nonces[addr]; ok {
		record.Nonce = nonce
	}

	var nodes *trie.NodeSet
	if entries := diff.StorageDiffs[addr]; len(entries) > 0 {
		storageTrie := trie.New(s.store, record.StorageRoot, scheme.Hash)
		for _, entry := range entries {
			if err := storageTrie.Update(&entry.Key, &entry.Value); err != nil {
				return leveldb.ContractRecord{}, nil, fmt.Errorf("stage storage of %s: %w", addr, err)
			}
		}
		record.StorageRoot, nodes = storageTrie.Commit()
	}
	return record, nodes, nil
}

// contractBefore loads the contract record as of the version preceding
// height; deployed is false when the contract does not exist yet.
func (s *State) contractBefore(addr *felt.Felt, height uint64) (leveldb.ContractRecord, bool, error) {
	if height == 0 {
		return leveldb.ContractRecord{}, false, nil
	}
	record, err := s.store.ContractAt(addr, height-1)
	if errors.Is(err, leveldb.ErrNotFound) {
		return leveldb.ContractRecord{}, false, nil
	}
	if err != nil {
		return leveldb.ContractRecord{}, false, err
	}
	return record, true, nil
}

// requireDeclared checks a class referenced by a deployment or replacement is
// declared, either earlier in the chain or inside the same diff.
func (s *State) requireDeclared(diff *core.StateDiff, classHash *felt.Felt, height uint64) error {
	if _, ok := diff.DeclaredClasses[*classHash]; ok {
		return nil
	}
	if height > 0 {
		_, err := s.store.ClassAt(classHash, height-1)
		if err == nil {
			return nil
		}
		if !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}
	}
	return fmt.Errorf("%w: class %s is not declared", ErrInvalidDiff, classHash)
}

var systemContractLimit = felt.FromUint64(0x100)

func isSystemContract(addr *felt.Felt) bool {
	return addr.Cmp(&systemContractLimit) < 0
}

func touchedContracts(diff *core.StateDiff) []felt.Felt {
	seen := make(map[felt.Felt]struct{})
	for addr := range diff.StorageDiffs {
		seen[addr] = struct{}{}
	}
	for addr := range diff.Nonces {
		seen[addr] = struct{}{}
	}
	for addr := range diff.DeployedContracts {
		seen[addr] = struct{}{}
	}
	for addr := range diff.ReplacedClasses {
		seen[addr] = struct{}{}
	}

	out := make([]felt.Felt, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	// Deterministic staging order keeps logs and tests stable.
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(&out[j]) < 0 })
	return out
}

func mergeNodes(dst map[felt.Felt]*trie.Node, set *trie.NodeSet) {
	if set == nil {
		return
	}
	for hash, node := range set.Nodes {
		dst[hash] = node
	}
}
