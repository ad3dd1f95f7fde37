// Package leveldb persists the trie node table, the height-indexed chain
// records and the sync cursor in a single goleveldb store. Every commit is
// one write batch, so a crash either leaves the previous head fully intact or
// the new head fully durable.
package leveldb

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
)

// ErrNotFound is returned for versions, headers and records that are not in
// the store.
var ErrNotFound = errors.New("not found")

type (
	// Metrics observes repository operations.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Repository is the durable store. One writer (the orchestrator) calls
// Commit/RollbackTo; readers may call the lookup methods concurrently and
// only ever observe fully committed versions.
type Repository struct {
	db      *leveldb.DB
	metrics Metrics
	logger  *zap.Logger
}

// Open opens (or creates) the store at path and truncates any data left
// beyond the persisted cursor by a crash mid-rollback or mid-commit.
func Open(path string, metrics Metrics, logger *zap.Logger) (*Repository, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return newRepository(db, metrics, logger)
}

// OpenInMemory opens a store backed by transient memory storage.
func OpenInMemory(metrics Metrics, logger *zap.Logger) (*Repository, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return newRepository(db, metrics, logger)
}

func newRepository(db *leveldb.DB, metrics Metrics, logger *zap.Logger) (*Repository, error) {
	if metrics == nil {
		return nil, errors.New("repository metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Repository{db: db, metrics: metrics, logger: logger.Named("store")}
	if err := r.recover(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recover store: %w", err)
	}
	return r, nil
}

// Close releases the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Cursor returns the persisted sync cursor; the zero cursor when none exists.
func (r *Repository) Cursor() (core.Cursor, error) {
	raw, err := r.db.Get(keyCursor, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return core.Cursor{}, nil
	}
	if err != nil {
		return core.Cursor{}, fmt.Errorf("read cursor: %w", err)
	}
	var cursor core.Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return core.Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return cursor, nil
}

// recover discards any version beyond the persisted cursor. Staged-but-
// uncommitted work never reaches the store, so recovery reduces to trimming
// root-index entries an interrupted rollback may have left behind.
func (r *Repository) recover() error {
	cursor, err := r.Cursor()
	if err != nil {
		return err
	}
	orphans, err := r.heightsBeyond(cursor.NextHeight)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}
	r.logger.Warn("truncating versions beyond cursor",
		zap.Uint64("next_height", cursor.NextHeight),
		zap.Int("orphans", len(orphans)))
	return r.truncate(orphans, cursor)
}
