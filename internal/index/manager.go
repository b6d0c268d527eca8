package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/campusbot/campusbot/internal/knowledge"
	"github.com/campusbot/campusbot/internal/log"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "university"

// Manager owns the persistent vector store and its named collection.
//
// Manager is safe for concurrent readers once built. Build and Update are
// single-writer operations intended for process startup and must not run
// concurrently with queries.
type Manager struct {
	db     *chromem.DB
	col    *chromem.Collection
	dir    string
	name   string
	embed  chromem.EmbeddingFunc
	lock   *flock.Flock
	logger log.Logger
}

// Open opens (or creates) the persistent store at dir and attaches to the
// named collection if it already exists on disk.
//
// An unreadable store is treated as corrupt: it is logged, cleared, and
// recreated empty; the caller detects the empty index via Ready and rebuilds
// from source chunks. Only a store that cannot even be recreated is an error.
func Open(dir, name string, embed chromem.EmbeddingFunc, logger log.Logger) (*Manager, error) {
	if name == "" {
		name = DefaultCollection
	}
	if logger == nil {
		logger = log.NewNop()
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		logger.Warn("vector store unreadable, clearing for rebuild", "dir", dir, "error", err)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, fmt.Errorf("clearing corrupt vector store %q: %w", dir, rmErr)
		}
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("recreating vector store %q: %w", dir, err)
		}
	}

	m := &Manager{
		db:     db,
		dir:    dir,
		name:   name,
		embed:  embed,
		lock:   flock.New(filepath.Join(dir, name+".lock")),
		logger: logger,
	}

	// GetCollection returns nil when the collection has never been built;
	// that is the rebuild trigger, not an error.
	m.col = db.GetCollection(name, embed)
	if m.col != nil {
		logger.Info("loaded embedding index", "collection", name, "chunks", m.col.Count())
	}
	return m, nil
}

// Ready reports whether the index holds at least one embedded chunk.
func (m *Manager) Ready() bool {
	return m.col != nil && m.col.Count() > 0
}

// Count returns the number of embedded chunks in the collection.
func (m *Manager) Count() int {
	if m.col == nil {
		return 0
	}
	return m.col.Count()
}

// Collection returns the underlying collection, or nil before the first
// build. Retriever reads through this.
func (m *Manager) Collection() *chromem.Collection {
	return m.col
}

// Build replaces the collection with embeddings for the given chunks and
// persists them. Existing contents of the named collection are dropped first,
// so Build is also the recovery path for a corrupt or stale index.
func (m *Manager) Build(ctx context.Context, chunks []knowledge.Document) error {
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to index: knowledge sources are empty")
	}

	unlock, err := m.acquireWriteLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("dropping collection %q: %w", m.name, err)
	}

	col, err := m.db.CreateCollection(m.name, nil, m.embed)
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", m.name, err)
	}
	m.col = col

	if err := m.add(ctx, chunks, 0); err != nil {
		return err
	}

	m.logger.Info("built embedding index", "collection", m.name, "chunks", col.Count())
	return nil
}

// Update appends embeddings for new chunks to the existing collection and
// re-persists. Positions continue from the current count; the index is never
// reordered in place.
func (m *Manager) Update(ctx context.Context, chunks []knowledge.Document) error {
	if len(chunks) == 0 {
		return nil
	}

	unlock, err := m.acquireWriteLock()
	if err != nil {
		return err
	}
	defer unlock()

	if m.col == nil {
		col, err := m.db.CreateCollection(m.name, nil, m.embed)
		if err != nil {
			return fmt.Errorf("creating collection %q: %w", m.name, err)
		}
		m.col = col
	}

	offset := m.col.Count()
	if err := m.add(ctx, chunks, offset); err != nil {
		return err
	}

	m.logger.Info("updated embedding index",
		"collection", m.name, "added", len(chunks), "chunks", m.col.Count())
	return nil
}

// acquireWriteLock takes the store's advisory file lock so two processes
// cannot rewrite the same collection at once. The lock does not block:
// a held lock means another writer is mid-rebuild, which the caller should
// surface rather than wait out.
func (m *Manager) acquireWriteLock() (func(), error) {
	locked, err := m.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking index %q: %w", m.name, err)
	}
	if !locked {
		return nil, fmt.Errorf("index %q is locked by another writer", m.name)
	}
	return func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("releasing index lock", "collection", m.name, "error", err)
		}
	}, nil
}

// add embeds and stores chunks at sequential positions starting at offset.
func (m *Manager) add(ctx context.Context, chunks []knowledge.Document, offset int) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("chunk-%06d", offset+i),
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		})
	}

	if err := m.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("embedding %d chunks into %q: %w", len(docs), m.name, err)
	}
	return nil
}
