// Package chromem implements memory.Backend on chromem-go, a pure Go
// embedded vector database. It suits the local SDK: no cgo, optional
// on-disk persistence, and per-owner collections for namespace isolation.
//
// chromem-go has no point-lookup API, so Fetch and UpdateFields locate
// documents by dumping the owning collection; the adapter keeps an
// id-to-owner map to avoid scanning every collection. For large corpora
// prefer the sqlite backend.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Backend stores each entry as a chromem document. The full entry is
// serialized into the document content; the document embedding is only
// chromem's search index. chromem normalizes index embeddings, which would
// turn a zero vector into NaNs, so zero-vector entries get a unit
// placeholder in the index while the serialized entry keeps the real
// embedding.
type Backend struct {
	db         *chromem.DB
	dimensions int

	mu          sync.RWMutex
	collections map[string]*chromem.Collection // keyed by owner id
	owners      map[string]string              // entry id -> owner id
}

// New creates an in-memory chromem backend. dimensions is the process-wide
// embedding size agreed with the store's configuration.
func New(dimensions int) (*Backend, error) {
	return wrap(chromem.NewDB(), dimensions)
}

// NewPersistent creates a chromem backend persisted under path.
func NewPersistent(path string, dimensions int) (*Backend, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return wrap(db, dimensions)
}

func wrap(db *chromem.DB, dimensions int) (*Backend, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	b := &Backend{
		db:          db,
		dimensions:  dimensions,
		collections: make(map[string]*chromem.Collection),
		owners:      make(map[string]string),
	}
	// Re-attach collections persisted by earlier runs.
	for name, col := range db.ListCollections() {
		b.collections[ownerFromCollection(name)] = col
	}
	return b, nil
}

func collectionName(ownerID string) string {
	if ownerID == "" {
		return "global"
	}
	return "owner_" + ownerID
}

func ownerFromCollection(name string) string {
	if name == "global" {
		return ""
	}
	return strings.TrimPrefix(name, "owner_")
}

// getOrCreateCollection returns the collection for an owner, creating it
// on first use.
func (b *Backend) getOrCreateCollection(ownerID string) (*chromem.Collection, error) {
	b.mu.RLock()
	col, exists := b.collections[ownerID]
	b.mu.RUnlock()
	if exists {
		return col, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if col, exists := b.collections[ownerID]; exists {
		return col, nil
	}
	col, err := b.db.GetOrCreateCollection(collectionName(ownerID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	b.collections[ownerID] = col
	return col, nil
}

// Insert persists a new entry into its owner's collection.
func (b *Backend) Insert(ctx context.Context, e *memory.Entry) error {
	col, err := b.getOrCreateCollection(e.OwnerID)
	if err != nil {
		return err
	}
	if err := b.addEntry(ctx, col, e); err != nil {
		return err
	}
	b.mu.Lock()
	b.owners[e.ID] = e.OwnerID
	b.mu.Unlock()
	return nil
}

func (b *Backend) addEntry(ctx context.Context, col *chromem.Collection, e *memory.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	doc := chromem.Document{
		ID:        e.ID,
		Content:   string(payload),
		Embedding: indexVector(e.Embedding, b.dimensions),
		Metadata:  map[string]string{"owner_id": e.OwnerID},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Fetch retrieves an entry by id.
func (b *Backend) Fetch(ctx context.Context, id string) (*memory.Entry, error) {
	_, e, err := b.locate(ctx, id)
	return e, err
}

// FetchAll retrieves the entries owned by ownerID that match filter.
// chromem exposes no predicate queries, so the filter applies after the
// collection dump.
func (b *Backend) FetchAll(ctx context.Context, ownerID string, filter *memory.EntryFilter) ([]*memory.Entry, error) {
	b.mu.RLock()
	col, exists := b.collections[ownerID]
	b.mu.RUnlock()
	if !exists {
		return nil, nil
	}
	entries, err := b.dump(ctx, col)
	if err != nil || filter == nil {
		return entries, err
	}
	matched := entries[:0]
	for _, e := range entries {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Owners enumerates every owner with a collection.
func (b *Backend) Owners(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	owners := make([]string, 0, len(b.collections))
	for owner := range b.collections {
		owners = append(owners, owner)
	}
	return owners, nil
}

// UpdateFields rewrites the stored document with the patch applied.
// chromem has no partial update; re-adding a document with the same id
// overwrites it.
func (b *Backend) UpdateFields(ctx context.Context, id string, patch memory.FieldPatch) error {
	owner, e, err := b.locate(ctx, id)
	if err != nil {
		return err
	}
	if patch.LastAccessedAt != nil {
		e.LastAccessedAt = *patch.LastAccessedAt
	}
	if patch.Importance != nil {
		e.Importance = *patch.Importance
	}
	col, err := b.getOrCreateCollection(owner)
	if err != nil {
		return err
	}
	return b.addEntry(ctx, col, e)
}

// Delete removes an entry. Deleting an absent id is a no-op.
func (b *Backend) Delete(ctx context.Context, id string) error {
	owner, _, err := b.locate(ctx, id)
	if errors.Is(err, memory.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b.mu.RLock()
	col := b.collections[owner]
	b.mu.RUnlock()
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	b.mu.Lock()
	delete(b.owners, id)
	b.mu.Unlock()
	return nil
}

// Close releases resources. chromem flushes on every write, nothing to do.
func (b *Backend) Close() error {
	return nil
}

// locate finds an entry's owner and current stored state. The owner map is
// consulted first; entries persisted by earlier runs are found by scanning
// collections once and learned.
func (b *Backend) locate(ctx context.Context, id string) (string, *memory.Entry, error) {
	b.mu.RLock()
	owner, known := b.owners[id]
	b.mu.RUnlock()

	if known {
		b.mu.RLock()
		col := b.collections[owner]
		b.mu.RUnlock()
		if col != nil {
			entries, err := b.dump(ctx, col)
			if err != nil {
				return "", nil, err
			}
			for _, e := range entries {
				if e.ID == id {
					return owner, e, nil
				}
			}
		}
		return "", nil, memory.ErrNotFound
	}

	b.mu.RLock()
	cols := make(map[string]*chromem.Collection, len(b.collections))
	for o, c := range b.collections {
		cols[o] = c
	}
	b.mu.RUnlock()

	for o, col := range cols {
		entries, err := b.dump(ctx, col)
		if err != nil {
			return "", nil, err
		}
		for _, e := range entries {
			if e.ID == id {
				b.mu.Lock()
				b.owners[id] = o
				b.mu.Unlock()
				return o, e, nil
			}
		}
	}
	return "", nil, memory.ErrNotFound
}

// dump returns every entry in a collection. chromem only exposes retrieval
// through similarity queries, so a unit probe vector with nResults equal
// to the collection size acts as a full scan; result order is irrelevant
// here. A concurrent add between Count and the query makes chromem reject
// nResults, so the query retries with a fresh count.
func (b *Backend) dump(ctx context.Context, col *chromem.Collection) ([]*memory.Entry, error) {
	probe := make([]float32, b.dimensions)
	probe[0] = 1

	var results []chromem.Result
	for attempt := 0; ; attempt++ {
		n := col.Count()
		if n == 0 {
			return nil, nil
		}
		var err error
		results, err = col.QueryEmbedding(ctx, probe, n, nil, nil)
		if err == nil {
			break
		}
		if attempt < 2 && isCountMismatchError(err) {
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	entries := make([]*memory.Entry, 0, len(results))
	for _, res := range results {
		var e memory.Entry
		if err := json.Unmarshal([]byte(res.Content), &e); err != nil {
			return nil, fmt.Errorf("unmarshal entry %s: %w", res.ID, err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// indexVector returns the embedding chromem indexes. Zero-magnitude
// vectors are replaced with a unit placeholder so chromem's normalization
// never divides by zero; the real embedding lives in the document payload.
func indexVector(embedding []float32, dimensions int) []float32 {
	for _, x := range embedding {
		if x != 0 {
			return append([]float32(nil), embedding...)
		}
	}
	placeholder := make([]float32, dimensions)
	placeholder[0] = 1
	return placeholder
}

func isCountMismatchError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "nResults must be") || strings.Contains(s, "number of documents")
}
