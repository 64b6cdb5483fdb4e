package memory

import "context"

// Backend is the durable storage interface. The Store treats it as the
// source of truth: losing a cache or index entry never loses data.
//
// Implementations: sqlite.Backend (production), chromem.Backend (embedded
// local SDK). Production deployments can swap in pgvector or a managed
// store behind this interface.
//
// Backends are reachable concurrently and must be externally synchronized.
type Backend interface {
	// Fetch retrieves an entry by id. Returns ErrNotFound when absent.
	Fetch(ctx context.Context, id string) (*Entry, error)

	// FetchAll retrieves the entries owned by ownerID that match filter.
	// A nil filter retrieves the owner's whole corpus.
	FetchAll(ctx context.Context, ownerID string, filter *EntryFilter) ([]*Entry, error)

	// Owners enumerates every owner id with at least one stored entry,
	// so maintenance can sweep owners this process has never touched.
	Owners(ctx context.Context) ([]string, error)

	// Insert persists a new entry.
	Insert(ctx context.Context, e *Entry) error

	// UpdateFields applies a partial update to an existing entry.
	// Returns ErrNotFound when the id no longer exists.
	UpdateFields(ctx context.Context, id string, patch FieldPatch) error

	// Delete removes an entry. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// Embedder converts a single token to a fixed-dimension vector.
// Implementations: mock.Embedder (testing, local), onnx.Embedder (offline
// semantic search), API embedders in production.
//
// VectorFor returns ErrEmbeddingUnavailable for tokens it has no vector
// for; the store skips those tokens rather than failing the operation.
type Embedder interface {
	VectorFor(ctx context.Context, token string) ([]float32, error)

	// Dimensions returns the embedding vector size. Every vector returned
	// by VectorFor must have this length.
	Dimensions() int
}
