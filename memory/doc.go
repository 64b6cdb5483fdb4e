// Package memory provides durable, semantically searchable long-term memory
// for AI assistants.
//
// A memory is a short text fact about a user. Facts are retrievable by exact
// id, by tag, or by semantic relevance to a new query. Retrieval is backed by
// a bounded LRU cache, an in-process index, and a durable backend, kept
// mutually consistent under concurrent reads and writes.
//
// Architecture:
//   - Backend: durable storage (sqlite for production, chromem-go embedded)
//   - Embedder: token-to-vector conversion (mock for local, ONNX for offline
//     semantic search, API embedders in production)
//   - Store: orchestrates caching, indexing, similarity search, and pruning
//
// Consistency model:
//   - Creates, deletes, and importance updates are synchronous with the
//     backend; a failed durable write leaves no in-memory state behind.
//   - Access-time touches are best-effort and asynchronous; Flush provides
//     a barrier for callers that need them persisted.
//
// Local SDK Implementation:
//   - sqlite backend (durable, queryable)
//   - chromem-go backend (embedded vector database, pure Go)
//   - mock embedder (deterministic, no model files required)
//
// Production Implementation:
//   - pgvector or a managed vector store behind the Backend interface
//   - API-based embedder behind the Embedder interface
//   - external scheduler invoking Prune on a daily cadence
package memory
