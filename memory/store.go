package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// touchTimeout bounds each best-effort access-time write to the backend.
const touchTimeout = 5 * time.Second

// Store orchestrates the memory subsystem: it owns the in-process index and
// the LRU cache, and composes a Backend and an Embedder.
//
// Construct one Store per process with New and inject it into callers;
// there is no package-level instance. All methods are safe for concurrent
// use. Writes that mutate the index (save, delete, importance update,
// prune removal) are serialized through a single mutex; reads take the
// lock only to snapshot or touch, never across backend or embedder I/O.
type Store struct {
	backend  Backend
	embedder Embedder
	cfg      *Config
	policy   PrunePolicy
	log      *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	index  map[string]*Entry
	loaded map[string]bool // owners whose backend corpus is merged into index
	cache  *lruCache

	touches sync.WaitGroup
}

// Option configures the store.
type Option func(*Store)

// WithConfig overrides the default configuration. Zero fields keep their
// DefaultConfig values.
func WithConfig(cfg *Config) Option {
	return func(s *Store) {
		if cfg != nil {
			s.cfg = cfg.withDefaults()
		}
	}
}

// WithLogger sets a structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over the given backend and embedder.
func New(backend Backend, embedder Embedder, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		embedder: embedder,
		cfg:      DefaultConfig.withDefaults(),
		log:      zap.NewNop(),
		now:      time.Now,
		index:    make(map[string]*Entry),
		loaded:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy = PrunePolicy{ImportanceFloor: *s.cfg.ImportanceFloor}
	s.cache = newLRUCache(s.cfg.CacheCapacity)
	return s
}

// EntryOption sets optional fields on a new entry.
type EntryOption func(*Entry)

// WithTags sets the entry's tag set. Duplicates are collapsed; insertion
// order is irrelevant.
func WithTags(tags ...string) EntryOption {
	return func(e *Entry) {
		seen := make(map[string]bool, len(tags))
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
		e.Tags = out
	}
}

// WithImportance sets the entry's importance. Values outside [0, 1] are
// clamped, not rejected.
func WithImportance(score float64) EntryOption {
	return func(e *Entry) {
		e.Importance = clampImportance(score)
	}
}

// Save creates a new entry for ownerID from content.
//
// The embedding is computed synchronously; an unavailable embedder is a
// soft condition that falls back to the zero vector. The durable write is
// synchronous and all-or-nothing: on a backend failure no in-memory state
// is created and a *PersistenceError is returned.
func (s *Store) Save(ctx context.Context, ownerID, content string, opts ...EntryOption) (*Entry, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	now := s.now()
	e := &Entry{
		ID:             uuid.New().String(),
		Content:        content,
		CreatedAt:      now,
		LastAccessedAt: now,
		Importance:     *s.cfg.DefaultImportance,
		OwnerID:        ownerID,
	}
	for _, opt := range opts {
		opt(e)
	}

	vec, err := embedText(ctx, s.embedder, s.cfg.EmbeddingDimensions, s.cfg.MaxTokens, content)
	if err != nil {
		return nil, err
	}
	e.Embedding = vec

	if err := s.backend.Insert(ctx, e); err != nil {
		return nil, &PersistenceError{Op: "insert", ID: e.ID, Err: err}
	}

	s.mu.Lock()
	s.index[e.ID] = e
	s.cache.put(e.ID, e)
	out := e.clone()
	s.mu.Unlock()

	s.log.Debug("memory saved",
		zap.String("id", e.ID),
		zap.String("owner", ownerID),
		zap.Int("tags", len(e.Tags)))
	return out, nil
}

// Get retrieves an entry by id. Lookup order: cache, index, backend; a
// backend hit is promoted into both. Any hit bumps LastAccessedAt
// immediately in memory and best-effort asynchronously in the backend.
// Returns ErrNotFound when the id does not exist anywhere.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.cache.get(id); ok {
		e.LastAccessedAt = now
		out := e.clone()
		s.mu.Unlock()
		s.touchAsync([]string{id}, now)
		return out, nil
	}
	if e, ok := s.index[id]; ok {
		e.LastAccessedAt = now
		s.cache.put(id, e)
		out := e.clone()
		s.mu.Unlock()
		s.touchAsync([]string{id}, now)
		return out, nil
	}
	s.mu.Unlock()

	fetched, err := s.backend.Fetch(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "fetch", ID: id, Err: err}
	}

	s.mu.Lock()
	e, ok := s.index[id]
	if !ok {
		e = fetched
		s.index[id] = e
	}
	e.LastAccessedAt = now
	s.cache.put(id, e)
	out := e.clone()
	s.mu.Unlock()

	s.touchAsync([]string{id}, now)
	return out, nil
}

// SearchResult is a similarity hit with its cosine score.
type SearchResult struct {
	Entry *Entry
	Score float64
}

// SearchSimilar embeds query and ranks every live entry owned by ownerID
// by cosine similarity, descending. Ties break by LastAccessedAt
// descending, then id ascending, so result order is deterministic. The top
// limit entries are returned (limit <= 0 uses the configured default) and
// each returned entry's access time is touched.
func (s *Store) SearchSimilar(ctx context.Context, ownerID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultSearchLimit
	}

	queryVec, err := embedText(ctx, s.embedder, s.cfg.EmbeddingDimensions, s.cfg.MaxTokens, query)
	if err != nil {
		return nil, err
	}
	if err := s.loadOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	type candidate struct {
		e            *Entry
		score        float64
		lastAccessed time.Time
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, 64)
	for _, e := range s.index {
		if e.OwnerID != ownerID {
			continue
		}
		score := Cosine(queryVec, e.Embedding)
		if s.cfg.MinSimilarity > 0 && score < s.cfg.MinSimilarity {
			continue
		}
		candidates = append(candidates, candidate{e: e, score: score, lastAccessed: e.LastAccessedAt})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.lastAccessed.Equal(b.lastAccessed) {
			return a.lastAccessed.After(b.lastAccessed)
		}
		return a.e.ID < b.e.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	now := s.now()
	results := make([]SearchResult, 0, len(candidates))
	ids := make([]string, 0, len(candidates))

	s.mu.Lock()
	for _, c := range candidates {
		// A concurrent Delete may have removed the entry after the scoring
		// snapshot; caching it again would resurrect it.
		if _, live := s.index[c.e.ID]; !live {
			continue
		}
		c.e.LastAccessedAt = now
		s.cache.put(c.e.ID, c.e)
		results = append(results, SearchResult{Entry: c.e.clone(), Score: c.score})
		ids = append(ids, c.e.ID)
	}
	s.mu.Unlock()

	s.touchAsync(ids, now)
	s.log.Debug("similarity search",
		zap.String("owner", ownerID),
		zap.Int("results", len(results)))
	return results, nil
}

// SearchTags returns entries owned by ownerID whose tag set intersects
// tags, sorted by importance descending with ties broken by
// LastAccessedAt descending then id ascending. The top limit entries are
// returned and touched.
func (s *Store) SearchTags(ctx context.Context, ownerID string, tags []string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultSearchLimit
	}
	if err := s.loadOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	type candidate struct {
		e            *Entry
		importance   float64
		lastAccessed time.Time
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, 16)
	for _, e := range s.index {
		if e.OwnerID != ownerID || !e.HasAnyTag(tags) {
			continue
		}
		candidates = append(candidates, candidate{e: e, importance: e.Importance, lastAccessed: e.LastAccessedAt})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.importance != b.importance {
			return a.importance > b.importance
		}
		if !a.lastAccessed.Equal(b.lastAccessed) {
			return a.lastAccessed.After(b.lastAccessed)
		}
		return a.e.ID < b.e.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	now := s.now()
	out := make([]*Entry, 0, len(candidates))
	ids := make([]string, 0, len(candidates))

	s.mu.Lock()
	for _, c := range candidates {
		if _, live := s.index[c.e.ID]; !live {
			continue
		}
		c.e.LastAccessedAt = now
		s.cache.put(c.e.ID, c.e)
		out = append(out, c.e.clone())
		ids = append(ids, c.e.ID)
	}
	s.mu.Unlock()

	s.touchAsync(ids, now)
	return out, nil
}

// UpdateImportance sets an entry's importance, clamped into [0, 1]. The
// in-memory index and cache are updated together with a synchronous
// backend write; a failed durable write rolls the in-memory change back.
// Returns ErrNotFound when the id does not exist.
func (s *Store) UpdateImportance(ctx context.Context, id string, score float64) error {
	score = clampImportance(score)

	s.mu.Lock()
	e, ok := s.index[id]
	s.mu.Unlock()
	if !ok {
		fetched, err := s.backend.Fetch(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return &PersistenceError{Op: "fetch", ID: id, Err: err}
		}
		s.mu.Lock()
		if cur, exists := s.index[id]; exists {
			e = cur
		} else {
			e = fetched
			s.index[id] = e
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	prev := e.Importance
	e.Importance = score
	s.mu.Unlock()

	if err := s.backend.UpdateFields(ctx, id, FieldPatch{Importance: &score}); err != nil {
		s.mu.Lock()
		if cur, exists := s.index[id]; exists && cur == e {
			e.Importance = prev
		}
		s.mu.Unlock()
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "update", ID: id, Err: err}
	}
	return nil
}

// Delete removes an entry from the cache, the index, and the backend.
// Idempotent: deleting an already-absent id returns ErrNotFound without
// side effects. The durable delete happens before in-memory removal so a
// backend failure leaves the entry fully intact.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	_, inMemory := s.index[id]
	s.mu.RUnlock()

	if !inMemory {
		_, err := s.backend.Fetch(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return &PersistenceError{Op: "fetch", ID: id, Err: err}
		}
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		return &PersistenceError{Op: "delete", ID: id, Err: err}
	}

	s.mu.Lock()
	delete(s.index, id)
	s.cache.remove(id)
	s.mu.Unlock()

	s.log.Debug("memory deleted", zap.String("id", id))
	return nil
}

// Prune removes entries created before olderThan. With keepImportant set,
// entries scored at or above the configured importance floor survive
// regardless of age.
//
// The sweep covers durable storage, not just this process's index: owners
// never loaded are fetched from the backend first, so a freshly restarted
// store still finds every eligible entry. Eligible ids are then
// snapshotted under the lock and deleted one at a time with an existence
// re-check, since a concurrent Delete may already have removed them; that
// is a no-op, not an error. Per-id backend failures are collected in the
// report and never abort the batch. The returned error is ctx
// cancellation, or a *PersistenceError when durable storage cannot be
// enumerated before anything was removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time, keepImportant bool) (*PruneReport, error) {
	if err := s.mergeStale(ctx, olderThan, keepImportant); err != nil {
		return nil, err
	}

	s.mu.RLock()
	eligible := make([]string, 0, 16)
	for id, e := range s.index {
		if s.policy.Eligible(e, olderThan, keepImportant) {
			eligible = append(eligible, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(eligible)

	report := &PruneReport{}
	for _, id := range eligible {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.mu.RLock()
		_, exists := s.index[id]
		s.mu.RUnlock()
		if !exists {
			continue
		}

		if err := s.backend.Delete(ctx, id); err != nil {
			report.Failed = append(report.Failed, PruneFailure{
				ID:  id,
				Err: &PersistenceError{Op: "delete", ID: id, Err: err},
			})
			continue
		}

		s.mu.Lock()
		delete(s.index, id)
		s.cache.remove(id)
		s.mu.Unlock()
		report.Removed = append(report.Removed, id)
	}

	s.log.Info("prune completed",
		zap.Time("older_than", olderThan),
		zap.Int("removed", len(report.Removed)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// Count returns the number of live entries owned by ownerID.
func (s *Store) Count(ctx context.Context, ownerID string) (int, error) {
	if err := s.loadOwner(ctx, ownerID); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.index {
		if e.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// Flush blocks until every in-flight best-effort touch write has finished,
// or ctx expires. Callers that need access times durable before shutdown
// await it; everyone else can ignore touches entirely.
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.touches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains in-flight touches and closes the backend.
func (s *Store) Close() error {
	s.touches.Wait()
	return s.backend.Close()
}

// mergeStale pulls prune-eligible durable entries into the index for every
// owner whose corpus is not already loaded. The age and importance
// conditions push down into the backend scan, so unloaded owners cost one
// filtered fetch each instead of a full corpus load. Owners are not marked
// loaded: the merge is partial.
func (s *Store) mergeStale(ctx context.Context, olderThan time.Time, keepImportant bool) error {
	filter := &EntryFilter{CreatedBefore: &olderThan}
	if keepImportant {
		filter.ImportanceBelow = &s.policy.ImportanceFloor
	}

	owners, err := s.backend.Owners(ctx)
	if err != nil {
		return &PersistenceError{Op: "fetch", Err: err}
	}
	for _, owner := range owners {
		s.mu.RLock()
		loaded := s.loaded[owner]
		s.mu.RUnlock()
		if loaded {
			continue
		}

		entries, err := s.backend.FetchAll(ctx, owner, filter)
		if err != nil {
			return &PersistenceError{Op: "fetch", Err: err}
		}
		s.mu.Lock()
		for _, e := range entries {
			if _, exists := s.index[e.ID]; !exists {
				s.index[e.ID] = e
			}
		}
		s.mu.Unlock()
	}
	return nil
}

// loadOwner merges the owner's durable corpus into the index once per
// process, so scans cover entries persisted by earlier runs. Entries
// already indexed win over their stored copies.
func (s *Store) loadOwner(ctx context.Context, ownerID string) error {
	s.mu.RLock()
	loaded := s.loaded[ownerID]
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	entries, err := s.backend.FetchAll(ctx, ownerID, nil)
	if err != nil {
		return &PersistenceError{Op: "fetch", Err: err}
	}

	s.mu.Lock()
	if !s.loaded[ownerID] {
		for _, e := range entries {
			if _, exists := s.index[e.ID]; !exists {
				s.index[e.ID] = e
			}
		}
		s.loaded[ownerID] = true
	}
	s.mu.Unlock()
	return nil
}

// touchAsync persists new access times without blocking the caller.
// Failure to persist a touch is absorbed: the in-memory value is already
// authoritative for this process, and a lost durable touch is an accepted
// trade-off.
func (s *Store) touchAsync(ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}
	s.touches.Add(1)
	go func() {
		defer s.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		for _, id := range ids {
			if err := s.backend.UpdateFields(ctx, id, FieldPatch{LastAccessedAt: &at}); err != nil {
				s.log.Debug("access-time touch not persisted",
					zap.String("id", id), zap.Error(err))
			}
		}
	}()
}
