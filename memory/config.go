package memory

// Config holds Store tuning knobs. Zero fields fall back to the
// DefaultConfig value, so callers only set what they care about.
type Config struct {
	// EmbeddingDimensions is the process-wide vector size. Every live
	// entry's embedding has this length so cosine similarity is always
	// well-defined across an owner's corpus.
	// Default: 300.
	EmbeddingDimensions int

	// CacheCapacity bounds the LRU cache. Eviction only drops the
	// in-process shortcut, never durable data.
	// Default: 100.
	CacheCapacity int

	// DefaultImportance is assigned to entries saved without an explicit
	// importance. Nil falls back to 0.5; zero is a valid explicit value,
	// set it with Float64(0).
	DefaultImportance *float64

	// ImportanceFloor protects entries from pruning: entries scored at or
	// above it are never pruned unless the caller disables the guard.
	// Nil falls back to 0.7; zero is a valid explicit value.
	ImportanceFloor *float64

	// MaxTokens caps how many leading tokens of content feed the
	// embedding. Default: 100.
	MaxTokens int

	// DefaultSearchLimit is used when a search is called with limit <= 0.
	// Default: 5.
	DefaultSearchLimit int

	// MinSimilarity drops similarity results scoring below it. Zero keeps
	// every candidate, including zero-vector entries.
	// Note: tiny local models produce lower absolute scores than
	// production embedders, so tune per embedder.
	MinSimilarity float64
}

// DefaultConfig holds the defaults for the local SDK.
var DefaultConfig = &Config{
	EmbeddingDimensions: 300,
	CacheCapacity:       100,
	DefaultImportance:   Float64(0.5),
	ImportanceFloor:     Float64(0.7),
	MaxTokens:           100,
	DefaultSearchLimit:  5,
	MinSimilarity:       0,
}

// Float64 returns a pointer to v, for the optional Config fields.
func Float64(v float64) *float64 { return &v }

// withDefaults copies c with zero fields replaced by DefaultConfig values.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.EmbeddingDimensions <= 0 {
		out.EmbeddingDimensions = DefaultConfig.EmbeddingDimensions
	}
	if out.CacheCapacity <= 0 {
		out.CacheCapacity = DefaultConfig.CacheCapacity
	}
	if out.DefaultImportance == nil {
		out.DefaultImportance = DefaultConfig.DefaultImportance
	}
	if out.ImportanceFloor == nil {
		out.ImportanceFloor = DefaultConfig.ImportanceFloor
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultConfig.MaxTokens
	}
	if out.DefaultSearchLimit <= 0 {
		out.DefaultSearchLimit = DefaultConfig.DefaultSearchLimit
	}
	return &out
}
