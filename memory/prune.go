package memory

import "time"

// PrunePolicy decides which entries are eligible for batch removal.
type PrunePolicy struct {
	// ImportanceFloor guards high-value entries: when keepImportant is
	// set, entries scored at or above the floor survive regardless of age.
	ImportanceFloor float64
}

// Eligible reports whether e may be pruned given the age cutoff.
func (p PrunePolicy) Eligible(e *Entry, olderThan time.Time, keepImportant bool) bool {
	if !e.CreatedAt.Before(olderThan) {
		return false
	}
	if keepImportant && e.Importance >= p.ImportanceFloor {
		return false
	}
	return true
}

// PruneFailure records a single entry the batch could not delete.
type PruneFailure struct {
	ID  string
	Err error
}

// PruneReport summarizes a prune batch. Partial failure is expected and
// non-fatal: ids already removed stay removed.
type PruneReport struct {
	Removed []string
	Failed  []PruneFailure
}
