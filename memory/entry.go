package memory

import "time"

// Entry is a single stored fact with content, metadata, and an embedding.
//
// The JSON shape is the cross-process persisted form shared by all Backend
// implementations, so entries written by one backend remain readable by
// another.
//
// Field mutability after creation:
//   - ID, Content, OwnerID, CreatedAt, Embedding: immutable
//   - LastAccessedAt: bumped on every retrieval or search hit
//   - Importance: settable through Store.UpdateImportance
//   - Tags: replaceable as a whole, never edited in place
type Entry struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	Importance     float64   `json:"importanceScore"`
	Tags           []string  `json:"tags"`
	OwnerID        string    `json:"ownerId"`
	Embedding      []float32 `json:"embedding"`
}

// HasAnyTag reports whether the entry's tag set intersects tags.
func (e *Entry) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// clone returns a deep copy so callers can never mutate indexed state.
func (e *Entry) clone() *Entry {
	out := *e
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Embedding != nil {
		out.Embedding = append([]float32(nil), e.Embedding...)
	}
	return &out
}

// FieldPatch is a partial update applied through Backend.UpdateFields.
// Nil fields are left untouched.
type FieldPatch struct {
	LastAccessedAt *time.Time
	Importance     *float64
}

// EntryFilter narrows a Backend.FetchAll scan. Nil fields match
// everything; backends may push set conditions into their queries.
type EntryFilter struct {
	// CreatedBefore matches entries created strictly before the cutoff.
	CreatedBefore *time.Time

	// ImportanceBelow matches entries scored strictly below the bound.
	ImportanceBelow *float64
}

// Matches reports whether e satisfies every set condition. A nil filter
// matches everything.
func (f *EntryFilter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.CreatedBefore != nil && !e.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.ImportanceBelow != nil && e.Importance >= *f.ImportanceBelow {
		return false
	}
	return true
}

// clampImportance forces a score into [0, 1]. Out-of-range values are
// clamped rather than rejected; callers never see an error for them.
func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
