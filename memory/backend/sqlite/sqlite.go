// Package sqlite implements memory.Backend on a local SQLite database.
// It is the durable backend recommended for production single-process
// deployments: entries survive restarts and every CRUD operation is a
// point query.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	content TEXT NOT NULL,
	tags TEXT,
	embedding BLOB,
	importance REAL NOT NULL DEFAULT 0.5,
	created_at DATETIME NOT NULL,
	last_accessed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
`

// Backend stores entries in a single memories table. Tags and embeddings
// are JSON-encoded so the persisted shape matches the cross-process entry
// schema.
type Backend struct {
	db *sql.DB
}

// Open creates or opens the database at path. WAL mode keeps concurrent
// readers cheap while the store serializes writers.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Backend{db: db}, nil
}

// Fetch retrieves an entry by id.
func (b *Backend) Fetch(ctx context.Context, id string) (*memory.Entry, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT id, owner_id, content, tags, embedding, importance, created_at, last_accessed_at
		FROM memories WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	return e, err
}

// FetchAll retrieves the entries owned by ownerID that match filter. The
// filter conditions push down into the query.
func (b *Backend) FetchAll(ctx context.Context, ownerID string, filter *memory.EntryFilter) ([]*memory.Entry, error) {
	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}
	if filter != nil {
		if filter.CreatedBefore != nil {
			where = append(where, "created_at < ?")
			args = append(args, *filter.CreatedBefore)
		}
		if filter.ImportanceBelow != nil {
			where = append(where, "importance < ?")
			args = append(args, *filter.ImportanceBelow)
		}
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT id, owner_id, content, tags, embedding, importance, created_at, last_accessed_at
		FROM memories WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*memory.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Owners enumerates every owner with at least one stored entry.
func (b *Backend) Owners(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM memories ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// Insert persists a new entry.
func (b *Backend) Insert(ctx context.Context, e *memory.Entry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	embedding, err := json.Marshal(e.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO memories (id, owner_id, content, tags, embedding, importance, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.OwnerID, e.Content, string(tags), embedding, e.Importance, e.CreatedAt, e.LastAccessedAt)
	return err
}

// UpdateFields applies a partial update. Returns memory.ErrNotFound when
// the id no longer exists.
func (b *Backend) UpdateFields(ctx context.Context, id string, patch memory.FieldPatch) error {
	set := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if patch.LastAccessedAt != nil {
		set = append(set, "last_accessed_at = ?")
		args = append(args, *patch.LastAccessedAt)
	}
	if patch.Importance != nil {
		set = append(set, "importance = ?")
		args = append(args, *patch.Importance)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)

	query := "UPDATE memories SET " + strings.Join(set, ", ") + " WHERE id = ?"
	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// Delete removes an entry. Deleting an absent id is a no-op.
func (b *Backend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	return err
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*memory.Entry, error) {
	var e memory.Entry
	var tags sql.NullString
	var embedding []byte
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Content, &tags, &embedding,
		&e.Importance, &e.CreatedAt, &e.LastAccessedAt); err != nil {
		return nil, err
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &e.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &e.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	return &e, nil
}
