package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Categories. Admin entries answer front-desk questions (hours, location,
// billing); everything else is clinical reference material.
const (
	CategoryAdmin   = "admin"
	CategoryGeneral = "general"
)

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("knowledge: entry not found")

// Entry is a knowledge base snippet with an optional embedding.
type Entry struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Embedding []float32 `json:"-"`
	CreatedAt string    `json:"created_at"`
}

// Repository persists knowledge base entries.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("knowledge: db required")
	}
	return &Repository{db: db}
}

// Create inserts an entry and returns its id.
func (r *Repository) Create(ctx context.Context, content, category string, embedding []float32) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO knowledge_base (content, embedding, category) VALUES (?, ?, ?)`,
		content, encodeEmbedding(embedding), category)
	if err != nil {
		return 0, fmt.Errorf("knowledge: insert failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("knowledge: last insert id failed: %w", err)
	}
	return id, nil
}

// Update replaces an entry's content and embedding; the category stays.
func (r *Repository) Update(ctx context.Context, id int64, content string, embedding []float32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE knowledge_base SET content = ?, embedding = ? WHERE id = ?`,
		content, encodeEmbedding(embedding), id)
	if err != nil {
		return fmt.Errorf("knowledge: update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("knowledge: rows affected failed: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM knowledge_base WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("knowledge: delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("knowledge: rows affected failed: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Get fetches one entry.
func (r *Repository) Get(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, content, category, embedding, created_at FROM knowledge_base WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return entry, err
}

// List returns all entries, newest first.
func (r *Repository) List(ctx context.Context) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, content, category, embedding, created_at
		 FROM knowledge_base ORDER BY created_at DESC, id DESC`)
}

// ListByCategory returns entries in one category.
func (r *Repository) ListByCategory(ctx context.Context, category string) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, content, category, embedding, created_at
		 FROM knowledge_base WHERE category = ? ORDER BY created_at DESC, id DESC`, category)
}

// ListExcludingCategory returns entries outside one category.
func (r *Repository) ListExcludingCategory(ctx context.Context, category string) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, content, category, embedding, created_at
		 FROM knowledge_base WHERE category != ? ORDER BY created_at DESC, id DESC`, category)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var embedding, category sql.NullString
	if err := row.Scan(&e.ID, &e.Content, &category, &embedding, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("knowledge: scan failed: %w", err)
	}
	e.Category = category.String
	if category.String == "" {
		e.Category = CategoryGeneral
	}
	if embedding.Valid && embedding.String != "" {
		var vec []float32
		if err := json.Unmarshal([]byte(embedding.String), &vec); err == nil {
			e.Embedding = vec
		}
	}
	return &e, nil
}

func encodeEmbedding(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return string(data)
}
