package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Fact sources.
const (
	SourcePatient = "patient"
	SourceDoctor  = "doctor"
	SourceAI      = "ai"
	SourceImport  = "import"

	// legacySourceDialogue rows are purged by migration 0002 and always
	// excluded from retrieval.
	legacySourceDialogue = "dialogue"
)

// Memory is an extracted fact about a patient, optionally embedded.
type Memory struct {
	ID        int64     `json:"id"`
	PatientID string    `json:"patient_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Source    string    `json:"source"`
	CreatedAt string    `json:"created_at"`
}

// PendingFact is a fact ready to insert; Embedding may be nil when the
// embedding call degraded.
type PendingFact struct {
	Content   string
	Embedding []float32
}

// Repository persists memories.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a repo backed by database/sql.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("memory: db required")
	}
	return &Repository{db: db}
}

// Exists reports whether the exact (patient, source, content) tuple is stored.
func (r *Repository) Exists(ctx context.Context, patientID, source, content string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM memories WHERE patient_id = ? AND source = ? AND content = ? LIMIT 1`,
		patientID, source, content).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memory: exists check failed: %w", err)
	}
	return true, nil
}

// SaveBatch inserts all pending facts in one transaction.
func (r *Repository) SaveBatch(ctx context.Context, patientID, source string, facts []PendingFact) error {
	if len(facts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin tx failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO memories (patient_id, content, embedding, source) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("memory: prepare insert failed: %w", err)
	}
	defer stmt.Close()

	for _, fact := range facts {
		var embedding any
		if len(fact.Embedding) > 0 {
			data, err := json.Marshal(fact.Embedding)
			if err != nil {
				return fmt.Errorf("memory: encode embedding failed: %w", err)
			}
			embedding = string(data)
		}
		if _, err := stmt.ExecContext(ctx, patientID, fact.Content, embedding, source); err != nil {
			return fmt.Errorf("memory: insert failed: %w", err)
		}
	}
	return tx.Commit()
}

// NewestForRetrieval returns up to limit newest memories, excluding the
// legacy dialogue category, newest first.
func (r *Repository) NewestForRetrieval(ctx context.Context, patientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 300
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, patient_id, content, embedding, source, created_at
		 FROM memories
		 WHERE patient_id = ? AND source != ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		patientID, legacySourceDialogue, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: retrieval query failed: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// LastN returns the n most recent memories in chronological order, for the
// copilot context bundle.
func (r *Repository) LastN(ctx context.Context, patientID string, n int) ([]Memory, error) {
	if n <= 0 {
		n = 20
	}
	memories, err := r.NewestForRetrieval(ctx, patientID, n)
	if err != nil {
		return nil, err
	}
	// newest-first -> chronological
	for i, j := 0, len(memories)-1; i < j; i, j = i+1, j-1 {
		memories[i], memories[j] = memories[j], memories[i]
	}
	return memories, nil
}

// AllForPatient returns every memory for similarity scoring.
func (r *Repository) AllForPatient(ctx context.Context, patientID string) ([]Memory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, patient_id, content, embedding, source, created_at
		 FROM memories WHERE patient_id = ? ORDER BY created_at ASC, id ASC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("memory: all query failed: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// ListForPatient returns recent memories for display.
func (r *Repository) ListForPatient(ctx context.Context, patientID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.NewestForRetrieval(ctx, patientID, limit)
}

func collect(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		var embedding sql.NullString
		var source sql.NullString
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Content, &embedding, &source, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan failed: %w", err)
		}
		m.Source = source.String
		if embedding.Valid && embedding.String != "" {
			// Rows with unreadable embeddings stay usable as plain text.
			var vec []float32
			if err := json.Unmarshal([]byte(embedding.String), &vec); err == nil {
				m.Embedding = vec
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
