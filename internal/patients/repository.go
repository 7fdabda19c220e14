package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultPersona = "新创建患者，暂无详细画像。"

// Repository stores patients in the relational database.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a repo backed by database/sql.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("patients: db required")
	}
	return &Repository{db: db}
}

// Create inserts a new patient row with the default persona.
func (r *Repository) Create(ctx context.Context, id string, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO patients (id, name, age, gender, condition, persona)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		id,
		req.Name,
		nullableInt(req.Age),
		nullString(req.Gender),
		nullString(req.Condition),
		defaultPersona,
	); err != nil {
		return nil, fmt.Errorf("patients: insert failed: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches one patient.
func (r *Repository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `
		SELECT id, name, age, gender, condition, persona, created_at
		FROM patients
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return p, nil
}

// Exists reports whether the patient row is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM patients WHERE id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("patients: exists check failed: %w", err)
	}
	return true, nil
}

// List returns all patients, newest first.
func (r *Repository) List(ctx context.Context) ([]Patient, error) {
	query := `
		SELECT id, name, age, gender, condition, persona, created_at
		FROM patients
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("patients: list failed: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan failed: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListWithConsultStatus decorates every patient with whether a paid,
// un-ended consultation exists (doctor visibility).
func (r *Repository) ListWithConsultStatus(ctx context.Context) ([]PatientWithConsultStatus, error) {
	query := `
		SELECT
			p.id, p.name, p.age, p.gender, p.condition, p.persona, p.created_at,
			EXISTS(
				SELECT 1 FROM doctor_consultations c
				WHERE c.patient_id = p.id
				  AND c.status = 'paid'
				  AND c.ended_at IS NULL
				LIMIT 1
			)
		FROM patients p
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("patients: list with consult status failed: %w", err)
	}
	defer rows.Close()

	var out []PatientWithConsultStatus
	for rows.Next() {
		var p Patient
		var age sql.NullInt64
		var gender, condition, persona, createdAt sql.NullString
		var active bool
		if err := rows.Scan(&p.ID, &p.Name, &age, &gender, &condition, &persona, &createdAt, &active); err != nil {
			return nil, fmt.Errorf("patients: scan failed: %w", err)
		}
		applyNullable(&p, age, gender, condition, persona, createdAt)
		out = append(out, PatientWithConsultStatus{Patient: p, HasActiveConsultation: active})
	}
	return out, rows.Err()
}

// ChatList returns every patient with the latest chat message preview.
func (r *Repository) ChatList(ctx context.Context) ([]ChatSummary, error) {
	query := `
		SELECT
			p.id, p.name, p.age, p.gender, p.condition, p.persona, p.created_at,
			m.content, m.created_at
		FROM patients p
		LEFT JOIN chat_messages m
			ON m.id = (
				SELECT id FROM chat_messages
				WHERE patient_id = p.id
				ORDER BY created_at DESC, id DESC
				LIMIT 1
			)
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("patients: chat list failed: %w", err)
	}
	defer rows.Close()

	var out []ChatSummary
	for rows.Next() {
		var p Patient
		var age sql.NullInt64
		var gender, condition, persona, createdAt sql.NullString
		var lastContent, lastCreatedAt sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &age, &gender, &condition, &persona, &createdAt, &lastContent, &lastCreatedAt); err != nil {
			return nil, fmt.Errorf("patients: scan failed: %w", err)
		}
		applyNullable(&p, age, gender, condition, persona, createdAt)
		out = append(out, ChatSummary{
			Patient:       p,
			LastContent:   lastContent.String,
			LastCreatedAt: lastCreatedAt.String,
		})
	}
	return out, rows.Err()
}

// Update rewrites the editable profile fields.
func (r *Repository) Update(ctx context.Context, id string, req *CreatePatientRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	query := `
		UPDATE patients
		SET name = ?, age = ?, gender = ?, condition = ?
		WHERE id = ?
	`
	res, err := r.db.ExecContext(ctx, query, req.Name, nullableInt(req.Age), nullString(req.Gender), nullString(req.Condition), id)
	if err != nil {
		return fmt.Errorf("patients: update failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// UpdatePersona replaces the running persona text.
func (r *Repository) UpdatePersona(ctx context.Context, id, persona string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE patients SET persona = ? WHERE id = ?`, persona, id); err != nil {
		return fmt.Errorf("patients: persona update failed: %w", err)
	}
	return nil
}

// GetPersona reads the current persona text ("" when unset).
func (r *Repository) GetPersona(ctx context.Context, id string) (string, error) {
	var persona sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT persona FROM patients WHERE id = ?`, id).Scan(&persona)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("patients: persona read failed: %w", err)
	}
	return persona.String, nil
}

// Delete removes the patient; children cascade via foreign keys.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("patients: delete failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var age sql.NullInt64
	var gender, condition, persona, createdAt sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &age, &gender, &condition, &persona, &createdAt); err != nil {
		return nil, err
	}
	applyNullable(&p, age, gender, condition, persona, createdAt)
	return &p, nil
}

func applyNullable(p *Patient, age sql.NullInt64, gender, condition, persona, createdAt sql.NullString) {
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	p.Gender = gender.String
	p.Condition = condition.String
	p.Persona = persona.String
	p.CreatedAt = createdAt.String
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
