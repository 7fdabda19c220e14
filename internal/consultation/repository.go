package consultation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository persists doctor consultations.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("consultation: db required")
	}
	return &Repository{db: db}
}

const consultationColumns = `id, patient_id, status, pay_token, fee_cents, trigger_source, created_at, paid_at, ended_at`

// Open returns the patient's current pending or paid consultation, or nil.
func (r *Repository) Open(ctx context.Context, patientID string) (*Consultation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM doctor_consultations
		 WHERE patient_id = ? AND status IN (?, ?) AND ended_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		patientID, StatusPending, StatusPaid)
	c, err := scanConsultation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ActivePaid returns the patient's paid, not-yet-ended consultation, or nil.
func (r *Repository) ActivePaid(ctx context.Context, patientID string) (*Consultation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM doctor_consultations
		 WHERE patient_id = ? AND status = ? AND ended_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		patientID, StatusPaid)
	c, err := scanConsultation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ByToken resolves a payment token, or nil when unknown.
func (r *Repository) ByToken(ctx context.Context, token string) (*Consultation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM doctor_consultations WHERE pay_token = ?`, token)
	c, err := scanConsultation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// Create inserts a pending consultation and returns it.
func (r *Repository) Create(ctx context.Context, patientID, token string, feeCents int, trigger string) (*Consultation, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO doctor_consultations (patient_id, status, pay_token, fee_cents, trigger_source)
		 VALUES (?, ?, ?, ?, ?)`,
		patientID, StatusPending, token, feeCents, trigger)
	if err != nil {
		return nil, fmt.Errorf("consultation: insert failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("consultation: last insert id failed: %w", err)
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM doctor_consultations WHERE id = ?`, id)
	return scanConsultation(row)
}

// MarkPaid flips a consultation to paid and stamps paid_at.
func (r *Repository) MarkPaid(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE doctor_consultations SET status = ?, paid_at = datetime('now') WHERE id = ?`,
		StatusPaid, id)
	if err != nil {
		return fmt.Errorf("consultation: mark paid failed: %w", err)
	}
	return nil
}

// ByID fetches one consultation, or nil when unknown.
func (r *Repository) ByID(ctx context.Context, id int64) (*Consultation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consultationColumns+` FROM doctor_consultations WHERE id = ?`, id)
	c, err := scanConsultation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// MarkEnded closes one consultation.
func (r *Repository) MarkEnded(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE doctor_consultations SET status = ?, ended_at = datetime('now') WHERE id = ?`,
		StatusEnded, id)
	if err != nil {
		return fmt.Errorf("consultation: mark ended failed: %w", err)
	}
	return nil
}

// ListPaid returns paid consultations joined with their patients, most
// recently paid first. This is the doctor console worklist.
func (r *Repository) ListPaid(ctx context.Context) ([]PaidEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.patient_id, c.status, c.pay_token, c.fee_cents, c.trigger_source,
		        c.created_at, c.paid_at, c.ended_at,
		        p.id, p.name, p.age, p.gender, p.condition, p.persona, p.created_at
		 FROM doctor_consultations c
		 JOIN patients p ON p.id = c.patient_id
		 WHERE c.status = ?
		 ORDER BY c.paid_at DESC, c.id DESC`, StatusPaid)
	if err != nil {
		return nil, fmt.Errorf("consultation: paid list failed: %w", err)
	}
	defer rows.Close()

	var out []PaidEntry
	for rows.Next() {
		var e PaidEntry
		var paidAt, endedAt, trigger sql.NullString
		var age sql.NullInt64
		var gender, condition, persona sql.NullString
		err := rows.Scan(&e.Consultation.ID, &e.Consultation.PatientID, &e.Consultation.Status,
			&e.Consultation.PayToken, &e.Consultation.FeeCents, &trigger,
			&e.Consultation.CreatedAt, &paidAt, &endedAt,
			&e.Patient.ID, &e.Patient.Name, &age, &gender, &condition, &persona, &e.Patient.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("consultation: paid list scan failed: %w", err)
		}
		e.Consultation.Trigger = trigger.String
		e.Consultation.PaidAt = paidAt.String
		e.Consultation.EndedAt = endedAt.String
		if age.Valid {
			v := int(age.Int64)
			e.Patient.Age = &v
		}
		e.Patient.Gender = gender.String
		e.Patient.Condition = condition.String
		e.Patient.Persona = persona.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a consultation row. Used when a token points at a patient
// that no longer exists.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM doctor_consultations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("consultation: delete failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsultation(row rowScanner) (*Consultation, error) {
	var c Consultation
	var paidAt, endedAt, trigger sql.NullString
	err := row.Scan(&c.ID, &c.PatientID, &c.Status, &c.PayToken, &c.FeeCents, &trigger, &c.CreatedAt, &paidAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("consultation: scan failed: %w", err)
	}
	c.Trigger = trigger.String
	c.PaidAt = paidAt.String
	c.EndedAt = endedAt.String
	return &c, nil
}
