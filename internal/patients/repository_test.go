package patients

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openPatientsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`
		CREATE TABLE patients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			age INTEGER,
			gender TEXT,
			condition TEXT,
			persona TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE doctor_consultations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			status TEXT NOT NULL,
			pay_token TEXT NOT NULL UNIQUE,
			fee_cents INTEGER NOT NULL,
			trigger_source TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			paid_at TEXT,
			ended_at TEXT
		);
	`)
	require.NoError(t, err)
	return db
}

func TestCreateAndGetPatient(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	age := 45
	created, err := repo.Create(ctx, "p1", &CreatePatientRequest{
		Name:      "王五",
		Age:       &age,
		Gender:    "男",
		Condition: "高血压",
	})
	require.NoError(t, err)
	require.Equal(t, "王五", created.Name)
	require.NotNil(t, created.Age)
	require.Equal(t, 45, *created.Age)
	require.Equal(t, "新创建患者，暂无详细画像。", created.Persona)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}

func TestCreatePatientRequiresName(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)

	_, err := repo.Create(context.Background(), "p1", &CreatePatientRequest{})
	require.Error(t, err)
}

func TestGetPatientNotFound(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)

	_, err := repo.GetByID(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestUpdatePatientNotFound(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)

	err := repo.Update(context.Background(), "ghost", &CreatePatientRequest{Name: "李四"})
	require.ErrorIs(t, err, ErrPatientNotFound)
}

func TestListWithConsultStatus(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "p1", &CreatePatientRequest{Name: "王五"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, "p2", &CreatePatientRequest{Name: "李四"})
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO doctor_consultations (patient_id, status, pay_token, fee_cents, trigger_source, paid_at)
		VALUES ('p1', 'paid', 'tok1', 1999, 'ai', datetime('now'))
	`)
	require.NoError(t, err)

	list, err := repo.ListWithConsultStatus(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]bool{}
	for _, p := range list {
		byID[p.ID] = p.HasActiveConsultation
	}
	require.True(t, byID["p1"])
	require.False(t, byID["p2"])
}

func TestChatListIncludesLatestPreview(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "p1", &CreatePatientRequest{Name: "王五"})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO chat_messages (patient_id, role, content) VALUES ('p1', 'patient', '第一条')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO chat_messages (patient_id, role, content) VALUES ('p1', 'ai', '最新一条')`)
	require.NoError(t, err)

	list, err := repo.ChatList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "最新一条", list[0].LastContent)
}

func TestPersonaRoundTrip(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "p1", &CreatePatientRequest{Name: "王五"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePersona(ctx, "p1", "老年高血压患者，主诉头晕"))
	persona, err := repo.GetPersona(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "老年高血压患者，主诉头晕", persona)
}

func TestDeletePatient(t *testing.T) {
	db := openPatientsDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "p1", &CreatePatientRequest{Name: "王五"})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "p1"))

	exists, err := repo.Exists(ctx, "p1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT(.|\n)*FROM patients").WillReturnError(errors.New("disk I/O error"))

	repo := NewRepository(db)
	_, err = repo.List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPersonaPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT persona FROM patients").WillReturnError(errors.New("database is locked"))

	repo := NewRepository(db)
	_, err = repo.GetPersona(context.Background(), "p1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "persona read failed")
	require.NoError(t, mock.ExpectationsWereMet())
}
