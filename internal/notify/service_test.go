package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func openTestDB(t *testing.T) *sql.DB {
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
		INSERT INTO patients (id, name) VALUES ('p1', '李四');
	`)
	require.NoError(t, err)
	return db
}

func TestNewServiceDisabledWithoutSender(t *testing.T) {
	db := openTestDB(t)
	repo := patients.NewRepository(db)

	require.Nil(t, NewService(nil, repo, "doc@example.com", "张医生", logging.New("error")))
	require.Nil(t, NewService(&captureSender{}, repo, "", "张医生", logging.New("error")))
}

func TestConsultationPaidSendsEmail(t *testing.T) {
	db := openTestDB(t)
	sender := &captureSender{}
	svc := NewService(sender, patients.NewRepository(db), "doc@example.com", "张医生", logging.New("error"))
	require.NotNil(t, svc)

	svc.ConsultationPaid(context.Background(), "p1", 7)

	require.Len(t, sender.sent, 1)
	require.Equal(t, "doc@example.com", sender.sent[0].To)
	require.Contains(t, sender.sent[0].Subject, "李四")
	require.Contains(t, sender.sent[0].Body, "7")
}

func TestConsultationPaidSwallowsSendErrors(t *testing.T) {
	db := openTestDB(t)
	sender := &captureSender{err: errors.New("smtp down")}
	svc := NewService(sender, patients.NewRepository(db), "doc@example.com", "张医生", logging.New("error"))

	svc.ConsultationPaid(context.Background(), "p1", 7)
}

func TestConsultationPaidNilService(t *testing.T) {
	var svc *Service
	svc.ConsultationPaid(context.Background(), "p1", 1)
}
