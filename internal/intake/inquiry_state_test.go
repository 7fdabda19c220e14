package intake

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
)

func openInquiryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`
		CREATE TABLE patients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE patient_ai_state (
			patient_id TEXT PRIMARY KEY,
			medical_inquiry_count INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		);
		INSERT INTO patients (id, name) VALUES ('p1', '王五');
	`)
	require.NoError(t, err)
	return db
}

func insertAI(t *testing.T, db *sql.DB, content string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO chat_messages (patient_id, role, content) VALUES ('p1', ?, ?)`, chat.RoleAI, content)
	require.NoError(t, err)
}

func TestInquiryCountIncrement(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	count, err := state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, state.Increment(ctx, "p1"))
	require.NoError(t, state.Increment(ctx, "p1"))

	count, err = state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestInquiryBackfillCountsInquiryRounds(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	insertAI(t, db, "您好，我是张医生的助理。请补充一下最主要哪里不舒服？")
	insertAI(t, db, "这里是助理，麻烦您再补充：症状持续多久了？")

	count, err := state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// the estimate is written back so later reads skip the scan
	var stored int
	require.NoError(t, db.QueryRow(`SELECT medical_inquiry_count FROM patient_ai_state WHERE patient_id = 'p1'`).Scan(&stored))
	require.Equal(t, 2, stored)
}

func TestInquiryBackfillSkipsConsultAndAdminReplies(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	insertAI(t, db, "已确认接入医生会诊。请点击链接完成支付：/patient/pay/tok")
	insertAI(t, db, "门诊上班时间为周一至周五，请携带挂号单。")
	insertAI(t, db, "支付成功，已为您接入医生会诊。")

	count, err := state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestInquiryBackfillCapsAtMax(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		insertAI(t, db, "我是助理，请补充更多信息。")
	}

	count, err := state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestInquiryBackfillOnlyWhenStoredZero(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	require.NoError(t, state.Set(ctx, "p1", 1))
	insertAI(t, db, "我是助理，请补充更多信息。")
	insertAI(t, db, "我是助理，麻烦再补充一下。")

	count, err := state.Count(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestInquiryStateUnknownPatient(t *testing.T) {
	db := openInquiryDB(t)
	state := NewInquiryState(db, chat.NewStore(db), 3)
	ctx := context.Background()

	count, err := state.Count(ctx, "ghost")
	require.NoError(t, err)
	require.Zero(t, count)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM patient_ai_state`).Scan(&rows))
	require.Zero(t, rows)
}
