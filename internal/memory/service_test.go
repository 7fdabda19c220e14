package memory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.reply}, nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0}, nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`
		CREATE TABLE patients (id TEXT PRIMARY KEY, name TEXT NOT NULL);
		CREATE TABLE memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			source TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	require.NoError(t, err)
	return db
}

func TestParseFactList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "numbered and bulleted lines",
			raw:  "1. 头痛三天\n- 无发热\n* 对青霉素过敏",
			want: []string{"头痛三天", "无发热", "对青霉素过敏"},
		},
		{
			name: "dedup and blanks",
			raw:  "头痛三天\n\n头痛三天\n无发热",
			want: []string{"头痛三天", "无发热"},
		},
		{
			name: "truncates long facts",
			raw:  strings.Repeat("很", 120),
			want: []string{strings.Repeat("很", 80)},
		},
		{
			name: "empty output",
			raw:  "  \n\n",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseFactList(tt.raw))
		})
	}
}

func TestParseFactListCap(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "事实"+strings.Repeat("x", i+1))
	}
	got := parseFactList(strings.Join(lines, "\n"))
	require.Len(t, got, maxFactsPerPass)
}

func TestExtractAndStoreDedup(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, &fakeLLM{reply: "头痛三天\n无发热"}, &fakeEmbedder{}, "test-model", logging.New("error"))

	ctx := context.Background()
	svc.ExtractAndStore(ctx, "p1", SourcePatient, "我头痛三天了，没有发烧")
	svc.ExtractAndStore(ctx, "p1", SourcePatient, "我头痛三天了，没有发烧")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM memories WHERE patient_id = 'p1'`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestExtractAndStoreSurvivesEmbedFailure(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, &fakeLLM{reply: "头痛三天"}, &fakeEmbedder{err: errors.New("embed down")}, "m", logging.New("error"))

	svc.ExtractAndStore(context.Background(), "p1", SourceAI, "头痛")

	rows, err := repo.ListForPatient(context.Background(), "p1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].Embedding)
}

func TestRelevantFactsRanksBySimilarity(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, repo.SaveBatch(context.Background(), "p1", SourcePatient, []PendingFact{
		{Content: "头痛三天", Embedding: []float32{1, 0}},
		{Content: "对青霉素过敏", Embedding: []float32{0, 1}},
		{Content: "无发热", Embedding: []float32{0.9, 0.1}},
	}))

	embedder := &fakeEmbedder{vectors: map[string][]float32{"最近头还痛吗": {1, 0}}}
	svc := NewService(repo, &fakeLLM{}, embedder, "m", logging.New("error"))

	facts, err := svc.RelevantFacts(context.Background(), "p1", "最近头还痛吗")
	require.NoError(t, err)
	require.NotEmpty(t, facts)
	require.Equal(t, "头痛三天", facts[0].Content)
	for _, f := range facts {
		require.NotEqual(t, "对青霉素过敏", f.Content)
	}
}

func TestRelevantFactsFallsBackToRecent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, repo.SaveBatch(context.Background(), "p1", SourcePatient, []PendingFact{
		{Content: "头痛三天"},
		{Content: "无发热"},
	}))

	svc := NewService(repo, &fakeLLM{}, &fakeEmbedder{err: errors.New("down")}, "m", logging.New("error"))
	facts, err := svc.RelevantFacts(context.Background(), "p1", "query")
	require.NoError(t, err)
	require.Len(t, facts, 2)
}

func TestRelevantFactsEmptyWhenNothingClearsThreshold(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, repo.SaveBatch(context.Background(), "p1", SourcePatient, []PendingFact{
		{Content: "头痛三天", Embedding: []float32{1, 0}},
		{Content: "无发热", Embedding: []float32{1, 0}},
	}))

	// Orthogonal query: every score is 0, below the bar. A scored query
	// must not fall back to recency.
	embedder := &fakeEmbedder{vectors: map[string][]float32{"发票怎么开": {0, 1}}}
	svc := NewService(repo, &fakeLLM{}, embedder, "m", logging.New("error"))

	facts, err := svc.RelevantFacts(context.Background(), "p1", "发票怎么开")
	require.NoError(t, err)
	require.Empty(t, facts)
}

func TestRetrievalExcludesLegacyDialogue(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	_, err := db.Exec(`INSERT INTO memories (patient_id, content, source) VALUES ('p1', '旧对话', 'dialogue'), ('p1', '头痛', 'patient')`)
	require.NoError(t, err)

	memories, err := repo.NewestForRetrieval(context.Background(), "p1", 300)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	require.Equal(t, "头痛", memories[0].Content)
}

func TestLastNChronological(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	for i, content := range []string{"第一条", "第二条", "第三条"} {
		_, err := db.Exec(`INSERT INTO memories (patient_id, content, source, created_at) VALUES ('p1', ?, 'patient', ?)`,
			content, "2026-01-0"+string(rune('1'+i))+" 00:00:00")
		require.NoError(t, err)
	}
	memories, err := repo.LastN(context.Background(), "p1", 2)
	require.NoError(t, err)
	require.Len(t, memories, 2)
	require.Equal(t, "第二条", memories[0].Content)
	require.Equal(t, "第三条", memories[1].Content)
}
