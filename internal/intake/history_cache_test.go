package intake

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lumohealth/intake-ai-platform/internal/chat"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// memoryHistory is a fixed-backlog history reader.
type memoryHistory struct {
	messages []chat.Message
	reads    int
}

func (m *memoryHistory) Recent(_ context.Context, _ string, limit int) ([]chat.Message, error) {
	m.reads++
	if len(m.messages) > limit {
		return m.messages[len(m.messages)-limit:], nil
	}
	return m.messages, nil
}

func newCacheUnderTest(t *testing.T, store historyReader) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewHistoryCache(rdb, store, 0, 5, logging.New("error")), mr
}

func TestHistoryCacheFillsFromStore(t *testing.T) {
	store := &memoryHistory{messages: []chat.Message{
		{ID: 1, PatientID: "p1", Role: chat.RolePatient, Content: "头晕"},
		{ID: 2, PatientID: "p1", Role: chat.RoleAI, Content: "什么时候开始的？"},
	}}
	cache, _ := newCacheUnderTest(t, store)
	ctx := context.Background()

	first, err := cache.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, store.reads)

	// the second read is served from redis
	second, err := cache.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, store.reads)
}

func TestHistoryCacheAppendTrimsToMaxEntries(t *testing.T) {
	store := &memoryHistory{}
	cache, _ := newCacheUnderTest(t, store)
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		cache.Append(ctx, "p1", chat.Message{ID: int64(i), PatientID: "p1", Role: chat.RolePatient, Content: "msg"})
	}

	messages, err := cache.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	require.Equal(t, int64(4), messages[0].ID)
	require.Equal(t, int64(8), messages[4].ID)
	require.Zero(t, store.reads)
}

func TestHistoryCachePurgesStalePayload(t *testing.T) {
	store := &memoryHistory{messages: []chat.Message{
		{ID: 7, PatientID: "p1", Role: chat.RoleAI, Content: "您好"},
	}}
	cache, mr := newCacheUnderTest(t, store)
	ctx := context.Background()

	mr.RPush(historyKey("p1"), "not-json")

	messages, err := cache.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, int64(7), messages[0].ID)
	require.Equal(t, 1, store.reads)
}

func TestHistoryCacheInvalidate(t *testing.T) {
	store := &memoryHistory{messages: []chat.Message{
		{ID: 1, PatientID: "p1", Role: chat.RolePatient, Content: "hi"},
	}}
	cache, mr := newCacheUnderTest(t, store)
	ctx := context.Background()

	_, err := cache.Recent(ctx, "p1", 0)
	require.NoError(t, err)
	require.True(t, mr.Exists(historyKey("p1")))

	cache.Invalidate(ctx, "p1")
	require.False(t, mr.Exists(historyKey("p1")))
}

func TestHistoryCacheWithoutRedis(t *testing.T) {
	store := &memoryHistory{messages: []chat.Message{
		{ID: 1, PatientID: "p1", Role: chat.RolePatient, Content: "hi"},
	}}
	cache := NewHistoryCache(nil, store, 0, 0, logging.New("error"))

	messages, err := cache.Recent(context.Background(), "p1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// appends and invalidations are no-ops without redis
	cache.Append(context.Background(), "p1", chat.Message{ID: 2})
	cache.Invalidate(context.Background(), "p1")
}
