package session

import (
	"context"
	"testing"
	"time"

	"oliv/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T, ttl time.Duration, max int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl, max), mr
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour, 10)
	ctx := context.Background()
	loc := "Business Bay"
	beds := 1
	budget := 1200000.0

	s := &model.Session{
		ID:      "s1",
		Context: model.ConversationContext{Location: &loc, Bedrooms: &beds, Budget: &budget},
		History: []model.Message{{Role: model.RoleUser, Content: "Find me a flat"}},
	}
	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists("oliv:session:s1"))
	assert.Equal(t, time.Hour, mr.TTL("oliv:session:s1"))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Business Bay", *got.Context.Location)
	assert.Equal(t, 1, *got.Context.Bedrooms)
	assert.Equal(t, 1200000.0, *got.Context.Budget)
	assert.Len(t, got.History, 1)
}

func TestRedisStore_MissingAndExpired(t *testing.T) {
	store, mr := setupMiniredis(t, time.Minute, 10)
	ctx := context.Background()

	got, err := store.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", got.ID)

	require.NoError(t, store.Save(ctx, &model.Session{ID: "s1", History: []model.Message{{Role: "user", Content: "x"}}}))
	mr.FastForward(2 * time.Minute)

	got, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestRedisStore_TrimAndDelete(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour, 2)
	ctx := context.Background()

	s := &model.Session{ID: "s1", History: []model.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
	}}
	require.NoError(t, store.Save(ctx, s))

	got, _ := store.Load(ctx, "s1")
	require.Len(t, got.History, 2)
	assert.Equal(t, "b", got.History[0].Content)

	require.NoError(t, store.Delete(ctx, "s1"))
	assert.False(t, mr.Exists("oliv:session:s1"))
}

func TestRedisStore_CorruptEntryIsFresh(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour, 10)
	require.NoError(t, mr.Set("oliv:session:bad", "{not json"))

	got, err := store.Load(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, "bad", got.ID)
	assert.Empty(t, got.History)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour, 10)
	mr.Close()

	_, err := store.Load(context.Background(), "s1")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = NewRedisClient(context.Background(), "::not a url")
	assert.Error(t, err)
}
