package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"oliv/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LoadUnknownIsEmpty(t *testing.T) {
	store := NewMemoryStore(time.Hour, 10)

	s, err := store.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
	assert.Empty(t, s.History)
	assert.Nil(t, s.Context.Location)
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore(time.Hour, 10)
	ctx := context.Background()
	loc := "Dubai Marina"

	s := &model.Session{ID: "s1", Context: model.ConversationContext{Location: &loc}}
	s.History = append(s.History, model.Message{Role: model.RoleUser, Content: "hi"})
	require.NoError(t, store.Save(ctx, s))
	assert.False(t, s.UpdatedAt.IsZero())

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Context.Location)
	assert.Equal(t, "Dubai Marina", *got.Context.Location)
	assert.Len(t, got.History, 1)

	// loaded copies do not alias stored state
	*got.Context.Location = "JVC"
	got.History[0].Content = "changed"
	again, _ := store.Load(ctx, "s1")
	assert.Equal(t, "Dubai Marina", *again.Context.Location)
	assert.Equal(t, "hi", again.History[0].Content)
}

func TestMemoryStore_TrimsHistory(t *testing.T) {
	store := NewMemoryStore(time.Hour, 3)
	ctx := context.Background()

	s := &model.Session{ID: "s1"}
	for i := 0; i < 5; i++ {
		s.History = append(s.History, model.Message{Role: model.RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	require.NoError(t, store.Save(ctx, s))

	got, _ := store.Load(ctx, "s1")
	require.Len(t, got.History, 3)
	assert.Equal(t, "m2", got.History[0].Content)
	assert.Equal(t, "m4", got.History[2].Content)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()
	loc := "Jumeirah"

	require.NoError(t, store.Save(ctx, &model.Session{ID: "s1", Context: model.ConversationContext{Location: &loc}}))
	require.NoError(t, store.Save(ctx, &model.Session{ID: "s2"}))

	now = now.Add(30 * time.Second)
	got, _ := store.Load(ctx, "s1")
	assert.NotNil(t, got.Context.Location)

	now = now.Add(2 * time.Minute)
	got, _ = store.Load(ctx, "s1")
	assert.Nil(t, got.Context.Location)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Hour, 10)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &model.Session{ID: "s1", History: []model.Message{{Role: "user", Content: "x"}}}))
	require.NoError(t, store.Delete(ctx, "s1"))

	got, _ := store.Load(ctx, "s1")
	assert.Empty(t, got.History)
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore(time.Hour, 10)
	ctx := context.Background()
	a, b := "Dubai Marina", "Business Bay"

	require.NoError(t, store.Save(ctx, &model.Session{ID: "alice", Context: model.ConversationContext{Location: &a}}))
	require.NoError(t, store.Save(ctx, &model.Session{ID: "bob", Context: model.ConversationContext{Location: &b}}))

	got, _ := store.Load(ctx, "alice")
	assert.Equal(t, "Dubai Marina", *got.Context.Location)
}
