package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "models", []string{"llama2", "mistral"}, time.Minute))

	var got []string
	require.NoError(t, store.Get(ctx, "models", &got))
	assert.Equal(t, []string{"llama2", "mistral"}, got)
}

func TestMemory_MissingKey(t *testing.T) {
	store := NewMemory()

	var got []string
	assert.ErrorIs(t, store.Get(context.Background(), "absent", &got), ErrMiss)
}

func TestMemory_TTLExpiry(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.ErrorIs(t, store.Get(ctx, "k", &got), ErrMiss)
}

func TestMemory_Delete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))

	var got string
	assert.ErrorIs(t, store.Get(ctx, "k", &got), ErrMiss)
}

func TestMemory_Overwrite(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "old", time.Minute))
	require.NoError(t, store.Set(ctx, "k", "new", time.Minute))

	var got string
	require.NoError(t, store.Get(ctx, "k", &got))
	assert.Equal(t, "new", got)
}
