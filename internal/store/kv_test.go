package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_GetSet(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k1", "v1", 0))
	val, err := kv.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)
}

func TestMemoryKV_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	require.NoError(t, kv.Set(ctx, "short", "v", 10*time.Millisecond))
	val, err := kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	time.Sleep(20 * time.Millisecond)
	_, err = kv.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKV_DelAndScan(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	require.NoError(t, kv.Set(ctx, "scope:5:100", "a", 0))
	require.NoError(t, kv.Set(ctx, "scope:5:200", "b", 0))
	require.NoError(t, kv.Set(ctx, "scope:6:100", "c", 0))

	keys, err := kv.ScanKeys(ctx, "scope:5:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, kv.Del(ctx, keys...))
	keys, err = kv.ScanKeys(ctx, "scope:5:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// 其他用户的键不受影响
	val, err := kv.Get(ctx, "scope:6:100")
	require.NoError(t, err)
	assert.Equal(t, "c", val)
}
