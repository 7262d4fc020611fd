package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/voicelink/internal/config"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	var got record
	ok, err := GetJSON(ctx, kv, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SetJSON(ctx, kv, "item", record{Name: "a", Count: 1}))
	require.NoError(t, SetJSON(ctx, kv, "item", record{Name: "b", Count: 2}))

	ok, err = GetJSON(ctx, kv, "item", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record{Name: "b", Count: 2}, got)

	require.NoError(t, kv.Delete(ctx, "item"))
	ok, err = GetJSON(ctx, kv, "item", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemory()
	exerciseKV(t, kv)

	require.NoError(t, kv.Close())
	assert.ErrorIs(t, kv.Set(context.Background(), "k", []byte("1")), ErrClosed)
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	kv, err := NewSQLite(path)
	require.NoError(t, err)
	exerciseKV(t, kv)
	require.NoError(t, kv.Close())
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	kv, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, SetJSON(ctx, kv, "chat-messages", []string{"hello"}))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	var got []string
	ok, err := GetJSON(ctx, reopened, "chat-messages", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, got)
}

func TestGetJSONDecodeError(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "bad", []byte("{not json")))

	var got record
	_, err := GetJSON(ctx, kv, "bad", &got)
	assert.Error(t, err)
}

func TestOpenSelectsDriver(t *testing.T) {
	kv, err := Open(context.Background(), config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(context.Background(), config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(context.Background(), config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}
