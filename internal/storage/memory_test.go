package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"FileVault/config"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("hello vault")
	require.NoError(t, store.PutObject(ctx, "files/1/a.txt", bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: "text/plain"}))

	rc, info, err := store.GetObject(ctx, "files/1/a.txt")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, int64(len(data)), info.Size)
	require.Equal(t, "text/plain", info.ContentType)

	got, err := ReadAll(ctx, store, "files/1/a.txt")
	require.NoError(t, err)
	require.Equal(t, data, got)

	require.NoError(t, store.RemoveObject(ctx, "files/1/a.txt"))
	require.NoError(t, store.RemoveObject(ctx, "files/1/a.txt"))

	_, _, err = store.GetObject(ctx, "files/1/a.txt")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryStoreSizeMismatch(t *testing.T) {
	store := NewMemoryStore()
	err := store.PutObject(context.Background(), "k", bytes.NewReader([]byte("abc")), 5, PutOptions{})
	require.Error(t, err)
	require.False(t, store.Has("k"))
}

func TestMemoryStoreInjectedFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	store.FailPut = boom
	require.ErrorIs(t, store.PutObject(ctx, "k", io.LimitReader(bytes.NewReader(nil), 0), 0, PutOptions{}), boom)

	store.FailPut = nil
	require.NoError(t, store.PutObject(ctx, "k", bytes.NewReader(nil), 0, PutOptions{}))
	store.FailGet = boom
	_, _, err := store.GetObject(ctx, "k")
	require.ErrorIs(t, err, boom)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), &config.StorageConfig{Backend: "memory"}, "bucket")
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)

	_, err = New(context.Background(), &config.StorageConfig{Backend: "tape"}, "bucket")
	require.Error(t, err)
}
