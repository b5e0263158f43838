package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/libris-lms/apiserver/config"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	puts    []string
	deletes []string
}

func (b *recordingBackend) EnsureBucket(context.Context) error { return nil }

func (b *recordingBackend) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	b.puts = append(b.puts, key)
	return nil
}

func (b *recordingBackend) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}

func (b *recordingBackend) Delete(_ context.Context, key string) error {
	b.deletes = append(b.deletes, key)
	return nil
}

func (b *recordingBackend) Bucket() string { return "covers" }

func (b *recordingBackend) Close() error { return nil }

func TestStorageRejectsBadKeys(t *testing.T) {
	backend := &recordingBackend{}
	s := NewStorage(backend)
	ctx := context.Background()

	for _, key := range []string{"", "  ", "/abs/key.png", "covers/../secret"} {
		require.Error(t, s.Put(ctx, key, bytes.NewReader(nil), 0, "image/png"), key)
		require.Error(t, s.Delete(ctx, key), key)
	}
	require.Empty(t, backend.puts)

	require.NoError(t, s.Put(ctx, "covers/1/a.png", bytes.NewReader([]byte("x")), 1, "image/png"))
	require.NoError(t, s.Delete(ctx, "covers/1/a.png"))
	require.Equal(t, []string{"covers/1/a.png"}, backend.puts)
	require.Equal(t, []string{"covers/1/a.png"}, backend.deletes)

	_, err := s.Get(ctx, "covers/1/a.png")
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.Equal(t, "covers", s.Bucket())
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig(ctx, config.StorageConfig{})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewFromConfig(ctx, config.StorageConfig{Backend: BackendNone})
	require.ErrorIs(t, err, ErrDisabled)

	_, err = NewFromConfig(ctx, config.StorageConfig{Backend: "s3"})
	require.Error(t, err)

	_, err = NewFromConfig(ctx, config.StorageConfig{Backend: BackendMinio, Minio: config.MinioConfig{Endpoint: "localhost:9000"}})
	require.ErrorContains(t, err, "access key")

	_, err = NewFromConfig(ctx, config.StorageConfig{Backend: BackendGCS})
	require.ErrorContains(t, err, "bucket is required")
}
