package docstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original filing")
	info, err := s.Put(ctx, "origdoc/101.txt", data, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "origdoc/101.txt", info.Key)
	assert.EqualValues(t, len(data), info.Size)

	got, gotInfo, err := s.Get(ctx, "origdoc/101.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "text/plain", gotInfo.ContentType)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMemoryStore_Exists(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Put(ctx, "k", []byte("x"), "text/plain")
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_PutCopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("mutable")
	_, err := s.Put(ctx, "k", data, "text/plain")
	require.NoError(t, err)
	data[0] = 'X'

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)
}

func TestMemoryStore_Overwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "k", []byte("one"), "text/plain")
	require.NoError(t, err)
	_, err = s.Put(ctx, "k", []byte("two"), "text/plain")
	require.NoError(t, err)

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)
	assert.Equal(t, 1, s.Len())
}

func TestOriginalKey(t *testing.T) {
	assert.Equal(t, "origdoc/101.pdf", OriginalKey(101, "application/pdf"))
	assert.Equal(t, "origdoc/42.bin", OriginalKey(42, "application/x-mystery"))

	// Text gets a text extension, whichever the platform prefers.
	key := OriginalKey(7, "text/plain")
	assert.True(t, strings.HasPrefix(key, "origdoc/7."), key)
	assert.NotEqual(t, "origdoc/7.bin", key)
}

func TestNewMinIO_Validation(t *testing.T) {
	_, err := NewMinIO(MinIOConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")

	_, err = NewMinIO(MinIOConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials are required")

	_, err = NewMinIO(MinIOConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}
