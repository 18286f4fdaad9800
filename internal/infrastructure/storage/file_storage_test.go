package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/domain/apperr"
)

func newStorage(t *testing.T) (*LocalFileStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalFileStorage(dir, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func TestLocalFileStorage_RoundTrip(t *testing.T) {
	s, dir := newStorage(t)
	ctx := context.Background()
	key := "receipts/7/abc.png"

	require.NoError(t, s.Save(ctx, key, []byte("image")))
	assert.True(t, s.Exists(ctx, key))
	assert.FileExists(t, filepath.Join(dir, "receipts", "7", "abc.png"))

	content, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), content)

	require.NoError(t, s.Save(ctx, key, []byte("replaced")))
	content, err = s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), content)

	entries, err := os.ReadDir(filepath.Join(dir, "receipts", "7"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	assert.False(t, s.Exists(ctx, key))

	_, err = s.Read(ctx, key)
	assert.True(t, apperr.IsNotFound(err))
}

func TestLocalFileStorage_RejectsEscapingKeys(t *testing.T) {
	s, _ := newStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "../outside.txt", "receipts/../../x", "/etc/passwd", "."} {
		t.Run(key, func(t *testing.T) {
			err := s.Save(ctx, key, []byte("x"))
			assert.True(t, apperr.IsClientError(err), "got %v", err)
			assert.False(t, s.Exists(ctx, key))
		})
	}
}
