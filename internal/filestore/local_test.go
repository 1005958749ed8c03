package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestLocalStore_Store(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	store, err := NewLocalStore(baseDir, slog.Default())
	require.NoError(t, err)

	// A PNG header so mime detection has something to sniff.
	content := append([]byte("\x89PNG\r\n\x1a\n"), []byte("fake image data")...)
	source := writeTempFile(t, content)

	desc, err := store.Store(ctx, source, "receipt.png")
	require.NoError(t, err)

	assert.Equal(t, TagLocal, desc.Storage)
	assert.Equal(t, "receipt.png", desc.OriginalFilename)
	assert.Equal(t, "image/png", desc.MimeType)
	assert.Equal(t, int64(len(content)), desc.SizeBytes)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), desc.ChecksumSHA256)

	// The stored copy exists under the base directory and keeps the extension.
	stored, err := os.ReadFile(filepath.Join(baseDir, desc.Path))
	require.NoError(t, err)
	assert.Equal(t, content, stored)
	assert.Equal(t, ".png", filepath.Ext(desc.Path))
}

func TestLocalStore_Delete(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	store, err := NewLocalStore(baseDir, slog.Default())
	require.NoError(t, err)

	source := writeTempFile(t, []byte("some receipt bytes"))
	desc, err := store.Store(ctx, source, "receipt.jpg")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, TagLocal, desc.Path))
	_, err = os.Stat(filepath.Join(baseDir, desc.Path))
	assert.True(t, os.IsNotExist(err))

	t.Run("already gone is not an error", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, TagLocal, desc.Path))
	})

	t.Run("foreign backend tag is rejected", func(t *testing.T) {
		assert.Error(t, store.Delete(ctx, TagS3, desc.Path))
	})
}

func TestMux(t *testing.T) {
	ctx := context.Background()

	local, err := NewLocalStore(t.TempDir(), slog.Default())
	require.NoError(t, err)

	mux := NewMux(local)

	source := writeTempFile(t, []byte("receipt"))
	desc, err := mux.Store(ctx, source, "receipt.pdf")
	require.NoError(t, err)
	assert.Equal(t, TagLocal, desc.Storage)

	t.Run("delete routes by backend tag", func(t *testing.T) {
		assert.NoError(t, mux.Delete(ctx, TagLocal, desc.Path))
	})

	t.Run("unknown backend tag", func(t *testing.T) {
		err := mux.Delete(ctx, "glacier", desc.Path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage backend")
	})
}
