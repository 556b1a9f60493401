package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDiskStoreExistsDelete(t *testing.T) {
	ctx := context.Background()
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "local", disk.Name())

	ok, err := disk.Exists(ctx, "tmp/a.png")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := disk.Store(ctx, "tmp/a.png", strings.NewReader("png-bytes"), -1, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "tmp/a.png", stored)

	data, err := os.ReadFile(filepath.Join(disk.Root(), "tmp", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	ok, err = disk.Exists(ctx, "tmp/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, disk.Delete(ctx, "tmp/a.png"))
	require.NoError(t, disk.Delete(ctx, "tmp/a.png"), "second delete is a no-op")

	ok, err = disk.Exists(ctx, "tmp/a.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDiskStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	_, err = disk.Store(ctx, "tmp/a.txt", strings.NewReader("first"), -1, "")
	require.NoError(t, err)
	_, err = disk.Store(ctx, "tmp/a.txt", strings.NewReader("second"), -1, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(disk.Root(), "tmp", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(disk.Root(), "tmp"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalDiskRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	for _, p := range []string{"", "..", "../outside.txt", "tmp/../../outside.txt"} {
		_, err := disk.Store(ctx, p, strings.NewReader("x"), -1, "")
		assert.ErrorIs(t, err, ErrInvalidKey, p)

		_, err = disk.Exists(ctx, p)
		assert.ErrorIs(t, err, ErrInvalidKey, p)

		assert.ErrorIs(t, disk.Delete(ctx, p), ErrInvalidKey, p)
	}
}

func TestLocalDiskStoreCanceledContext(t *testing.T) {
	disk, err := NewLocalDisk(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = disk.Store(ctx, "tmp/a.txt", strings.NewReader("x"), -1, "")
	require.ErrorIs(t, err, context.Canceled)

	ok, err := disk.Exists(context.Background(), "tmp/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
