package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	n, err := store.SaveStream("session-1/photo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	f, err := store.Open("session-1/photo.png")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	require.NoError(t, store.Delete("session-1/photo.png"))
	require.NoError(t, store.Delete("session-1/photo.png"))
	_, err = store.Open("session-1/photo.png")
	assert.Error(t, err)
}

func TestLocalStorageRejectsOversizedUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 4)
	require.NoError(t, err)

	_, err = store.SaveStream("big.pdf", strings.NewReader("12345"))
	require.ErrorIs(t, err, ErrTooLarge)

	_, statErr := os.Stat(filepath.Join(dir, "big.pdf"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = store.SaveStream("ok.pdf", strings.NewReader("1234"))
	require.NoError(t, err)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "/etc/passwd", ".."} {
		_, err := store.SaveStream(key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, 0)
	require.NoError(t, err)

	_, err = store.SaveStream("old/aadhar.pdf", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = store.SaveStream("fresh.pdf", strings.NewReader("new"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "aadhar.pdf"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/aadhar.pdf"}, deleted)

	_, err = os.Stat(filepath.Join(dir, "fresh.pdf"))
	assert.NoError(t, err)
}
