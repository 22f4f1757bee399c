package upload

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSaveAndRemove(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	h, err := store.Save("flows.csv", strings.NewReader("proto,service\ntcp,http\n"))
	require.NoError(t, err)
	assert.Equal(t, "flows.csv", h.Name)
	assert.FileExists(t, h.Path)

	b, err := os.ReadFile(h.Path)
	require.NoError(t, err)
	assert.Equal(t, "proto,service\ntcp,http\n", string(b))

	store.Remove(h)
	assert.NoFileExists(t, h.Path)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	h, err := store.Save("flows.csv", strings.NewReader("x"))
	require.NoError(t, err)

	store.Remove(h)
	// second removal of the same handle must be a silent no-op
	store.Remove(h)
	// and so must a zero handle
	store.Remove(Handle{})
}

func TestSaveSameNameTwice(t *testing.T) {
	store, err := NewStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	h1, err := store.Save("flows.csv", strings.NewReader("one"))
	require.NoError(t, err)
	h2, err := store.Save("flows.csv", strings.NewReader("two"))
	require.NoError(t, err)

	assert.NotEqual(t, h1.Path, h2.Path)
	assert.FileExists(t, h1.Path)
	assert.FileExists(t, h2.Path)
}

func TestSaveStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, testLogger())
	require.NoError(t, err)

	h, err := store.Save("../../etc/flows.csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(h.Path))
}
