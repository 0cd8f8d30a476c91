package filestorage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_SaveAndResolve(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel, err := ls.SaveBytes("certificates", ".pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rel, "certificates/"))
	assert.True(t, strings.HasSuffix(rel, ".pdf"))
	assert.True(t, ls.Exists(rel))

	data, err := os.ReadFile(ls.FullPath(rel))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))

}

func TestLocalStorage_FullPathStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)

	full := ls.FullPath("../../etc/passwd")
	assert.True(t, strings.HasPrefix(full, filepath.Clean(dir)))
	assert.Equal(t, "", ls.FullPath(""))
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel, err := ls.SaveBytes("", ".pdf", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, ls.DeleteFile(rel))
	assert.False(t, ls.Exists(rel))
	require.NoError(t, ls.DeleteFile(rel))
}
