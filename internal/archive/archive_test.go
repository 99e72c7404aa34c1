package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHostPath_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello archive"), 0o644))

	reader, err := FromHostPath(path)
	require.NoError(t, err)

	tr := tar.NewReader(reader)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "payload.txt", hdr.Name)

	content, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "hello archive", string(content))

	_, err = tr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFromHostPath_DirectoryTreePreservesRelativeNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("B"), 0o644))

	reader, err := FromHostPath(dir)
	require.NoError(t, err)

	names := map[string]string{}
	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		names[hdr.Name] = string(content)
	}

	assert.Equal(t, "A", names["a.txt"])
	assert.Equal(t, "B", names["sub/b.txt"])
}

func TestFromHostPath_MissingPathErrors(t *testing.T) {
	_, err := FromHostPath(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
