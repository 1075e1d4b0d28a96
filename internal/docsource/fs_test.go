package docsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragpipe/ragpipe/internal/log"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewFSRejectsMissingPath(t *testing.T) {
	_, err := NewFS(FSConfig{Dir: filepath.Join(t.TempDir(), "nope")}, log.NewNop())
	require.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Title\n\nSome content.")
	writeFile(t, dir, "sub/b.txt", "nested content")
	writeFile(t, dir, "c.bin", "binary-ish")          // unsupported extension
	writeFile(t, dir, ".hidden/d.md", "hidden stuff") // dot directory

	src, err := NewFS(FSConfig{Dir: dir}, log.NewNop())
	require.NoError(t, err)

	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	paths := []string{docs[0].Path, docs[1].Path}
	assert.Contains(t, paths, "a.md")
	assert.Contains(t, paths, filepath.Join("sub", "b.txt"))
	for _, d := range docs {
		assert.NotEmpty(t, d.ID)
		assert.NotEmpty(t, d.Text)
		assert.Equal(t, d.Path, d.Metadata["file_path"])
	}
}

func TestLoadHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored/\n*.secret.md\n")
	writeFile(t, dir, "keep.md", "kept")
	writeFile(t, dir, "notes.secret.md", "do not index")
	writeFile(t, dir, "ignored/e.md", "do not index either")

	src, err := NewFS(FSConfig{Dir: dir}, log.NewNop())
	require.NoError(t, err)

	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep.md", docs[0].Path)
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "only.md", "single document")

	src, err := NewFS(FSConfig{Dir: filepath.Join(dir, "only.md")}, log.NewNop())
	require.NoError(t, err)

	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "only.md", docs[0].Path)
	assert.Equal(t, "single document", docs[0].Text)
}

func TestLoadCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "markdown")
	writeFile(t, dir, "b.rst", "restructured")

	src, err := NewFS(FSConfig{Dir: dir, Extensions: []string{".rst"}}, log.NewNop())
	require.NoError(t, err)

	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.rst", docs[0].Path)
}

func TestDocumentIDStable(t *testing.T) {
	assert.Equal(t, DocumentID("docs/a.md"), DocumentID("docs/a.md"))
	assert.NotEqual(t, DocumentID("docs/a.md"), DocumentID("docs/b.md"))
	assert.Contains(t, DocumentID("x"), "file_")
}
