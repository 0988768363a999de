package diag_test

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozystack/init-stage1/internal/diag"
)

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init"), nil, 0o755))
	require.NoError(t, os.Symlink("init", filepath.Join(dir, "linuxrc")))

	entries, err := diag.ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []diag.Entry{
		{Name: "etc", Kind: "dir"},
		{Name: "init", Kind: "file"},
		{Name: "linuxrc", Kind: "symlink"},
	}, entries)
}

func TestListDir(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.squashfs"), nil, 0o644))

	diag.ListDir(dir)
	diag.ListDir(filepath.Join(dir, "missing"))

	assert.Contains(t, buf.String(), "listing contents of "+dir)
	assert.Contains(t, buf.String(), " - system.squashfs (file)")
	assert.Contains(t, buf.String(), "missing")
}
