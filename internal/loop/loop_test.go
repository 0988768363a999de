//go:build linux

package loop_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cozystack/init-stage1/internal/loop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAttachMissingBackingFile(t *testing.T) {
	dir := t.TempDir()

	// The control device does not exist either. Getting ErrBackingFileNotFound
	// shows the control device was never opened.
	m := &loop.Manager{
		ControlPath: filepath.Join(dir, "loop-control"),
		DevDir:      dir,
	}

	dev, err := m.Attach(filepath.Join(dir, "system.squashfs"))
	require.ErrorIs(t, err, loop.ErrBackingFileNotFound)
	assert.Nil(t, dev)
	assert.Contains(t, err.Error(), "system.squashfs")
}

func TestAttachMissingControlDevice(t *testing.T) {
	dir := t.TempDir()
	backing := filepath.Join(dir, "image")
	require.NoError(t, os.WriteFile(backing, make([]byte, 4096), 0o644))

	m := &loop.Manager{
		ControlPath: filepath.Join(dir, "loop-control"),
		DevDir:      dir,
	}

	_, err := m.Attach(backing)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, loop.ErrBackingFileNotFound)
}

func TestAttachDetach(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	if _, err := os.Stat(loop.DefaultControlPath); err != nil {
		t.Skipf("no loop support: %v", err)
	}

	backing := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(backing, make([]byte, 1<<20), 0o644))

	dev, err := loop.NewManager().Attach(backing)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^/dev/loop[0-9]+$`), dev.Path())
	assert.FileExists(t, dev.Path())

	require.NoError(t, dev.Detach())
	assert.Panics(t, func() { _ = dev.Detach() })
}
