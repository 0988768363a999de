//go:build linux

package switchroot

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/cozystack/init-stage1/internal/mount"
)

type fakeMounter struct {
	calls []string
	// failMove lists sources whose move fails.
	failMove map[string]error
}

func (f *fakeMounter) Mount(source, target, fstype string, flags mount.Flags) error {
	f.calls = append(f.calls, "mount "+source+" "+target+" "+flags.String())
	if flags.Has(mount.Move) {
		return f.failMove[source]
	}
	return nil
}

func (f *fakeMounter) Unmount(target string) error {
	f.calls = append(f.calls, "umount "+target)
	return nil
}

type fakeFS struct {
	calls     []string
	chrootErr error
}

func (f *fakeFS) chdir(path string) error {
	f.calls = append(f.calls, "chdir "+path)
	return nil
}

func (f *fakeFS) chroot(path string) error {
	f.calls = append(f.calls, "chroot "+path)
	return f.chrootErr
}

func newTestSwitcher(m *fakeMounter, ffs *fakeFS) *Switcher {
	s := New(m)
	s.chdir = ffs.chdir
	s.chroot = ffs.chroot
	return s
}

func TestSwitch(t *testing.T) {
	root := t.TempDir()
	m := &fakeMounter{failMove: map[string]error{"/run": unix.EINVAL}}
	ffs := &fakeFS{}

	require.NoError(t, newTestSwitcher(m, ffs).Switch(root))

	assert.Equal(t, []string{
		"mount /dev " + filepath.Join(root, "dev") + " move",
		"mount /proc " + filepath.Join(root, "proc") + " move",
		"mount /sys " + filepath.Join(root, "sys") + " move",
		"mount /run " + filepath.Join(root, "run") + " move",
		"umount /run",
		"mount . / move",
	}, m.calls)
	assert.Equal(t, []string{"chdir " + root, "chroot .", "chdir /"}, ffs.calls)
}

func TestSwitchAllMovesFail(t *testing.T) {
	m := &fakeMounter{failMove: map[string]error{
		"/dev":  unix.EINVAL,
		"/proc": unix.ENOENT,
		"/sys":  unix.EINVAL,
		"/run":  unix.EINVAL,
	}}
	ffs := &fakeFS{}

	require.NoError(t, newTestSwitcher(m, ffs).Switch(t.TempDir()))

	var unmounts []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, "umount") {
			unmounts = append(unmounts, c)
		}
	}
	assert.Equal(t, []string{"umount /dev", "umount /proc", "umount /sys", "umount /run"}, unmounts)
}

func TestSwitchMissingRoot(t *testing.T) {
	m := &fakeMounter{}
	ffs := &fakeFS{}

	err := newTestSwitcher(m, ffs).Switch(filepath.Join(t.TempDir(), "system"))
	require.ErrorIs(t, err, ErrNewRootNotFound)
	assert.Empty(t, m.calls)
	assert.Empty(t, ffs.calls)
}

func TestSwitchRootMoveFails(t *testing.T) {
	m := &fakeMounter{failMove: map[string]error{".": unix.EINVAL}}
	ffs := &fakeFS{}

	err := newTestSwitcher(m, ffs).Switch(t.TempDir())
	require.ErrorIs(t, err, unix.EINVAL)
	assert.NotContains(t, ffs.calls, "chroot .")
}

func TestSwitchChrootFails(t *testing.T) {
	m := &fakeMounter{}
	ffs := &fakeFS{chrootErr: unix.EPERM}

	err := newTestSwitcher(m, ffs).Switch(t.TempDir())
	require.ErrorIs(t, err, unix.EPERM)
	assert.NotContains(t, ffs.calls, "chdir /")
}
