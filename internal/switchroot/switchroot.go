//go:build linux

// Package switchroot makes an already mounted file system the root of the
// calling process.
package switchroot

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/cozystack/init-stage1/internal/mount"
)

// ErrNewRootNotFound is returned if the new root does not exist.
var ErrNewRootNotFound = errors.New("new root not found")

// DefaultMountPoints are carried over into the new root, in this order.
//
//nolint:gochecknoglobals
var DefaultMountPoints = []string{"/dev", "/proc", "/sys", "/run"}

// Switcher switches the process root. It follows the steps of busybox's
// switch_root, without deleting the initramfs contents.
type Switcher struct {
	mounter     mount.Mounter
	mountPoints []string

	chdir  func(string) error
	chroot func(string) error
}

// New returns a Switcher that moves DefaultMountPoints.
func New(m mount.Mounter) *Switcher {
	return &Switcher{
		mounter:     m,
		mountPoints: DefaultMountPoints,
		chdir:       unix.Chdir,
		chroot:      unix.Chroot,
	}
}

// Switch makes newRoot the root and working directory of the process.
//
// Mount points that can not be moved into newRoot are detached instead; this
// is logged but not an error. Failing to move newRoot onto "/" or to chroot
// is an error.
func (s *Switcher) Switch(newRoot string) error {
	log.Printf("switch_root: switching root to %s", newRoot)

	if _, err := os.Stat(newRoot); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(ErrNewRootNotFound, "%s", newRoot)
		}
		return errors.Wrapf(err, "stat %s", newRoot)
	}

	for _, mnt := range s.mountPoints {
		s.carryOver(newRoot, mnt)
	}

	if err := s.chdir(newRoot); err != nil {
		return errors.Wrapf(err, "chdir %s", newRoot)
	}

	if err := s.mounter.Mount(".", "/", "", mount.Move); err != nil {
		return errors.Wrap(err, "move new root onto /")
	}
	log.Printf("switch_root: %s mounted over /", newRoot)

	if err := s.chroot("."); err != nil {
		return errors.Wrap(err, "chroot")
	}

	if err := s.chdir("/"); err != nil {
		return errors.Wrap(err, "chdir /")
	}
	log.Printf("switch_root: done")

	return nil
}

func (s *Switcher) carryOver(newRoot, mnt string) {
	target := filepath.Join(newRoot, strings.TrimPrefix(mnt, "/"))

	err := s.mounter.Mount(mnt, target, "", mount.Move)
	if err == nil {
		log.Printf("switch_root: moved %s to %s", mnt, target)
		return
	}

	log.Printf("switch_root: failed to move %s, detaching instead: %v", mnt, err)
	if err := s.mounter.Unmount(mnt); err != nil {
		log.Printf("switch_root: detach %s: %v", mnt, err)
	}
}
