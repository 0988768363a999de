//go:build linux

// Package mount wraps mount(2) and umount2(2) behind a small typed interface.
package mount

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

const defaultDirMode = 0o755

// ErrInvalidArgument is returned for strings that can not be passed to the
// kernel, i.e. strings containing a NUL byte.
var ErrInvalidArgument = errors.New("invalid argument")

// Mounter mounts and detaches file systems.
type Mounter interface {
	// Mount attaches the file system at source of type fstype to target.
	// fstype may be empty for flag-only operations like Move or Bind.
	Mount(source, target, fstype string, flags Flags) error
	// Unmount lazily detaches the file system mounted at target, even if it
	// is busy.
	Unmount(target string) error
}

// System is the Mounter backed by the running kernel.
type System struct{}

// Mount calls mount(2). Errors are returned as is, no retries are made.
func (System) Mount(source, target, fstype string, flags Flags) error {
	if err := checkStrings(source, target, fstype); err != nil {
		return err
	}

	if err := unix.Mount(source, target, fstype, uintptr(flags), ""); err != nil {
		return errors.Wrapf(err, "mount %s on %s (type %q, %s)", source, target, fstype, flags)
	}

	return nil
}

// Unmount calls umount2(2) with MNT_DETACH.
func (System) Unmount(target string) error {
	if err := checkStrings(target); err != nil {
		return err
	}

	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
		return errors.Wrapf(err, "unmount %s", target)
	}

	return nil
}

// MountFS creates path if it does not exist and mounts source there.
//
// If source is empty the file system type is used as source, which is the
// convention for pseudo file systems like proc or sysfs.
func MountFS(m Mounter, path, source, fstype string, flags Flags) error {
	if source == "" {
		source = fstype
	}

	if err := os.MkdirAll(path, defaultDirMode); err != nil {
		return errors.Wrapf(err, "mkdir %s", path)
	}

	return m.Mount(source, path, fstype, flags)
}

func checkStrings(values ...string) error {
	for _, v := range values {
		if strings.IndexByte(v, 0) >= 0 {
			return errors.Wrapf(ErrInvalidArgument, "%q contains a NUL byte", v)
		}
	}

	return nil
}
