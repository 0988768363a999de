//go:build linux

// Package proc provides scoped read access to a mounted proc file system.
package proc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cozystack/init-stage1/internal/mount"
)

// ErrOutsideTree is returned for paths that leave the proc tree.
var ErrOutsideTree = errors.New("path outside of proc tree")

// Handle represents a mounted and readable proc file system. It owns the
// mount for the lifetime of the process and is never unmounted by it.
type Handle struct {
	path string
}

// Mount creates path if needed, mounts proc on it and returns a Handle.
func Mount(m mount.Mounter, path string) (*Handle, error) {
	if err := mount.MountFS(m, path, "proc", "proc", mount.None); err != nil {
		return nil, errors.Wrap(err, "mount proc")
	}

	return &Handle{path: path}, nil
}

// At returns a Handle for a proc tree that is already mounted at path.
func At(path string) *Handle {
	return &Handle{path: path}
}

// Path returns the mount point.
func (h *Handle) Path() string {
	return h.path
}

// ReadFile reads the file at rel below the proc mount point. Every call goes
// to the kernel, nothing is cached.
func (h *Handle) ReadFile(rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", errors.Wrapf(ErrOutsideTree, "%q", rel)
	}

	data, err := os.ReadFile(filepath.Join(h.path, rel))
	if err != nil {
		return "", errors.Wrapf(err, "read %s", rel)
	}

	return string(data), nil
}

// ReadCmdline returns the kernel command line without surrounding whitespace.
func (h *Handle) ReadCmdline() (string, error) {
	s, err := h.ReadFile("cmdline")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(s), nil
}
