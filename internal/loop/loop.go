//go:build linux

// Package loop attaches regular files to kernel loop devices.
package loop

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// Default locations.
const (
	DefaultControlPath = "/dev/loop-control"
	DefaultDevDir      = "/dev"
)

// ErrBackingFileNotFound is returned by Attach if the backing file does not
// exist.
var ErrBackingFileNotFound = errors.New("backing file not found")

// Manager allocates loop devices through the loop control device.
type Manager struct {
	ControlPath string
	DevDir      string
}

// NewManager returns a Manager for the default device paths.
func NewManager() *Manager {
	return &Manager{ControlPath: DefaultControlPath, DevDir: DefaultDevDir}
}

// Device is a loop device with a backing file attached. It keeps the loop
// device open so the association can be cleared with Detach.
//
// Nothing detaches a Device implicitly. A Device whose file system is still
// mounted must stay attached; dropping the value without calling Detach is
// safe and leaves the association to the kernel.
type Device struct {
	path     string
	file     *os.File
	detached bool
}

// Path returns the device node, e.g. /dev/loop0.
func (d *Device) Path() string {
	return d.path
}

// Attach binds backingFile to a free loop device.
//
// The backing file is opened read only, so the loop device is read only as
// well. Setting the file name in the loop status is best effort: a failure is
// logged and does not fail Attach.
func (m *Manager) Attach(backingFile string) (*Device, error) {
	if _, err := os.Stat(backingFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrBackingFileNotFound, "%s", backingFile)
		}
		return nil, errors.Wrapf(err, "stat %s", backingFile)
	}

	backing, err := os.OpenFile(backingFile, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open backing file")
	}
	// The kernel holds its own reference after LOOP_SET_FD.
	defer backing.Close()

	num, err := m.getFree()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(m.DevDir, fmt.Sprintf("loop%d", num))
	lf, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open loop device")
	}

	if err := ioctl(lf.Fd(), unix.LOOP_SET_FD, backing.Fd()); err != nil {
		lf.Close()
		return nil, errors.Wrapf(err, "LOOP_SET_FD %s", path)
	}

	if err := setFileName(lf.Fd(), backingFile); err != nil {
		log.Printf("warning: LOOP_SET_STATUS64 %s: %v", path, err)
	}

	return &Device{path: path, file: lf}, nil
}

// getFree asks the control device for a free loop device number. The control
// device is closed before returning.
func (m *Manager) getFree() (int, error) {
	ctrl, err := os.OpenFile(m.ControlPath, os.O_RDWR, 0)
	if err != nil {
		return 0, errors.Wrap(err, "open loop control")
	}
	defer ctrl.Close()

	num, _, errno := unix.Syscall(unix.SYS_IOCTL, ctrl.Fd(), unix.LOOP_CTL_GET_FREE, 0)
	if errno != 0 {
		return 0, errors.Wrap(errno, "LOOP_CTL_GET_FREE")
	}
	if int(num) < 0 {
		return 0, errors.Newf("LOOP_CTL_GET_FREE returned %d", int(num))
	}

	return int(num), nil
}

// Detach clears the backing file from the loop device and closes it.
//
// Detach must be called at most once; a second call panics.
func (d *Device) Detach() error {
	if d.detached {
		panic("loop: Detach called twice on " + d.path)
	}
	d.detached = true

	defer d.file.Close()

	if err := ioctl(d.file.Fd(), unix.LOOP_CLR_FD, 0); err != nil {
		return errors.Wrapf(err, "LOOP_CLR_FD %s", d.path)
	}

	return nil
}

// setFileName records name in the lo_file_name field of struct loop_info64
// (linux/loop.h), the value losetup shows as backing file. unix.LoopInfo64
// mirrors that layout; File_name is LO_NAME_SIZE (64) bytes and must stay NUL
// terminated, so at most 63 bytes of name are kept.
func setFileName(fd uintptr, name string) error {
	var info unix.LoopInfo64
	copy(info.File_name[:len(info.File_name)-1], name)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, unix.LOOP_SET_STATUS64, uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return errno
	}

	return nil
}

func ioctl(fd uintptr, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), arg)
	if errno != 0 {
		return errno
	}

	return nil
}
