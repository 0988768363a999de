//go:build linux

package mount

import (
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Flags is a set of MS_* mount flags as defined by mount(2).
type Flags uintptr

const (
	ReadOnly    Flags = unix.MS_RDONLY
	NoSuid      Flags = unix.MS_NOSUID
	NoDev       Flags = unix.MS_NODEV
	NoExec      Flags = unix.MS_NOEXEC
	Synchronous Flags = unix.MS_SYNCHRONOUS
	Remount     Flags = unix.MS_REMOUNT
	Mandlock    Flags = unix.MS_MANDLOCK
	DirSync     Flags = unix.MS_DIRSYNC
	NoAtime     Flags = unix.MS_NOATIME
	NoDirAtime  Flags = unix.MS_NODIRATIME
	RelAtime    Flags = unix.MS_RELATIME
	Bind        Flags = unix.MS_BIND
	Move        Flags = unix.MS_MOVE
	Recursive   Flags = unix.MS_REC

	// None mounts with the file system defaults.
	None Flags = 0
)

//nolint:gochecknoglobals
var flagNames = []struct {
	flag Flags
	name string
}{
	{ReadOnly, "ro"},
	{NoSuid, "nosuid"},
	{NoDev, "nodev"},
	{NoExec, "noexec"},
	{Synchronous, "sync"},
	{Remount, "remount"},
	{Mandlock, "mand"},
	{DirSync, "dirsync"},
	{NoAtime, "noatime"},
	{NoDirAtime, "nodiratime"},
	{RelAtime, "relatime"},
	{Bind, "bind"},
	{Move, "move"},
	{Recursive, "rec"},
}

// Has reports whether all bits of other are set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// String renders the set in mount(8) option syntax, e.g. "ro,nodev,noexec".
func (f Flags) String() string {
	if f == None {
		return "defaults"
	}

	var names []string
	rest := f
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(rest), 16))
	}

	return strings.Join(names, ",")
}
