// Package image determines the file system type of a root file system image
// before it is handed to the kernel for mounting.
package image

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
)

// File system type names as understood by mount(2).
const (
	TypeSquashfs = "squashfs"
	TypeISO9660  = "iso9660"
	TypeVFAT     = "vfat"
	TypeExt4     = "ext4"
	TypeEROFS    = "erofs"
)

// ErrUnknownFilesystem is returned if the image format can not be determined.
var ErrUnknownFilesystem = errors.New("unknown filesystem")

// Detect reads the superblock of the image at path and returns the mount(2)
// type name of the file system it contains.
func Detect(path string) (string, error) {
	// diskfs does not report a missing file as fs.ErrNotExist.
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "stat %s", path)
	}

	// The sector size doubles as the squashfs block size, which must be at
	// least 4k.
	disk, err := diskfs.Open(path,
		diskfs.WithOpenMode(diskfs.ReadOnly),
		diskfs.WithSectorSize(diskfs.SectorSize4k),
	)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer disk.Close()

	// Images are not partitioned, the file system starts at offset 0.
	fs, err := disk.GetFilesystem(0)
	if err != nil {
		return "", errors.Wrapf(ErrUnknownFilesystem, "%s: %v", path, err)
	}

	switch fs.Type() {
	case filesystem.TypeSquashfs:
		return TypeSquashfs, nil
	case filesystem.TypeISO9660:
		return TypeISO9660, nil
	case filesystem.TypeFat32:
		return TypeVFAT, nil
	case filesystem.TypeExt4:
		return TypeExt4, nil
	default:
		return "", errors.Wrapf(ErrUnknownFilesystem, "%s: type %v", path, fs.Type())
	}
}

// TypeFromName guesses the file system type from the file extension. It
// returns an empty string for unknown extensions.
func TypeFromName(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".squashfs", ".sqfs", ".sfs":
		return TypeSquashfs
	case ".iso":
		return TypeISO9660
	case ".erofs":
		return TypeEROFS
	case ".ext4":
		return TypeExt4
	default:
		return ""
	}
}

// FSType returns the file system type to mount the image at path with. The
// content probe wins over the file name; fallback is used if neither gives an
// answer. Probe failures are logged, never returned, since the kernel has the
// final say when mounting.
func FSType(path, fallback string) string {
	t, err := Detect(path)
	if err == nil {
		return t
	}
	log.Printf("warning: probe %s: %v", path, err)

	if t := TypeFromName(path); t != "" {
		return t
	}

	return fallback
}
