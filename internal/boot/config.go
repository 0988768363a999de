//go:build linux

package boot

import (
	"github.com/cozystack/init-stage1/internal/blockdev"
	"github.com/cozystack/init-stage1/internal/image"
	"github.com/cozystack/init-stage1/internal/loop"
	"github.com/cozystack/init-stage1/internal/mount"
)

// Config holds the fixed paths and file system types of the boot sequence.
type Config struct {
	DevPath  string
	SysPath  string
	ProcPath string

	// SystemPartitionMount is where the partition named by system_partition
	// is mounted.
	SystemPartitionMount  string
	SystemPartitionFSType string

	// ImageName is the root file system image, relative to the system
	// partition.
	ImageName  string
	ImageMount string
	// ImageFSType is used if the image type can not be detected.
	ImageFSType string
	ImageFlags  mount.Flags

	BlockClassDir   string
	LoopControlPath string
}

// DefaultConfig returns the layout used on devices.
func DefaultConfig() Config {
	return Config{
		DevPath:  "/dev",
		SysPath:  "/sys",
		ProcPath: "/proc",

		SystemPartitionMount:  "/systemp",
		SystemPartitionFSType: "btrfs",

		ImageName:   "system.squashfs",
		ImageMount:  "/system",
		ImageFSType: image.TypeSquashfs,
		ImageFlags:  mount.ReadOnly | mount.NoDev | mount.NoExec,

		BlockClassDir:   blockdev.DefaultClassDir,
		LoopControlPath: loop.DefaultControlPath,
	}
}
