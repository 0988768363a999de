package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/uuid"
)

// BlockDevice is an entry of a synthetic /sys/class/block directory.
type BlockDevice struct {
	Name   string
	Uevent []string

	// Unreadable makes opening the uevent file fail, even for root.
	Unreadable bool
}

// NewPartUUID returns a random partition UUID in the lower case form the
// kernel uses.
func NewPartUUID() string {
	return uuid.NewString()
}

// PartitionUevent returns uevent lines as the kernel writes them for a
// partition.
func PartitionUevent(devName, partUUID string, partN int) []string {
	return []string{
		"MAJOR=8",
		fmt.Sprintf("MINOR=%d", partN),
		"DEVNAME=" + devName,
		"DEVTYPE=partition",
		"DISKSEQ=1",
		fmt.Sprintf("PARTN=%d", partN),
		"PARTUUID=" + partUUID,
	}
}

// CreateBlockClass writes devices into dir, one sub directory with a uevent
// file per device.
func CreateBlockClass(dir string, devices []BlockDevice) error {
	for _, dev := range devices {
		devDir := filepath.Join(dir, dev.Name)
		if err := os.MkdirAll(devDir, 0o755); err != nil {
			return err
		}

		uevent := filepath.Join(devDir, "uevent")
		if dev.Unreadable {
			// Dangling, so open fails with ENOENT.
			if err := os.Symlink(filepath.Join(devDir, "missing"), uevent); err != nil {
				return err
			}
			continue
		}

		content := strings.Join(dev.Uevent, "\n") + "\n"
		if err := os.WriteFile(uevent, []byte(content), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// CreateBlockClassFromGPT writes the entries the kernel would expose for a
// disk named diskName carrying table.
func CreateBlockClassFromGPT(dir, diskName string, table *gpt.Table) error {
	devices := []BlockDevice{{
		Name: diskName,
		Uevent: []string{
			"MAJOR=8",
			"MINOR=0",
			"DEVNAME=" + diskName,
			"DEVTYPE=disk",
		},
	}}

	for i, p := range table.Partitions {
		name := fmt.Sprintf("%s%d", diskName, i+1)
		devices = append(devices, BlockDevice{
			Name:   name,
			Uevent: PartitionUevent(name, strings.ToLower(p.GUID), i+1),
		})
	}

	return CreateBlockClass(dir, devices)
}
