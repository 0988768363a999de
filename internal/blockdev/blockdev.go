// Package blockdev maps partition UUIDs to device nodes using the kernel's
// uevent attributes under /sys/class/block.
package blockdev

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Default locations.
const (
	DefaultClassDir = "/sys/class/block"
	DefaultDevDir   = "/dev"
)

const (
	ueventFile  = "uevent"
	keyDevName  = "DEVNAME="
	keyPartUUID = "PARTUUID="
)

// ErrPartitionNotFound is returned if no block device carries the requested
// partition UUID.
var ErrPartitionNotFound = errors.New("partition not found")

// Partition is a block device with its partition UUID as read from its
// uevent file.
type Partition struct {
	DevName  string
	PartUUID string
}

// Resolver looks up partitions in a sysfs block class directory.
type Resolver struct {
	// ClassDir holds one directory per block device, each with a uevent file.
	ClassDir string
	// DevDir is prepended to DEVNAME to build the device path.
	DevDir string
}

// NewResolver returns a Resolver for the default sysfs and devtmpfs paths.
func NewResolver() *Resolver {
	return &Resolver{ClassDir: DefaultClassDir, DevDir: DefaultDevDir}
}

// ResolveByUUID returns the device path of the partition whose PARTUUID is
// exactly uuid. Comparison is case sensitive.
//
// Entries are visited in the order returned by os.ReadDir, i.e. sorted by
// name. If the same UUID is present more than once, the first entry in that
// order wins. Entries without a readable uevent file are skipped.
func (r *Resolver) ResolveByUUID(uuid string) (string, error) {
	entries, err := os.ReadDir(r.ClassDir)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", r.ClassDir)
	}

	for _, entry := range entries {
		p, ok := r.readPartition(entry.Name())
		if !ok {
			continue
		}
		if p.PartUUID == uuid {
			return filepath.Join(r.DevDir, p.DevName), nil
		}
	}

	return "", errors.Wrapf(ErrPartitionNotFound, "PARTUUID %s", uuid)
}

// Partitions returns all block devices that have both a device name and a
// partition UUID, in os.ReadDir order.
func (r *Resolver) Partitions() ([]Partition, error) {
	entries, err := os.ReadDir(r.ClassDir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", r.ClassDir)
	}

	var parts []Partition
	for _, entry := range entries {
		if p, ok := r.readPartition(entry.Name()); ok {
			parts = append(parts, p)
		}
	}

	return parts, nil
}

func (r *Resolver) readPartition(name string) (Partition, bool) {
	// Entries are usually symlinks into /sys/devices, os.Open follows them.
	f, err := os.Open(filepath.Join(r.ClassDir, name, ueventFile))
	if err != nil {
		log.Printf("debug: skipping %s: %v", name, err)
		return Partition{}, false
	}
	defer f.Close()

	p := ParseUevent(f)

	return p, p.DevName != "" && p.PartUUID != ""
}

// ParseUevent scans uevent attributes line by line for DEVNAME and PARTUUID
// and stops as soon as both are found.
func ParseUevent(r io.Reader) Partition {
	var p Partition

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, keyDevName); ok {
			p.DevName = v
		} else if v, ok := strings.CutPrefix(line, keyPartUUID); ok {
			p.PartUUID = v
		}

		if p.DevName != "" && p.PartUUID != "" {
			break
		}
	}

	return p
}
