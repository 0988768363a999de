package testutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/squashfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
)

// CreateTestSquashfsImage creates a squashfs image at path containing the
// provided files (path -> content).
func CreateTestSquashfsImage(path string, files map[string][]byte) error {
	// squashfs needs a block size of at least 4k.
	diskImg, err := diskfs.Create(path, 4*1024*1024, diskfs.SectorSize4k)
	if err != nil {
		return err
	}
	defer diskImg.Close()

	fs, err := diskImg.CreateFilesystem(disk.FilesystemSpec{
		Partition: 0, // squashfs images are not partitioned
		FSType:    filesystem.TypeSquashfs,
	})
	if err != nil {
		return err
	}

	sqfs, ok := fs.(*squashfs.FileSystem)
	if !ok {
		return errors.Newf("unexpected filesystem %T", fs)
	}

	for filePath, content := range files {
		if dir := filepath.Dir(filePath); dir != "." && dir != "/" {
			// Ignore mkdir errors - directory may exist
			_ = sqfs.Mkdir(dir)
		}

		f, err := sqfs.OpenFile(filePath, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	return sqfs.Finalize(squashfs.FinalizeOptions{})
}

// CreateTestGPTImage creates a disk image with one Linux data partition per
// entry of partUUIDs and returns the image's partition table.
func CreateTestGPTImage(path string, partUUIDs []string) (*gpt.Table, error) {
	const (
		sizeMB       = 16
		sectorsPerMB = 1024 * 1024 / 512
		firstSector  = 2048
	)

	diskImg, err := diskfs.Create(path, sizeMB*1024*1024, diskfs.SectorSizeDefault)
	if err != nil {
		return nil, err
	}
	defer diskImg.Close()

	table := &gpt.Table{ProtectiveMBR: true}

	size := uint64((sizeMB - 2) * sectorsPerMB / max(len(partUUIDs), 1))
	for i, id := range partUUIDs {
		start := uint64(firstSector) + uint64(i)*size
		table.Partitions = append(table.Partitions, &gpt.Partition{
			Start: start,
			End:   start + size - 1,
			Type:  gpt.LinuxFilesystem,
			GUID:  strings.ToUpper(id),
			Name:  "part",
		})
	}

	if err := diskImg.Partition(table); err != nil {
		return nil, err
	}

	return table, nil
}
