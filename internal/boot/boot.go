//go:build linux

// Package boot runs the stage 1 boot sequence: it mounts the pseudo file
// systems, finds the system partition, attaches the root file system image
// and switches into it.
package boot

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/cozystack/init-stage1/internal/blockdev"
	"github.com/cozystack/init-stage1/internal/bootargs"
	"github.com/cozystack/init-stage1/internal/diag"
	"github.com/cozystack/init-stage1/internal/image"
	"github.com/cozystack/init-stage1/internal/loop"
	"github.com/cozystack/init-stage1/internal/mount"
	"github.com/cozystack/init-stage1/internal/proc"
	"github.com/cozystack/init-stage1/internal/switchroot"
)

var (
	// ErrNotPidOne is returned by Run if the process is not PID 1.
	ErrNotPidOne = errors.New("process does not have ID 1")
	// ErrImageNotFound is returned if the system partition has no image.
	ErrImageNotFound = errors.New("root file system image not found")
)

// retainedLoop owns the loop device of the root file system image. The image
// stays mounted as "/" after the switch, so the device is never detached by
// this process; it lives until reboot.
//
//nolint:gochecknoglobals
var retainedLoop LoopDevice

// Resolver maps a partition UUID to a device path.
type Resolver interface {
	ResolveByUUID(uuid string) (string, error)
}

// LoopDevice is an attached loop device.
type LoopDevice interface {
	Path() string
}

// Attacher attaches an image file to a loop device.
type Attacher interface {
	Attach(backingFile string) (LoopDevice, error)
}

// Switcher switches the process root.
type Switcher interface {
	Switch(newRoot string) error
}

// ExecFunc replaces the running process, see execve(2).
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Sequencer runs the boot sequence once. Its fields are the collaborators of
// each step and are set to the real implementations by New.
type Sequencer struct {
	Config Config

	Mounter  mount.Mounter
	Resolver Resolver
	Attacher Attacher
	Switcher Switcher
	Exec     ExecFunc
}

type loopAttacher struct {
	m *loop.Manager
}

func (a loopAttacher) Attach(backingFile string) (LoopDevice, error) {
	dev, err := a.m.Attach(backingFile)
	if err != nil {
		return nil, err
	}

	return dev, nil
}

// New returns a Sequencer operating on the running system.
func New(cfg Config) *Sequencer {
	m := mount.System{}

	return &Sequencer{
		Config:   cfg,
		Mounter:  m,
		Resolver: &blockdev.Resolver{ClassDir: cfg.BlockClassDir, DevDir: cfg.DevPath},
		Attacher: loopAttacher{m: &loop.Manager{ControlPath: cfg.LoopControlPath, DevDir: cfg.DevPath}},
		Switcher: switchroot.New(m),
		Exec:     unix.Exec,
	}
}

// Run checks that the process is PID 1 and runs the boot sequence with cfg.
func Run(cfg Config) error {
	if os.Getpid() != 1 {
		return ErrNotPidOne
	}

	return New(cfg).Run()
}

// Run executes the boot sequence. Any failing step aborts it; mounts made by
// earlier steps are left in place.
//
// If the kernel command line names an init program, Run only returns on
// error. Otherwise it returns after the root switch.
func (s *Sequencer) Run() error {
	cfg := s.Config

	if err := mount.MountFS(s.Mounter, cfg.DevPath, "", "devtmpfs", mount.None); err != nil {
		return errors.Wrap(err, "mount devtmpfs")
	}

	if err := mount.MountFS(s.Mounter, cfg.SysPath, "", "sysfs", mount.None); err != nil {
		return errors.Wrap(err, "mount sysfs")
	}

	procfs, err := proc.Mount(s.Mounter, cfg.ProcPath)
	if err != nil {
		return err
	}

	args, err := bootargs.Parse(procfs)
	if err != nil {
		return errors.Wrap(err, "parse kernel arguments")
	}
	log.Printf("system partition %s, user partition %s", args.SystemPartition, args.UserPartition)

	if err := s.mountSystemPartition(args); err != nil {
		return errors.Wrap(err, "mount system partition")
	}
	if args.Debug {
		diag.ListDir(cfg.SystemPartitionMount)
	}

	if err := s.mountImage(); err != nil {
		return errors.Wrap(err, "mount system image")
	}
	if args.Debug {
		diag.ListDir(cfg.ImageMount)
	}

	if err := s.Switcher.Switch(cfg.ImageMount); err != nil {
		return errors.Wrap(err, "switch root")
	}
	if args.Debug {
		diag.ListDir("/")
	}

	if args.Init == "" {
		log.Printf("no init= on the kernel command line, stage 1 done")
		return nil
	}

	if cfg.ImageFlags.Has(mount.NoExec) {
		log.Printf("warning: %s is mounted %s, exec of %s is expected to fail", cfg.ImageMount, cfg.ImageFlags, args.Init)
	}
	log.Printf("executing %s", args.Init)
	if err := s.Exec(args.Init, []string{args.Init}, os.Environ()); err != nil {
		return errors.Wrapf(err, "exec %s", args.Init)
	}

	return nil
}

func (s *Sequencer) mountSystemPartition(args *bootargs.Args) error {
	cfg := s.Config
	uuid := bootargs.PartitionUUID(args.SystemPartition)

	dev, err := s.Resolver.ResolveByUUID(uuid)
	if err != nil {
		s.logPartitions()
		return err
	}
	log.Printf("system partition %s is %s", uuid, dev)

	return mount.MountFS(s.Mounter, cfg.SystemPartitionMount, dev, cfg.SystemPartitionFSType, mount.None)
}

// logPartitions lists known partitions if the resolver can enumerate them.
func (s *Sequencer) logPartitions() {
	lister, ok := s.Resolver.(interface {
		Partitions() ([]blockdev.Partition, error)
	})
	if !ok {
		return
	}

	parts, err := lister.Partitions()
	if err != nil {
		log.Printf("warning: list partitions: %v", err)
		return
	}

	for _, p := range parts {
		log.Printf("available partition: %s PARTUUID=%s", p.DevName, p.PartUUID)
	}
}

func (s *Sequencer) mountImage() error {
	cfg := s.Config
	imagePath := filepath.Join(cfg.SystemPartitionMount, cfg.ImageName)

	if _, err := os.Stat(imagePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(ErrImageNotFound, "%s", imagePath)
		}
		return errors.Wrapf(err, "stat %s", imagePath)
	}

	fsType := image.FSType(imagePath, cfg.ImageFSType)

	dev, err := s.Attacher.Attach(imagePath)
	if err != nil {
		return errors.Wrap(err, "attach loop device")
	}
	retainedLoop = dev
	log.Printf("attached %s to %s", imagePath, dev.Path())

	if err := mount.MountFS(s.Mounter, cfg.ImageMount, dev.Path(), fsType, cfg.ImageFlags); err != nil {
		return err
	}
	log.Printf("mounted %s (%s) on %s", dev.Path(), fsType, cfg.ImageMount)

	return nil
}
