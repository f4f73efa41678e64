// Package installer writes the EmuTOS loader file, boot sector and root sector
// of a drive. Installation is strictly sequential and fails fast; sectors and
// files already written are not restored when a later step fails.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-emutos-install/internal/checksum"
	"github.com/deploymenttheory/go-emutos-install/internal/drive"
	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/partition"
	"github.com/deploymenttheory/go-emutos-install/internal/stub"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// DriveResolver resolves the target drive. *drive.Resolver implements it.
type DriveResolver interface {
	Resolve(drive int) (drive.Info, error)
}

var _ DriveResolver = (*drive.Resolver)(nil)

// Options tune an installation. Zero values select the defaults.
type Options struct {
	Variant     types.Variant
	Drive       int
	Destination string
	ChunkSize   int

	// OnStage is called after each stage is reached.
	OnStage func(Stage)
	// OnCopy is called after each chunk of the loader file is written.
	OnCopy func(copied int64)
}

// Config wires an Installer to its host.
type Config struct {
	Resolver DriveResolver
	Device   interfaces.SectorDevice
	Volume   interfaces.Volume
	// Source holds the loader image.
	Source  afero.Fs
	Stubs   *stub.Set
	Options Options
}

// Result describes a finished or aborted installation.
type Result struct {
	Variant types.Variant
	// Stage is the last stage reached, or StageFailed.
	Stage     Stage
	Completed []Stage
	Drive     drive.Info
	// BytesCopied is the size of the loader file written so far.
	BytesCopied int64
	// BootChecksum and RootChecksum are the word-sums of the written sectors.
	BootChecksum uint16
	RootChecksum uint16
	// PartitionMarked is set when the partition table was updated.
	PartitionMarked bool
}

// Installer runs installations. A single Installer runs one installation at a
// time; its sector buffer belongs to the running installation.
type Installer struct {
	mu       sync.Mutex
	resolver DriveResolver
	device   interfaces.SectorDevice
	volume   interfaces.Volume
	source   afero.Fs
	stubs    *stub.Set
	layout   types.Layout
	opts     Options
	sector   [types.SectorSize]byte
}

// New validates cfg and returns an Installer.
func New(cfg Config) (*Installer, error) {
	if cfg.Resolver == nil || cfg.Device == nil || cfg.Volume == nil || cfg.Source == nil {
		return nil, fmt.Errorf("resolver, device, volume and source are required")
	}
	if cfg.Stubs == nil {
		return nil, fmt.Errorf("boot and root stubs are required")
	}

	opts := cfg.Options
	if opts.Variant == 0 {
		opts.Variant = types.VariantB
	}
	if opts.Drive == 0 {
		opts.Drive = types.DriveC
	}
	if opts.Destination == "" {
		opts.Destination = types.DestinationName
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = types.CopyChunkSize
	}

	layout, err := opts.Variant.Layout()
	if err != nil {
		return nil, err
	}

	return &Installer{
		resolver: cfg.Resolver,
		device:   cfg.Device,
		volume:   cfg.Volume,
		source:   cfg.Source,
		stubs:    cfg.Stubs,
		layout:   layout,
		opts:     opts,
	}, nil
}

// Variant returns the variant the installer was configured with.
func (in *Installer) Variant() types.Variant {
	return in.opts.Variant
}

type step struct {
	stage Stage
	run   func(*Result, string) error
	// cancellable steps check the context first; none are once sector writes
	// have begun.
	cancellable bool
}

// Run installs the loader image at imagePath. The returned Result is never nil;
// on failure it records how far the installation got and the error is a
// *StageError wrapping one of the types.Err* kinds.
func (in *Installer) Run(ctx context.Context, imagePath string) (*Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	result := &Result{Variant: in.opts.Variant, Stage: StageIdle}

	steps := []step{
		{stage: StageFatChecked, run: in.checkDrive, cancellable: true},
		{stage: StagePayloadCopied, run: in.copyPayload, cancellable: true},
		{stage: StageBootSectorWritten, run: in.writeBootSector, cancellable: true},
	}
	if in.layout.MarkPartition {
		steps = append(steps, step{stage: StagePartitionMarked, run: in.markPartition})
	}
	steps = append(steps, step{stage: StageRootSectorPatched, run: in.patchRootSector})

	for _, s := range steps {
		if s.cancellable {
			if err := ctx.Err(); err != nil {
				return in.fail(result, s.stage, err)
			}
		}
		if err := s.run(result, imagePath); err != nil {
			return in.fail(result, s.stage, err)
		}
		in.reach(result, s.stage)
	}

	in.reach(result, StageDone)
	return result, nil
}

func (in *Installer) reach(result *Result, stage Stage) {
	result.Stage = stage
	result.Completed = append(result.Completed, stage)
	if glog.V(1) {
		glog.Infof("installer: reached %s", stage)
	}
	if in.opts.OnStage != nil {
		in.opts.OnStage(stage)
	}
}

func (in *Installer) fail(result *Result, stage Stage, err error) (*Result, error) {
	result.Stage = StageFailed
	if glog.V(1) {
		glog.Infof("installer: %s failed: %v", stage, err)
	}
	if in.opts.OnStage != nil {
		in.opts.OnStage(StageFailed)
	}
	return result, &StageError{Stage: stage, Err: err}
}

// checkDrive requires a FAT16 target with a physical device mapping.
func (in *Installer) checkDrive(result *Result, _ string) error {
	info, err := in.resolver.Resolve(in.opts.Drive)
	if err != nil {
		return err
	}
	result.Drive = info
	return nil
}

// copyPayload streams the loader image into the destination file.
func (in *Installer) copyPayload(result *Result, imagePath string) (err error) {
	src, err := in.source.Open(imagePath)
	if err != nil {
		return types.IOError("open loader image", err)
	}
	defer func() {
		err = multierr.Append(err, types.IOError("close loader image", src.Close()))
	}()

	dst, err := in.volume.Create(in.opts.Destination)
	if err != nil {
		return types.IOError("create "+in.opts.Destination, err)
	}
	defer func() {
		err = multierr.Append(err, types.IOError("close "+in.opts.Destination, dst.Close()))
	}()

	buf := make([]byte, in.opts.ChunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			if werr == nil && written != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return types.IOError("write "+in.opts.Destination, werr)
			}
			result.BytesCopied += int64(written)
			if in.opts.OnCopy != nil {
				in.opts.OnCopy(result.BytesCopied)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return types.IOError("read loader image", rerr)
		}
	}
}

// writeBootSector patches logical sector 0 of the target drive.
func (in *Installer) writeBootSector(result *Result, _ string) error {
	buf := in.sector[:]
	addr := interfaces.LogicalSector(result.Drive.Drive, 0)

	if err := in.device.ReadSector(addr, interfaces.TransferNormal, buf); err != nil {
		return types.IOError("read boot sector", err)
	}

	copy(buf[types.BootPreambleOffset:], in.layout.Preamble)
	if in.layout.ClearDirtyFlag {
		buf[types.BootDirtyFlagOffset] = 0
	}
	copy(buf[types.BootStubOffset:types.BootChecksumOffset], in.stubs.Boot)
	if err := checksum.Apply(buf, types.BootChecksumOffset); err != nil {
		return err
	}

	if err := in.device.WriteSector(addr, interfaces.TransferNormal, buf); err != nil {
		return types.IOError("write boot sector", err)
	}
	result.BootChecksum = checksum.Sum(buf)
	return nil
}

// markPartition flags the table entry of the target partition as bootable.
func (in *Installer) markPartition(result *Result, _ string) error {
	buf := in.sector[:]
	addr := interfaces.PhysicalSector(result.Drive.Device, 0)

	if err := in.device.ReadSector(addr, interfaces.TransferRaw, buf); err != nil {
		return types.IOError("read root sector", err)
	}
	if !partition.MarkActive(buf, result.Drive.PartitionStart) {
		return fmt.Errorf("start sector %d: %w", result.Drive.PartitionStart, types.ErrNoBootablePartition)
	}
	if err := in.device.WriteSector(addr, interfaces.TransferRaw, buf); err != nil {
		return types.IOError("write root sector", err)
	}
	result.PartitionMarked = true
	return nil
}

// patchRootSector installs the root stub into physical sector 0.
func (in *Installer) patchRootSector(result *Result, _ string) error {
	buf := in.sector[:]
	addr := interfaces.PhysicalSector(result.Drive.Device, 0)

	if err := in.device.ReadSector(addr, interfaces.TransferRaw, buf); err != nil {
		return types.IOError("read root sector", err)
	}

	copy(buf[types.RootStubOffset:types.RootChecksumOffset], in.stubs.Root)
	if err := checksum.Apply(buf, types.RootChecksumOffset); err != nil {
		return err
	}

	if err := in.device.WriteSector(addr, interfaces.TransferRaw, buf); err != nil {
		return types.IOError("write root sector", err)
	}
	result.RootChecksum = checksum.Sum(buf)
	return nil
}
