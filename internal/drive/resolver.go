// Package drive resolves a logical drive to the physical device and partition
// start needed for raw root sector access.
package drive

import (
	"fmt"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Info describes a resolved target drive.
type Info struct {
	// Drive is the logical drive number (2 for C:).
	Drive int
	// Device is the physical device number for raw I/O, offset included.
	Device int
	// PartitionStart is the first physical sector of the drive's partition.
	PartitionStart uint32
	// BPB is the drive's parameter block.
	BPB interfaces.BPB
}

// Letter returns the drive letter of the resolved drive.
func (i Info) Letter() string {
	return fmt.Sprintf("%c:", 'A'+rune(i.Drive))
}

// Resolver reads the drive parameters kept by the host.
type Resolver struct {
	bpbs       interfaces.BPBSource
	table      interfaces.DriveTable
	supervisor interfaces.Supervisor
}

// NewResolver creates a resolver over the host's BPB source, drive table and
// supervisor switch.
func NewResolver(bpbs interfaces.BPBSource, table interfaces.DriveTable, supervisor interfaces.Supervisor) (*Resolver, error) {
	if bpbs == nil || table == nil || supervisor == nil {
		return nil, fmt.Errorf("bpb source, drive table and supervisor are required")
	}
	return &Resolver{bpbs: bpbs, table: table, supervisor: supervisor}, nil
}

// Resolve checks that the drive is FAT16 and reads its device mapping.
func (r *Resolver) Resolve(drive int) (Info, error) {
	bpb, err := r.bpbs.GetBPB(drive)
	if err != nil {
		return Info{}, fmt.Errorf("drive %c: no parameter block: %w: %w", 'A'+rune(drive), types.ErrUnsupportedFilesystem, err)
	}
	if bpb == nil || bpb.Flags&types.BPBFlagFAT16 == 0 {
		return Info{}, fmt.Errorf("drive %c: %w", 'A'+rune(drive), types.ErrUnsupportedFilesystem)
	}

	mapping, err := r.readMapping(drive)
	if err != nil {
		return Info{}, err
	}
	if mapping.Device&types.DeviceUnmapped != 0 {
		return Info{}, fmt.Errorf("drive %c: device %#02x: %w", 'A'+rune(drive), mapping.Device, types.ErrPrivilegedAccessDenied)
	}

	return Info{
		Drive:          drive,
		Device:         int(mapping.Device) + types.PhysicalDeviceOffset,
		PartitionStart: mapping.PartitionStart,
		BPB:            *bpb,
	}, nil
}

// readMapping reads one drive table slot in supervisor mode. The previous mode
// is restored on every return path.
func (r *Resolver) readMapping(drive int) (interfaces.DriveMapping, error) {
	prev, err := r.supervisor.EnterSupervisor()
	if err != nil {
		return interfaces.DriveMapping{}, fmt.Errorf("enter supervisor mode: %w: %w", types.ErrPrivilegedAccessDenied, err)
	}
	defer r.supervisor.RestoreMode(prev)

	mapping, err := r.table.Mapping(drive)
	if err != nil {
		return interfaces.DriveMapping{}, fmt.Errorf("read drive table: %w: %w", types.ErrPrivilegedAccessDenied, err)
	}
	return mapping, nil
}
