// File: internal/interfaces/block_device.go
package interfaces

import (
	"fmt"
	"io"
)

// TransferMode selects how the words of a sector travel between the medium and
// the caller.
type TransferMode int

const (
	// TransferNormal follows the host's usual convention, which byte-swaps every
	// word on word-swapped media.
	TransferNormal TransferMode = iota
	// TransferRaw moves the bytes exactly as stored on the medium.
	TransferRaw
)

func (m TransferMode) String() string {
	if m == TransferRaw {
		return "raw"
	}
	return "normal"
}

// SectorAddress names one sector either on a logical drive or on a physical
// device.
type SectorAddress struct {
	// Physical selects device addressing. Device then carries the unit number
	// plus the physical addressing offset; otherwise it is a logical drive number.
	Physical bool
	Device   int
	Sector   uint32
}

// LogicalSector addresses sector n of a logical drive.
func LogicalSector(drive int, n uint32) SectorAddress {
	return SectorAddress{Device: drive, Sector: n}
}

// PhysicalSector addresses sector n of a physical device number.
func PhysicalSector(device int, n uint32) SectorAddress {
	return SectorAddress{Physical: true, Device: device, Sector: n}
}

func (a SectorAddress) String() string {
	if a.Physical {
		return fmt.Sprintf("device %d sector %d", a.Device, a.Sector)
	}
	return fmt.Sprintf("drive %c: sector %d", 'A'+rune(a.Device), a.Sector)
}

// SectorDevice provides single-sector raw I/O. Every call names its transfer
// mode; there is no ambient mode.
type SectorDevice interface {
	// ReadSector fills buf (one sector) from addr.
	ReadSector(addr SectorAddress, mode TransferMode, buf []byte) error

	// WriteSector writes buf (one sector) to addr.
	WriteSector(addr SectorAddress, mode TransferMode, buf []byte) error
}

// BPB is the BIOS parameter block the host keeps for a logical drive.
type BPB struct {
	// Bytes per sector
	RecSize uint16
	// Sectors per cluster
	ClusterSectors uint16
	// Bytes per cluster
	ClusterBytes uint16
	// Root directory length in sectors
	RootDirSectors uint16
	// FAT length in sectors
	FATSectors uint16
	// First sector of the second FAT
	SecondFAT uint16
	// First data sector
	DataStart uint16
	// Number of data clusters
	Clusters uint16
	// Flags; bit 0 marks a 16-bit FAT
	Flags uint16
}

// BPBSource returns the parameter block of a logical drive.
type BPBSource interface {
	// GetBPB returns the drive's BPB or an error when the drive has none.
	GetBPB(drive int) (*BPB, error)
}

// DriveMapping is one slot of the host's drive parameter table.
type DriveMapping struct {
	// Device is the physical unit of the drive. Bit 7 set means no mapping.
	Device uint8
	// PartitionStart is the first physical sector of the drive's partition.
	PartitionStart uint32
}

// DriveTable is the host's process-wide drive parameter table. It can only be
// read in supervisor mode.
type DriveTable interface {
	// Mapping returns the slot for a logical drive.
	Mapping(drive int) (DriveMapping, error)
}

// SupervisorState is the execution mode saved on entry to supervisor mode.
type SupervisorState struct {
	Supervisor bool
}

// Supervisor switches the host's execution mode.
type Supervisor interface {
	// EnterSupervisor switches to supervisor mode and returns the previous state.
	EnterSupervisor() (SupervisorState, error)

	// RestoreMode returns to a state obtained from EnterSupervisor.
	RestoreMode(prev SupervisorState)
}

// Volume is the filesystem of a logical drive, as far as the installer needs it.
type Volume interface {
	// Create creates or truncates name in the root directory.
	Create(name string) (io.WriteCloser, error)
}
