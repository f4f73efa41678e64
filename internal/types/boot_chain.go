package types

// Boot chain layout
// Fixed offsets and magic values of the sectors patched by the installer. All
// multi-byte fields are read in the target machine's native (big-endian) order
// unless a field says otherwise.

// SectorSize is the size of every sector exchanged with the raw I/O layer.
const SectorSize = 512

// ChecksumTarget is the word-sum a boot or root sector must have to be executed
// by the boot ROM.
const ChecksumTarget uint16 = 0x1234

// Boot sector (logical sector 0 of the target drive).
const (
	// BootPreambleOffset is where the branch instruction preamble is written.
	BootPreambleOffset = 0
	// BootDirtyFlagOffset is the "volume dirty" byte cleared by VariantB.
	BootDirtyFlagOffset = 0x25
	// BootStubOffset is where the embedded boot stub is copied.
	BootStubOffset = 0x3E
	// BootChecksumOffset is the checksum word corrected after patching.
	BootChecksumOffset = 508
	// MaxBootStubSize is the room between the stub offset and the checksum word.
	MaxBootStubSize = BootChecksumOffset - BootStubOffset
)

// Root sector (physical sector 0 of the target device).
const (
	// RootStubOffset is where the embedded root stub is copied.
	RootStubOffset = 0
	// RootChecksumOffset is the checksum word corrected after patching.
	RootChecksumOffset = 442
	// MaxRootStubSize is the room in front of the checksum word.
	MaxRootStubSize = RootChecksumOffset - RootStubOffset

	// DOSTableOffset is the base of the MS-DOS partition table.
	DOSTableOffset = 0x1BE
	// NativeTableOffset is the base of the native (AHDI) partition table.
	NativeTableOffset = 0x1C6
	// RootMagicOffset holds the word that tells the two table layouts apart.
	RootMagicOffset = 510
	// DOSMagic at RootMagicOffset selects the MS-DOS layout.
	DOSMagic uint16 = 0x55AA

	// DOSEntrySize is the size of one MS-DOS table record.
	DOSEntrySize = 16
	// NativeEntrySize is the size of one AHDI table record.
	NativeEntrySize = 12
	// PartitionEntryCount is the number of records in both layouts.
	PartitionEntryCount = 4
	// PartitionActiveFlag is ORed into the status byte of the bootable entry.
	PartitionActiveFlag byte = 0x80
)

// Loader image.
const (
	// PrgMagic is the executable header magic at offset 0.
	PrgMagic uint16 = 0x601A
	// EmuTOSTag must occur within the first ImageSniffSize bytes.
	EmuTOSTag = "ETOS"
	// ImageSniffSize is the size of the bounded read done by the validator.
	ImageSniffSize = 4096
	// MinImageSize rejects files too small to be a loader image.
	MinImageSize int64 = 120000
)

// Target drive.
const (
	// DriveC is the logical drive number of C:.
	DriveC = 2
	// BPBFlagFAT16 is set in the BPB flags word of a FAT16 drive.
	BPBFlagFAT16 uint16 = 0x0001
	// DeviceUnmapped is the high bit of a drive table device number that marks a
	// drive without a physical device.
	DeviceUnmapped uint8 = 0x80
	// PhysicalDeviceOffset is added to a unit number for physical sector I/O.
	PhysicalDeviceOffset = 2
	// DestinationName is the loader file written to the root of the drive.
	DestinationName = "EMUTOS.SYS"
	// CopyChunkSize is the buffer size used to copy the loader file.
	CopyChunkSize = 4096
)
