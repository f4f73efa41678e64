// Package partition scans the partition table of a root sector. Two layouts are
// recognised: the MS-DOS table at 0x1BE, selected by 0x55AA at offset 510, and
// the native AHDI table at 0x1C6 used otherwise.
package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Layout identifies the partition table format of a root sector.
type Layout int

const (
	// LayoutNative is the AHDI table with big-endian start sectors.
	LayoutNative Layout = iota
	// LayoutDOS is the MS-DOS table with little-endian start sectors.
	LayoutDOS
)

func (l Layout) String() string {
	switch l {
	case LayoutNative:
		return "native"
	case LayoutDOS:
		return "ms-dos"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// TableOffset returns the base offset of the layout's four records.
func (l Layout) TableOffset() int {
	if l == LayoutDOS {
		return types.DOSTableOffset
	}
	return types.NativeTableOffset
}

// DetectLayout reads the magic word at offset 510.
func DetectLayout(root []byte) Layout {
	if binary.BigEndian.Uint16(root[types.RootMagicOffset:]) == types.DOSMagic {
		return LayoutDOS
	}
	return LayoutNative
}

// EntrySize returns the size of one of the layout's records.
func (l Layout) EntrySize() int {
	if l == LayoutDOS {
		return types.DOSEntrySize
	}
	return types.NativeEntrySize
}

// startSector returns the start sector of a record in host order.
func (l Layout) startSector(record []byte) uint32 {
	if l == LayoutDOS {
		return binary.LittleEndian.Uint32(record[8:12])
	}
	return binary.BigEndian.Uint32(record[4:8])
}

// MarkActive sets the active bit of the first record whose start sector equals
// partitionStart and reports whether one was found. Other records, including
// any active bits they already carry, are left as they are. With no match the
// sector is not modified.
func MarkActive(root []byte, partitionStart uint32) bool {
	if len(root) < types.SectorSize {
		return false
	}

	layout := DetectLayout(root)
	base, size := layout.TableOffset(), layout.EntrySize()
	for i := 0; i < types.PartitionEntryCount; i++ {
		off := base + i*size
		record := root[off : off+size]
		if layout.startSector(record) == partitionStart {
			record[0] |= types.PartitionActiveFlag
			return true
		}
	}
	return false
}
