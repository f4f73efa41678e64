package partition

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/go-restruct/restruct"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// dosRecord is one MS-DOS partition table record. Multi-byte fields are
// little-endian.
type dosRecord struct {
	Status   uint8   // Offset 0
	StartCHS [3]byte // Offset 1
	Type     uint8   // Offset 4
	EndCHS   [3]byte // Offset 5
	Start    uint32  // Offset 8
	Size     uint32  // Offset 12
}

// nativeRecord is one AHDI partition table record. Multi-byte fields are
// big-endian.
type nativeRecord struct {
	Status uint8   // Offset 0: bit 0 exists, bit 7 bootable
	ID     [3]byte // Offset 1: "GEM", "BGM", ...
	Start  uint32  // Offset 4
	Size   uint32  // Offset 8
}

// Entry is a decoded partition table record.
type Entry struct {
	Index  int    `json:"index" yaml:"index"`
	Status uint8  `json:"status" yaml:"status"`
	Active bool   `json:"active" yaml:"active"`
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Type   uint8  `json:"type,omitempty" yaml:"type,omitempty"`
	Start  uint32 `json:"start" yaml:"start"`
	Size   uint32 `json:"size" yaml:"size"`
}

// Exists reports whether the record describes a partition. Native records carry
// an explicit flag; MS-DOS records are in use when their type is not zero.
func (e Entry) Exists(layout Layout) bool {
	if layout == LayoutNative {
		return e.Status&0x01 != 0
	}
	return e.Type != 0
}

// Entries decodes the four records of the root sector's table.
func Entries(root []byte) (Layout, []Entry, error) {
	if len(root) < types.SectorSize {
		return 0, nil, fmt.Errorf("root sector is %d bytes, want %d", len(root), types.SectorSize)
	}

	layout := DetectLayout(root)
	base, size := layout.TableOffset(), layout.EntrySize()
	entries := make([]Entry, 0, types.PartitionEntryCount)

	for i := 0; i < types.PartitionEntryCount; i++ {
		off := base + i*size
		raw := root[off : off+size]

		entry := Entry{Index: i}
		switch layout {
		case LayoutDOS:
			var rec dosRecord
			if err := restruct.Unpack(raw, binary.LittleEndian, &rec); err != nil {
				return layout, nil, fmt.Errorf("decode ms-dos record %d: %w", i, err)
			}
			entry.Status = rec.Status
			entry.Type = rec.Type
			entry.Start = rec.Start
			entry.Size = rec.Size
		default:
			var rec nativeRecord
			if err := restruct.Unpack(raw, binary.BigEndian, &rec); err != nil {
				return layout, nil, fmt.Errorf("decode native record %d: %w", i, err)
			}
			entry.Status = rec.Status
			entry.ID = strings.TrimRight(string(rec.ID[:]), "\x00")
			entry.Start = rec.Start
			entry.Size = rec.Size
		}
		entry.Active = entry.Status&types.PartitionActiveFlag != 0
		entries = append(entries, entry)
	}

	return layout, entries, nil
}
