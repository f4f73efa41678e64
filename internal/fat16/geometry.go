// Package fat16 writes files into the root directory of a FAT16 drive through
// single-sector I/O.
package fat16

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Cluster count range of a 16-bit FAT.
const (
	minFAT16Clusters = 4085
	maxFAT16Clusters = 65524
)

// bootRecordSize covers the fields up to the 32-bit sector count.
const bootRecordSize = 0x24

// bootRecord is the parameter block at the start of a partition's boot sector.
// Multi-byte fields are little-endian.
type bootRecord struct {
	Jump              [3]byte // Offset 0
	OEM               [8]byte // Offset 3
	BytesPerSector    uint16  // Offset 11
	SectorsPerCluster uint8   // Offset 13
	ReservedSectors   uint16  // Offset 14
	FATCount          uint8   // Offset 16
	RootEntries       uint16  // Offset 17
	TotalSectors16    uint16  // Offset 19
	Media             uint8   // Offset 21
	FATSectors        uint16  // Offset 22
	SectorsPerTrack   uint16  // Offset 24
	Heads             uint16  // Offset 26
	HiddenSectors     uint32  // Offset 28
	TotalSectors32    uint32  // Offset 32
}

// Geometry is the layout of a FAT volume in logical sectors.
type Geometry struct {
	SectorSize      int
	ClusterSectors  int
	ReservedSectors int
	FATCount        int
	FATSectors      int
	RootEntries     int
	RootStart       int
	RootSectors     int
	DataStart       int
	TotalSectors    int
	Clusters        int
}

// ParseBootRecord decodes the parameter block of a boot sector.
func ParseBootRecord(sector []byte) (Geometry, error) {
	if len(sector) < bootRecordSize {
		return Geometry{}, fmt.Errorf("boot sector is %d bytes", len(sector))
	}

	var br bootRecord
	if err := restruct.Unpack(sector[:bootRecordSize], binary.LittleEndian, &br); err != nil {
		return Geometry{}, fmt.Errorf("decode boot record: %w", err)
	}

	if br.BytesPerSector == 0 || br.BytesPerSector%types.SectorSize != 0 {
		return Geometry{}, fmt.Errorf("invalid sector size %d", br.BytesPerSector)
	}
	if br.SectorsPerCluster == 0 || br.FATCount == 0 || br.FATSectors == 0 || br.RootEntries == 0 {
		return Geometry{}, fmt.Errorf("boot record describes no FAT volume")
	}

	g := Geometry{
		SectorSize:      int(br.BytesPerSector),
		ClusterSectors:  int(br.SectorsPerCluster),
		ReservedSectors: int(br.ReservedSectors),
		FATCount:        int(br.FATCount),
		FATSectors:      int(br.FATSectors),
		RootEntries:     int(br.RootEntries),
		TotalSectors:    int(br.TotalSectors16),
	}
	if g.TotalSectors == 0 {
		g.TotalSectors = int(br.TotalSectors32)
	}

	g.RootStart = g.ReservedSectors + g.FATCount*g.FATSectors
	g.RootSectors = (g.RootEntries*dirEntrySize + g.SectorSize - 1) / g.SectorSize
	g.DataStart = g.RootStart + g.RootSectors
	if g.TotalSectors <= g.DataStart {
		return Geometry{}, fmt.Errorf("volume of %d sectors has no data area", g.TotalSectors)
	}
	g.Clusters = (g.TotalSectors - g.DataStart) / g.ClusterSectors

	return g, nil
}

// FAT16 reports whether the cluster count calls for a 16-bit FAT.
func (g Geometry) FAT16() bool {
	return g.Clusters >= minFAT16Clusters && g.Clusters <= maxFAT16Clusters
}

// BPB converts the geometry into the parameter block the host keeps per drive.
func (g Geometry) BPB() interfaces.BPB {
	bpb := interfaces.BPB{
		RecSize:        uint16(g.SectorSize),
		ClusterSectors: uint16(g.ClusterSectors),
		ClusterBytes:   uint16(g.ClusterSectors * g.SectorSize),
		RootDirSectors: uint16(g.RootSectors),
		FATSectors:     uint16(g.FATSectors),
		SecondFAT:      uint16(g.ReservedSectors + g.FATSectors),
		DataStart:      uint16(g.DataStart),
		Clusters:       uint16(g.Clusters),
	}
	if g.FAT16() {
		bpb.Flags |= types.BPBFlagFAT16
	}
	return bpb
}

// clusterSector returns the first logical sector of a data cluster.
func (g Geometry) clusterSector(cluster uint16) uint32 {
	return uint32(g.DataStart + (int(cluster)-firstDataCluster)*g.ClusterSectors)
}

// maxCluster is the highest valid cluster number.
func (g Geometry) maxCluster() int {
	return g.Clusters + firstDataCluster - 1
}
