package disk

import (
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/partition"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

const (
	imagePath       = "/images/hd0.img"
	partStart       = 2048
	partSectors     = 4267
	fatSectors      = 17
	reservedSectors = 1
)

// fat16BootSector describes a 4200-cluster FAT16 volume with 512-byte
// sectors, one sector per cluster and 512 root entries.
func fat16BootSector() []byte {
	sector := make([]byte, types.SectorSize)
	sector[0], sector[1] = 0xE9, 0x00
	copy(sector[3:], "EMUTOS  ")
	binary.LittleEndian.PutUint16(sector[11:], 512)
	sector[13] = 1
	binary.LittleEndian.PutUint16(sector[14:], reservedSectors)
	sector[16] = 2
	binary.LittleEndian.PutUint16(sector[17:], 512)
	binary.LittleEndian.PutUint16(sector[19:], partSectors)
	sector[21] = 0xF8
	binary.LittleEndian.PutUint16(sector[22:], fatSectors)
	sector[types.BootDirtyFlagOffset] = 0x01
	return sector
}

type tableKind int

const (
	dosTable tableKind = iota
	nativeTable
)

// buildImage returns the bytes of a disk with one FAT16 partition at
// partStart, in native byte order unless swapped is set.
func buildImage(kind tableKind, swapped bool) []byte {
	img := make([]byte, (partStart+partSectors)*types.SectorSize)

	root := img[:types.SectorSize]
	switch kind {
	case dosTable:
		rec := root[types.DOSTableOffset:]
		rec[4] = 0x06
		binary.LittleEndian.PutUint32(rec[8:], partStart)
		binary.LittleEndian.PutUint32(rec[12:], partSectors)
		root[510], root[511] = 0x55, 0xAA
	case nativeTable:
		rec := root[types.NativeTableOffset:]
		rec[0] = 0x01
		copy(rec[1:4], "GEM")
		binary.BigEndian.PutUint32(rec[4:], partStart)
		binary.BigEndian.PutUint32(rec[8:], partSectors)

		rec = root[types.NativeTableOffset+types.NativeEntrySize:]
		rec[0] = 0x01
		copy(rec[1:4], "RAW")
		binary.BigEndian.PutUint32(rec[4:], 16)
		binary.BigEndian.PutUint32(rec[8:], 32)

		rec = root[types.NativeTableOffset+2*types.NativeEntrySize:]
		rec[0] = 0x01
		copy(rec[1:4], "BGM")
		binary.BigEndian.PutUint32(rec[4:], 64)
		binary.BigEndian.PutUint32(rec[8:], 1024)
	}

	base := partStart * types.SectorSize
	copy(img[base:], fat16BootSector())
	for i := 0; i < 2; i++ {
		fat := base + (reservedSectors+i*fatSectors)*types.SectorSize
		copy(img[fat:], []byte{0xF8, 0xFF, 0xFF, 0xFF})
	}

	if swapped {
		swapWords(img)
	}
	return img
}

func openImage(t *testing.T, data []byte, opts Options) (*Image, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, imagePath, data, 0644))
	img, err := Open(fs, imagePath, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = img.Close() })
	return img, fs
}

func TestParseByteOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteOrder
		wantErr bool
	}{
		{in: "", want: ByteOrderAuto},
		{in: "auto", want: ByteOrderAuto},
		{in: "Native", want: ByteOrderNative},
		{in: "swapped", want: ByteOrderSwapped},
		{in: "little", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByteOrder(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenDOSImage(t *testing.T) {
	img, _ := openImage(t, buildImage(dosTable, false), Options{})

	assert.False(t, img.Swapped())
	assert.Equal(t, partition.LayoutDOS, img.Layout())
	assert.Equal(t, 2, img.PhysicalDevice())

	drives := img.Drives()
	require.Len(t, drives, 1)
	assert.Equal(t, types.DriveC, drives[0].Number)
	assert.Equal(t, "C:", drives[0].Letter)
	assert.Equal(t, uint32(partStart), drives[0].Partition.Start)

	bpb, err := img.GetBPB(types.DriveC)
	require.NoError(t, err)
	assert.Equal(t, types.BPBFlagFAT16, bpb.Flags&types.BPBFlagFAT16)
	assert.Equal(t, uint16(4200), bpb.Clusters)

	_, err = img.GetBPB(types.DriveC + 1)
	assert.Error(t, err)
}

func TestOpenNativeImage(t *testing.T) {
	img, _ := openImage(t, buildImage(nativeTable, false), Options{Unit: 1})

	assert.Equal(t, partition.LayoutNative, img.Layout())
	assert.Equal(t, 3, img.PhysicalDevice())

	drives := img.Drives()
	require.Len(t, drives, 2, "the RAW partition gets no letter")
	assert.Equal(t, "C:", drives[0].Letter)
	assert.Equal(t, "GEM", drives[0].Partition.ID)
	assert.Equal(t, "D:", drives[1].Letter)
	assert.Equal(t, "BGM", drives[1].Partition.ID)
	assert.Equal(t, uint32(64), drives[1].Partition.Start)
}

func TestMappingRequiresSupervisor(t *testing.T) {
	img, _ := openImage(t, buildImage(dosTable, false), Options{})

	_, err := img.Mapping(types.DriveC)
	assert.ErrorIs(t, err, types.ErrPrivilegedAccessDenied)

	prev, err := img.EnterSupervisor()
	require.NoError(t, err)
	assert.False(t, prev.Supervisor)

	m, err := img.Mapping(types.DriveC)
	require.NoError(t, err)
	assert.Equal(t, interfaces.DriveMapping{Device: 0, PartitionStart: partStart}, m)

	m, err = img.Mapping(types.DriveC + 1)
	require.NoError(t, err)
	assert.Equal(t, types.DeviceUnmapped, m.Device)

	img.RestoreMode(prev)
	_, err = img.Mapping(types.DriveC)
	assert.ErrorIs(t, err, types.ErrPrivilegedAccessDenied)
}

func TestSwappedImage(t *testing.T) {
	img, fs := openImage(t, buildImage(dosTable, true), Options{})

	require.True(t, img.Swapped())
	assert.Equal(t, partition.LayoutDOS, img.Layout(), "the table is decoded from the normal view")
	require.Len(t, img.Drives(), 1)

	root := interfaces.PhysicalSector(img.PhysicalDevice(), 0)
	buf := make([]byte, types.SectorSize)

	require.NoError(t, img.ReadSector(root, interfaces.TransferNormal, buf))
	assert.Equal(t, []byte{0x55, 0xAA}, buf[510:])

	require.NoError(t, img.ReadSector(root, interfaces.TransferRaw, buf))
	assert.Equal(t, []byte{0xAA, 0x55}, buf[510:])

	// Normal writes are stored swapped and leave the caller's buffer alone.
	data := make([]byte, types.SectorSize)
	data[0], data[1] = 0x60, 0x1A
	boot := interfaces.LogicalSector(types.DriveC, 0)
	require.NoError(t, img.WriteSector(boot, interfaces.TransferNormal, data))
	assert.Equal(t, []byte{0x60, 0x1A}, data[:2])

	raw, err := afero.ReadFile(fs, imagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1A, 0x60}, raw[partStart*types.SectorSize:partStart*types.SectorSize+2])
}

func TestForcedByteOrder(t *testing.T) {
	img, _ := openImage(t, buildImage(dosTable, true), Options{ByteOrder: ByteOrderNative})
	assert.False(t, img.Swapped())
	assert.Empty(t, img.Drives(), "a swapped table read natively has no MS-DOS signature")

	img, _ = openImage(t, buildImage(dosTable, false), Options{ByteOrder: ByteOrderSwapped})
	assert.True(t, img.Swapped())
}

func TestSectorBounds(t *testing.T) {
	img, _ := openImage(t, buildImage(dosTable, false), Options{})
	buf := make([]byte, types.SectorSize)

	tests := []struct {
		name string
		addr interfaces.SectorAddress
		buf  []byte
	}{
		{name: "past end of image", addr: interfaces.PhysicalSector(2, partStart+partSectors), buf: buf},
		{name: "other device", addr: interfaces.PhysicalSector(3, 0), buf: buf},
		{name: "unmapped drive", addr: interfaces.LogicalSector(types.DriveC+1, 0), buf: buf},
		{name: "past end of partition", addr: interfaces.LogicalSector(types.DriveC, partSectors), buf: buf},
		{name: "short buffer", addr: interfaces.PhysicalSector(2, 0), buf: make([]byte, 256)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, img.ReadSector(tt.addr, interfaces.TransferRaw, tt.buf))
			assert.Error(t, img.WriteSector(tt.addr, interfaces.TransferRaw, tt.buf))
		})
	}

	assert.NoError(t, img.ReadSector(interfaces.PhysicalSector(2, partStart+partSectors-1), interfaces.TransferRaw, buf))
	assert.Equal(t, int64(1), img.Stats().SectorsRead)
	assert.Zero(t, img.Stats().SectorsWritten)
}

func TestReadOnlyImage(t *testing.T) {
	img, _ := openImage(t, buildImage(dosTable, false), Options{ReadOnly: true})
	buf := make([]byte, types.SectorSize)
	assert.Error(t, img.WriteSector(interfaces.PhysicalSector(2, 0), interfaces.TransferRaw, buf))
}

func TestOpenErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Open(fs, "/missing.img", Options{})
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/tiny.img", make([]byte, 100), 0644))
	_, err = Open(fs, "/tiny.img", Options{})
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/ok.img", buildImage(dosTable, false), 0644))
	_, err = Open(fs, "/ok.img", Options{Unit: 9})
	assert.Error(t, err)
}

func TestDirVolume(t *testing.T) {
	base := afero.NewMemMapFs()
	vol := NewDirVolume(base, "/atari/c")

	w, err := vol.Create("EMUTOS.SYS")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := afero.ReadFile(base, "/atari/c/EMUTOS.SYS")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	size, err := vol.Stat("EMUTOS.SYS")
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
}
