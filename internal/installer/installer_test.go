package installer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-emutos-install/internal/checksum"
	"github.com/deploymenttheory/go-emutos-install/internal/drive"
	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/stub"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

type sectorCall struct {
	write bool
	addr  interfaces.SectorAddress
	mode  interfaces.TransferMode
}

type fakeDevice struct {
	sectors   map[interfaces.SectorAddress][]byte
	calls     []sectorCall
	failWrite map[interfaces.SectorAddress]bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		sectors:   map[interfaces.SectorAddress][]byte{},
		failWrite: map[interfaces.SectorAddress]bool{},
	}
}

func (d *fakeDevice) ReadSector(addr interfaces.SectorAddress, mode interfaces.TransferMode, buf []byte) error {
	d.calls = append(d.calls, sectorCall{addr: addr, mode: mode})
	data, ok := d.sectors[addr]
	if !ok {
		data = make([]byte, types.SectorSize)
	}
	copy(buf, data)
	return nil
}

func (d *fakeDevice) WriteSector(addr interfaces.SectorAddress, mode interfaces.TransferMode, buf []byte) error {
	d.calls = append(d.calls, sectorCall{write: true, addr: addr, mode: mode})
	if d.failWrite[addr] {
		return errors.New("write protected")
	}
	d.sectors[addr] = append([]byte(nil), buf...)
	return nil
}

func (d *fakeDevice) writes() []sectorCall {
	var out []sectorCall
	for _, c := range d.calls {
		if c.write {
			out = append(out, c)
		}
	}
	return out
}

type fakeResolver struct {
	info drive.Info
	err  error
}

func (r fakeResolver) Resolve(int) (drive.Info, error) {
	return r.info, r.err
}

type memVolume struct {
	fs afero.Fs
}

func (v memVolume) Create(name string) (io.WriteCloser, error) {
	return v.fs.Create(name)
}

var (
	bootAddr = interfaces.LogicalSector(types.DriveC, 0)
	rootAddr = interfaces.PhysicalSector(2, 0)
)

// dosRootSector returns a root sector with partitions starting at the given
// sectors in the MS-DOS table.
func dosRootSector(starts ...uint32) []byte {
	root := make([]byte, types.SectorSize)
	for i, start := range starts {
		rec := root[types.DOSTableOffset+i*types.DOSEntrySize:]
		rec[4] = 0x06
		binary.LittleEndian.PutUint32(rec[8:12], start)
		binary.LittleEndian.PutUint32(rec[12:16], 4096)
	}
	root[510], root[511] = 0x55, 0xAA
	return root
}

func payload(size int) []byte {
	data := make([]byte, size)
	binary.BigEndian.PutUint16(data, types.PrgMagic)
	copy(data[64:], types.EmuTOSTag)
	for i := 128; i < size; i++ {
		data[i] = byte(i)
	}
	return data
}

type harness struct {
	device *fakeDevice
	volume memVolume
	source afero.Fs
	image  []byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		device: newFakeDevice(),
		volume: memVolume{fs: afero.NewMemMapFs()},
		source: afero.NewMemMapFs(),
		image:  payload(130000),
	}
	require.NoError(t, afero.WriteFile(h.source, "emutos.prg", h.image, 0644))

	boot := make([]byte, types.SectorSize)
	boot[types.BootDirtyFlagOffset] = 0xFF
	for i := types.BootStubOffset; i < types.SectorSize; i++ {
		boot[i] = 0xAA
	}
	h.device.sectors[bootAddr] = boot
	h.device.sectors[rootAddr] = dosRootSector(63, 1024, 2048)
	return h
}

func (h *harness) installer(t *testing.T, resolver DriveResolver, opts Options) *Installer {
	t.Helper()
	stubs, err := stub.New([]byte{0x60, 0xFE, 0x4E, 0x75}, []byte{0x4E, 0x71, 0x4E, 0x75})
	require.NoError(t, err)
	in, err := New(Config{
		Resolver: resolver,
		Device:   h.device,
		Volume:   h.volume,
		Source:   h.source,
		Stubs:    stubs,
		Options:  opts,
	})
	require.NoError(t, err)
	return in
}

func fat16Drive(start uint32) fakeResolver {
	return fakeResolver{info: drive.Info{
		Drive:          types.DriveC,
		Device:         2,
		PartitionStart: start,
		BPB:            interfaces.BPB{RecSize: 512, Flags: types.BPBFlagFAT16},
	}}
}

func TestRunVariantB(t *testing.T) {
	h := newHarness(t)
	var stages []Stage
	in := h.installer(t, fat16Drive(2048), Options{
		Variant: types.VariantB,
		OnStage: func(s Stage) { stages = append(stages, s) },
	})

	result, err := in.Run(context.Background(), "emutos.prg")
	require.NoError(t, err)

	want := []Stage{StageFatChecked, StagePayloadCopied, StageBootSectorWritten, StagePartitionMarked, StageRootSectorPatched, StageDone}
	assert.Equal(t, want, result.Completed)
	assert.Equal(t, want, stages)
	assert.Equal(t, StageDone, result.Stage)
	assert.True(t, result.PartitionMarked)

	copied, err := afero.ReadFile(h.volume.fs, types.DestinationName)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(h.image, copied), "payload must be copied byte for byte")
	assert.Equal(t, int64(len(h.image)), result.BytesCopied)

	boot := h.device.sectors[bootAddr]
	assert.Equal(t, []byte{0xEB, 0x00, 0x90, 0x4D, 0x60, 0x38}, boot[:6])
	assert.Zero(t, boot[types.BootDirtyFlagOffset])
	assert.Equal(t, []byte{0x60, 0xFE, 0x4E, 0x75}, boot[types.BootStubOffset:types.BootStubOffset+4])
	assert.Equal(t, uint16(types.ChecksumTarget), checksum.Sum(boot))
	assert.Equal(t, uint16(types.ChecksumTarget), result.BootChecksum)

	root := h.device.sectors[rootAddr]
	assert.Equal(t, byte(0x00), root[types.DOSTableOffset], "first entry untouched")
	assert.Equal(t, byte(0x00), root[types.DOSTableOffset+types.DOSEntrySize], "second entry untouched")
	assert.Equal(t, byte(0x80), root[types.DOSTableOffset+2*types.DOSEntrySize], "matching entry marked")
	assert.Equal(t, []byte{0x4E, 0x71, 0x4E, 0x75}, root[:4])
	assert.Equal(t, uint16(types.ChecksumTarget), checksum.Sum(root))
	assert.Equal(t, uint16(types.ChecksumTarget), result.RootChecksum)
	assert.Equal(t, []byte{0x55, 0xAA}, root[510:], "table signature survives")
}

func TestRunTransferModes(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fat16Drive(2048), Options{Variant: types.VariantB})

	_, err := in.Run(context.Background(), "emutos.prg")
	require.NoError(t, err)

	assert.Equal(t, []sectorCall{
		{addr: bootAddr, mode: interfaces.TransferNormal},
		{write: true, addr: bootAddr, mode: interfaces.TransferNormal},
		{addr: rootAddr, mode: interfaces.TransferRaw},
		{write: true, addr: rootAddr, mode: interfaces.TransferRaw},
		{addr: rootAddr, mode: interfaces.TransferRaw},
		{write: true, addr: rootAddr, mode: interfaces.TransferRaw},
	}, h.device.calls)
}

func TestRunVariantA(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fat16Drive(2048), Options{Variant: types.VariantA})

	result, err := in.Run(context.Background(), "emutos.prg")
	require.NoError(t, err)

	assert.Equal(t, []Stage{StageFatChecked, StagePayloadCopied, StageBootSectorWritten, StageRootSectorPatched, StageDone}, result.Completed)
	assert.False(t, result.PartitionMarked)

	boot := h.device.sectors[bootAddr]
	assert.Equal(t, []byte{0xE9, 0x00, 0x60, 0x3A}, boot[:4])
	assert.Equal(t, byte(0xFF), boot[types.BootDirtyFlagOffset], "dirty flag is left alone")
	assert.Equal(t, uint16(types.ChecksumTarget), checksum.Sum(boot))

	root := h.device.sectors[rootAddr]
	assert.Equal(t, byte(0x00), root[types.DOSTableOffset+2*types.DOSEntrySize], "no partition is marked")
	assert.Equal(t, uint16(types.ChecksumTarget), checksum.Sum(root))
	assert.Len(t, h.device.writes(), 2)
}

func TestRunNonFAT16Target(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fakeResolver{err: types.ErrUnsupportedFilesystem}, Options{})

	result, err := in.Run(context.Background(), "emutos.prg")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFatChecked, stageErr.Stage)
	assert.ErrorIs(t, err, types.ErrUnsupportedFilesystem)
	assert.Equal(t, StageFailed, result.Stage)
	assert.Empty(t, result.Completed)
	assert.Empty(t, h.device.calls, "no sector is touched")

	exists, err := afero.Exists(h.volume.fs, types.DestinationName)
	require.NoError(t, err)
	assert.False(t, exists, "no file is copied")
}

func TestRunNoMatchingPartition(t *testing.T) {
	h := newHarness(t)
	before := append([]byte(nil), h.device.sectors[rootAddr]...)
	in := h.installer(t, fat16Drive(4096), Options{Variant: types.VariantB})

	result, err := in.Run(context.Background(), "emutos.prg")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePartitionMarked, stageErr.Stage)
	assert.ErrorIs(t, err, types.ErrNoBootablePartition)
	assert.Equal(t, []Stage{StageFatChecked, StagePayloadCopied, StageBootSectorWritten}, result.Completed)

	// Earlier writes are not rolled back and the root sector is not patched.
	assert.Equal(t, uint16(types.ChecksumTarget), checksum.Sum(h.device.sectors[bootAddr]))
	assert.Equal(t, before, h.device.sectors[rootAddr])
	assert.Len(t, h.device.writes(), 1)
}

func TestRunWriteFailure(t *testing.T) {
	h := newHarness(t)
	h.device.failWrite[bootAddr] = true
	in := h.installer(t, fat16Drive(2048), Options{})

	_, err := in.Run(context.Background(), "emutos.prg")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageBootSectorWritten, stageErr.Stage)
	assert.ErrorIs(t, err, types.ErrIOFailure)
	assert.Len(t, h.device.writes(), 1, "nothing after the failed write runs")
}

func TestRunMissingPayload(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fat16Drive(2048), Options{})

	_, err := in.Run(context.Background(), "missing.prg")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePayloadCopied, stageErr.Stage)
	assert.ErrorIs(t, err, types.ErrIOFailure)
	assert.Empty(t, h.device.calls)
}

func TestRunCancelledBeforeWrites(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fat16Drive(2048), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := in.Run(ctx, "emutos.prg")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageFailed, result.Stage)
	assert.Empty(t, h.device.calls)
}

func TestRunCopiesInChunks(t *testing.T) {
	h := newHarness(t)
	var progress []int64
	in := h.installer(t, fat16Drive(2048), Options{
		OnCopy: func(copied int64) { progress = append(progress, copied) },
	})

	_, err := in.Run(context.Background(), "emutos.prg")
	require.NoError(t, err)

	// 130000 bytes in 4096-byte chunks.
	require.Len(t, progress, 32)
	assert.Equal(t, int64(types.CopyChunkSize), progress[0])
	assert.Equal(t, int64(130000), progress[len(progress)-1])
}

func TestNewDefaults(t *testing.T) {
	h := newHarness(t)
	in := h.installer(t, fat16Drive(2048), Options{})
	assert.Equal(t, types.VariantB, in.Variant())

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "partition-marked", StagePartitionMarked.String())
	assert.Equal(t, "stage(42)", Stage(42).String())

	err := &StageError{Stage: StageRootSectorPatched, Err: types.ErrIOFailure}
	assert.Equal(t, "root-sector-patched: i/o failure", err.Error())
}
