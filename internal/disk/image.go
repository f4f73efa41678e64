// Package disk serves sector I/O, drive parameters and the drive table of a
// hard-disk image, standing in for the host ROM services the installer uses.
package disk

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-emutos-install/internal/fat16"
	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/partition"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// ByteOrder tells how the words of an image are stored.
type ByteOrder int

const (
	// ByteOrderAuto detects the order from the root sector signature.
	ByteOrderAuto ByteOrder = iota
	// ByteOrderNative stores words big-endian, as the target machine does.
	ByteOrderNative
	// ByteOrderSwapped stores every word byte-swapped.
	ByteOrderSwapped
)

func (o ByteOrder) String() string {
	switch o {
	case ByteOrderNative:
		return "native"
	case ByteOrderSwapped:
		return "swapped"
	default:
		return "auto"
	}
}

// ParseByteOrder accepts "auto", "native" and "swapped".
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ByteOrderAuto, nil
	case "native":
		return ByteOrderNative, nil
	case "swapped":
		return ByteOrderSwapped, nil
	}
	return ByteOrderAuto, fmt.Errorf("unknown byte order %q", s)
}

// Options control how an image is opened.
type Options struct {
	ByteOrder ByteOrder
	// Unit is the physical unit the image is attached as.
	Unit     int
	ReadOnly bool
}

// Statistics counts sector transfers.
type Statistics struct {
	SectorsRead    int64 `json:"sectors_read" yaml:"sectors_read"`
	SectorsWritten int64 `json:"sectors_written" yaml:"sectors_written"`
}

// Drive is a logical drive backed by a partition of the image.
type Drive struct {
	Number    int             `json:"number" yaml:"number"`
	Letter    string          `json:"letter" yaml:"letter"`
	Partition partition.Entry `json:"partition" yaml:"partition"`
}

// Image is a hard-disk image attached as one physical unit.
type Image struct {
	mu         sync.Mutex
	file       afero.File
	name       string
	size       int64
	sectors    uint32
	swapped    bool
	unit       int
	readOnly   bool
	supervisor bool
	layout     partition.Layout
	drives     map[int]partition.Entry
	stats      Statistics
}

var (
	_ interfaces.SectorDevice = (*Image)(nil)
	_ interfaces.BPBSource    = (*Image)(nil)
	_ interfaces.DriveTable   = (*Image)(nil)
	_ interfaces.Supervisor   = (*Image)(nil)
)

// fdFile is implemented by files backed by a real descriptor.
type fdFile interface {
	Fd() uintptr
}

func getSize(f afero.File, info os.FileInfo) int64 {
	if info.Mode()&os.ModeDevice != 0 {
		if fd, ok := f.(fdFile); ok {
			if size, err := ioctlBlockGetSize(fd.Fd()); err == nil {
				return size
			}
		}
	}
	return info.Size()
}

// Open attaches the image at path. Block devices must use 512-byte sectors.
func Open(fs afero.Fs, path string, opts Options) (*Image, error) {
	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open disk image: %w", err)
	}

	img, err := attach(f, path, opts)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	return img, nil
}

func attach(f afero.File, path string, opts Options) (*Image, error) {
	if opts.Unit < 0 || opts.Unit > 7 {
		return nil, fmt.Errorf("unit %d out of range", opts.Unit)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, &os.PathError{Op: "Open", Path: path, Err: err}
	}
	if info.Mode()&os.ModeDevice != 0 {
		if fd, ok := f.(fdFile); ok {
			if ssz, err := ioctlBlockGetSectorSize(fd.Fd()); err == nil && ssz != types.SectorSize {
				return nil, &os.PathError{Op: "Open", Path: path, Err: fmt.Errorf("%d-byte sectors are not supported", ssz)}
			}
		}
	}

	size := getSize(f, info)
	if size < types.SectorSize {
		return nil, &os.PathError{Op: "Open", Path: path, Err: fmt.Errorf("image of %d bytes has no root sector", size)}
	}

	img := &Image{
		file:     f,
		name:     path,
		size:     size,
		sectors:  uint32(size / types.SectorSize),
		unit:     opts.Unit,
		readOnly: opts.ReadOnly,
		drives:   map[int]partition.Entry{},
	}

	if glog.V(2) {
		glog.Info("Disk name:      ", info.Name())
		glog.Info("     size:      ", size)
		glog.Info("     mode:      ", info.Mode())
		glog.Info("     unit:      ", opts.Unit)
	}

	raw := make([]byte, types.SectorSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		return nil, &os.PathError{Op: "Open", Path: path, Err: err}
	}
	switch opts.ByteOrder {
	case ByteOrderNative:
		img.swapped = false
	case ByteOrderSwapped:
		img.swapped = true
	default:
		img.swapped = detectSwapped(raw)
	}

	if err := img.scanDrives(raw); err != nil {
		return nil, err
	}
	return img, nil
}

// detectSwapped looks for the MS-DOS signature stored with its bytes exchanged.
func detectSwapped(raw []byte) bool {
	return raw[types.RootMagicOffset] == 0xAA && raw[types.RootMagicOffset+1] == 0x55
}

// scanDrives assigns drive letters from C: to the FAT partitions of the root
// sector, in table order.
func (img *Image) scanDrives(raw []byte) error {
	root := append([]byte(nil), raw...)
	if img.swapped {
		swapWords(root)
	}

	layout, entries, err := partition.Entries(root)
	if err != nil {
		return err
	}
	img.layout = layout

	next := types.DriveC
	for _, e := range entries {
		if !isFATPartition(layout, e) || e.Start == 0 {
			continue
		}
		img.drives[next] = e
		if glog.V(2) {
			glog.Infof("drive %c: partition %d at sector %d (%d sectors)", 'A'+rune(next), e.Index, e.Start, e.Size)
		}
		next++
	}
	return nil
}

func isFATPartition(layout partition.Layout, e partition.Entry) bool {
	if !e.Exists(layout) {
		return false
	}
	if layout == partition.LayoutDOS {
		switch e.Type {
		case 0x01, 0x04, 0x06, 0x0E:
			return true
		}
		return false
	}
	return e.ID == "GEM" || e.ID == "BGM"
}

// Close syncs and closes the image.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.readOnly {
		return img.file.Close()
	}
	return multierr.Combine(img.file.Sync(), img.file.Close())
}

// Name returns the path the image was opened from.
func (img *Image) Name() string { return img.name }

// Size returns the image size in bytes.
func (img *Image) Size() int64 { return img.size }

// Swapped reports whether the image stores words byte-swapped.
func (img *Image) Swapped() bool { return img.swapped }

// Layout returns the partition table layout of the root sector.
func (img *Image) Layout() partition.Layout { return img.layout }

// Unit returns the physical unit number.
func (img *Image) Unit() int { return img.unit }

// PhysicalDevice returns the device number used for physical sector I/O.
func (img *Image) PhysicalDevice() int { return img.unit + types.PhysicalDeviceOffset }

// Stats returns the transfer counters.
func (img *Image) Stats() Statistics {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.stats
}

// Drives lists the logical drives in letter order.
func (img *Image) Drives() []Drive {
	drives := make([]Drive, 0, len(img.drives))
	for n, e := range img.drives {
		drives = append(drives, Drive{Number: n, Letter: fmt.Sprintf("%c:", 'A'+rune(n)), Partition: e})
	}
	sort.Slice(drives, func(i, j int) bool { return drives[i].Number < drives[j].Number })
	return drives
}

// Volume opens the FAT16 filesystem of a drive.
func (img *Image) Volume(drive int) (*fat16.Volume, error) {
	return fat16.Open(img, drive)
}

// FileSystem returns the filesystem of a drive as an installer volume. The
// boot record is only read when the first file is created.
func (img *Image) FileSystem(drive int) interfaces.Volume {
	return driveVolume{img: img, drive: drive}
}

type driveVolume struct {
	img   *Image
	drive int
}

func (v driveVolume) Create(name string) (io.WriteCloser, error) {
	vol, err := v.img.Volume(v.drive)
	if err != nil {
		return nil, err
	}
	return vol.Create(name)
}

// locate turns an address into an absolute image sector.
func (img *Image) locate(addr interfaces.SectorAddress) (uint32, error) {
	abs := addr.Sector
	if addr.Physical {
		if addr.Device != img.PhysicalDevice() {
			return 0, fmt.Errorf("no physical device %d", addr.Device)
		}
	} else {
		e, ok := img.drives[addr.Device]
		if !ok {
			return 0, fmt.Errorf("drive %c: is not mapped", 'A'+rune(addr.Device))
		}
		if e.Size != 0 && addr.Sector >= e.Size {
			return 0, fmt.Errorf("sector %d is past the end of drive %c:", addr.Sector, 'A'+rune(addr.Device))
		}
		abs = e.Start + addr.Sector
	}
	if abs >= img.sectors {
		return 0, fmt.Errorf("the requested sector %d is out of bounds (%d sectors)", abs, img.sectors)
	}
	return abs, nil
}

func (img *Image) check(addr interfaces.SectorAddress, buf []byte, op string) (int64, error) {
	if len(buf) != types.SectorSize {
		return 0, &os.PathError{Op: op, Path: img.name, Err: fmt.Errorf("len(buf) (%v) is not one sector", len(buf))}
	}
	abs, err := img.locate(addr)
	if err != nil {
		return 0, &os.PathError{Op: op, Path: img.name, Err: err}
	}
	return int64(abs) * types.SectorSize, nil
}

// ReadSector reads one sector. Normal transfers byte-swap the words of a
// swapped image.
func (img *Image) ReadSector(addr interfaces.SectorAddress, mode interfaces.TransferMode, buf []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	off, err := img.check(addr, buf, "ReadSector")
	if err != nil {
		return err
	}
	if glog.V(2) {
		glog.Infof("ReadSector: %s (%s) from offset %#x\n", addr, mode, off)
	}

	if _, err := img.file.ReadAt(buf, off); err != nil {
		return &os.PathError{Op: "ReadSector", Path: img.name, Err: err}
	}
	if img.swapped && mode == interfaces.TransferNormal {
		swapWords(buf)
	}
	img.stats.SectorsRead++
	return nil
}

// WriteSector writes one sector. buf is not modified.
func (img *Image) WriteSector(addr interfaces.SectorAddress, mode interfaces.TransferMode, buf []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.readOnly {
		return &os.PathError{Op: "WriteSector", Path: img.name, Err: os.ErrPermission}
	}
	off, err := img.check(addr, buf, "WriteSector")
	if err != nil {
		return err
	}
	if glog.V(2) {
		glog.Infof("WriteSector: %s (%s) to offset %#x\n", addr, mode, off)
	}

	data := buf
	if img.swapped && mode == interfaces.TransferNormal {
		data = append([]byte(nil), buf...)
		swapWords(data)
	}
	if _, err := img.file.WriteAt(data, off); err != nil {
		return &os.PathError{Op: "WriteSector", Path: img.name, Err: err}
	}
	img.stats.SectorsWritten++
	return nil
}

// GetBPB derives the parameter block of a drive from its boot sector.
func (img *Image) GetBPB(drive int) (*interfaces.BPB, error) {
	buf := make([]byte, types.SectorSize)
	if err := img.ReadSector(interfaces.LogicalSector(drive, 0), interfaces.TransferNormal, buf); err != nil {
		return nil, err
	}
	geo, err := fat16.ParseBootRecord(buf)
	if err != nil {
		return nil, fmt.Errorf("drive %c: %w", 'A'+rune(drive), err)
	}
	bpb := geo.BPB()
	return &bpb, nil
}

// EnterSupervisor switches to supervisor mode.
func (img *Image) EnterSupervisor() (interfaces.SupervisorState, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	prev := interfaces.SupervisorState{Supervisor: img.supervisor}
	img.supervisor = true
	return prev, nil
}

// RestoreMode returns to the mode saved by EnterSupervisor.
func (img *Image) RestoreMode(prev interfaces.SupervisorState) {
	img.mu.Lock()
	defer img.mu.Unlock()

	img.supervisor = prev.Supervisor
}

// Mapping reads the drive table slot of a drive. Drives without a partition
// report an unmapped device.
func (img *Image) Mapping(drive int) (interfaces.DriveMapping, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.supervisor {
		return interfaces.DriveMapping{}, fmt.Errorf("drive table read in user mode: %w", types.ErrPrivilegedAccessDenied)
	}
	e, ok := img.drives[drive]
	if !ok {
		return interfaces.DriveMapping{Device: types.DeviceUnmapped}, nil
	}
	return interfaces.DriveMapping{Device: uint8(img.unit), PartitionStart: e.Start}, nil
}

// swapWords exchanges the bytes of every 16-bit word in place.
func swapWords(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}
