package fat16

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-restruct/restruct"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

const (
	dirEntrySize     = 32
	firstDataCluster = 2
	endOfChain       = 0xFFFF
	minEndOfChain    = 0xFFF8
	deletedMarker    = 0xE5

	attrVolumeLabel = 0x08
	attrDirectory   = 0x10
	attrArchive     = 0x20
)

var (
	// ErrNotFound is returned for a name missing from the root directory.
	ErrNotFound = errors.New("file not found")
	// ErrDirectoryFull is returned when the root directory has no free slot.
	ErrDirectoryFull = errors.New("root directory full")
	// ErrVolumeFull is returned when no free cluster is left.
	ErrVolumeFull = errors.New("no free clusters")
)

// dirRecord is a root directory entry. Multi-byte fields are little-endian.
type dirRecord struct {
	Name     shortName // Offset 0
	Attr     uint8     // Offset 11
	Reserved [10]byte  // Offset 12
	Time     uint16    // Offset 22
	Date     uint16    // Offset 24
	Cluster  uint16    // Offset 26
	Size     uint32    // Offset 28
}

// DirEntry describes a file in the root directory.
type DirEntry struct {
	Name     string
	Size     uint32
	Cluster  uint16
	Modified time.Time
}

// Volume is a FAT16 drive addressed through logical sector I/O in normal
// transfer mode.
type Volume struct {
	dev   interfaces.SectorDevice
	drive int
	geo   Geometry

	// Now stamps written directory entries.
	Now func() time.Time
}

// Open reads the boot record of drive and checks that it is a FAT16 volume
// with 512-byte sectors.
func Open(dev interfaces.SectorDevice, drive int) (*Volume, error) {
	buf := make([]byte, types.SectorSize)
	if err := dev.ReadSector(interfaces.LogicalSector(drive, 0), interfaces.TransferNormal, buf); err != nil {
		return nil, types.IOError("read boot sector", err)
	}

	geo, err := ParseBootRecord(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrUnsupportedFilesystem, err)
	}
	if !geo.FAT16() {
		return nil, fmt.Errorf("%d clusters: %w", geo.Clusters, types.ErrUnsupportedFilesystem)
	}
	if geo.SectorSize != types.SectorSize {
		return nil, fmt.Errorf("%d-byte logical sectors: %w", geo.SectorSize, types.ErrUnsupportedFilesystem)
	}
	if geo.FATSectors*geo.SectorSize/2 <= geo.maxCluster() {
		return nil, fmt.Errorf("FAT of %d sectors cannot map %d clusters: %w", geo.FATSectors, geo.Clusters, types.ErrUnsupportedFilesystem)
	}

	return &Volume{dev: dev, drive: drive, geo: geo, Now: time.Now}, nil
}

// Geometry returns the volume layout.
func (v *Volume) Geometry() Geometry {
	return v.geo
}

func (v *Volume) readSectors(start, count int) ([]byte, error) {
	data := make([]byte, count*v.geo.SectorSize)
	for i := 0; i < count; i++ {
		addr := interfaces.LogicalSector(v.drive, uint32(start+i))
		if err := v.dev.ReadSector(addr, interfaces.TransferNormal, data[i*v.geo.SectorSize:(i+1)*v.geo.SectorSize]); err != nil {
			return nil, types.IOError("read "+addr.String(), err)
		}
	}
	return data, nil
}

func (v *Volume) writeSectors(start int, data []byte) error {
	for i := 0; i*v.geo.SectorSize < len(data); i++ {
		addr := interfaces.LogicalSector(v.drive, uint32(start+i))
		if err := v.dev.WriteSector(addr, interfaces.TransferNormal, data[i*v.geo.SectorSize:(i+1)*v.geo.SectorSize]); err != nil {
			return types.IOError("write "+addr.String(), err)
		}
	}
	return nil
}

func (v *Volume) readFAT() ([]byte, error) {
	return v.readSectors(v.geo.ReservedSectors, v.geo.FATSectors)
}

// writeFAT stores fat into every FAT copy.
func (v *Volume) writeFAT(fat []byte) error {
	for i := 0; i < v.geo.FATCount; i++ {
		if err := v.writeSectors(v.geo.ReservedSectors+i*v.geo.FATSectors, fat); err != nil {
			return err
		}
	}
	return nil
}

func (v *Volume) readRoot() ([]byte, error) {
	return v.readSectors(v.geo.RootStart, v.geo.RootSectors)
}

// lookup finds name in the root directory and returns its slot, or -1 and the
// first free slot.
func (v *Volume) lookup(root []byte, name shortName) (found, free int, err error) {
	found, free = -1, -1
	for slot := 0; slot < v.geo.RootEntries; slot++ {
		raw := root[slot*dirEntrySize : (slot+1)*dirEntrySize]
		switch raw[0] {
		case 0x00:
			if free < 0 {
				free = slot
			}
			return found, free, nil
		case deletedMarker:
			if free < 0 {
				free = slot
			}
			continue
		}

		var rec dirRecord
		if err := restruct.Unpack(raw, binary.LittleEndian, &rec); err != nil {
			return -1, -1, fmt.Errorf("decode directory entry %d: %w", slot, err)
		}
		if rec.Attr&attrVolumeLabel != 0 || rec.Name != name {
			continue
		}
		if rec.Attr&attrDirectory != 0 {
			return -1, -1, fmt.Errorf("%s is a directory", name)
		}
		found = slot
	}
	return found, free, nil
}

// Stat returns the root directory entry of name.
func (v *Volume) Stat(name string) (DirEntry, error) {
	sn, err := encodeShortName(name)
	if err != nil {
		return DirEntry{}, err
	}
	root, err := v.readRoot()
	if err != nil {
		return DirEntry{}, err
	}
	slot, _, err := v.lookup(root, sn)
	if err != nil {
		return DirEntry{}, err
	}
	if slot < 0 {
		return DirEntry{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	var rec dirRecord
	if err := restruct.Unpack(root[slot*dirEntrySize:(slot+1)*dirEntrySize], binary.LittleEndian, &rec); err != nil {
		return DirEntry{}, err
	}
	return DirEntry{
		Name:     rec.Name.String(),
		Size:     rec.Size,
		Cluster:  rec.Cluster,
		Modified: fromDOSTime(rec.Date, rec.Time),
	}, nil
}

// ReadFile returns the contents of a root directory file.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	entry, err := v.Stat(name)
	if err != nil {
		return nil, err
	}
	fat, err := v.readFAT()
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, entry.Size)
	for c := entry.Cluster; c >= firstDataCluster && c < minEndOfChain && uint32(len(data)) < entry.Size; c = fatEntry(fat, c) {
		if int(c) > v.geo.maxCluster() {
			return nil, fmt.Errorf("%s: cluster %d out of range", name, c)
		}
		cluster, err := v.readSectors(int(v.geo.clusterSector(c)), v.geo.ClusterSectors)
		if err != nil {
			return nil, err
		}
		data = append(data, cluster...)
	}
	if uint32(len(data)) < entry.Size {
		return nil, fmt.Errorf("%s: cluster chain shorter than %d bytes", name, entry.Size)
	}
	return data[:entry.Size], nil
}

// Create creates name in the root directory, replacing an existing file of the
// same name. The FAT and directory entry are written when the returned writer
// is closed.
func (v *Volume) Create(name string) (io.WriteCloser, error) {
	sn, err := encodeShortName(name)
	if err != nil {
		return nil, err
	}

	root, err := v.readRoot()
	if err != nil {
		return nil, err
	}
	fat, err := v.readFAT()
	if err != nil {
		return nil, err
	}

	slot, free, err := v.lookup(root, sn)
	if err != nil {
		return nil, err
	}
	if slot >= 0 {
		var rec dirRecord
		if err := restruct.Unpack(root[slot*dirEntrySize:(slot+1)*dirEntrySize], binary.LittleEndian, &rec); err != nil {
			return nil, err
		}
		freeChain(fat, rec.Cluster, v.geo.maxCluster())
	} else {
		if free < 0 {
			return nil, ErrDirectoryFull
		}
		slot = free
	}

	return &fileWriter{
		vol:     v,
		name:    sn,
		slot:    slot,
		root:    root,
		fat:     fat,
		next:    firstDataCluster,
		pending: make([]byte, 0, v.geo.ClusterSectors*v.geo.SectorSize),
	}, nil
}

// fileWriter streams data cluster by cluster.
type fileWriter struct {
	vol     *Volume
	name    shortName
	slot    int
	root    []byte
	fat     []byte
	first   uint16
	last    uint16
	next    int
	size    uint32
	pending []byte
	closed  bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed file")
	}
	n := 0
	for len(p) > 0 {
		room := cap(w.pending) - len(w.pending)
		chunk := p
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		w.pending = append(w.pending, chunk...)
		p = p[len(chunk):]
		n += len(chunk)
		w.size += uint32(len(chunk))

		if len(w.pending) == cap(w.pending) {
			if err := w.flush(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// flush writes the pending data into a newly allocated cluster.
func (w *fileWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	cluster, err := w.allocate()
	if err != nil {
		return err
	}

	data := w.pending[:cap(w.pending)]
	for i := len(w.pending); i < len(data); i++ {
		data[i] = 0
	}
	if err := w.vol.writeSectors(int(w.vol.geo.clusterSector(cluster)), data); err != nil {
		return err
	}
	w.pending = w.pending[:0]
	return nil
}

// allocate takes the first free cluster and links it to the chain.
func (w *fileWriter) allocate() (uint16, error) {
	limit := w.vol.geo.maxCluster()
	for ; w.next <= limit; w.next++ {
		c := uint16(w.next)
		if fatEntry(w.fat, c) != 0 {
			continue
		}
		setFATEntry(w.fat, c, endOfChain)
		if w.last != 0 {
			setFATEntry(w.fat, w.last, c)
		} else {
			w.first = c
		}
		w.last = c
		w.next++
		return c, nil
	}
	return 0, ErrVolumeFull
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flush(); err != nil {
		return err
	}
	if err := w.vol.writeFAT(w.fat); err != nil {
		return err
	}

	date, tm := toDOSTime(w.vol.Now())
	rec := dirRecord{
		Name:    w.name,
		Attr:    attrArchive,
		Time:    tm,
		Date:    date,
		Cluster: w.first,
		Size:    w.size,
	}
	raw, err := restruct.Pack(binary.LittleEndian, &rec)
	if err != nil {
		return fmt.Errorf("encode directory entry: %w", err)
	}
	copy(w.root[w.slot*dirEntrySize:], raw)

	// Only the directory sector holding the entry changes.
	sector := w.slot * dirEntrySize / w.vol.geo.SectorSize
	start := sector * w.vol.geo.SectorSize
	return w.vol.writeSectors(w.vol.geo.RootStart+sector, w.root[start:start+w.vol.geo.SectorSize])
}

func fatEntry(fat []byte, cluster uint16) uint16 {
	return binary.LittleEndian.Uint16(fat[int(cluster)*2:])
}

func setFATEntry(fat []byte, cluster, value uint16) {
	binary.LittleEndian.PutUint16(fat[int(cluster)*2:], value)
}

// freeChain releases the cluster chain starting at first. Broken chains stop at
// the first out-of-range or free link.
func freeChain(fat []byte, first uint16, maxCluster int) {
	for c, steps := first, 0; c >= firstDataCluster && int(c) <= maxCluster && steps <= maxCluster; steps++ {
		next := fatEntry(fat, c)
		setFATEntry(fat, c, 0)
		if next == 0 || next >= minEndOfChain {
			return
		}
		c = next
	}
}

func toDOSTime(t time.Time) (date, tm uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.Local)
	}
	date = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	tm = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return date, tm
}

func fromDOSTime(date, tm uint16) time.Time {
	return time.Date(
		int(date>>9)+1980, time.Month(date>>5&0x0F), int(date&0x1F),
		int(tm>>11), int(tm>>5&0x3F), int(tm&0x1F)*2, 0, time.Local,
	)
}
