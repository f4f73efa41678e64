// Package checksum implements the boot sector checksum convention: a sector is
// executable when the sum of its 256 big-endian words is 0x1234.
package checksum

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Sum returns the 16-bit wraparound sum of the sector's 256 words.
func Sum(sector []byte) uint16 {
	var sum uint16
	for i := 0; i+1 < types.SectorSize && i+1 < len(sector); i += 2 {
		sum += binary.BigEndian.Uint16(sector[i:])
	}
	return sum
}

// Correction returns the value that, added to one of the sector's words, makes
// the word-sum equal ChecksumTarget.
func Correction(sector []byte) uint16 {
	return types.ChecksumTarget - Sum(sector)
}

// Apply adds the correction to the word at offset. offset must be even and
// inside the sector.
func Apply(sector []byte, offset int) error {
	if len(sector) < types.SectorSize {
		return fmt.Errorf("sector is %d bytes, want %d", len(sector), types.SectorSize)
	}
	if offset < 0 || offset%2 != 0 || offset+2 > types.SectorSize {
		return fmt.Errorf("checksum offset %d is not an aligned word of the sector", offset)
	}
	word := binary.BigEndian.Uint16(sector[offset:])
	binary.BigEndian.PutUint16(sector[offset:], word+Correction(sector))
	return nil
}

// Valid reports whether the sector would be executed by the boot ROM.
func Valid(sector []byte) bool {
	return len(sector) >= types.SectorSize && Sum(sector) == types.ChecksumTarget
}
