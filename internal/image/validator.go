// Package image decides whether a file is plausibly an EmuTOS loader image.
// The check is a bounded sniff of the file header, not a structural parse: a
// crafted file can pass it.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Classification is the outcome of a sniff.
type Classification int

const (
	// Absent means the file does not exist or cannot be opened.
	Absent Classification = iota
	// Invalid means the file exists but is not a loader image.
	Invalid
	// Valid means the file is (probably) a loader image.
	Valid
)

func (c Classification) String() string {
	switch c {
	case Absent:
		return "absent"
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// Report describes a sniff in detail.
type Report struct {
	Path           string
	Classification Classification
	// Reason explains an Absent or Invalid classification.
	Reason string
	// Size is the file length, or -1 when it was not measured.
	Size int64
	// TagOffset is the position of the EmuTOS tag, or -1.
	TagOffset int
}

// Err maps the report onto the error taxonomy. It is nil for Valid.
func (r Report) Err() error {
	switch r.Classification {
	case Valid:
		return nil
	case Absent:
		return fmt.Errorf("%s: %w", r.Path, types.ErrFileAbsent)
	default:
		return fmt.Errorf("%s: %w: %s", r.Path, types.ErrInvalidImage, r.Reason)
	}
}

// Classify sniffs path on fs.
func Classify(fs afero.Fs, path string) Classification {
	return Inspect(fs, path).Classification
}

// Inspect sniffs path on fs and reports why it was classified the way it was.
// Steps short-circuit in order: open, header read, length, magic, tag.
func Inspect(fs afero.Fs, path string) Report {
	report := Report{Path: path, Size: -1, TagOffset: -1}

	f, err := fs.Open(path)
	if err != nil {
		report.Classification = Absent
		report.Reason = err.Error()
		return report
	}
	defer f.Close()

	header := make([]byte, types.ImageSniffSize)
	if _, err := io.ReadFull(f, header); err != nil {
		report.Classification = Invalid
		report.Reason = fmt.Sprintf("cannot read the first %d bytes", types.ImageSniffSize)
		return report
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		report.Classification = Invalid
		report.Reason = fmt.Sprintf("cannot determine file length: %v", err)
		return report
	}
	report.Size = size
	if size < types.MinImageSize {
		report.Classification = Invalid
		report.Reason = fmt.Sprintf("file is %d bytes, want at least %d", size, types.MinImageSize)
		return report
	}

	if magic := binary.BigEndian.Uint16(header); magic != types.PrgMagic {
		report.Classification = Invalid
		report.Reason = fmt.Sprintf("executable magic is %#04x, want %#04x", magic, types.PrgMagic)
		return report
	}

	report.TagOffset = bytes.Index(header, []byte(types.EmuTOSTag))
	if report.TagOffset < 0 {
		report.Classification = Invalid
		report.Reason = fmt.Sprintf("tag %q not found in the first %d bytes", types.EmuTOSTag, types.ImageSniffSize)
		return report
	}

	report.Classification = Valid
	return report
}
