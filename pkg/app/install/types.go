package install

import (
	"time"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Request represents an installation request
type Request struct {
	ImagePath string
	Target    app.DiskTarget

	Variant     string
	BootStub    string
	RootStub    string
	Destination string
	ChunkSize   int

	// Yes skips the confirmation prompt
	Yes bool

	// Fs holds the image, the stubs and the disk; nil means the host filesystem
	Fs afero.Fs
}

// Response represents the outcome of an installation
type Response struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Image     ImageInfo     `json:"image" yaml:"image"`
	Disk      DiskInfo      `json:"disk" yaml:"disk"`
	Variant   string        `json:"variant" yaml:"variant"`
	Stage     string        `json:"stage" yaml:"stage"`
	Completed []string      `json:"completed" yaml:"completed"`
	Target    TargetInfo    `json:"target" yaml:"target"`
	Sectors   SectorInfo    `json:"sectors" yaml:"sectors"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// ImageInfo describes the installed loader image
type ImageInfo struct {
	Path string `json:"path" yaml:"path"`
	Size int64  `json:"size" yaml:"size"`
}

// DiskInfo describes the disk that was written
type DiskInfo struct {
	Path      string `json:"path" yaml:"path"`
	ByteOrder string `json:"byte_order" yaml:"byte_order"`
	Layout    string `json:"layout" yaml:"layout"`
	Unit      int    `json:"unit" yaml:"unit"`
}

// TargetInfo describes the resolved drive and the copied file
type TargetInfo struct {
	Drive          string `json:"drive,omitempty" yaml:"drive,omitempty"`
	Device         int    `json:"device,omitempty" yaml:"device,omitempty"`
	PartitionStart uint32 `json:"partition_start,omitempty" yaml:"partition_start,omitempty"`
	Destination    string `json:"destination" yaml:"destination"`
	BytesCopied    int64  `json:"bytes_copied" yaml:"bytes_copied"`
}

// SectorInfo describes the patched sectors
type SectorInfo struct {
	BootChecksum    string `json:"boot_checksum,omitempty" yaml:"boot_checksum,omitempty"`
	RootChecksum    string `json:"root_checksum,omitempty" yaml:"root_checksum,omitempty"`
	BootExecutable  bool   `json:"boot_executable" yaml:"boot_executable"`
	RootExecutable  bool   `json:"root_executable" yaml:"root_executable"`
	PartitionMarked bool   `json:"partition_marked" yaml:"partition_marked"`
}

// Succeeded reports whether every stage was reached
func (r *Response) Succeeded() bool {
	return r.Error == "" && r.Stage == "done"
}
