package inspect

import (
	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/internal/disk"
	"github.com/deploymenttheory/go-emutos-install/internal/partition"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Request represents a disk inspection request
type Request struct {
	Target app.DiskTarget

	// Destination is the loader file looked up on C:
	Destination string

	// Fs holds the disk; nil means the host filesystem
	Fs afero.Fs
}

// Response represents the boot chain state of a disk
type Response struct {
	Disk   DiskInfo        `json:"disk" yaml:"disk"`
	Root   RootInfo        `json:"root_sector" yaml:"root_sector"`
	Drives []disk.Drive    `json:"drives" yaml:"drives"`
	DriveC *BootInfo       `json:"drive_c,omitempty" yaml:"drive_c,omitempty"`
	Stats  disk.Statistics `json:"stats" yaml:"stats"`
}

// DiskInfo describes the opened disk
type DiskInfo struct {
	Path           string `json:"path" yaml:"path"`
	Size           int64  `json:"size" yaml:"size"`
	ByteOrder      string `json:"byte_order" yaml:"byte_order"`
	Unit           int    `json:"unit" yaml:"unit"`
	PhysicalDevice int    `json:"physical_device" yaml:"physical_device"`
}

// RootInfo describes the root sector as stored on the medium
type RootInfo struct {
	Layout     string            `json:"layout" yaml:"layout"`
	Checksum   string            `json:"checksum" yaml:"checksum"`
	Executable bool              `json:"executable" yaml:"executable"`
	Entries    []partition.Entry `json:"entries" yaml:"entries"`
}

// BootInfo describes drive C: and its boot sector
type BootInfo struct {
	Resolved       bool   `json:"resolved" yaml:"resolved"`
	Device         int    `json:"device,omitempty" yaml:"device,omitempty"`
	PartitionStart uint32 `json:"partition_start,omitempty" yaml:"partition_start,omitempty"`
	Checksum       string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Executable     bool   `json:"executable" yaml:"executable"`
	Loader         string `json:"loader" yaml:"loader"`
	LoaderPresent  bool   `json:"loader_present" yaml:"loader_present"`
	LoaderSize     int64  `json:"loader_size,omitempty" yaml:"loader_size,omitempty"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}
