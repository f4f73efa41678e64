package locate

import (
	"github.com/spf13/afero"
)

// Request represents a loader image lookup
type Request struct {
	ImagePath string

	// Fs holds the image; nil means the host filesystem
	Fs afero.Fs
}

// Response represents the classification of a loader image
type Response struct {
	Path           string `json:"path" yaml:"path"`
	Classification string `json:"classification" yaml:"classification"`
	Valid          bool   `json:"valid" yaml:"valid"`
	Reason         string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Size           int64  `json:"size,omitempty" yaml:"size,omitempty"`
	TagOffset      int    `json:"tag_offset,omitempty" yaml:"tag_offset,omitempty"`

	// InstallEnabled is only set for a valid image
	InstallEnabled bool `json:"install_enabled" yaml:"install_enabled"`

	err error
}
