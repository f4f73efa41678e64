// Package stub loads the boot and root sector loader stubs. The stubs are
// assembled separately and shipped next to the installer as bootsect.bin and
// root.bin.
package stub

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// Default file names of the assembled stubs.
const (
	DefaultBootPath = "bootsect.bin"
	DefaultRootPath = "root.bin"
)

// Set is a pair of stubs ready to be copied into sectors.
type Set struct {
	// Boot is copied at BootStubOffset of the boot sector.
	Boot []byte
	// Root is copied at RootStubOffset of the root sector.
	Root []byte
}

// New validates the stub sizes against the room the sectors leave for them.
func New(boot, root []byte) (*Set, error) {
	if len(boot) == 0 {
		return nil, fmt.Errorf("boot stub is empty")
	}
	if len(boot) > types.MaxBootStubSize {
		return nil, fmt.Errorf("boot stub is %d bytes, at most %d fit before the checksum", len(boot), types.MaxBootStubSize)
	}
	if len(root) == 0 {
		return nil, fmt.Errorf("root stub is empty")
	}
	if len(root) > types.MaxRootStubSize {
		return nil, fmt.Errorf("root stub is %d bytes, at most %d fit before the checksum", len(root), types.MaxRootStubSize)
	}
	return &Set{
		Boot: append([]byte(nil), boot...),
		Root: append([]byte(nil), root...),
	}, nil
}

// Load reads both stubs from fs.
func Load(fs afero.Fs, bootPath, rootPath string) (*Set, error) {
	boot, err := afero.ReadFile(fs, bootPath)
	if err != nil {
		return nil, fmt.Errorf("read boot stub: %w", err)
	}
	root, err := afero.ReadFile(fs, rootPath)
	if err != nil {
		return nil, fmt.Errorf("read root stub: %w", err)
	}
	return New(boot, root)
}
