package disk

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
)

// DirVolume is a host directory standing in for a drive, as emulators that
// map a folder to C: do.
type DirVolume struct {
	fs afero.Fs
}

var _ interfaces.Volume = (*DirVolume)(nil)

// NewDirVolume roots a volume at dir of base.
func NewDirVolume(base afero.Fs, dir string) *DirVolume {
	return &DirVolume{fs: afero.NewBasePathFs(base, dir)}
}

// Create creates or truncates name in the directory.
func (v *DirVolume) Create(name string) (io.WriteCloser, error) {
	return v.fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

// Stat returns the size of name, or an error when it does not exist.
func (v *DirVolume) Stat(name string) (int64, error) {
	info, err := v.fs.Stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
