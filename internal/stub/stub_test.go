package stub

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		boot    []byte
		root    []byte
		wantErr string
	}{
		{
			name: "largest stubs that fit",
			boot: bytes.Repeat([]byte{0x4E}, types.MaxBootStubSize),
			root: bytes.Repeat([]byte{0x4E}, types.MaxRootStubSize),
		},
		{
			name:    "boot stub overlaps checksum",
			boot:    bytes.Repeat([]byte{0x4E}, types.MaxBootStubSize+1),
			root:    []byte{0x4E, 0x75},
			wantErr: "boot stub",
		},
		{
			name:    "root stub overlaps checksum",
			boot:    []byte{0x4E, 0x75},
			root:    bytes.Repeat([]byte{0x4E}, types.MaxRootStubSize+1),
			wantErr: "root stub",
		},
		{
			name:    "empty boot stub",
			root:    []byte{0x4E, 0x75},
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := New(tt.boot, tt.root)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.boot, set.Boot)
			assert.Equal(t, tt.root, set.Root)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	boot := []byte{1, 2, 3, 4}
	set, err := New(boot, []byte{5, 6})
	require.NoError(t, err)

	boot[0] = 0xFF
	assert.Equal(t, byte(1), set.Boot[0])
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultBootPath, []byte{0x60, 0xFE}, 0644))
	require.NoError(t, afero.WriteFile(fs, DefaultRootPath, []byte{0x4E, 0x75}, 0644))

	set, err := Load(fs, DefaultBootPath, DefaultRootPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0xFE}, set.Boot)
	assert.Equal(t, []byte{0x4E, 0x75}, set.Root)

	_, err = Load(fs, "missing.bin", DefaultRootPath)
	assert.Error(t, err)
}
