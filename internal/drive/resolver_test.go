package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

type fakeBPBs map[int]*interfaces.BPB

func (f fakeBPBs) GetBPB(drive int) (*interfaces.BPB, error) {
	bpb, ok := f[drive]
	if !ok {
		return nil, errors.New("no such drive")
	}
	return bpb, nil
}

// fakeHost is a drive table that can only be read in supervisor mode.
type fakeHost struct {
	supervisor  bool
	enters      int
	restores    int
	mappings    map[int]interfaces.DriveMapping
	tableErr    error
	panicOnRead bool
}

func (h *fakeHost) EnterSupervisor() (interfaces.SupervisorState, error) {
	prev := interfaces.SupervisorState{Supervisor: h.supervisor}
	h.supervisor = true
	h.enters++
	return prev, nil
}

func (h *fakeHost) RestoreMode(prev interfaces.SupervisorState) {
	h.supervisor = prev.Supervisor
	h.restores++
}

func (h *fakeHost) Mapping(drive int) (interfaces.DriveMapping, error) {
	if !h.supervisor {
		return interfaces.DriveMapping{}, errors.New("bus error")
	}
	if h.panicOnRead {
		panic("bus error")
	}
	if h.tableErr != nil {
		return interfaces.DriveMapping{}, h.tableErr
	}
	return h.mappings[drive], nil
}

func fat16() *interfaces.BPB {
	return &interfaces.BPB{RecSize: 512, ClusterSectors: 4, Flags: types.BPBFlagFAT16}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name          string
		bpbs          fakeBPBs
		host          *fakeHost
		expectErr     error
		expectDevice  int
		expectStart   uint32
		expectEntered bool
	}{
		{
			name: "fat16 drive with mapping",
			bpbs: fakeBPBs{types.DriveC: fat16()},
			host: &fakeHost{mappings: map[int]interfaces.DriveMapping{
				types.DriveC: {Device: 0, PartitionStart: 2048},
			}},
			expectDevice:  2,
			expectStart:   2048,
			expectEntered: true,
		},
		{
			name: "second unit",
			bpbs: fakeBPBs{types.DriveC: fat16()},
			host: &fakeHost{mappings: map[int]interfaces.DriveMapping{
				types.DriveC: {Device: 8, PartitionStart: 63},
			}},
			expectDevice:  10,
			expectStart:   63,
			expectEntered: true,
		},
		{
			name:      "missing bpb",
			bpbs:      fakeBPBs{},
			host:      &fakeHost{},
			expectErr: types.ErrUnsupportedFilesystem,
		},
		{
			name:      "fat12 drive",
			bpbs:      fakeBPBs{types.DriveC: {RecSize: 512}},
			host:      &fakeHost{},
			expectErr: types.ErrUnsupportedFilesystem,
		},
		{
			name: "unmapped device",
			bpbs: fakeBPBs{types.DriveC: fat16()},
			host: &fakeHost{mappings: map[int]interfaces.DriveMapping{
				types.DriveC: {Device: 0x80},
			}},
			expectErr:     types.ErrPrivilegedAccessDenied,
			expectEntered: true,
		},
		{
			name:          "drive table read failure",
			bpbs:          fakeBPBs{types.DriveC: fat16()},
			host:          &fakeHost{tableErr: errors.New("table gone")},
			expectErr:     types.ErrPrivilegedAccessDenied,
			expectEntered: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.bpbs, tt.host, tt.host)
			require.NoError(t, err)

			info, err := r.Resolve(types.DriveC)

			assert.False(t, tt.host.supervisor, "supervisor mode must be left")
			assert.Equal(t, tt.host.enters, tt.host.restores)
			if tt.expectEntered {
				assert.Equal(t, 1, tt.host.enters)
			} else {
				assert.Zero(t, tt.host.enters)
			}

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectDevice, info.Device)
			assert.Equal(t, tt.expectStart, info.PartitionStart)
			assert.Equal(t, "C:", info.Letter())
		})
	}
}

func TestResolveRestoresModeOnPanic(t *testing.T) {
	host := &fakeHost{panicOnRead: true}
	r, err := NewResolver(fakeBPBs{types.DriveC: fat16()}, host, host)
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = r.Resolve(types.DriveC) })
	assert.False(t, host.supervisor)
	assert.Equal(t, 1, host.restores)
}

func TestResolveKeepsSupervisorCaller(t *testing.T) {
	host := &fakeHost{
		supervisor: true,
		mappings:   map[int]interfaces.DriveMapping{types.DriveC: {Device: 1, PartitionStart: 2}},
	}
	r, err := NewResolver(fakeBPBs{types.DriveC: fat16()}, host, host)
	require.NoError(t, err)

	_, err = r.Resolve(types.DriveC)
	require.NoError(t, err)
	assert.True(t, host.supervisor, "a caller already in supervisor mode stays there")
}

func TestNewResolverRequiresCollaborators(t *testing.T) {
	_, err := NewResolver(nil, &fakeHost{}, &fakeHost{})
	assert.Error(t, err)
}
