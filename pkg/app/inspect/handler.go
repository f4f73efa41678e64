package inspect

import (
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-emutos-install/internal/checksum"
	"github.com/deploymenttheory/go-emutos-install/internal/disk"
	"github.com/deploymenttheory/go-emutos-install/internal/drive"
	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/partition"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Handle opens the disk read-only and reports the state of its boot chain:
// the root sector as stored, the drives it maps and the boot sector and loader
// file of C:.
func Handle(ctx *app.Context, req *Request) (resp *Response, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fs := req.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	order, _ := disk.ParseByteOrder(req.Target.ByteOrder)

	ctx.Log(fmt.Sprintf("Inspecting %s", req.Target.String()))
	img, err := disk.Open(fs, req.Target.DiskPath, disk.Options{ByteOrder: order, Unit: req.Target.Unit, ReadOnly: true})
	if err != nil {
		return nil, app.NewError(app.ErrCodeDiskAccess, "cannot open disk", err)
	}
	defer func() {
		if cerr := img.Close(); cerr != nil {
			err = multierr.Append(err, app.NewError(app.ErrCodeIOFailure, "cannot close disk", cerr))
		}
	}()

	resp = &Response{
		Disk: DiskInfo{
			Path:           req.Target.DiskPath,
			Size:           img.Size(),
			ByteOrder:      disk.ByteOrderNative.String(),
			Unit:           img.Unit(),
			PhysicalDevice: img.PhysicalDevice(),
		},
		Drives: img.Drives(),
	}
	if img.Swapped() {
		resp.Disk.ByteOrder = disk.ByteOrderSwapped.String()
	}

	if err := inspectRoot(img, &resp.Root); err != nil {
		return nil, app.WrapError("cannot read root sector", err)
	}

	destination := req.Destination
	if destination == "" {
		destination = types.DestinationName
	}
	resp.DriveC = inspectDriveC(ctx, img, req.Target.DriveDir, fs, destination)

	resp.Stats = img.Stats()
	return resp, nil
}

// inspectRoot decodes the root sector exactly as the boot ROM reads it.
func inspectRoot(img *disk.Image, info *RootInfo) error {
	root := make([]byte, types.SectorSize)
	if err := img.ReadSector(interfaces.PhysicalSector(img.PhysicalDevice(), 0), interfaces.TransferRaw, root); err != nil {
		return types.IOError("read root sector", err)
	}

	layout, entries, err := partition.Entries(root)
	if err != nil {
		return err
	}
	info.Layout = layout.String()
	info.Entries = entries
	info.Checksum = fmt.Sprintf("%#04x", checksum.Sum(root))
	info.Executable = checksum.Valid(root)
	return nil
}

// inspectDriveC never fails; problems with C: are reported in the result.
func inspectDriveC(ctx *app.Context, img *disk.Image, driveDir string, fs afero.Fs, destination string) *BootInfo {
	info := &BootInfo{Loader: destination}

	resolver, err := drive.NewResolver(img, img, img)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	resolved, err := resolver.Resolve(types.DriveC)
	if err != nil {
		ctx.Log(fmt.Sprintf("Drive C: cannot be installed to: %v", err))
		info.Error = err.Error()
		return info
	}
	info.Resolved = true
	info.Device = resolved.Device
	info.PartitionStart = resolved.PartitionStart

	boot := make([]byte, types.SectorSize)
	if err := img.ReadSector(interfaces.LogicalSector(types.DriveC, 0), interfaces.TransferNormal, boot); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Checksum = fmt.Sprintf("%#04x", checksum.Sum(boot))
	info.Executable = checksum.Valid(boot)

	var size int64
	if driveDir != "" {
		size, err = disk.NewDirVolume(fs, driveDir).Stat(destination)
	} else {
		size, err = loaderSize(img, destination)
	}
	if err == nil {
		info.LoaderPresent = true
		info.LoaderSize = size
	}
	return info
}

func loaderSize(img *disk.Image, name string) (int64, error) {
	vol, err := img.Volume(types.DriveC)
	if err != nil {
		return 0, err
	}
	entry, err := vol.Stat(name)
	if err != nil {
		return 0, err
	}
	return int64(entry.Size), nil
}
