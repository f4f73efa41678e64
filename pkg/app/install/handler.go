package install

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-emutos-install/internal/checksum"
	"github.com/deploymenttheory/go-emutos-install/internal/disk"
	"github.com/deploymenttheory/go-emutos-install/internal/drive"
	"github.com/deploymenttheory/go-emutos-install/internal/image"
	"github.com/deploymenttheory/go-emutos-install/internal/installer"
	"github.com/deploymenttheory/go-emutos-install/internal/interfaces"
	"github.com/deploymenttheory/go-emutos-install/internal/stub"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// stagePercent is the overall progress once a stage is reached. Copying the
// loader file fills the range between fat-checked and payload-copied.
var stagePercent = map[installer.Stage]int{
	installer.StageFatChecked:        10,
	installer.StagePayloadCopied:     70,
	installer.StageBootSectorWritten: 80,
	installer.StagePartitionMarked:   85,
	installer.StageRootSectorPatched: 95,
	installer.StageDone:              100,
}

// Handle installs the loader image on drive C: of the requested disk. The
// response is returned alongside any failure so callers can report how far
// the installation got.
func Handle(ctx *app.Context, req *Request) (resp *Response, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fs := req.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	variant, _ := types.ParseVariant(req.Variant)
	order, _ := disk.ParseByteOrder(req.Target.ByteOrder)

	resp = &Response{
		RunID:   uuid.NewString(),
		Image:   ImageInfo{Path: req.ImagePath},
		Disk:    DiskInfo{Path: req.Target.DiskPath, Unit: req.Target.Unit},
		Variant: variant.String(),
		Stage:   installer.StageIdle.String(),
		Target:  TargetInfo{Destination: req.Destination},
	}
	if resp.Target.Destination == "" {
		resp.Target.Destination = types.DestinationName
	}
	started := time.Now()
	defer func() {
		resp.Duration = time.Since(started)
		if err != nil {
			resp.Error = err.Error()
		}
	}()

	// Installation is only offered for an image that classifies as valid.
	report := image.Inspect(fs, req.ImagePath)
	if report.Classification != image.Valid {
		code := app.ErrCodeInvalidImage
		if report.Classification == image.Absent {
			code = app.ErrCodeFileAbsent
		}
		return resp, app.NewError(code, "cannot install loader image", report.Err())
	}
	resp.Image.Size = report.Size

	stubs, err := stub.Load(fs, req.BootStub, req.RootStub)
	if err != nil {
		return resp, app.NewError(app.ErrCodeInvalidInput, "cannot load sector stubs", err)
	}

	img, err := disk.Open(fs, req.Target.DiskPath, disk.Options{ByteOrder: order, Unit: req.Target.Unit})
	if err != nil {
		return resp, app.WrapError("cannot open disk", diskError(err))
	}
	defer func() {
		if cerr := img.Close(); cerr != nil {
			err = multierr.Append(err, app.NewError(app.ErrCodeIOFailure, "cannot close disk", cerr))
		}
	}()

	resp.Disk.ByteOrder = disk.ByteOrderNative.String()
	if img.Swapped() {
		resp.Disk.ByteOrder = disk.ByteOrderSwapped.String()
	}
	resp.Disk.Layout = img.Layout().String()

	var volume interfaces.Volume = img.FileSystem(types.DriveC)
	if req.Target.DriveDir != "" {
		volume = disk.NewDirVolume(fs, req.Target.DriveDir)
	}

	if !req.Yes {
		if err := confirm(ctx, req, variant); err != nil {
			return resp, err
		}
	}

	resolver, err := drive.NewResolver(img, img, img)
	if err != nil {
		return resp, app.WrapError("cannot resolve drive", err)
	}

	in, err := installer.New(installer.Config{
		Resolver: resolver,
		Device:   img,
		Volume:   volume,
		Source:   fs,
		Stubs:    stubs,
		Options: installer.Options{
			Variant:     variant,
			Destination: req.Destination,
			ChunkSize:   req.ChunkSize,
			OnStage: func(stage installer.Stage) {
				if percent, ok := stagePercent[stage]; ok {
					ctx.Progress(stage.String(), percent)
				}
				ctx.Log(fmt.Sprintf("Stage: %s", stage))
			},
			OnCopy: func(copied int64) {
				update := app.ProgressUpdate{
					Message: fmt.Sprintf("copying %s: %s of %s", resp.Target.Destination,
						humanize.IBytes(uint64(copied)), humanize.IBytes(uint64(report.Size))),
					Completed: copied,
					Total:     report.Size,
				}
				span := stagePercent[installer.StagePayloadCopied] - stagePercent[installer.StageFatChecked]
				ctx.Progress(update.Message, stagePercent[installer.StageFatChecked]+update.Percent()*span/100)
			},
		},
	})
	if err != nil {
		return resp, app.NewError(app.ErrCodeInvalidInput, "cannot configure installer", err)
	}

	ctx.Log(fmt.Sprintf("Installing %s on %s (run %s)", req.ImagePath, req.Target.String(), resp.RunID))
	result, runErr := in.Run(ctx.Context, req.ImagePath)
	fillResult(resp, result)
	if runErr != nil {
		return resp, app.WrapError("installation failed", runErr)
	}

	if err := verify(img, result.Drive, resp); err != nil {
		return resp, app.WrapError("cannot verify installed sectors", err)
	}
	return resp, nil
}

func confirm(ctx *app.Context, req *Request, variant types.Variant) error {
	if ctx.Confirm == nil {
		return app.NewError(app.ErrCodeInvalidInput, "confirmation required; rerun with --yes", nil)
	}
	prompt := fmt.Sprintf("Install %s (%s) on %s? This rewrites its boot and root sectors", req.ImagePath, variant, req.Target.String())
	ok, err := ctx.Confirm(prompt)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "cannot read confirmation", err)
	}
	if !ok {
		return app.NewError(app.ErrCodeCancelled, "installation cancelled", nil)
	}
	return nil
}

// diskError reports a disk that cannot be opened as a disk access failure
// unless it already carries a more specific kind.
func diskError(err error) error {
	if errors.Is(err, types.ErrPrivilegedAccessDenied) || errors.Is(err, types.ErrUnsupportedFilesystem) {
		return err
	}
	return app.NewError(app.ErrCodeDiskAccess, "cannot open disk", err)
}

func fillResult(resp *Response, result *installer.Result) {
	if result == nil {
		return
	}
	resp.Stage = result.Stage.String()
	resp.Completed = make([]string, 0, len(result.Completed))
	for _, stage := range result.Completed {
		resp.Completed = append(resp.Completed, stage.String())
	}
	resp.Target.BytesCopied = result.BytesCopied
	resp.Sectors.PartitionMarked = result.PartitionMarked
	if result.Drive.Drive != 0 {
		resp.Target.Drive = result.Drive.Letter()
		resp.Target.Device = result.Drive.Device
		resp.Target.PartitionStart = result.Drive.PartitionStart
	}
	if result.Stage == installer.StageDone {
		resp.Sectors.BootChecksum = fmt.Sprintf("%#04x", result.BootChecksum)
		resp.Sectors.RootChecksum = fmt.Sprintf("%#04x", result.RootChecksum)
	}
}

// verify reads both sectors back the way the installer wrote them and records
// whether each would be executed at boot.
func verify(dev interfaces.SectorDevice, info drive.Info, resp *Response) error {
	buf := make([]byte, types.SectorSize)

	if err := dev.ReadSector(interfaces.LogicalSector(info.Drive, 0), interfaces.TransferNormal, buf); err != nil {
		return types.IOError("read boot sector", err)
	}
	resp.Sectors.BootExecutable = checksum.Valid(buf)

	if err := dev.ReadSector(interfaces.PhysicalSector(info.Device, 0), interfaces.TransferRaw, buf); err != nil {
		return types.IOError("read root sector", err)
	}
	resp.Sectors.RootExecutable = checksum.Valid(buf)
	return nil
}
