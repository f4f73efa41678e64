package locate

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/deploymenttheory/go-emutos-install/internal/image"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Handle classifies the requested loader image. Absent and invalid files are
// reported in the response; Err turns them into an error.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fs := req.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	ctx.Log(fmt.Sprintf("Checking loader image: %s", req.ImagePath))
	report := image.Inspect(fs, req.ImagePath)

	resp := &Response{
		Path:           report.Path,
		Classification: report.Classification.String(),
		Valid:          report.Classification == image.Valid,
		Reason:         report.Reason,
		err:            report.Err(),
	}
	if report.Size >= 0 {
		resp.Size = report.Size
	}
	if report.TagOffset >= 0 {
		resp.TagOffset = report.TagOffset
	}
	resp.InstallEnabled = resp.Valid

	ctx.Log(fmt.Sprintf("Classification: %s", resp.Classification))
	return resp, nil
}

// Err returns a CommonError for an image that cannot be installed.
func (r *Response) Err() error {
	if r.err == nil {
		return nil
	}
	code := app.ErrCodeInvalidImage
	if r.Classification == image.Absent.String() {
		code = app.ErrCodeFileAbsent
	}
	return app.NewError(code, "cannot use loader image", r.err)
}
