package install

import (
	"strings"

	"github.com/deploymenttheory/go-emutos-install/internal/disk"
	"github.com/deploymenttheory/go-emutos-install/internal/types"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Validate validates an installation request
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ImagePath) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}

	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid disk target", err)
	}
	if _, err := disk.ParseByteOrder(r.Target.ByteOrder); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid byte order", err)
	}

	if _, err := types.ParseVariant(r.Variant); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid variant", err)
	}

	if r.BootStub == "" || r.RootStub == "" {
		return app.NewError(app.ErrCodeInvalidInput, "boot and root stub paths are required", nil)
	}

	if r.ChunkSize < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "chunk size must not be negative", nil)
	}

	return nil
}
