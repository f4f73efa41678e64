package inspect

import (
	"github.com/deploymenttheory/go-emutos-install/internal/disk"
	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Validate validates an inspection request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid disk target", err)
	}
	if _, err := disk.ParseByteOrder(r.Target.ByteOrder); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid byte order", err)
	}
	return nil
}
