package locate

import (
	"strings"

	"github.com/deploymenttheory/go-emutos-install/pkg/app"
)

// Validate validates a locate request
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ImagePath) == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}
	return nil
}
