package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-emutos-install/internal/types"
)

// DiskTarget represents disk selection across commands
type DiskTarget struct {
	DiskPath  string
	ByteOrder string
	Unit      int
	// DriveDir replaces the drive's filesystem with a host directory.
	DriveDir string
}

// Validate ensures disk target is valid
func (dt *DiskTarget) Validate() error {
	if dt.DiskPath == "" {
		return errors.New("disk image is required")
	}
	if dt.Unit < 0 || dt.Unit > 7 {
		return fmt.Errorf("unit %d out of range 0-7", dt.Unit)
	}
	return nil
}

// String returns a string representation of the disk target
func (dt *DiskTarget) String() string {
	if dt.DiskPath == "" {
		return "No disk"
	}
	result := fmt.Sprintf("Disk: %s (unit %d)", dt.DiskPath, dt.Unit)
	if dt.ByteOrder != "" && dt.ByteOrder != "auto" {
		result += ", " + dt.ByteOrder + " byte order"
	}
	if dt.DriveDir != "" {
		result += ", C: at " + dt.DriveDir
	}
	return result
}

// ProgressUpdate represents progress of a byte copy
type ProgressUpdate struct {
	Message   string
	Completed int64
	Total     int64
}

// Percent calculates completion percentage
func (p *ProgressUpdate) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	if p.Completed >= p.Total {
		return 100
	}
	return int((p.Completed * 100) / p.Total)
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeFileAbsent            = "FILE_ABSENT"
	ErrCodeInvalidImage          = "INVALID_IMAGE"
	ErrCodeDiskAccess            = "DISK_ACCESS"
	ErrCodeUnsupportedFilesystem = "UNSUPPORTED_FILESYSTEM"
	ErrCodeIOFailure             = "IO_FAILURE"
	ErrCodeNoBootablePartition   = "NO_BOOTABLE_PARTITION"
	ErrCodePermission            = "PRIVILEGED_ACCESS_DENIED"
	ErrCodeCancelled             = "CANCELLED"
	ErrCodeTimeout               = "TIMEOUT"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ClassifyError maps a failure kind in err's chain to an error code.
func ClassifyError(err error) string {
	var ce *CommonError
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, types.ErrFileAbsent):
		return ErrCodeFileAbsent
	case errors.Is(err, types.ErrInvalidImage):
		return ErrCodeInvalidImage
	case errors.Is(err, types.ErrUnsupportedFilesystem):
		return ErrCodeUnsupportedFilesystem
	case errors.Is(err, types.ErrNoBootablePartition):
		return ErrCodeNoBootablePartition
	case errors.Is(err, types.ErrPrivilegedAccessDenied):
		return ErrCodePermission
	case errors.Is(err, types.ErrIOFailure):
		return ErrCodeIOFailure
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	default:
		return ErrCodeIOFailure
	}
}

// WrapError returns err as a CommonError, classifying it when it is not one.
func WrapError(message string, err error) *CommonError {
	var ce *CommonError
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(ClassifyError(err), message, err)
}
