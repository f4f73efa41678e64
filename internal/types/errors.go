package types

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the installer. Callers match them with errors.Is.
var (
	ErrFileAbsent             = errors.New("file does not exist or cannot be opened")
	ErrInvalidImage           = errors.New("file is not an EmuTOS image")
	ErrUnsupportedFilesystem  = errors.New("target drive is not FAT16")
	ErrIOFailure              = errors.New("i/o failure")
	ErrNoBootablePartition    = errors.New("no partition table entry matches the drive")
	ErrPrivilegedAccessDenied = errors.New("drive has no physical device mapping")
)

// IOError tags err as an ErrIOFailure while keeping it in the chain.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIOFailure, err)
}
