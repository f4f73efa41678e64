//go:build !linux

package disk

import "errors"

var errNotSupported = errors.New("block device ioctls not supported on this platform")

func ioctlBlockGetSize(fd uintptr) (int64, error) {
	return 0, errNotSupported
}

func ioctlBlockGetSectorSize(fd uintptr) (int64, error) {
	return 0, errNotSupported
}
