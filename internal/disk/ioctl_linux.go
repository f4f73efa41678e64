package disk

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctlBlockGetSize(fd uintptr) (int64, error) {
	var size uint64
	if _, _, err := unix.Syscall(unix.SYS_IOCTL, fd, unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size))); err != 0 {
		return 0, err
	}
	return int64(size), nil
}

func ioctlBlockGetSectorSize(fd uintptr) (int64, error) {
	var sectorSize int32
	if _, _, err := unix.Syscall(unix.SYS_IOCTL, fd, unix.BLKSSZGET, uintptr(unsafe.Pointer(&sectorSize))); err != 0 {
		return 0, err
	}
	return int64(sectorSize), nil
}
