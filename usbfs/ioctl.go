//go:build linux

package usbfs

import "unsafe"

// usbfs ioctl request numbers, encoded with the kernel's _IOC layout:
//
//	bits 0-7:   command number
//	bits 8-15:  ioctl type ('U' for usbfs)
//	bits 16-29: argument size
//	bits 30-31: direction
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr {
	return ioc(iocRead, typ, nr, size)
}

func iowr(typ, nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, typ, nr, size)
}

const usbdevfsType = 'U'

var (
	usbdevfsBulk             = iowr(usbdevfsType, 2, unsafe.Sizeof(bulkTransfer{}))
	usbdevfsClaimInterface   = ior(usbdevfsType, 15, 4)
	usbdevfsReleaseInterface = ior(usbdevfsType, 16, 4)
	usbdevfsReset            = ioc(iocNone, usbdevfsType, 20, 0)
	usbdevfsClearHalt        = ior(usbdevfsType, 21, 4)
	usbdevfsDisconnectClaim  = ior(usbdevfsType, 27, unsafe.Sizeof(disconnectClaim{}))
)
