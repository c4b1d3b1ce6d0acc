//go:build linux

// Package usbfs opens Quest headsets through the Linux usbfs character
// devices and exposes their vendor bulk interface as a transport.
package usbfs

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/questlink/xrsp"
)

// bulkTransfer matches the kernel's struct usbdevfs_bulktransfer.
type bulkTransfer struct {
	endpoint uint32
	length   uint32
	timeout  uint32
	data     unsafe.Pointer
}

// disconnectClaim matches the kernel's struct usbdevfs_disconnect_claim.
type disconnectClaim struct {
	iface  uint32
	flags  uint32
	driver [256]byte
}

// Device is one claimed vendor interface on an open usbfs node. BulkRead and
// BulkWrite are safe to call from separate goroutines; Close is not safe to
// race against in-flight transfers.
type Device struct {
	mu     sync.Mutex
	fd     int
	closed bool

	info  DeviceInfo
	iface uint8
	epIn  uint8
	epOut uint8
}

// Open claims the first attached headset.
func Open() (*Device, error) {
	infos, err := Enumerate()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, xrsp.ErrNoDevice
	}
	return OpenInfo(infos[0])
}

// OpenInfo claims the headset described by info, detaching any kernel driver
// bound to the vendor interface.
func OpenInfo(info DeviceInfo) (*Device, error) {
	fd, err := unix.Open(info.DevfsPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("usbfs: open %s: %w", info.DevfsPath, err)
	}

	d := &Device{
		fd:    fd,
		info:  info,
		iface: info.InterfaceNum,
		epIn:  info.EndpointIn,
		epOut: info.EndpointOut,
	}
	if err := d.claim(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return d, nil
}

// Info describes the claimed device.
func (d *Device) Info() DeviceInfo { return d.info }

func (d *Device) claim() error {
	dc := disconnectClaim{iface: uint32(d.iface)}
	if err := d.ioctl(usbdevfsDisconnectClaim, unsafe.Pointer(&dc)); err == nil {
		return nil
	}
	iface := uint32(d.iface)
	if err := d.ioctl(usbdevfsClaimInterface, unsafe.Pointer(&iface)); err != nil {
		return fmt.Errorf("usbfs: claim interface %d: %w", d.iface, err)
	}
	return nil
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) bulk(ep uint8, buf []byte, timeout time.Duration) (int, error) {
	ms := timeout.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	xfer := bulkTransfer{
		endpoint: uint32(ep),
		length:   uint32(len(buf)),
		timeout:  uint32(ms),
	}
	if len(buf) > 0 {
		xfer.data = unsafe.Pointer(&buf[0])
	}
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), usbdevfsBulk, uintptr(unsafe.Pointer(&xfer)))
	if errno != 0 {
		return 0, mapErrno(errno)
	}
	return int(n), nil
}

// BulkRead reads from the bulk-in endpoint, returning at most one transfer.
func (d *Device) BulkRead(buf []byte, timeout time.Duration) (int, error) {
	return d.bulk(d.epIn, buf, timeout)
}

// BulkWrite pushes one transfer to the bulk-out endpoint.
func (d *Device) BulkWrite(buf []byte, timeout time.Duration) (int, error) {
	return d.bulk(d.epOut, buf, timeout)
}

// ClearHalt recovers a stalled endpoint.
func (d *Device) ClearHalt(in bool) error {
	ep := uint32(d.epOut)
	if in {
		ep = uint32(d.epIn)
	}
	return d.ioctl(usbdevfsClearHalt, unsafe.Pointer(&ep))
}

// Reset performs a USB port reset. The device re-enumerates afterwards, so
// the Device must be reopened.
func (d *Device) Reset() error {
	return d.ioctl(usbdevfsReset, nil)
}

// Close releases the interface and closes the usbfs node.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	iface := uint32(d.iface)
	d.ioctl(usbdevfsReleaseInterface, unsafe.Pointer(&iface))
	return unix.Close(d.fd)
}

// mapErrno folds usbfs errnos into the transport error set.
func mapErrno(errno syscall.Errno) error {
	switch errno {
	case unix.ETIMEDOUT:
		return xrsp.ErrTimeout
	case unix.ENODEV, unix.ENOENT, unix.ESHUTDOWN:
		return xrsp.ErrNoDevice
	case unix.EPIPE:
		return xrsp.ErrPipeStall
	}
	return errno
}
