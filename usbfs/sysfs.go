//go:build linux

package usbfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/questlink/xrsp"
)

const (
	sysfsUSBPath = "/sys/bus/usb/devices"
	devfsUSBPath = "/dev/bus/usb"
)

// DeviceInfo describes one attached headset: where its usbfs node lives and
// which interface and endpoints carry the session.
type DeviceInfo struct {
	SysfsPath    string
	DevfsPath    string
	BusNum       uint8
	DevNum       uint8
	VendorID     uint16
	ProductID    uint16
	InterfaceNum uint8
	EndpointIn   uint8
	EndpointOut  uint8
}

// Enumerate scans sysfs for headsets exposing the vendor bulk interface.
// Devices whose descriptors cannot be read (usually a permissions problem)
// are skipped.
func Enumerate() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsUSBPath)
	if err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		// Skip root hubs (usbN) and interface nodes (1-2:1.0).
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		info, err := parseDevice(filepath.Join(sysfsUSBPath, name))
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func parseDevice(sysfsPath string) (DeviceInfo, error) {
	info := DeviceInfo{SysfsPath: sysfsPath}

	vid, err := readHex16(filepath.Join(sysfsPath, "idVendor"))
	if err != nil {
		return info, err
	}
	pid, err := readHex16(filepath.Join(sysfsPath, "idProduct"))
	if err != nil {
		return info, err
	}
	if !isHeadset(vid, pid) {
		return info, fmt.Errorf("usbfs: %04x:%04x is not a headset", vid, pid)
	}
	info.VendorID = vid
	info.ProductID = pid

	info.BusNum, err = readDec8(filepath.Join(sysfsPath, "busnum"))
	if err != nil {
		return info, err
	}
	info.DevNum, err = readDec8(filepath.Join(sysfsPath, "devnum"))
	if err != nil {
		return info, err
	}
	info.DevfsPath = fmt.Sprintf("%s/%03d/%03d", devfsUSBPath, info.BusNum, info.DevNum)

	desc, err := os.ReadFile(filepath.Join(sysfsPath, "descriptors"))
	if err != nil {
		return info, err
	}
	iface, epIn, epOut, err := findBulkInterface(desc)
	if err != nil {
		return info, err
	}
	info.InterfaceNum = iface
	info.EndpointIn = epIn
	info.EndpointOut = epOut
	return info, nil
}

func isHeadset(vid, pid uint16) bool {
	if vid != xrsp.VendorOculus {
		return false
	}
	switch pid {
	case xrsp.ProductQuest, xrsp.ProductQuest2, xrsp.ProductQuest3, xrsp.ProductQuestPro:
		return true
	}
	return false
}

// Descriptor types and offsets per the USB 2.0 spec.
const (
	descTypeInterface = 4
	descTypeEndpoint  = 5

	endpointAttrBulk = 2
	endpointDirIn    = 0x80
)

// findBulkInterface walks the raw descriptor blob for the vendor interface
// and its bulk endpoint pair.
func findBulkInterface(desc []byte) (iface, epIn, epOut uint8, err error) {
	inVendor := false
	haveIn, haveOut := false, false

	for off := 0; off+2 <= len(desc); {
		dlen := int(desc[off])
		if dlen < 2 || off+dlen > len(desc) {
			break
		}
		d := desc[off : off+dlen]
		off += dlen

		switch d[1] {
		case descTypeInterface:
			if dlen < 9 {
				continue
			}
			if inVendor && haveIn && haveOut {
				return iface, epIn, epOut, nil
			}
			class, subclass, proto := d[5], d[6], d[7]
			inVendor = class == xrsp.InterfaceClass &&
				(subclass == xrsp.InterfaceSubclassA || subclass == xrsp.InterfaceSubclassB) &&
				proto == xrsp.InterfaceProtocol
			if inVendor {
				iface = d[2]
				haveIn, haveOut = false, false
			}
		case descTypeEndpoint:
			if !inVendor || dlen < 7 {
				continue
			}
			if d[3]&0x3 != endpointAttrBulk {
				continue
			}
			if d[2]&endpointDirIn != 0 {
				epIn = d[2]
				haveIn = true
			} else {
				epOut = d[2]
				haveOut = true
			}
		}
	}
	if haveIn && haveOut {
		return iface, epIn, epOut, nil
	}
	return 0, 0, 0, fmt.Errorf("usbfs: no vendor bulk interface in descriptors")
}

func readString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readDec8(path string) (uint8, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	return uint8(v), err
}

func readHex16(path string) (uint16, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	return uint16(v), err
}
