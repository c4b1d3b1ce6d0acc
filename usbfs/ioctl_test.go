//go:build linux && (amd64 || arm64)

package usbfs

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The kernel struct layouts on 64-bit: three u32s, padding, then a pointer
// for the bulk transfer; two u32s and a 256-byte driver name for the claim.
func TestKernelStructSizes(t *testing.T) {
	assert.EqualValues(t, 24, unsafe.Sizeof(bulkTransfer{}))
	assert.EqualValues(t, 264, unsafe.Sizeof(disconnectClaim{}))
}

func TestIoctlRequestNumbers(t *testing.T) {
	assert.EqualValues(t, 0xC0185502, usbdevfsBulk)
	assert.EqualValues(t, 0x8004550F, usbdevfsClaimInterface)
	assert.EqualValues(t, 0x80045510, usbdevfsReleaseInterface)
	assert.EqualValues(t, 0x5514, usbdevfsReset)
	assert.EqualValues(t, 0x80045515, usbdevfsClearHalt)
	assert.EqualValues(t, 0x8108551B, usbdevfsDisconnectClaim)
}
