// Package payload defines the typed messages carried inside XRSP topic
// packets and their binary codecs. Messages travel as little-endian
// structures padded to 8-byte words, matching the segment framing the
// transport layer wraps around them.
package payload

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrShort = errors.New("payload: truncated message")

type Quat struct {
	X, Y, Z, W float32
}

type Vec3 struct {
	X, Y, Z float32
}

type Pose struct {
	Orientation Quat
	Position    Vec3
}

// word is the unit message sizes are expressed in on the wire.
const word = 8

// pad8 extends b with zeros to a word boundary.
func pad8(b []byte) []byte {
	for len(b)%word != 0 {
		b = append(b, 0)
	}
	return b
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendI64(b []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(b, tmp[:]...)
}

func appendF32(b []byte, v float32) []byte {
	return appendU32(b, math.Float32bits(v))
}

func appendQuat(b []byte, q Quat) []byte {
	b = appendF32(b, q.X)
	b = appendF32(b, q.Y)
	b = appendF32(b, q.Z)
	return appendF32(b, q.W)
}

func appendVec3(b []byte, v Vec3) []byte {
	b = appendF32(b, v.X)
	b = appendF32(b, v.Y)
	return appendF32(b, v.Z)
}

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) need(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.b) {
		r.err = ErrShort
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u32() uint32 {
	if b := r.need(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) i64() int64 {
	if b := r.need(8); b != nil {
		return int64(binary.LittleEndian.Uint64(b))
	}
	return 0
}

func (r *reader) f32() float32 {
	if b := r.need(4); b != nil {
		return getF32(b)
	}
	return 0
}

func (r *reader) quat() Quat {
	return Quat{r.f32(), r.f32(), r.f32(), r.f32()}
}

func (r *reader) vec3() Vec3 {
	return Vec3{r.f32(), r.f32(), r.f32()}
}
