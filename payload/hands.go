package payload

import (
	"encoding/binary"
	"math"
)

// Bone counts in the hand tracking skeleton.
const (
	HandBones    = 24
	HandCapsules = 20
)

// OvrPose is the packed pose used by skeleton and hand messages.
type OvrPose struct {
	Orient Quat
	Pos    Vec3
}

const ovrPoseSize = 28

// Capsule is one collision capsule attached to a skeleton bone.
type Capsule struct {
	A      Vec3
	B      Vec3
	Radius float32
}

const capsuleSize = 28

// SkeletonBin is the packed per-hand bind skeleton, sent once per hand on
// the skeleton topic.
type SkeletonBin struct {
	Timestamp     float64
	Bones         [HandBones]OvrPose
	BoneParentIdx [HandBones]int16
	Capsules      [HandCapsules]Capsule
}

// skeletonBinSize mirrors the packed layout: a 44-byte header (two u32s, a
// double timestamp, then seven u32s including the bone and capsule counts),
// bones, parent indices, capsules.
const skeletonBinSize = 44 + HandBones*ovrPoseSize + HandBones*2 + HandCapsules*capsuleSize

func decodePose(b []byte) OvrPose {
	var p OvrPose
	p.Orient = Quat{getF32(b), getF32(b[4:]), getF32(b[8:]), getF32(b[12:])}
	p.Pos = Vec3{getF32(b[16:]), getF32(b[20:]), getF32(b[24:])}
	return p
}

func encodePose(b []byte, p OvrPose) {
	putF32(b, p.Orient.X)
	putF32(b[4:], p.Orient.Y)
	putF32(b[8:], p.Orient.Z)
	putF32(b[12:], p.Orient.W)
	putF32(b[16:], p.Pos.X)
	putF32(b[20:], p.Pos.Y)
	putF32(b[24:], p.Pos.Z)
}

func DecodeSkeletonBin(b []byte) (SkeletonBin, error) {
	if len(b) < skeletonBinSize {
		return SkeletonBin{}, ErrShort
	}
	var s SkeletonBin
	s.Timestamp = math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
	off := 44
	for i := 0; i < HandBones; i++ {
		s.Bones[i] = decodePose(b[off:])
		off += ovrPoseSize
	}
	for i := 0; i < HandBones; i++ {
		s.BoneParentIdx[i] = int16(binary.LittleEndian.Uint16(b[off:]))
		off += 2
	}
	for i := 0; i < HandCapsules; i++ {
		s.Capsules[i] = Capsule{
			A:      Vec3{getF32(b[off:]), getF32(b[off+4:]), getF32(b[off+8:])},
			B:      Vec3{getF32(b[off+12:]), getF32(b[off+16:]), getF32(b[off+20:])},
			Radius: getF32(b[off+24:]),
		}
		off += capsuleSize
	}
	return s, nil
}

func (s *SkeletonBin) Encode() []byte {
	b := make([]byte, skeletonBinSize)
	binary.LittleEndian.PutUint64(b[8:16], math.Float64bits(s.Timestamp))
	binary.LittleEndian.PutUint32(b[24:28], HandBones)
	binary.LittleEndian.PutUint32(b[28:32], HandCapsules)
	off := 44
	for i := 0; i < HandBones; i++ {
		encodePose(b[off:], s.Bones[i])
		off += ovrPoseSize
	}
	for i := 0; i < HandBones; i++ {
		binary.LittleEndian.PutUint16(b[off:], uint16(s.BoneParentIdx[i]))
		off += 2
	}
	for i := 0; i < HandCapsules; i++ {
		c := s.Capsules[i]
		putF32(b[off:], c.A.X)
		putF32(b[off+4:], c.A.Y)
		putF32(b[off+8:], c.A.Z)
		putF32(b[off+12:], c.B.X)
		putF32(b[off+16:], c.B.Y)
		putF32(b[off+20:], c.B.Z)
		putF32(b[off+24:], c.Radius)
		off += capsuleSize
	}
	return b
}

// HandsBin is the packed per-hand tracking sample on the hands topic: root
// pose, per-bone rotations, timestamps and confidences. Two of these follow
// an 8-byte header in every hands packet, left hand first.
type HandsBin struct {
	TrackingStatus  uint32
	RootOrient      Quat
	RootPos         Vec3
	BoneRots        [HandBones]Quat
	ReqTimestamp    float64
	SampleTimestamp float64
	HandConfidence  float32
	HandScale       float32
	FingerConf      [5]float32
}

// HandsBinSize mirrors the packed layout including the trailing unknown
// float blocks.
const HandsBinSize = 8 + 16 + 12 + 12 + HandBones*16 + 8 + 8 + 8 + 5*4 + 8 + 26*4 + 5*4 + 7*4 + 5*4

const handsBinSize = HandsBinSize

const HandsHeaderSize = 8

func DecodeHandsBin(b []byte) (HandsBin, error) {
	if len(b) < handsBinSize {
		return HandsBin{}, ErrShort
	}
	var h HandsBin
	h.TrackingStatus = binary.LittleEndian.Uint32(b[4:8])
	h.RootOrient = Quat{getF32(b[8:]), getF32(b[12:]), getF32(b[16:]), getF32(b[20:])}
	h.RootPos = Vec3{getF32(b[24:]), getF32(b[28:]), getF32(b[32:])}
	off := 48
	for i := 0; i < HandBones; i++ {
		h.BoneRots[i] = Quat{getF32(b[off:]), getF32(b[off+4:]), getF32(b[off+8:]), getF32(b[off+12:])}
		off += 16
	}
	h.ReqTimestamp = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
	h.SampleTimestamp = math.Float64frombits(binary.LittleEndian.Uint64(b[off+8:]))
	h.HandConfidence = getF32(b[off+16:])
	h.HandScale = getF32(b[off+20:])
	for i := 0; i < 5; i++ {
		h.FingerConf[i] = getF32(b[off+24+i*4:])
	}
	return h, nil
}

func (h *HandsBin) Encode() []byte {
	b := make([]byte, handsBinSize)
	binary.LittleEndian.PutUint32(b[4:8], h.TrackingStatus)
	putF32(b[8:], h.RootOrient.X)
	putF32(b[12:], h.RootOrient.Y)
	putF32(b[16:], h.RootOrient.Z)
	putF32(b[20:], h.RootOrient.W)
	putF32(b[24:], h.RootPos.X)
	putF32(b[28:], h.RootPos.Y)
	putF32(b[32:], h.RootPos.Z)
	off := 48
	for i := 0; i < HandBones; i++ {
		q := h.BoneRots[i]
		putF32(b[off:], q.X)
		putF32(b[off+4:], q.Y)
		putF32(b[off+8:], q.Z)
		putF32(b[off+12:], q.W)
		off += 16
	}
	binary.LittleEndian.PutUint64(b[off:], math.Float64bits(h.ReqTimestamp))
	binary.LittleEndian.PutUint64(b[off+8:], math.Float64bits(h.SampleTimestamp))
	putF32(b[off+16:], h.HandConfidence)
	putF32(b[off+20:], h.HandScale)
	for i := 0; i < 5; i++ {
		putF32(b[off+24+i*4:], h.FingerConf[i])
	}
	return b
}
