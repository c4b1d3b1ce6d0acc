package payload

// Rectification mesh ids carried in slice descriptors.
const (
	MeshNone     uint32 = 0
	MeshFoveated uint32 = 1
)

// Slice descriptor bits.
const (
	SliceHasCSD uint32 = 1 << 0
	SliceLast   uint32 = 1 << 1
)

// Slice is the descriptor preceding each encoded video slice. Timestamps
// are in the headset clock domain.
type Slice struct {
	FrameIdx      int64
	Unk0p1        uint32
	RectifyMeshID uint32
	Pose          Pose
	Timestamp05   int64
	SliceNum      uint32
	Bits          uint32
	Unk6p2        uint32
	Unk6p3        uint32
	BlitYPos      uint32
	CropBlocks    uint32
	Unk8p1        uint32
	Timestamp09   int64
	PipelineDelta int64
	Timestamp0B   int64
	Timestamp0C   int64
	Timestamp0D   int64
	Quat1         Quat
	Quat2         Quat
	CSDSize       uint32
	VideoSize     uint32
}

func (s *Slice) Encode() []byte {
	b := appendI64(nil, s.FrameIdx)
	b = appendU32(b, s.Unk0p1)
	b = appendU32(b, s.RectifyMeshID)
	b = appendQuat(b, s.Pose.Orientation)
	b = appendVec3(b, s.Pose.Position)
	b = appendU32(b, 0)
	b = appendI64(b, s.Timestamp05)
	b = appendU32(b, s.SliceNum)
	b = appendU32(b, s.Bits)
	b = appendU32(b, s.Unk6p2)
	b = appendU32(b, s.Unk6p3)
	b = appendU32(b, s.BlitYPos)
	b = appendU32(b, s.CropBlocks)
	b = appendU32(b, s.Unk8p1)
	b = appendU32(b, 0)
	b = appendI64(b, s.Timestamp09)
	b = appendI64(b, s.PipelineDelta)
	b = appendI64(b, s.Timestamp0B)
	b = appendI64(b, s.Timestamp0C)
	b = appendI64(b, s.Timestamp0D)
	b = appendQuat(b, s.Quat1)
	b = appendQuat(b, s.Quat2)
	b = appendU32(b, s.CSDSize)
	b = appendU32(b, s.VideoSize)
	return pad8(b)
}

func DecodeSlice(b []byte) (Slice, error) {
	r := reader{b: b}
	var s Slice
	s.FrameIdx = r.i64()
	s.Unk0p1 = r.u32()
	s.RectifyMeshID = r.u32()
	s.Pose.Orientation = r.quat()
	s.Pose.Position = r.vec3()
	r.u32()
	s.Timestamp05 = r.i64()
	s.SliceNum = r.u32()
	s.Bits = r.u32()
	s.Unk6p2 = r.u32()
	s.Unk6p3 = r.u32()
	s.BlitYPos = r.u32()
	s.CropBlocks = r.u32()
	s.Unk8p1 = r.u32()
	r.u32()
	s.Timestamp09 = r.i64()
	s.PipelineDelta = r.i64()
	s.Timestamp0B = r.i64()
	s.Timestamp0C = r.i64()
	s.Timestamp0D = r.i64()
	s.Quat1 = r.quat()
	s.Quat2 = r.quat()
	s.CSDSize = r.u32()
	s.VideoSize = r.u32()
	if r.err != nil {
		return Slice{}, r.err
	}
	return s, nil
}
