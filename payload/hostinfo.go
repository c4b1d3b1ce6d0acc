package payload

// Device types reported in the headset description.
const (
	DeviceTypeQuest    uint32 = 1
	DeviceTypeQuest2   uint32 = 2
	DeviceTypeQuestPro uint32 = 3
	DeviceTypeQuest3   uint32 = 4
)

// Lens is the per-eye field of view in degrees, all angles positive.
type Lens struct {
	AngleUp    float32
	AngleDown  float32
	AngleLeft  float32
	AngleRight float32
}

// HostInfo is the headset description delivered with an INVITE: panel
// geometry and per-eye optics.
type HostInfo struct {
	DeviceType       uint32
	RefreshRateHz    uint32
	ResolutionWidth  uint32
	ResolutionHeight uint32
	LeftLens         Lens
	RightLens        Lens
}

func appendLens(b []byte, l Lens) []byte {
	b = appendF32(b, l.AngleUp)
	b = appendF32(b, l.AngleDown)
	b = appendF32(b, l.AngleLeft)
	return appendF32(b, l.AngleRight)
}

func (r *reader) lens() Lens {
	return Lens{r.f32(), r.f32(), r.f32(), r.f32()}
}

func (h *HostInfo) Encode() []byte {
	b := appendU32(nil, h.DeviceType)
	b = appendU32(b, h.RefreshRateHz)
	b = appendU32(b, h.ResolutionWidth)
	b = appendU32(b, h.ResolutionHeight)
	b = appendLens(b, h.LeftLens)
	b = appendLens(b, h.RightLens)
	return pad8(b)
}

func DecodeHostInfo(b []byte) (HostInfo, error) {
	r := reader{b: b}
	var h HostInfo
	h.DeviceType = r.u32()
	h.RefreshRateHz = r.u32()
	h.ResolutionWidth = r.u32()
	h.ResolutionHeight = r.u32()
	h.LeftLens = r.lens()
	h.RightLens = r.lens()
	if r.err != nil {
		return HostInfo{}, r.err
	}
	return h, nil
}
