package payload

// Controller feature bits. The low byte carries capability flags, bits 8-14
// the battery percentage, the rest a secondary feature field.
const (
	FeatureLeft  uint32 = 1 << 0
	FeatureRight uint32 = 1 << 1
)

// BodySample is one tracked rigid body: pose plus derivatives, stamped in
// the device clock domain.
type BodySample struct {
	Pose      Pose
	LinVel    Vec3
	LinAcc    Vec3
	AngVel    Vec3
	AngAcc    Vec3
	Timestamp int64
}

// Controller is one tracked touch controller with its input state.
type Controller struct {
	Body        BodySample
	Features    uint32
	Buttons     uint32
	Capacitance uint32
	TriggerZ    float32
	GripZ       float32
	StickX      float32
	StickY      float32
	StylusPress float32
}

// IsRight reports whether the sample belongs to the right hand.
func (c *Controller) IsRight() bool { return c.Features&FeatureRight != 0 }

// Battery is the controller charge percentage.
func (c *Controller) Battery() uint8 { return uint8((c.Features >> 8) & 0x7F) }

// TrackedPose is the per-frame tracking message on the pose topic.
type TrackedPose struct {
	Headset     BodySample
	IPD         float32
	Controllers []Controller
}

func appendBody(b []byte, s BodySample) []byte {
	b = appendQuat(b, s.Pose.Orientation)
	b = appendVec3(b, s.Pose.Position)
	b = appendVec3(b, s.LinVel)
	b = appendVec3(b, s.LinAcc)
	b = appendVec3(b, s.AngVel)
	b = appendVec3(b, s.AngAcc)
	b = appendU32(b, 0)
	return appendI64(b, s.Timestamp)
}

func (r *reader) body() BodySample {
	var s BodySample
	s.Pose.Orientation = r.quat()
	s.Pose.Position = r.vec3()
	s.LinVel = r.vec3()
	s.LinAcc = r.vec3()
	s.AngVel = r.vec3()
	s.AngAcc = r.vec3()
	r.u32()
	s.Timestamp = r.i64()
	return s
}

func (p *TrackedPose) Encode() []byte {
	b := appendF32(nil, p.IPD)
	b = appendU32(b, uint32(len(p.Controllers)))
	b = appendBody(b, p.Headset)
	for i := range p.Controllers {
		c := &p.Controllers[i]
		b = appendBody(b, c.Body)
		b = appendU32(b, c.Features)
		b = appendU32(b, c.Buttons)
		b = appendU32(b, c.Capacitance)
		b = appendF32(b, c.TriggerZ)
		b = appendF32(b, c.GripZ)
		b = appendF32(b, c.StickX)
		b = appendF32(b, c.StickY)
		b = appendF32(b, c.StylusPress)
	}
	return pad8(b)
}

func DecodeTrackedPose(b []byte) (TrackedPose, error) {
	r := reader{b: b}
	var p TrackedPose
	p.IPD = r.f32()
	n := r.u32()
	p.Headset = r.body()
	if n > 4 {
		return TrackedPose{}, ErrShort
	}
	for i := uint32(0); i < n; i++ {
		var c Controller
		c.Body = r.body()
		c.Features = r.u32()
		c.Buttons = r.u32()
		c.Capacitance = r.u32()
		c.TriggerZ = r.f32()
		c.GripZ = r.f32()
		c.StickX = r.f32()
		c.StickY = r.f32()
		c.StylusPress = r.f32()
		p.Controllers = append(p.Controllers, c)
	}
	if r.err != nil {
		return TrackedPose{}, r.err
	}
	return p, nil
}
