package xrsp

import "github.com/questlink/xrsp/payload"

// ControllerState is the latest decoded sample for one touch controller.
type ControllerState struct {
	Pose        payload.Pose
	LinVel      payload.Vec3
	LinAcc      payload.Vec3
	AngVel      payload.Vec3
	AngAcc      payload.Vec3
	PoseNS      int64
	Features    uint32
	Battery     uint8
	Buttons     uint32
	Capacitance uint32
	StickX      float32
	StickY      float32
	GripZ       float32
	TriggerZ    float32
	StylusPress float32
}

// HeadsetState is the decoded headset tracking and description.
type HeadsetState struct {
	Pose       payload.Pose
	LinVel     payload.Vec3
	LinAcc     payload.Vec3
	AngVel     payload.Vec3
	AngAcc     payload.Vec3
	PoseNS     int64
	IPD        float32
	DeviceType uint32
	FPS        int
	RefreshHz  uint32
	EyeWidth   int
	EyeHeight  int
	Lenses     [2]payload.Lens
}

// HandsState carries the bind skeleton and the latest world-space bone
// poses for both hands, left in bones 0-23, right in 24-47.
type HandsState struct {
	Poses      [2]payload.Pose
	Bones      [2 * payload.HandBones]payload.OvrPose
	BindBones  [2 * payload.HandBones]payload.OvrPose
	BoneParent [2 * payload.HandBones]int16
	Confidence [2]float32
	Skeletons  int
}

// DeviceState is everything the host has decoded from the device so far.
type DeviceState struct {
	Headset     HeadsetState
	Controllers [2]ControllerState
	Hands       HandsState
}

// DeviceState returns a snapshot of the decoded device state.
func (h *Host) DeviceState() DeviceState {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

// handlePoseSegments decodes the reassembled pose payload and publishes it.
func (h *Host) handlePoseSegments(typeIdx uint32, segs [][]byte, recvNS int64) {
	p, err := payload.DecodeTrackedPose(segs[0])
	if err != nil {
		h.debugf("xrsp/pose: %v", err)
		return
	}

	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	for i := range p.Controllers {
		c := &p.Controllers[i]
		idx := 0
		if c.IsRight() {
			idx = 1
		}
		cs := &h.state.Controllers[idx]
		cs.Pose = c.Body.Pose
		cs.LinVel = c.Body.LinVel
		cs.LinAcc = c.Body.LinAcc
		cs.AngVel = c.Body.AngVel
		cs.AngAcc = c.Body.AngAcc
		cs.PoseNS = h.FromTargetTimeNS(c.Body.Timestamp)
		cs.Features = c.Features & 0xFF
		cs.Battery = c.Battery()
		cs.Buttons = c.Buttons
		cs.Capacitance = c.Capacitance
		cs.StickX = c.StickX
		cs.StickY = c.StickY
		cs.GripZ = c.GripZ
		cs.TriggerZ = c.TriggerZ
		cs.StylusPress = c.StylusPress
	}

	hs := &h.state.Headset
	hs.Pose = p.Headset.Pose
	hs.LinVel = p.Headset.LinVel
	hs.LinAcc = p.Headset.LinAcc
	hs.AngVel = p.Headset.AngVel
	hs.AngAcc = p.Headset.AngAcc
	hs.PoseNS = h.FromTargetTimeNS(p.Headset.Timestamp)
	hs.IPD = p.IPD
}

// handleInvite refreshes the device description every time the device
// re-introduces itself.
func (h *Host) handleInvite(hp *HostinfoPacket) {
	info, err := payload.DecodeHostInfo(hp.Payload)
	if err != nil {
		h.logf("xrsp/invite: %v", err)
		return
	}

	fps := 72
	switch info.DeviceType {
	case payload.DeviceTypeQuest2, payload.DeviceTypeQuestPro:
		fps = 90
	}

	// Half-resolution per eye keeps the encode within USB bandwidth.
	const scale = 0.5

	h.stateMu.Lock()
	hs := &h.state.Headset
	hs.DeviceType = info.DeviceType
	hs.FPS = fps
	hs.RefreshHz = info.RefreshRateHz
	hs.EyeWidth = int(float32(info.ResolutionWidth) * scale)
	hs.EyeHeight = int(float32(info.ResolutionHeight) * scale)
	hs.Lenses[0] = info.LeftLens
	hs.Lenses[1] = info.RightLens
	h.stateMu.Unlock()

	h.logf("xrsp: device type %d, %dx%d per eye, %d fps", info.DeviceType, hs.EyeWidth, hs.EyeHeight, fps)
}
