package xrsp

import "github.com/questlink/xrsp/payload"

func quatMul(a, b payload.Quat) payload.Quat {
	return payload.Quat{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

func quatRotate(q payload.Quat, v payload.Vec3) payload.Vec3 {
	p := payload.Quat{X: v.X, Y: v.Y, Z: v.Z}
	conj := payload.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
	r := quatMul(quatMul(q, p), conj)
	return payload.Vec3{X: r.X, Y: r.Y, Z: r.Z}
}

// poseAdd rebases p's position into rhs's frame; orientation accumulation
// is handled separately by the bone walk.
func poseAdd(p, rhs payload.OvrPose) payload.OvrPose {
	pos := quatRotate(rhs.Orient, payload.Vec3{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z})
	p.Pos = payload.Vec3{X: pos.X + rhs.Pos.X, Y: pos.Y + rhs.Pos.Y, Z: pos.Z + rhs.Pos.Z}
	return p
}

// handleSkeleton captures the bind skeletons. The device sends the left
// skeleton first, then the right; later repeats are ignored.
func (h *Host) handleSkeleton(pkt *TopicPacket) {
	s, err := payload.DecodeSkeletonBin(pkt.Payload)
	if err != nil {
		h.debugf("xrsp/skeleton: %v", err)
		return
	}
	for i := 0; i < payload.HandBones; i++ {
		if int(s.BoneParentIdx[i]) >= payload.HandBones {
			h.debugf("xrsp/skeleton: parent index %d out of range", s.BoneParentIdx[i])
			return
		}
	}

	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	hands := &h.state.Hands
	if hands.Skeletons >= 2 {
		return
	}
	shift := hands.Skeletons * payload.HandBones
	for i := 0; i < payload.HandBones; i++ {
		idx := shift + i
		hands.BindBones[idx] = s.Bones[i]
		hands.BoneParent[idx] = s.BoneParentIdx[i]
		if s.BoneParentIdx[i] > 0 {
			hands.BoneParent[idx] += int16(shift)
		}
	}
	for i := 0; i < payload.HandBones; i++ {
		idx := shift + i
		world := hands.BindBones[idx]
		parent := hands.BoneParent[idx]
		for depth := 0; parent > 0 && depth < payload.HandBones; depth++ {
			world = poseAdd(world, hands.BindBones[parent])
			parent = hands.BoneParent[parent]
		}
		hands.Bones[idx] = world
	}
	hands.Skeletons++
}

// handleHands applies a live tracking sample on top of the bind skeleton:
// root poses directly, bone orientations by walking each parent chain and
// composing the per-bone rotations.
func (h *Host) handleHands(pkt *TopicPacket) {
	if len(pkt.Payload) < payload.HandsHeaderSize {
		return
	}
	body := pkt.Payload[payload.HandsHeaderSize:]
	left, err := payload.DecodeHandsBin(body)
	if err != nil {
		h.debugf("xrsp/hands: %v", err)
		return
	}
	right, err := payload.DecodeHandsBin(body[payload.HandsBinSize:])
	if err != nil {
		h.debugf("xrsp/hands: %v", err)
		return
	}

	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	hands := &h.state.Hands
	hands.Poses[0] = payload.Pose{Orientation: left.RootOrient, Position: left.RootPos}
	hands.Poses[1] = payload.Pose{Orientation: right.RootOrient, Position: right.RootPos}
	hands.Confidence[0] = left.HandConfidence
	hands.Confidence[1] = right.HandConfidence

	bins := [2]*payload.HandsBin{&left, &right}
	for hand := 0; hand < 2; hand++ {
		bin := bins[hand]
		shift := hand * payload.HandBones
		for i := 0; i < payload.HandBones; i++ {
			idx := shift + i
			world := hands.BindBones[idx]
			accum := payload.Quat{W: 1}
			parent := hands.BoneParent[idx]
			for depth := 0; parent > 0 && depth < payload.HandBones; depth++ {
				step := hands.BindBones[parent]
				step.Orient = bin.BoneRots[int(parent)-shift]
				accum = quatMul(bin.BoneRots[int(parent)-shift], accum)
				world = poseAdd(world, step)
				parent = hands.BoneParent[parent]
			}
			accum = quatMul(bin.BoneRots[i], accum)
			world.Orient = accum
			hands.Bones[idx] = world
		}
	}
}

// handleBody is wired for dispatch completeness; body tracking payloads are
// not decoded yet.
func (h *Host) handleBody(pkt *TopicPacket) {
	h.debugf("xrsp/body: %d bytes", len(pkt.Payload))
}
