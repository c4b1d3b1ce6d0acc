package xrsp

import "github.com/questlink/xrsp/payload"

// Timestamp deltas applied to slice descriptors, measured from captures of
// the stock streamer. The device uses these to schedule decode and timewarp.
const (
	sliceDeadlineDelta  = 29502900
	sliceTimestampDelta = 28713475
	sliceDecodeDelta    = 23714318
	sliceDisplayDelta   = 9415134
)

// StartEncode stakes out the staging slot for a new slice. It blocks while
// a previous frame is still waiting for the write loop. Slice 0's pose and
// target time stand in for the whole frame.
func (h *Host) StartEncode(targetNS int64, sliceIdx int, pose payload.Pose) {
	if sliceIdx < 0 || sliceIdx >= h.cfg.NumSlices {
		return
	}
	h.streamMu.Lock()
	for h.needsFlush && !h.stopped() {
		h.drained.Wait()
	}
	if sliceIdx == 0 {
		h.stagedPose = pose
		h.stagedPoseNS = targetNS
		h.streamStartedNS = targetNS
	}
	h.streamMu.Unlock()
}

// AppendCSD stages codec setup data (SPS/PPS) for one slice.
func (h *Host) AppendCSD(sliceIdx int, data []byte) {
	h.appendStream(h.csd, sliceIdx, data)
}

// AppendIDR stages encoded frame data for one slice.
func (h *Host) AppendIDR(sliceIdx int, data []byte) {
	h.appendStream(h.idr, sliceIdx, data)
}

func (h *Host) appendStream(dst [][]byte, sliceIdx int, data []byte) {
	if sliceIdx < 0 || sliceIdx >= h.cfg.NumSlices {
		return
	}
	h.streamMu.Lock()
	for h.needsFlush && !h.stopped() {
		h.drained.Wait()
	}
	if len(dst[sliceIdx])+len(data) < stagingCeiling {
		dst[sliceIdx] = append(dst[sliceIdx], data...)
	}
	h.streamMu.Unlock()
}

// FlushStream marks the staged frame complete and wakes the write loop.
func (h *Host) FlushStream() {
	h.streamMu.Lock()
	h.needsFlush = true
	h.streamMu.Unlock()
	select {
	case h.flushCh <- struct{}{}:
	default:
	}
}

// flushFrames ships the staged frame, one send per slice, then releases the
// staging buffers back to the encoder side.
func (h *Host) flushFrames() {
	h.streamMu.Lock()
	defer h.streamMu.Unlock()
	if !h.needsFlush {
		return
	}

	for slice := 0; slice < h.cfg.NumSlices; slice++ {
		if len(h.csd[slice]) > 0 || len(h.idr[slice]) > 0 {
			h.sendVideo(slice, h.frameIdx, h.csd[slice], h.idr[slice])
		}
		if slice == 0 {
			h.frameSentNS.Store(h.tsNS())
		}
		h.csd[slice] = h.csd[slice][:0]
		h.idr[slice] = h.idr[slice][:0]
	}
	h.frameIdx++
	h.needsFlush = false
	h.drained.Broadcast()
}

// sendVideo emits one slice: descriptor, then raw CSD, then raw video
// bytes, all on the slice's topic. Callers hold streamMu.
func (h *Host) sendVideo(sliceIdx int, frameIdx int64, csd, video []byte) {
	if !h.sentMesh {
		h.sendMesh()
	}

	var bits uint32
	if len(csd) > 0 {
		bits |= payload.SliceHasCSD
	}
	if sliceIdx == h.cfg.NumSlices-1 {
		bits |= payload.SliceLast
	}

	targetNow := h.TargetNowNS()
	desc := payload.Slice{
		FrameIdx:      frameIdx,
		RectifyMeshID: payload.MeshFoveated,
		Pose:          h.stagedPose,
		Timestamp05:   h.TargetTimeNS(h.stagedPoseNS) - sliceDeadlineDelta,
		SliceNum:      uint32(sliceIdx),
		Bits:          bits,
		BlitYPos:      uint32((h.cfg.EncodeHeight / h.cfg.NumSlices) * sliceIdx),
		CropBlocks:    uint32((h.cfg.EncodeHeight / 16) / h.cfg.NumSlices),
		Timestamp09:   targetNow - sliceDeadlineDelta,
		PipelineDelta: sliceDeadlineDelta,
		Timestamp0B:   targetNow + sliceTimestampDelta,
		Timestamp0C:   targetNow + sliceDecodeDelta,
		Timestamp0D:   targetNow + sliceDisplayDelta,
		CSDSize:       uint32(len(csd)),
		VideoSize:     uint32(len(video)),
	}

	topic := TopicSlice0 + Topic(sliceIdx)
	h.SendCapnpWrapped(topic, 0, desc.Encode())
	if len(csd) > 0 {
		h.SendToTopic(topic, csd)
	}
	if len(video) > 0 {
		h.SendToTopic(topic, video)
	}
}

// sendMesh announces the rectification geometry once per session, before
// the first slice.
func (h *Host) sendMesh() {
	mesh := payload.UnitQuadMesh(
		uint32(h.cfg.EncodeWidth), uint32(h.cfg.EncodeHeight),
		uint32(h.cfg.EncodeWidth), uint32(h.cfg.EncodeHeight))
	segs := mesh.EncodeSegments()
	h.sendCapnpWrapped3(TopicMesh, 2, segs)
	h.sentMesh = true
}
