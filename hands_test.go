package xrsp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/questlink/xrsp/payload"
)

func skeletonPkt(parent func(i int) int16) *TopicPacket {
	var s payload.SkeletonBin
	for i := 0; i < payload.HandBones; i++ {
		s.Bones[i] = payload.OvrPose{Orient: payload.Quat{W: 1}, Pos: payload.Vec3{X: float32(i)}}
		s.BoneParentIdx[i] = parent(i)
	}
	return &TopicPacket{Topic: TopicSkeleton, Payload: s.Encode()}
}

func TestSkeletonRejectsBadParents(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.handleSkeleton(skeletonPkt(func(int) int16 { return 30000 }))
	assert.Zero(t, h.DeviceState().Hands.Skeletons)
}

func TestSkeletonSelfParentTerminates(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.handleSkeleton(skeletonPkt(func(i int) int16 { return int16(i) }))
	assert.Equal(t, 1, h.DeviceState().Hands.Skeletons)
}

func TestSkeletonChainComposition(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.handleSkeleton(skeletonPkt(func(i int) int16 { return int16(i) - 1 }))

	st := h.DeviceState()
	assert.Equal(t, 1, st.Hands.Skeletons)
	// identity orientations, so positions accumulate down to the root
	assert.Equal(t, float32(6), st.Hands.Bones[3].Pos.X)
}

func TestHandsSelfParentSkeletonTerminates(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.handleSkeleton(skeletonPkt(func(i int) int16 { return int16(i) }))
	h.handleSkeleton(skeletonPkt(func(i int) int16 { return int16(i) }))

	var left, right payload.HandsBin
	left.HandConfidence = 0.5
	right.HandConfidence = 0.75
	for i := range left.BoneRots {
		left.BoneRots[i] = payload.Quat{W: 1}
		right.BoneRots[i] = payload.Quat{W: 1}
	}
	pay := make([]byte, payload.HandsHeaderSize)
	pay = append(pay, left.Encode()...)
	pay = append(pay, right.Encode()...)
	h.handleHands(&TopicPacket{Topic: TopicHands, Payload: pay})

	st := h.DeviceState()
	assert.Equal(t, float32(0.5), st.Hands.Confidence[0])
	assert.Equal(t, float32(0.75), st.Hands.Confidence[1])
}
