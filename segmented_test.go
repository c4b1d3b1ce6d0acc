package xrsp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaBytes(typeIdx uint32, segLens ...int) []byte {
	b := binary.LittleEndian.AppendUint32(nil, typeIdx)
	for _, n := range segLens {
		b = binary.LittleEndian.AppendUint32(b, uint32(n/8))
	}
	return b
}

func seqBytes(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

type segResult struct {
	typeIdx uint32
	segs    [][]byte
	recvNS  int64
}

func TestSegmentedTwoSegments(t *testing.T) {
	var got []segResult
	s := NewSegmented(2, 0, func(typeIdx uint32, segs [][]byte, recvNS int64) {
		cp := make([][]byte, len(segs))
		for i := range segs {
			cp[i] = append([]byte(nil), segs[i]...)
		}
		got = append(got, segResult{typeIdx, cp, recvNS})
	})

	seg0 := seqBytes(16, 0x10)
	seg1 := seqBytes(32, 0x40)

	s.Consume(&TopicPacket{Payload: metaBytes(7, 16, 32), RecvNS: 1})
	s.Consume(&TopicPacket{Payload: seg0[:10], RecvNS: 2})
	s.Consume(&TopicPacket{Payload: append(append([]byte(nil), seg0[10:]...), seg1[:24]...), RecvNS: 3})
	require.Empty(t, got)
	s.Consume(&TopicPacket{Payload: seg1[24:], RecvNS: 4})

	require.Len(t, got, 1)
	assert.EqualValues(t, 7, got[0].typeIdx)
	assert.Equal(t, seg0, got[0].segs[0])
	assert.Equal(t, seg1, got[0].segs[1])
	assert.EqualValues(t, 4, got[0].recvNS)
}

func TestSegmentedTailAndNextMeta(t *testing.T) {
	var count int
	s := NewSegmented(1, 0, func(uint32, [][]byte, int64) { count++ })

	body := seqBytes(24, 1)
	s.Consume(&TopicPacket{Payload: metaBytes(0, 24)})
	s.Consume(&TopicPacket{Payload: body[:16]})

	// one packet carries the tail of the first payload, the next META and
	// the whole second payload
	joined := append(append([]byte(nil), body[16:]...), metaBytes(0, 8)...)
	joined = append(joined, seqBytes(8, 9)...)
	s.Consume(&TopicPacket{Payload: joined})

	assert.Equal(t, 2, count)
}

func TestSegmentedOversizedDrops(t *testing.T) {
	var count int
	s := NewSegmented(1, 16, func(uint32, [][]byte, int64) { count++ })

	s.Consume(&TopicPacket{Payload: metaBytes(0, 1024)})
	assert.Zero(t, count)
	assert.EqualValues(t, 1, s.Dropped())

	// resynchronizes on the next packet's META
	s.Consume(&TopicPacket{Payload: append(metaBytes(0, 8), seqBytes(8, 0)...)})
	assert.Equal(t, 1, count)
}

func TestSegmentedMetaSizedPacketForcesMeta(t *testing.T) {
	var got []segResult
	s := NewSegmented(1, 0, func(typeIdx uint32, segs [][]byte, recvNS int64) {
		cp := [][]byte{append([]byte(nil), segs[0]...)}
		got = append(got, segResult{typeIdx, cp, recvNS})
	})

	// a payload stranded mid-read by packet loss
	s.Consume(&TopicPacket{Payload: metaBytes(1, 24)})
	s.Consume(&TopicPacket{Payload: seqBytes(16, 0xA0)})

	// the next META-sized packet must start a fresh payload, not feed the
	// stale one
	body := seqBytes(16, 1)
	s.Consume(&TopicPacket{Payload: metaBytes(2, 16)})
	s.Consume(&TopicPacket{Payload: body})

	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].typeIdx)
	assert.Equal(t, body, got[0].segs[0])
}

func TestSegmentedReset(t *testing.T) {
	var count int
	s := NewSegmented(1, 0, func(uint32, [][]byte, int64) { count++ })

	s.Consume(&TopicPacket{Payload: metaBytes(0, 24)})
	s.Consume(&TopicPacket{Payload: seqBytes(16, 0)})
	s.reset()

	s.Consume(&TopicPacket{Payload: append(metaBytes(0, 8), seqBytes(8, 0)...)})
	assert.Equal(t, 1, count)
}

func TestSegmentedZeroLength(t *testing.T) {
	var got int
	s := NewSegmented(1, 0, func(typeIdx uint32, segs [][]byte, _ int64) {
		assert.Empty(t, segs[0])
		got++
	})
	s.Consume(&TopicPacket{Payload: metaBytes(3, 0)})
	assert.Equal(t, 1, got)
}
