package xrsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoWrites(t *testing.T, tr *recordTransport) []HostinfoPacket {
	t.Helper()
	var out []HostinfoPacket
	for _, p := range tr.packets(t) {
		if p.Topic != TopicHostinfoAdv {
			continue
		}
		hp, err := parseHostinfo(p)
		require.NoError(t, err)
		if hp.MessageType == BuiltinEcho {
			out = append(out, hp)
		}
	}
	return out
}

func TestSendPingRateLimit(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	now := int64(1000)
	h.nowNS = func() int64 { return now }

	h.sendPing()
	h.sendPing()
	require.Len(t, echoWrites(t, tr), 1)

	now += pingIntervalNS
	h.sendPing()
	assert.Len(t, echoWrites(t, tr), 2)
}

func TestSendPingCarriesXmt(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	now := int64(5555)
	h.nowNS = func() int64 { return now }

	h.sendPing()
	pings := echoWrites(t, tr)
	require.Len(t, pings, 1)
	assert.Equal(t, EchoPing, pings[0].Result&1)

	p, err := parseEcho(pings[0].Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 5555, p.Xmt)
	assert.EqualValues(t, 5555, h.clock.reqSentNS)
	assert.EqualValues(t, 1, pings[0].EchoID)
}

func TestHandleEchoPong(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.clock.reqSentNS = 100

	pong := &HostinfoPacket{
		MessageType: BuiltinEcho,
		Result:      EchoPong,
		RecvNS:      200,
		Payload:     craftEcho(EchoPong, 0, 0, 1100, 1150, 0)[hostinfoHeaderSize:],
	}
	h.handleEcho(pong)

	// ((1100-100) + (1150-200)) >> 1
	assert.EqualValues(t, 975, h.clock.nsOffset.Load())
	assert.True(t, h.clock.haveOffset)
	assert.EqualValues(t, 975, h.TargetTimeNS(0))
	assert.EqualValues(t, -975, h.FromTargetTimeNS(0))
}

func TestHandleEchoPongSmoothing(t *testing.T) {
	h, _ := newTestHost(HostConfig{})

	feed := func(reqSent, recvNS, peerRecv, peerXmt int64) {
		h.clock.reqSentNS = reqSent
		h.handleEcho(&HostinfoPacket{
			MessageType: BuiltinEcho,
			Result:      EchoPong,
			RecvNS:      recvNS,
			Payload:     craftEcho(EchoPong, 0, 0, peerRecv, peerXmt, 0)[hostinfoHeaderSize:],
		})
	}

	feed(100, 200, 1100, 1150) // 975
	feed(100, 200, 1150, 1200) // 1025, mean 1000
	assert.EqualValues(t, 1000, h.clock.nsOffset.Load())
}

func TestClockOffsetConcurrentReads(t *testing.T) {
	h, _ := newTestHost(HostConfig{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			h.clock.reqSentNS = 100
			h.handleEcho(&HostinfoPacket{
				MessageType: BuiltinEcho,
				Result:      EchoPong,
				RecvNS:      200,
				Payload:     craftEcho(EchoPong, 0, 0, 1100, 1150, 0)[hostinfoHeaderSize:],
			})
		}
	}()
	for i := 0; i < 1000; i++ {
		_ = h.TargetNowNS()
	}
	<-done

	assert.EqualValues(t, 975, h.clock.nsOffset.Load())
}

func TestHandleEchoPingAnswersPong(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	now := int64(400)
	h.nowNS = func() int64 { return now }
	h.clock.nsOffset.Store(77)

	ping := &HostinfoPacket{
		MessageType: BuiltinEcho,
		Result:      EchoPing,
		EchoID:      7,
		RecvNS:      300,
		Payload:     craftEcho(EchoPing, 0, 0, 0, 5000, 0)[hostinfoHeaderSize:],
	}
	h.handleEcho(ping)

	pongs := echoWrites(t, tr)
	require.Len(t, pongs, 1)
	assert.Equal(t, EchoPong, pongs[0].Result&1)
	assert.EqualValues(t, 7, pongs[0].EchoID)

	p, err := parseEcho(pongs[0].Payload)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, p.Org)
	assert.EqualValues(t, 300, p.Recv)
	assert.EqualValues(t, 400, p.Xmt)
	assert.EqualValues(t, 77, p.Offset)
}

func TestPairedPongSchedulesNextPing(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	now := int64(1000)
	h.nowNS = func() int64 { return now }
	h.pairing.Store(int32(Paired))
	h.clock.reqSentNS = 100

	now = 100 + pingIntervalNS
	h.handleEcho(&HostinfoPacket{
		MessageType: BuiltinEcho,
		Result:      EchoPong,
		RecvNS:      now,
		Payload:     craftEcho(EchoPong, 0, 0, 1100, 1150, 0)[hostinfoHeaderSize:],
	})

	// the pong immediately triggers the next ping
	assert.Len(t, echoWrites(t, tr), 1)
	assert.EqualValues(t, now, h.clock.reqSentNS)
}

func TestResetEcho(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.clock.nsOffset.Store(42)
	h.clock.haveOffset = true
	h.clock.echoIdx = 9
	h.clock.reqSentNS = 1

	h.resetEcho()
	assert.Zero(t, h.clock.nsOffset.Load())
	assert.False(t, h.clock.haveOffset)
	assert.EqualValues(t, 1, h.clock.echoIdx)
	assert.Zero(t, h.clock.window.Count())
}
