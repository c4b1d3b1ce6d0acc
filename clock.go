package xrsp

import (
	"sync/atomic"

	"github.com/questlink/xrsp/stats"
)

// pingIntervalNS rate-limits outgoing echo pings.
const pingIntervalNS = 16_000_000

// clockSync tracks the nanosecond offset between the local monotonic clock
// and the headset's, fed by the echo ping/pong exchange on hostinfo-adv.
// nsOffset is atomic: the read loop refreshes it while the write loop stamps
// outgoing slices with it. The remaining fields belong to the read loop.
type clockSync struct {
	echoIdx uint32

	nsOffset         atomic.Int64
	nsOffsetFromPeer int64
	haveOffset       bool

	reqSentNS int64
	lastXmt   int64

	window *stats.Window[int64]
}

func newClockSync() *clockSync {
	return &clockSync{echoIdx: 1, window: stats.NewWindow[int64](16)}
}

// sendPing emits an echo PING carrying our transmit time and current offset
// estimate, at most once per ping interval.
func (h *Host) sendPing() {
	now := h.tsNS()
	if h.clock.reqSentNS != 0 && now-h.clock.reqSentNS < pingIntervalNS {
		return
	}
	h.clock.reqSentNS = now
	h.SendToTopic(TopicHostinfoAdv, craftEcho(EchoPing, h.clock.echoIdx, 0, 0, now, h.clock.nsOffset.Load()))
	h.clock.echoIdx++
}

// handleEcho services both echo directions. A PONG closes our measurement
// and refreshes the offset estimate; a PING is answered immediately with the
// peer's transmit time echoed back in org.
func (h *Host) handleEcho(hp *HostinfoPacket) {
	p, err := parseEcho(hp.Payload)
	if err != nil {
		h.logf("xrsp/echo: %v", err)
		return
	}

	if hp.Result&1 == uint16(EchoPong) {
		// t1 our send, t2 peer recv, t3 peer send, t4 our recv
		calc := ((p.Recv - h.clock.reqSentNS) + (p.Xmt - hp.RecvNS)) >> 1
		h.clock.window.Sample(calc)
		if !h.clock.haveOffset {
			h.clock.nsOffset.Store(calc)
			h.clock.haveOffset = true
		} else {
			h.clock.nsOffset.Store(h.clock.window.Mean())
		}

		if h.PairingState() == Paired {
			h.sendPing()
		}
		return
	}

	// PING from the device
	h.clock.lastXmt = p.Xmt
	if p.Offset != 0 {
		h.clock.nsOffsetFromPeer = p.Offset
	}
	pong := craftEcho(EchoPong, hp.EchoID, h.clock.lastXmt, hp.RecvNS, h.tsNS(), h.clock.nsOffset.Load())
	h.SendToTopic(TopicHostinfoAdv, pong)
}

// resetEcho restarts the measurement for a fresh session. The id sequence
// starts over at 1.
func (h *Host) resetEcho() {
	h.clock.echoIdx = 1
	h.clock.nsOffset.Store(0)
	h.clock.haveOffset = false
	h.clock.reqSentNS = 0
	h.clock.window.Reset()
}

// TargetTimeNS converts a local monotonic timestamp into the headset's
// clock domain.
func (h *Host) TargetTimeNS(ts int64) int64 {
	return ts + h.clock.nsOffset.Load()
}

// FromTargetTimeNS converts a headset timestamp into the local domain.
func (h *Host) FromTargetTimeNS(ts int64) int64 {
	return ts - h.clock.nsOffset.Load()
}

// TargetNowNS is the current time on the headset's clock.
func (h *Host) TargetNowNS() int64 {
	return h.TargetTimeNS(h.tsNS())
}
