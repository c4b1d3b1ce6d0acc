package xrsp

import (
	"encoding/binary"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/questlink/xrsp/payload"
)

// Loop timing. The bulk endpoints are polled with short timeouts rather
// than blocking reads so the loops can service housekeeping.
const (
	readTimeout   = time.Millisecond
	writeTimeout  = time.Second
	readIdleSleep = 100 * time.Microsecond
	writeTick     = time.Millisecond

	// silentBusNS triggers the bye probe and transport reinit.
	silentBusNS = int64(time.Second)
	// frameGateNS delays video frames after pairing completes.
	frameGateNS = int64(5 * time.Second)
	// stagingCeiling bounds each CSD/IDR staging buffer.
	stagingCeiling = 0x1000000
)

const defaultClientID = 0x4A60DCCA

// TopicHandler consumes completed packets for one topic.
type TopicHandler interface {
	HandlePacket(h *Host, pkt *TopicPacket)
}

// TopicHandlerFunc adapts a function to the TopicHandler interface.
type TopicHandlerFunc func(h *Host, pkt *TopicPacket)

func (f TopicHandlerFunc) HandlePacket(h *Host, pkt *TopicPacket) { f(h, pkt) }

// HostConfig carries session parameters. The zero value is usable; missing
// fields are defaulted by NewHost.
type HostConfig struct {
	// NumSlices is how many horizontal slices each video frame is encoded
	// into, 1 to 5.
	NumSlices int
	// EncodingType selects the codec advertised to the device: 0 AVC,
	// 1 HEVC.
	EncodingType uint8
	// EncodeWidth and EncodeHeight are the full encoded frame dimensions.
	EncodeWidth  int
	EncodeHeight int
	// ClientID identifies this host to the runtime IPC services.
	ClientID uint32
	// MaxPayload bounds a single reassembled topic packet.
	MaxPayload int
	// SegmentLimit bounds one segment of a segmented payload.
	SegmentLimit int
	// ChunkMax overrides the outbound per-frame payload ceiling. Tests use
	// small values; the protocol maximum applies otherwise.
	ChunkMax int
	// Reopen reopens the transport after the device drops. Optional.
	Reopen func() (Transport, error)
	// Debug receives verbose per-packet logging when set.
	Debug *log.Logger
}

func (c *HostConfig) setDefaults() {
	if c.NumSlices <= 0 || c.NumSlices > 5 {
		c.NumSlices = 1
	}
	if c.EncodeWidth == 0 {
		c.EncodeWidth = 3680
	}
	if c.EncodeHeight == 0 {
		c.EncodeHeight = 1920
	}
	if c.ClientID == 0 {
		c.ClientID = defaultClientID
	}
	if c.SegmentLimit == 0 {
		c.SegmentLimit = defaultMaxPayload
	}
}

// Host owns one XRSP session: the transport, the read and write loops, the
// pairing state machine, clock sync, and the video staging buffers.
type Host struct {
	cfg HostConfig

	trMu    sync.Mutex
	tr      Transport
	trValid atomic.Bool

	// wLock serializes bulk writes and the frame sequence counter.
	wLock sync.Mutex
	seq   uint16

	start time.Time
	nowNS func() int64

	pairing  atomic.Int32
	pairedNS atomic.Int64

	lastReadNS   atomic.Int64
	lastReinitNS atomic.Int64

	clientID   uint32
	sessionIdx atomic.Uint32

	// runtimeConnected flips once the runtime service answers on the IPC
	// topic. Only the read loop touches it.
	runtimeConnected bool

	clock *clockSync

	pz       packetizer
	handlers [int(TopicMax) + 1]TopicHandler

	poseSeg *Segmented
	ipcSeg  *ipcSegmented

	stateMu sync.RWMutex
	state   DeviceState

	// video staging, one CSD/IDR pair per slice
	streamMu        sync.Mutex
	drained         *sync.Cond
	flushCh         chan struct{}
	csd             [][]byte
	idr             [][]byte
	stagedPose      payload.Pose
	stagedPoseNS    int64
	streamStartedNS int64
	needsFlush      bool
	frameIdx        int64
	frameSentNS     atomic.Int64
	readyToSend     atomic.Bool
	sentMesh        bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHost wraps an open transport. Call Start to launch the loops.
func NewHost(tr Transport, cfg HostConfig) *Host {
	cfg.setDefaults()
	h := &Host{
		cfg:      cfg,
		tr:       tr,
		start:    time.Now(),
		clientID: cfg.ClientID,
		clock:    newClockSync(),
		flushCh:  make(chan struct{}, 1),
		csd:      make([][]byte, cfg.NumSlices),
		idr:      make([][]byte, cfg.NumSlices),
		stopCh:   make(chan struct{}),
	}
	h.nowNS = func() int64 { return time.Since(h.start).Nanoseconds() }
	h.drained = sync.NewCond(&h.streamMu)
	h.pz.maxPayload = cfg.MaxPayload
	h.trValid.Store(tr != nil)
	h.sessionIdx.Store(3)
	h.state.Headset.FPS = 72

	h.poseSeg = NewSegmented(1, cfg.SegmentLimit, h.handlePoseSegments)
	h.ipcSeg = newIPCSegmented(cfg.SegmentLimit, h.handleIPC)

	h.RegisterHandler(TopicHostinfoAdv, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.handleHostinfo(pkt) }))
	h.RegisterHandler(TopicPose, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.poseSeg.Consume(pkt) }))
	h.RegisterHandler(TopicHands, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.handleHands(pkt) }))
	h.RegisterHandler(TopicSkeleton, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.handleSkeleton(pkt) }))
	h.RegisterHandler(TopicBody, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.handleBody(pkt) }))
	h.RegisterHandler(TopicLogging, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.handleLogging(pkt) }))
	h.RegisterHandler(TopicRuntimeIPC, TopicHandlerFunc(func(h *Host, pkt *TopicPacket) { h.ipcSeg.Consume(pkt) }))
	return h
}

// RegisterHandler installs the packet handler for a topic, replacing any
// default. Not safe to call once Start has run.
func (h *Host) RegisterHandler(topic Topic, handler TopicHandler) {
	if int(topic) < len(h.handlers) {
		h.handlers[topic] = handler
	}
}

// Start launches the read and write goroutines.
func (h *Host) Start() {
	h.wg.Add(2)
	go h.readLoop()
	go h.writeLoop()
}

// Stop terminates the loops and closes the transport.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.streamMu.Lock()
	h.needsFlush = false
	h.drained.Broadcast()
	h.streamMu.Unlock()
	h.wg.Wait()
	h.trMu.Lock()
	if h.tr != nil {
		h.tr.Close()
	}
	h.trMu.Unlock()
}

func (h *Host) stopped() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

func (h *Host) tsNS() int64 { return h.nowNS() }

func (h *Host) logf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func (h *Host) debugf(format string, args ...interface{}) {
	if h.cfg.Debug != nil {
		h.cfg.Debug.Printf(format, args...)
	}
}

// PairingState reports the handshake progress.
func (h *Host) PairingState() PairingState {
	return PairingState(h.pairing.Load())
}

func (h *Host) setPairingState(s PairingState) {
	old := PairingState(h.pairing.Swap(int32(s)))
	if old != s {
		h.logf("xrsp: pairing %v -> %v", old, s)
	}
}

// PairedNS is the session timestamp at which pairing completed, zero while
// unpaired.
func (h *Host) PairedNS() int64 { return h.pairedNS.Load() }

// ReadyToSendFrames reports whether the stream gate has opened; encoders
// should discard frames until it has.
func (h *Host) ReadyToSendFrames() bool { return h.readyToSend.Load() }

// Dropped counts inbound frames lost to resyncs and oversized headers.
func (h *Host) Dropped() uint64 { return h.pz.Dropped() }

// SendToTopic chunks data at the protocol ceiling and writes each chunk as
// a framed topic packet. All writes from all goroutines funnel through
// here.
func (h *Host) SendToTopic(topic Topic, data []byte) {
	if len(data) == 0 {
		return
	}
	h.wLock.Lock()
	defer h.wLock.Unlock()
	for _, chunk := range chunkPayload(data, h.cfg.ChunkMax) {
		buf := appendTopicFrame(nil, topic, h.seq, chunk)
		h.seq++
		h.writeUSB(buf)
	}
}

// SendCapnpWrapped prefixes data with the single-segment preamble the
// structured topics expect: the type index and the length in 8-byte words.
func (h *Host) SendCapnpWrapped(topic Topic, typeIdx uint32, data []byte) {
	var pre [8]byte
	binary.LittleEndian.PutUint32(pre[0:4], typeIdx)
	binary.LittleEndian.PutUint32(pre[4:8], uint32(len(data))>>3)
	h.SendToTopic(topic, pre[:])
	h.SendToTopic(topic, data)
}

// sendCapnpWrapped3 is the three-segment variant used by the mesh topic.
func (h *Host) sendCapnpWrapped3(topic Topic, typeIdx uint32, segs [3][]byte) {
	var pre [16]byte
	binary.LittleEndian.PutUint32(pre[0:4], typeIdx)
	for i, s := range segs {
		binary.LittleEndian.PutUint32(pre[4+i*4:], uint32(len(s))>>3)
	}
	h.SendToTopic(topic, pre[:])
	for _, s := range segs {
		h.SendToTopic(topic, s)
	}
}

// writeUSB pushes one framed transfer. Callers hold wLock.
func (h *Host) writeUSB(buf []byte) {
	if !h.trValid.Load() {
		return
	}
	h.trMu.Lock()
	tr := h.tr
	h.trMu.Unlock()
	if tr == nil {
		return
	}
	n, err := tr.BulkWrite(buf, writeTimeout)
	if err != nil || n == 0 {
		h.logf("xrsp: failed to send %#x bytes (sent %#x): %v", len(buf), n, err)
		if err == ErrNoDevice || err == ErrTimeout {
			h.trValid.Store(false)
			h.setPairingState(PairingWaitFirst)
		}
	}
}

// dispatch routes one reassembled packet. Stream traffic on an unpaired
// session means the device kept an old session alive, so poke it into
// dropping the session and reinitialize.
func (h *Host) dispatch(pkt *TopicPacket) {
	h.debugf("xrsp: recv %v seq=%d len=%d", pkt.Topic, pkt.SeqNum, len(pkt.Payload))
	if int(pkt.Topic) < len(h.handlers) {
		if hd := h.handlers[pkt.Topic]; hd != nil {
			hd.HandlePacket(h, pkt)
		}
	}

	switch pkt.Topic {
	case TopicPose, TopicSkeleton, TopicLogging:
		if h.PairingState() != Paired {
			h.triggerBye()
			h.reinitTransport()
		}
	}
}

// triggerBye sends the video probe that makes a half-connected device drop
// its stale session.
func (h *Host) triggerBye() {
	h.SendCapnpWrapped(TopicVideo, 0, videoProbePayload)
}

func (h *Host) readLoop() {
	defer h.wg.Done()
	buf := make([]byte, frameAlign)
	for !h.stopped() {
		now := h.tsNS()
		if now-h.lastReadNS.Load() > silentBusNS && h.PairingState() == PairingWaitFirst && !h.trValid.Load() {
			h.reinitTransport()
			h.lastReadNS.Store(now)
		}
		h.readOnce(buf)
		time.Sleep(readIdleSleep)
	}
}

// readOnce drains the bulk-in endpoint until it goes quiet.
func (h *Host) readOnce(buf []byte) {
	if !h.trValid.Load() {
		return
	}
	h.trMu.Lock()
	tr := h.tr
	h.trMu.Unlock()
	if tr == nil {
		return
	}
	for {
		n, err := tr.BulkRead(buf, readTimeout)
		if err != nil || n == 0 {
			if err == ErrNoDevice {
				h.reinitTransport()
			} else if err != nil && err != ErrTimeout {
				h.logf("xrsp: bulk read: %v", err)
			}
			return
		}
		h.lastReadNS.Store(h.tsNS())
		h.pz.feed(buf[:n], h.lastReadNS.Load(), h.dispatch)
	}
}

func (h *Host) writeLoop() {
	defer h.wg.Done()
	tick := time.NewTicker(writeTick)
	defer tick.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-h.flushCh:
		case <-tick.C:
		}

		h.flushFrames()

		now := h.tsNS()
		if h.PairingState() == Paired && now-h.PairedNS() > frameGateNS {
			h.readyToSend.Store(true)
		}
		if now-h.lastReadNS.Load() > silentBusNS && h.PairingState() == PairingWaitFirst && h.trValid.Load() {
			h.triggerBye()
			h.lastReadNS.Store(now)
		}
	}
}

// reinitTransport drops the current transport and asks the config hook for
// a fresh one, at most once per second.
func (h *Host) reinitTransport() {
	now := h.tsNS()
	if now-h.lastReinitNS.Load() < silentBusNS {
		return
	}
	h.lastReinitNS.Store(now)

	h.trValid.Store(false)
	h.setPairingState(PairingWaitFirst)
	h.resetSession()

	if h.cfg.Reopen == nil {
		return
	}
	h.trMu.Lock()
	if h.tr != nil {
		h.tr.Close()
		h.tr = nil
	}
	h.trMu.Unlock()

	tr, err := h.cfg.Reopen()
	if err != nil {
		h.logf("xrsp: transport reopen: %v", err)
		return
	}
	h.trMu.Lock()
	h.tr = tr
	h.trMu.Unlock()
	h.trValid.Store(true)
	h.logf("xrsp: transport reopened")
}

// resetSession clears per-session protocol state for a fresh handshake.
func (h *Host) resetSession() {
	h.resetEcho()
	h.pz.working = nil
	h.poseSeg.reset()
	h.ipcSeg.reset()
	h.runtimeConnected = false
	h.readyToSend.Store(false)
	h.pairedNS.Store(0)
	h.streamMu.Lock()
	for i := range h.csd {
		h.csd[i] = h.csd[i][:0]
		h.idr[i] = h.idr[i][:0]
	}
	h.needsFlush = false
	h.sentMesh = false
	h.drained.Broadcast()
	h.streamMu.Unlock()
}

func (h *Host) sessionFPS() uint8 {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return uint8(h.state.Headset.FPS)
}
