package xrsp

import "encoding/binary"

const hostinfoHeaderSize = 8

// HostinfoPacket is a decoded builtin message from the hostinfo-adv topic.
// The first u32 packs {message_type:4, result:10, stream_size_words:18};
// the second u32 carries the echo id on ECHO messages. Echo payloads start
// at +8, everything else is capnp framed and starts at +0x10.
type HostinfoPacket struct {
	MessageType Builtin
	Result      uint16
	StreamSize  uint32
	EchoID      uint32
	Payload     []byte
	RecvNS      int64
}

func parseHostinfo(pkt *TopicPacket) (HostinfoPacket, error) {
	if len(pkt.Payload) < hostinfoHeaderSize {
		return HostinfoPacket{}, ErrProtoShortHostinfo
	}
	h0 := binary.LittleEndian.Uint32(pkt.Payload[0:4])
	hp := HostinfoPacket{
		MessageType: Builtin(h0 & 0xF),
		Result:      uint16((h0 >> 4) & 0x3FF),
		StreamSize:  (h0 >> 14) << 2,
		EchoID:      binary.LittleEndian.Uint32(pkt.Payload[4:8]),
		RecvNS:      pkt.RecvNS,
	}
	off := 0x10
	if hp.MessageType == BuiltinEcho {
		off = 8
	}
	if len(pkt.Payload) < off {
		return HostinfoPacket{}, ErrProtoShortHostinfo
	}
	hp.Payload = pkt.Payload[off:]
	return hp, nil
}

func craftHostinfo(mt Builtin, result uint16, streamSize, unk4 uint32, payload []byte) []byte {
	out := make([]byte, hostinfoHeaderSize+len(payload))
	h0 := uint32(mt&0xF) | uint32(result&0x3FF)<<4 | (streamSize >> 2 << 14)
	binary.LittleEndian.PutUint32(out[0:4], h0)
	binary.LittleEndian.PutUint32(out[4:8], unk4)
	copy(out[hostinfoHeaderSize:], payload)
	return out
}

// craftBasic advertises the raw payload size plus the 8-byte header.
func craftBasic(mt Builtin, result uint16, unk4 uint32, payload []byte) []byte {
	return craftHostinfo(mt, result, uint32(len(payload))+8, unk4, payload)
}

// craftCapnp prefixes the {unk, len_u64s} capnp preamble the device expects
// on structured builtin payloads.
func craftCapnp(mt Builtin, result uint16, unk4 uint32, payload []byte) []byte {
	tmp := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(tmp[4:8], uint32(len(payload))>>3)
	copy(tmp[8:], payload)
	return craftHostinfo(mt, result, uint32(len(tmp))+8, unk4, tmp)
}

// EchoPayload is the four-timestamp body of an ECHO message.
type EchoPayload struct {
	Org    int64
	Recv   int64
	Xmt    int64
	Offset int64
}

const echoPayloadSize = 32

func parseEcho(b []byte) (EchoPayload, error) {
	if len(b) < echoPayloadSize {
		return EchoPayload{}, ErrProtoShortPayload
	}
	return EchoPayload{
		Org:    int64(binary.LittleEndian.Uint64(b[0:8])),
		Recv:   int64(binary.LittleEndian.Uint64(b[8:16])),
		Xmt:    int64(binary.LittleEndian.Uint64(b[16:24])),
		Offset: int64(binary.LittleEndian.Uint64(b[24:32])),
	}, nil
}

func craftEcho(result uint16, echoID uint32, org, recv, xmt, offset int64) []byte {
	var p [echoPayloadSize]byte
	binary.LittleEndian.PutUint64(p[0:8], uint64(org))
	binary.LittleEndian.PutUint64(p[8:16], uint64(recv))
	binary.LittleEndian.PutUint64(p[16:24], uint64(xmt))
	binary.LittleEndian.PutUint64(p[24:32], uint64(offset))
	return craftBasic(BuiltinEcho, result, echoID, p[:])
}

// Canned handshake payloads. The device rejects sessions whose bytes differ,
// so these are kept verbatim; only the marked fields vary.
var sessionOKPayload = []byte{
	0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x03, 0x00,
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x05, 0x00, 0x00, 0x00, 0x2B, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x03, 0x00, 0x02, 0x00, 0x04, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// sessionOK2Payload carries the stream parameters for the second session:
// session type 3, error code 1, encoding (0 AVC, 1 HEVC), slice count, fps.
func sessionOK2Payload(fps, encoding, numSlices uint8) []byte {
	p := []byte{
		0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x03, 0x00,
		0x03, 0x00, 0x01, 0x00, 0x1F, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x09, 0x00, 0x00, 0x00, 0x1B, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00,
		'U', 'S', 'B', '3', 0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x03, 0x00, 0x02, 0x00, 0x00, 0x00,
	}
	p[14] = encoding
	p[16] = numSlices & 0xF
	p[24] = fps
	return p
}

func codegenPayload(stage uint8) []byte {
	p := make([]byte, 24)
	p[4] = 1
	p[6] = 1
	p[8] = stage
	return p
}

func pairingPayload(stage uint8) []byte {
	p := make([]byte, 16)
	p[4] = 1
	p[8] = stage
	if stage == 1 {
		p[10] = 1
	}
	return p
}

// videoProbePayload doubles as the stream kick during pairing and as the
// "bye" poke that makes a half-connected device drop the session.
var videoProbePayload = []byte{
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// handleHostinfo drives the two-phase pairing handshake. ECHO is serviced in
// every state; INVITE always refreshes the device description; anything
// unexpected for the current state is ignored without a state change.
func (h *Host) handleHostinfo(pkt *TopicPacket) {
	hp, err := parseHostinfo(pkt)
	if err != nil {
		h.logf("xrsp/hostinfo: %v", err)
		return
	}

	if hp.MessageType == BuiltinEcho {
		h.handleEcho(&hp)
		return
	}
	if hp.MessageType == BuiltinInvite {
		h.handleInvite(&hp)
	}

	switch h.PairingState() {
	case PairingWaitFirst:
		switch hp.MessageType {
		case BuiltinInvite:
			h.sendHostinfoMsg(craftCapnp(BuiltinOk, 0x2C8, 1, sessionOKPayload))
		case BuiltinAck:
			h.sendHostinfoMsg(craftCapnp(BuiltinCodeGeneration, 0xC8, 1, codegenPayload(1)))
		case BuiltinCodeGenerationAck:
			h.sendHostinfoMsg(craftCapnp(BuiltinPairing, 0xC8, 1, pairingPayload(1)))
		case BuiltinPairingAck:
			h.finishPairingFirst()
			h.setPairingState(PairingWaitSecond)
		}

	case PairingWaitSecond, PairingSecond:
		switch hp.MessageType {
		case BuiltinInvite:
			h.setPairingState(PairingSecond)
			h.resetEcho()
			ok2 := sessionOK2Payload(h.sessionFPS(), h.cfg.EncodingType, uint8(h.cfg.NumSlices))
			h.sendHostinfoMsg(craftCapnp(BuiltinOk, 0x2C8, 1, ok2))
		case BuiltinAck:
			h.sendHostinfoMsg(craftCapnp(BuiltinCodeGeneration, 0xC8, 1, codegenPayload(3)))
		case BuiltinCodeGenerationAck:
			h.sendHostinfoMsg(craftCapnp(BuiltinPairing, 0xC8, 1, pairingPayload(3)))
		case BuiltinPairingAck:
			h.finishPairingSecond()
			h.setPairingState(Paired)
			h.pairedNS.Store(h.tsNS())
		}
	}
}

func (h *Host) sendHostinfoMsg(msg []byte) {
	h.SendToTopic(TopicHostinfoAdv, msg)
}

// finishPairingFirst kicks the clock exchange and pokes the video topic so
// the headset raises its accept dialog.
func (h *Host) finishPairingFirst() {
	h.sendPing()
	h.SendCapnpWrapped(TopicVideo, 0, videoProbePayload)
	h.logf("xrsp: waiting for user to accept pairing")
}

// finishPairingSecond enables the stream topics and attaches the runtime
// services the session needs.
func (h *Host) finishPairingSecond() {
	h.sendPing()

	audioControl := controlPacket(2, 1, 1)
	h.SendCapnpWrapped(TopicAudioControl, 0, audioControl)

	h.SendToTopic(TopicCommand, commandPacket(commandMagicB, CommandToggleAsw, 1))
	h.SendToTopic(TopicCommand, commandPacket(commandMagicB, CommandDropFramesState, 0))

	h.SendCapnpWrapped(TopicInputControl, 0, controlPacket(2, 1, 1))
	h.SendCapnpWrapped(TopicInputControl, 0, controlPacket(2, 2, 1))

	h.ripcEnsureServiceStarted(h.clientID, "com.oculus.systemdriver", "com.oculus.vrruntimeservice.VrRuntimeService")
	h.ripcConnectToRemoteServer(ripcFakeClient1, "com.oculus.systemdriver", "com.oculus.vrruntimeservice", "RuntimeServiceServer")
}

// controlPacket is the small {u32, u32, u16, u16, u32 x3} toggle sent on the
// audio-control and input-control topics.
func controlPacket(b uint32, c, d uint16) []byte {
	out := make([]byte, 24)
	binary.LittleEndian.PutUint32(out[4:8], b)
	binary.LittleEndian.PutUint16(out[8:10], c)
	binary.LittleEndian.PutUint16(out[10:12], d)
	return out
}

// commandPacket is the command-topic frame: an opaque u64 tag, the command
// id, and five u32 arguments of which only the second is ever nonzero here.
func commandPacket(tag uint64, cmd uint32, arg uint32) []byte {
	out := make([]byte, 32)
	binary.LittleEndian.PutUint64(out[0:8], tag)
	binary.LittleEndian.PutUint32(out[8:12], cmd)
	binary.LittleEndian.PutUint32(out[16:20], arg)
	return out
}
