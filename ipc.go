package xrsp

import (
	"encoding/binary"

	"github.com/questlink/xrsp/payload"
)

// Well-known peer ids on the runtime-ipc topic. The device addresses us
// through these when a service pushes unsolicited events.
const (
	ripcFakeClient1 uint32 = 0x7F000001
	ripcFakeClient2 uint32 = 0x7F000002
	ripcFakeClient3 uint32 = 0x7F000003
	ripcFakeClient4 uint32 = 0x7F000004
)

// ipcHandler receives one complete IPC exchange: the decoded control
// message and the raw data segment that followed it.
type ipcHandler func(msg payload.RuntimeIPC, data []byte)

// ipcSegmented reassembles runtime-ipc traffic. Unlike the generic
// segmented format, the META here only declares the first segment; the
// second segment's length arrives inside the decoded control message.
type ipcSegmented struct {
	state   segState
	limit   int
	handler ipcHandler

	msg     payload.RuntimeIPC
	segs    [2][]byte
	expect  [2]int
	reading int
	dropped uint64
}

func newIPCSegmented(limit int, handler ipcHandler) *ipcSegmented {
	if limit <= 0 {
		limit = defaultMaxPayload
	}
	return &ipcSegmented{limit: limit, handler: handler}
}

// Consume feeds one topic packet through the reassembler. An 8-byte packet
// whose first word is zero resynchronizes to META.
func (s *ipcSegmented) Consume(pkt *TopicPacket) {
	b := pkt.Payload
	if len(b) == 8 && binary.LittleEndian.Uint32(b) == 0 {
		s.state = segMeta
	}

	for len(b) > 0 {
		switch s.state {
		case segMeta:
			if len(b) < 8 {
				s.dropped++
				return
			}
			n := int(binary.LittleEndian.Uint32(b[4:8])) * 8
			if n > s.limit {
				s.dropped++
				return
			}
			s.expect[0] = n
			s.expect[1] = 0
			s.segs[0] = s.segs[0][:0]
			s.segs[1] = s.segs[1][:0]
			s.reading = 0
			s.state = segRead
			b = b[8:]

		case segRead:
			idx := s.reading
			need := s.expect[idx] - len(s.segs[idx])
			if need > len(b) {
				need = len(b)
			}
			s.segs[idx] = append(s.segs[idx], b[:need]...)
			b = b[need:]
			if len(s.segs[idx]) < s.expect[idx] {
				continue
			}

			if idx == 0 {
				msg, err := payload.DecodeRuntimeIPC(s.segs[0])
				if err != nil {
					s.dropped++
					s.msg = payload.RuntimeIPC{}
				} else {
					s.msg = msg
				}
				if int(s.msg.NextSize) > s.limit {
					s.dropped++
					s.state = segMeta
					continue
				}
				s.expect[1] = int(s.msg.NextSize)
				s.reading = 1
				if s.expect[1] == 0 {
					if s.handler != nil {
						s.handler(s.msg, nil)
					}
					s.state = segMeta
					s.reading = 0
				}
				continue
			}

			if s.handler != nil {
				s.handler(s.msg, s.segs[1])
			}
			s.state = segMeta
			s.reading = 0
		}
	}
}

// reset discards any partial exchange and resynchronizes at the next META.
func (s *ipcSegmented) reset() {
	s.state = segMeta
	s.reading = 0
	s.msg = payload.RuntimeIPC{}
	for i := range s.segs {
		s.segs[i] = s.segs[i][:0]
		s.expect[i] = 0
	}
}

// handleIPC routes completed exchanges by peer id, establishing the runtime
// service connection the first time the server answers.
func (h *Host) handleIPC(msg payload.RuntimeIPC, data []byte) {
	switch msg.ClientID {
	case ripcFakeClient1:
		if !h.runtimeConnected {
			h.ripcConnectToRemoteServer(h.clientID, "com.oculus.systemdriver", "com.oculus.vrruntimeservice", "RuntimeServiceServer")
		}
	case h.clientID:
		if !h.runtimeConnected {
			h.ripcVoidBoolCmd(h.clientID, "EnableEyeTrackingForPCLink")
			h.ripcVoidBoolCmd(h.clientID, "EnableFaceTrackingForPCLink")
		}
		h.runtimeConnected = true
	default:
		h.debugf("xrsp/ipc: client %08x cmd %08x, %d bytes", msg.ClientID, msg.CmdID, len(data))
	}
}

// sendRipcCmd emits one IPC exchange: the capnp-wrapped control message,
// then the raw data segment it announced.
func (h *Host) sendRipcCmd(cmdID, clientID, unk uint32, data, extra []byte) {
	msg := payload.RuntimeIPC{
		CmdID:    cmdID,
		NextSize: uint32(len(data)),
		ClientID: clientID,
		Unk:      unk,
		Data:     extra,
	}
	h.SendCapnpWrapped(TopicRuntimeIPC, 0, msg.Encode())
	h.SendToTopic(TopicRuntimeIPC, data)
}

// ripcString appends one TLV-encoded string field: total length, the field
// hash, the string length, then the bytes.
func ripcString(b []byte, field, val string) []byte {
	var tmp [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp[:], v)
		b = append(b, tmp[:]...)
	}
	put(uint32(len(val)) + 4)
	put(ripcFieldHash("std::string", field))
	put(uint32(len(val)))
	b = append(b, val...)
	return b
}

func (h *Host) ripcEnsureServiceStarted(clientID uint32, packageName, serviceComponent string) {
	data := ripcString(nil, "PackageName", packageName)
	data = ripcString(data, "ServiceComponentName", serviceComponent)
	data = append(data, 0, 0, 0, 0)
	unk := h.sessionIdx.Add(1) - 1
	h.sendRipcCmd(payload.RuntimeIPCEnsureServiceStarted, clientID, unk, data, nil)
}

func (h *Host) ripcConnectToRemoteServer(clientID uint32, packageName, processName, serverName string) {
	data := ripcString(nil, "PackageName", packageName)
	data = ripcString(data, "ProcessName", processName)
	data = ripcString(data, "ServerName", serverName)
	data = append(data, 0, 0, 0, 0)
	h.sendRipcCmd(payload.RuntimeIPCConnectToRemoteServer, clientID, h.sessionIdx.Load(), data, nil)
}

// ripcVoidBoolCmd invokes a no-argument RPC returning bool, identified by
// the xor of the command, argument type and return type name hashes.
func (h *Host) ripcVoidBoolCmd(clientID uint32, command string) {
	hash := hashDJB2(command) ^ hashDJB2("Void") ^ hashDJB2("bool")

	data := make([]byte, 0, 7)
	data = append(data, 2, 0)
	data = binary.LittleEndian.AppendUint32(data, hash)
	data = append(data, 0)

	extra := binary.LittleEndian.AppendUint32(nil, 1)
	extra = binary.LittleEndian.AppendUint32(extra, ripcFieldHash("bool", "oneWay"))
	extra = append(extra, 0)
	extra = binary.LittleEndian.AppendUint32(extra, hash)

	h.sendRipcCmd(payload.RuntimeIPCRPC, clientID, h.sessionIdx.Load(), data, extra)
}

func hashDJB2(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func ripcFieldHash(typ, name string) uint32 {
	return hashDJB2(typ) ^ hashDJB2(name)
}
