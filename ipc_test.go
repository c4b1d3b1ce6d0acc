package xrsp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlink/xrsp/payload"
)

func TestHashDJB2(t *testing.T) {
	assert.EqualValues(t, 5381, hashDJB2(""))
	assert.EqualValues(t, 5381*33+'a', hashDJB2("a"))
	assert.Equal(t, hashDJB2("bool")^hashDJB2("oneWay"), ripcFieldHash("bool", "oneWay"))
}

func TestRipcStringTLV(t *testing.T) {
	b := ripcString(nil, "PackageName", "abc")
	require.Len(t, b, 15)
	assert.EqualValues(t, 7, binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, ripcFieldHash("std::string", "PackageName"), binary.LittleEndian.Uint32(b[4:8]))
	assert.EqualValues(t, 3, binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, "abc", string(b[12:15]))
}

func TestIPCSegmentedReassembly(t *testing.T) {
	var gotMsg payload.RuntimeIPC
	var gotData []byte
	var fired int
	s := newIPCSegmented(0, func(msg payload.RuntimeIPC, data []byte) {
		gotMsg = msg
		gotData = append([]byte(nil), data...)
		fired++
	})

	msg := payload.RuntimeIPC{CmdID: payload.RuntimeIPCRPC, NextSize: 5, ClientID: 9, Unk: 3}
	enc := msg.Encode()

	meta := binary.LittleEndian.AppendUint32(nil, 0)
	meta = binary.LittleEndian.AppendUint32(meta, uint32(len(enc))/8)

	s.Consume(&TopicPacket{Payload: meta})
	s.Consume(&TopicPacket{Payload: enc})
	require.Zero(t, fired)
	s.Consume(&TopicPacket{Payload: []byte{1, 2, 3, 4, 5}})

	require.Equal(t, 1, fired)
	assert.Equal(t, msg.CmdID, gotMsg.CmdID)
	assert.Equal(t, msg.ClientID, gotMsg.ClientID)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, gotData)
}

func TestIPCSegmentedResync(t *testing.T) {
	var fired int
	s := newIPCSegmented(0, func(payload.RuntimeIPC, []byte) { fired++ })

	// leave a half-read control segment behind
	meta := binary.LittleEndian.AppendUint32(nil, 0)
	meta = binary.LittleEndian.AppendUint32(meta, 3)
	s.Consume(&TopicPacket{Payload: meta})
	s.Consume(&TopicPacket{Payload: make([]byte, 8)})

	// an 8-byte zero-led packet resets to META and doubles as the next one
	msg := payload.RuntimeIPC{CmdID: payload.RuntimeIPCEnsureServiceStarted, NextSize: 0}
	enc := msg.Encode()
	reset := binary.LittleEndian.AppendUint32(nil, 0)
	reset = binary.LittleEndian.AppendUint32(reset, uint32(len(enc))/8)
	s.Consume(&TopicPacket{Payload: reset})
	s.Consume(&TopicPacket{Payload: enc})

	assert.Equal(t, 1, fired)
}

func TestSendRipcCmdWire(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	h.ripcEnsureServiceStarted(h.clientID, "pkg", "svc")

	pkts := tr.packets(t)
	// capnp preamble, control message, then the raw data segment
	require.Len(t, pkts, 3)
	for _, p := range pkts {
		assert.Equal(t, TopicRuntimeIPC, p.Topic)
	}

	msg, err := payload.DecodeRuntimeIPC(pkts[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, payload.RuntimeIPCEnsureServiceStarted, msg.CmdID)
	assert.Equal(t, h.clientID, msg.ClientID)
	assert.EqualValues(t, len(pkts[2].Payload), msg.NextSize)
}

func TestVoidBoolCmdLayout(t *testing.T) {
	h, tr := newTestHost(HostConfig{})
	h.ripcVoidBoolCmd(h.clientID, "EnableEyeTrackingForPCLink")

	pkts := tr.packets(t)
	require.Len(t, pkts, 3)

	hash := hashDJB2("EnableEyeTrackingForPCLink") ^ hashDJB2("Void") ^ hashDJB2("bool")

	msg, err := payload.DecodeRuntimeIPC(pkts[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, payload.RuntimeIPCRPC, msg.CmdID)
	require.Len(t, msg.Data, 13)
	assert.Equal(t, hash, binary.LittleEndian.Uint32(msg.Data[9:13]))

	data := pkts[2].Payload
	require.Len(t, data, 7)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint16(data[0:2]))
	assert.Equal(t, hash, binary.LittleEndian.Uint32(data[2:6]))
}

func TestHandleIPCConnectsRuntime(t *testing.T) {
	h, tr := newTestHost(HostConfig{})

	h.handleIPC(payload.RuntimeIPC{ClientID: ripcFakeClient1}, nil)
	assert.False(t, h.runtimeConnected)
	assert.NotZero(t, tr.writeCount())

	h.handleIPC(payload.RuntimeIPC{ClientID: h.clientID}, nil)
	assert.True(t, h.runtimeConnected)
}
