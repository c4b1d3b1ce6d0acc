package xrsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlink/xrsp/payload"
)

func hostinfoTopicPkt(raw []byte) *TopicPacket {
	return &TopicPacket{Topic: TopicHostinfoAdv, Payload: raw}
}

func TestParseHostinfoBitfield(t *testing.T) {
	raw := craftBasic(BuiltinOk, 0x2C8, 0xDEAD, make([]byte, 16))
	hp, err := parseHostinfo(hostinfoTopicPkt(raw))
	require.NoError(t, err)
	assert.Equal(t, BuiltinOk, hp.MessageType)
	assert.EqualValues(t, 0x2C8, hp.Result)
	assert.EqualValues(t, 16+8, hp.StreamSize)
	assert.EqualValues(t, 0xDEAD, hp.EchoID)
	assert.Len(t, hp.Payload, 8) // capnp payloads start at +0x10
}

func TestParseHostinfoEchoOffset(t *testing.T) {
	raw := craftEcho(EchoPing, 5, 1, 2, 3, 4)
	hp, err := parseHostinfo(hostinfoTopicPkt(raw))
	require.NoError(t, err)
	assert.Equal(t, BuiltinEcho, hp.MessageType)
	assert.Len(t, hp.Payload, echoPayloadSize)

	p, err := parseEcho(hp.Payload)
	require.NoError(t, err)
	assert.Equal(t, EchoPayload{Org: 1, Recv: 2, Xmt: 3, Offset: 4}, p)
}

func TestParseHostinfoShort(t *testing.T) {
	_, err := parseHostinfo(hostinfoTopicPkt(make([]byte, 4)))
	assert.Equal(t, ErrProtoShortHostinfo, err)

	// non-echo payloads must reach the capnp offset
	raw := craftBasic(BuiltinOk, 0, 0, make([]byte, 4))
	_, err = parseHostinfo(hostinfoTopicPkt(raw))
	assert.Equal(t, ErrProtoShortHostinfo, err)
}

func TestCraftCapnpPreamble(t *testing.T) {
	body := make([]byte, 0x2B8)
	raw := craftCapnp(BuiltinOk, 0x2C8, 1, body)
	assert.Len(t, raw, 8+8+len(body))

	hp, err := parseHostinfo(hostinfoTopicPkt(raw))
	require.NoError(t, err)
	assert.EqualValues(t, len(body)+0x10, hp.StreamSize)
	// length in 8-byte words sits in the second preamble word
	assert.Equal(t, byte(len(body)>>3), raw[12])
}

func TestSessionOK2Parameters(t *testing.T) {
	p := sessionOK2Payload(90, 1, 5)
	assert.Equal(t, byte(90), p[24])
	assert.Equal(t, byte(1), p[14])
	assert.Equal(t, byte(5), p[16])
	assert.Equal(t, []byte("USB3"), p[56:60])
	assert.Len(t, p, 72)
	assert.Len(t, sessionOKPayload, 72)
}

func deviceInvite() *TopicPacket {
	info := payload.HostInfo{
		DeviceType:       payload.DeviceTypeQuest2,
		RefreshRateHz:    90,
		ResolutionWidth:  3664,
		ResolutionHeight: 1920,
	}
	return hostinfoTopicPkt(craftCapnp(BuiltinInvite, 0, 0, info.Encode()))
}

func deviceMsg(mt Builtin) *TopicPacket {
	return hostinfoTopicPkt(craftBasic(mt, 0, 0, make([]byte, 8)))
}

// replies returns the non-echo hostinfo messages written since the last call.
func replies(t *testing.T, tr *recordTransport, skip *int) []HostinfoPacket {
	t.Helper()
	var out []HostinfoPacket
	for _, p := range tr.packets(t) {
		if p.Topic != TopicHostinfoAdv {
			continue
		}
		hp, err := parseHostinfo(p)
		require.NoError(t, err)
		if hp.MessageType == BuiltinEcho {
			continue
		}
		out = append(out, hp)
	}
	n := *skip
	*skip = len(out)
	return out[n:]
}

func TestPairingHandshake(t *testing.T) {
	h, tr := newTestHost(HostConfig{NumSlices: 1, EncodingType: 1})
	seen := 0

	// first session
	h.handleHostinfo(deviceInvite())
	rs := replies(t, tr, &seen)
	require.Len(t, rs, 1)
	assert.Equal(t, BuiltinOk, rs[0].MessageType)
	assert.EqualValues(t, 0x2C8, rs[0].Result)

	h.handleHostinfo(deviceMsg(BuiltinAck))
	rs = replies(t, tr, &seen)
	require.Len(t, rs, 1)
	assert.Equal(t, BuiltinCodeGeneration, rs[0].MessageType)

	h.handleHostinfo(deviceMsg(BuiltinCodeGenerationAck))
	rs = replies(t, tr, &seen)
	require.Len(t, rs, 1)
	assert.Equal(t, BuiltinPairing, rs[0].MessageType)

	h.handleHostinfo(deviceMsg(BuiltinPairingAck))
	assert.Equal(t, PairingWaitSecond, h.PairingState())

	// second session, after the user accepts on the headset
	h.handleHostinfo(deviceInvite())
	assert.Equal(t, PairingSecond, h.PairingState())
	rs = replies(t, tr, &seen)
	require.Len(t, rs, 1)
	assert.Equal(t, BuiltinOk, rs[0].MessageType)
	// the second OK advertises the negotiated fps, encoding and slices
	ok2 := rs[0].Payload
	assert.Equal(t, byte(90), ok2[24])
	assert.Equal(t, byte(1), ok2[14])
	assert.Equal(t, byte(1), ok2[16])

	h.handleHostinfo(deviceMsg(BuiltinAck))
	h.handleHostinfo(deviceMsg(BuiltinCodeGenerationAck))
	h.handleHostinfo(deviceMsg(BuiltinPairingAck))

	assert.Equal(t, Paired, h.PairingState())
	assert.NotZero(t, h.PairedNS())
}

func TestPairingIgnoresUnexpected(t *testing.T) {
	h, tr := newTestHost(HostConfig{})

	h.handleHostinfo(deviceMsg(BuiltinOk))
	h.handleHostinfo(deviceMsg(BuiltinPairing))
	h.handleHostinfo(deviceMsg(BuiltinError))

	assert.Equal(t, PairingWaitFirst, h.PairingState())
	assert.Zero(t, tr.writeCount())
}

func TestInviteUpdatesDeviceState(t *testing.T) {
	h, _ := newTestHost(HostConfig{})
	h.handleHostinfo(deviceInvite())

	st := h.DeviceState()
	assert.Equal(t, payload.DeviceTypeQuest2, st.Headset.DeviceType)
	assert.Equal(t, 90, st.Headset.FPS)
	assert.Equal(t, 1832, st.Headset.EyeWidth)
	assert.Equal(t, 960, st.Headset.EyeHeight)
	assert.EqualValues(t, 90, h.sessionFPS())
}

func TestCommandPacketLayout(t *testing.T) {
	p := commandPacket(commandMagicB, CommandToggleAsw, 1)
	require.Len(t, p, 32)
	assert.Equal(t, byte(0x83), p[0])
	assert.Equal(t, byte(CommandToggleAsw), p[8])
	assert.Equal(t, byte(1), p[16])
}
