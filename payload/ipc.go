package payload

// RuntimeIPC message ids.
const (
	RuntimeIPCEnsureServiceStarted  uint32 = 1
	RuntimeIPCConnectToRemoteServer uint32 = 2
	RuntimeIPCRPC                   uint32 = 3
)

// RuntimeIPC is the control message exchanged on the runtime-ipc topic.
// NextSize announces the byte length of the raw data segment that follows
// the message on the same topic.
type RuntimeIPC struct {
	CmdID    uint32
	NextSize uint32
	ClientID uint32
	Unk      uint32
	Data     []byte
}

func (m *RuntimeIPC) Encode() []byte {
	b := appendU32(nil, m.CmdID)
	b = appendU32(b, m.NextSize)
	b = appendU32(b, m.ClientID)
	b = appendU32(b, m.Unk)
	b = appendU32(b, uint32(len(m.Data)))
	b = append(b, m.Data...)
	return pad8(b)
}

func DecodeRuntimeIPC(b []byte) (RuntimeIPC, error) {
	r := reader{b: b}
	var m RuntimeIPC
	m.CmdID = r.u32()
	m.NextSize = r.u32()
	m.ClientID = r.u32()
	m.Unk = r.u32()
	n := int(r.u32())
	if r.err == nil && n > 0 {
		if d := r.need(n); d != nil {
			m.Data = append([]byte(nil), d...)
		}
	}
	if r.err != nil {
		return RuntimeIPC{}, r.err
	}
	return m, nil
}
