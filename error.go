package xrsp

import "fmt"

// ProtoError covers malformed wire data. The read loop treats these as
// resync events, not connection failures.
type ProtoError uint32

const (
	ErrProtoOk ProtoError = iota
	ErrProtoShortHeader
	ErrProtoBadTopic
	ErrProtoFillFrame
	ErrProtoShortHostinfo
	ErrProtoBadStreamSize
	ErrProtoSegmentTooLarge
	ErrProtoBadMeta
	ErrProtoShortPayload
)

func (e ProtoError) Error() string {
	switch e {
	case ErrProtoOk:
		return "xrsp: OK"
	case ErrProtoShortHeader:
		return "xrsp: truncated topic header"
	case ErrProtoBadTopic:
		return "xrsp: invalid topic header"
	case ErrProtoFillFrame:
		return "xrsp: fill frame"
	case ErrProtoShortHostinfo:
		return "xrsp: truncated hostinfo packet"
	case ErrProtoBadStreamSize:
		return "xrsp: hostinfo stream size mismatch"
	case ErrProtoSegmentTooLarge:
		return "xrsp: segment exceeds ceiling"
	case ErrProtoBadMeta:
		return "xrsp: malformed segment meta frame"
	case ErrProtoShortPayload:
		return "xrsp: payload too short"
	default:
		return fmt.Sprintf("ProtoError(%d)", uint32(e))
	}
}

// TransportError covers the USB side. ErrTimeout is the quiet-bus case the
// read loop polls through; ErrNoDevice triggers reinitialization.
type TransportError uint32

const (
	ErrTimeout TransportError = iota + 1
	ErrNoDevice
	ErrPipeStall
	ErrClosed
)

func (e TransportError) Error() string {
	switch e {
	case ErrTimeout:
		return "xrsp: transfer timed out"
	case ErrNoDevice:
		return "xrsp: device disconnected"
	case ErrPipeStall:
		return "xrsp: endpoint stalled"
	case ErrClosed:
		return "xrsp: transport closed"
	default:
		return fmt.Sprintf("TransportError(%d)", uint32(e))
	}
}
