// Package xrsp implements the XRSP transport protocol used by Meta Quest
// Link headsets over USB: topic packet framing, the hostinfo pairing
// handshake, echo-based clock synchronization and the video slice pipeline.
package xrsp

import "fmt"

// Topic is a numbered logical channel multiplexed over the single USB bulk
// pipe. Topic 0 doubles as the fill-frame marker used to pad transfers to
// 0x400 byte boundaries.
type Topic uint8

const (
	TopicAui4aAdv Topic = iota
	TopicHostinfoAdv
	TopicStats
	TopicPose
	TopicMesh
	TopicVideo
	TopicAudio
	TopicHaptic
	TopicHands
	TopicSkeleton
	TopicSlice0
	TopicSlice1
	TopicSlice2
	TopicSlice3
	TopicSlice4
	TopicAudioControl
	TopicUserSettingsSync
	TopicInputControl
	TopicAsw
	TopicCommand
	TopicRuntimeIPC
	TopicCameraStream
	TopicLogging
	TopicBody
	TopicRuntimeIPCControl
	TopicDeviceConfig
	TopicCameraControl
	TopicMetrics
	TopicMessageFramework
	TopicSdkGenericMessage
)

// TopicMax is the highest topic id the device is known to emit; the topic
// field is 6 bits wide but ids above this are treated as framing noise.
const TopicMax Topic = 33

func (t Topic) String() string {
	switch t {
	case TopicAui4aAdv:
		return "aui4a-adv"
	case TopicHostinfoAdv:
		return "hostinfo-adv"
	case TopicStats:
		return "Stats"
	case TopicPose:
		return "Pose"
	case TopicMesh:
		return "Mesh"
	case TopicVideo:
		return "Video"
	case TopicAudio:
		return "Audio"
	case TopicHaptic:
		return "Haptic"
	case TopicHands:
		return "Hands"
	case TopicSkeleton:
		return "Skeleton"
	case TopicSlice0:
		return "Slice0"
	case TopicSlice1:
		return "Slice1"
	case TopicSlice2:
		return "Slice2"
	case TopicSlice3:
		return "Slice3"
	case TopicSlice4:
		return "Slice4"
	case TopicAudioControl:
		return "AudioControl"
	case TopicUserSettingsSync:
		return "UserSettingsSync"
	case TopicInputControl:
		return "InputControl"
	case TopicAsw:
		return "Asw"
	case TopicCommand:
		return "Command"
	case TopicRuntimeIPC:
		return "RuntimeIPC"
	case TopicCameraStream:
		return "CameraStream"
	case TopicLogging:
		return "Logging"
	case TopicBody:
		return "Body"
	case TopicRuntimeIPCControl:
		return "RuntimeIPCControl"
	case TopicDeviceConfig:
		return "DeviceConfig"
	case TopicCameraControl:
		return "CameraControl"
	case TopicMetrics:
		return "Metrics"
	case TopicMessageFramework:
		return "MessageFramework"
	case TopicSdkGenericMessage:
		return "SdkGenericMessage"
	default:
		return fmt.Sprintf("Topic#%d", uint8(t))
	}
}

// Builtin is the message type carried in a hostinfo header on the
// hostinfo-adv topic. The pairing handshake is driven entirely by these.
type Builtin uint8

const (
	BuiltinPairingAck Builtin = iota
	BuiltinInvite
	BuiltinOk
	BuiltinAck
	BuiltinError
	BuiltinCodeGeneration
	BuiltinCodeGenerationAck
	BuiltinPairing
	BuiltinEcho
)

func (b Builtin) String() string {
	switch b {
	case BuiltinPairingAck:
		return "PAIRING_ACK"
	case BuiltinInvite:
		return "INVITE"
	case BuiltinOk:
		return "OK"
	case BuiltinAck:
		return "ACK"
	case BuiltinError:
		return "ERROR"
	case BuiltinCodeGeneration:
		return "CODE_GENERATION"
	case BuiltinCodeGenerationAck:
		return "CODE_GENERATION_ACK"
	case BuiltinPairing:
		return "PAIRING"
	case BuiltinEcho:
		return "ECHO"
	default:
		return fmt.Sprintf("Builtin#%d", uint8(b))
	}
}

// Echo direction, carried in the hostinfo result field's low bit.
const (
	EchoPing uint16 = 0
	EchoPong uint16 = 1
)

// PairingState tracks the strictly forward-progressing handshake. A protocol
// error forces a full reconnect rather than a state rollback.
type PairingState int

const (
	PairingWaitFirst PairingState = iota
	PairingWaitSecond
	PairingSecond
	Paired
)

func (s PairingState) String() string {
	switch s {
	case PairingWaitFirst:
		return "WaitFirst"
	case PairingWaitSecond:
		return "WaitSecond"
	case PairingSecond:
		return "Pairing"
	case Paired:
		return "Paired"
	default:
		return fmt.Sprintf("PairingState#%d", int(s))
	}
}

// USB identity of XRSP-capable headsets. The XRSP interface is the vendor
// specific one (class 0xFF) with subclass 0x89 or 0x8A, protocol 0x01.
const (
	VendorOculus uint16 = 0x2833

	ProductQuest    uint16 = 0x0137
	ProductQuest3   uint16 = 0x0182
	ProductQuestPro uint16 = 0x0183
	ProductQuest2   uint16 = 0x0186

	InterfaceClass     uint8 = 0xFF
	InterfaceSubclassA uint8 = 0x89
	InterfaceSubclassB uint8 = 0x8A
	InterfaceProtocol  uint8 = 0x01
)

// Command topic packet ids. The leading 64-bit value is an opaque protocol
// constant observed on the wire.
const (
	CommandToggleChemX uint32 = iota
	CommandToggleAsw
	CommandDropFramesState
	CommandEnableCameraStream
)

const (
	commandMagicA uint64 = 0x0005EC94E91B9D4F
	commandMagicB uint64 = 0x0005EC94E91B9D83
)

// Protocol sizing constants.
const (
	// chunkMax is the per-frame payload ceiling imposed by the protocol.
	chunkMax = 0xFFF8
	// frameAlign is the transfer boundary frames are padded up to with
	// topic-0 fill frames.
	frameAlign = 0x400
	// topicHeaderSize is the size of the framed topic header on the wire.
	topicHeaderSize = 8
	// fillWords marks a pad-sentinel frame (topic 0, all-ones word count)
	// that must be skipped, not parsed.
	fillWords = 0xFFFF
)
