package xrsp

import "encoding/binary"

// TopicHeader is the decoded form of the 8-byte frame header that precedes
// every chunk on the bulk pipe. The first u16 is a packed bitfield, then the
// payload size in 32-bit words (header included), the sequence number, and a
// reserved u16.
type TopicHeader struct {
	Version    uint8
	HasPadding bool
	Internal   bool
	VersionNum uint8
	Topic      Topic
	NumWords   uint16
	SeqNum     uint16
}

// PayloadSize is the number of payload bytes following the header, before
// any alignment padding is removed.
func (h TopicHeader) PayloadSize() int {
	return (int(h.NumWords) - 1) * 4
}

func decodeTopicHeader(b []byte) (TopicHeader, error) {
	if len(b) < topicHeaderSize {
		return TopicHeader{}, ErrProtoShortHeader
	}
	h0 := binary.LittleEndian.Uint16(b[0:2])
	nw := binary.LittleEndian.Uint16(b[2:4])
	seq := binary.LittleEndian.Uint16(b[4:6])

	topic := Topic((h0 >> 8) & 0x3F)
	if topic == TopicAui4aAdv && nw == fillWords {
		return TopicHeader{}, ErrProtoFillFrame
	}
	if h0 == 0 && nw == 0 && seq == 0 {
		return TopicHeader{}, ErrProtoBadTopic
	}
	if topic > TopicMax || nw == 0 {
		return TopicHeader{}, ErrProtoBadTopic
	}
	return TopicHeader{
		Version:    uint8(h0 & 0x7),
		HasPadding: h0&(1<<3) != 0,
		Internal:   h0&(1<<4) != 0,
		VersionNum: uint8((h0 >> 5) & 0x7),
		Topic:      topic,
		NumWords:   nw,
		SeqNum:     seq,
	}, nil
}

func encodeTopicHeader(dst []byte, h TopicHeader) {
	h0 := uint16(h.Version&0x7) | uint16(h.VersionNum&0x7)<<5 | uint16(h.Topic&0x3F)<<8
	if h.HasPadding {
		h0 |= 1 << 3
	}
	if h.Internal {
		h0 |= 1 << 4
	}
	binary.LittleEndian.PutUint16(dst[0:2], h0)
	binary.LittleEndian.PutUint16(dst[2:4], h.NumWords)
	binary.LittleEndian.PutUint16(dst[4:6], h.SeqNum)
	binary.LittleEndian.PutUint16(dst[6:8], 0)
}

// TopicPacket is one reassembled frame. Payload grows across bulk reads
// until the advertised word count is satisfied; alignment padding is trimmed
// only once the full payload is resident, since the pad length lives in the
// final byte.
type TopicPacket struct {
	Topic      Topic
	SeqNum     uint16
	HasPadding bool
	RecvNS     int64
	Payload    []byte

	missing int
}

func beginTopicPacket(h TopicHeader, recvNS int64) *TopicPacket {
	size := h.PayloadSize()
	return &TopicPacket{
		Topic:      h.Topic,
		SeqNum:     h.SeqNum,
		HasPadding: h.HasPadding,
		RecvNS:     recvNS,
		Payload:    make([]byte, 0, size),
		missing:    size,
	}
}

// appendBytes consumes up to missing bytes from b and reports how many were
// taken.
func (p *TopicPacket) appendBytes(b []byte) int {
	n := len(b)
	if n > p.missing {
		n = p.missing
	}
	p.Payload = append(p.Payload, b[:n]...)
	p.missing -= n
	return n
}

func (p *TopicPacket) complete() bool { return p.missing == 0 }

func (p *TopicPacket) finish() {
	if !p.HasPadding || len(p.Payload) == 0 {
		return
	}
	pad := int(p.Payload[len(p.Payload)-1])
	if pad <= len(p.Payload) {
		p.Payload = p.Payload[:len(p.Payload)-pad]
	}
}

// packetizer turns the raw bulk-read byte stream back into topic packets.
// A malformed header costs 8 bytes and a resync; fill frames and the pad
// sentinel are skipped silently.
type packetizer struct {
	working    *TopicPacket
	maxPayload int
	dropped    uint64
}

const defaultMaxPayload = 1 << 18

func (pz *packetizer) feed(b []byte, recvNS int64, emit func(*TopicPacket)) {
	for len(b) > 0 {
		if pz.working != nil {
			b = b[pz.working.appendBytes(b):]
			if pz.working.complete() {
				pz.working.finish()
				emit(pz.working)
				pz.working = nil
			}
			continue
		}
		if len(b) < topicHeaderSize {
			// sub-header tail with nothing in flight
			pz.dropped++
			return
		}
		h, err := decodeTopicHeader(b)
		b = b[topicHeaderSize:]
		if err != nil {
			if err != ErrProtoFillFrame {
				pz.dropped++
			}
			continue
		}
		max := pz.maxPayload
		if max == 0 {
			max = defaultMaxPayload
		}
		if h.PayloadSize() > max {
			pz.dropped++
			continue
		}
		p := beginTopicPacket(h, recvNS)
		if p.complete() {
			p.finish()
			emit(p)
			continue
		}
		pz.working = p
	}
}

// Dropped counts resync events and oversized frames seen so far.
func (pz *packetizer) Dropped() uint64 { return pz.dropped }

// appendTopicFrame frames one chunk for the wire: header, payload, alignment
// padding filled with 0xDE and terminated by the pad count, then a topic-0
// fill frame whenever the transfer would otherwise straddle a 0x400 boundary
// by less than a full header.
func appendTopicFrame(dst []byte, topic Topic, seq uint16, chunk []byte) []byte {
	n := len(chunk)
	alignUp := (((4 + n) >> 2) << 2) - n
	if alignUp == 4 {
		alignUp = 0
	}
	msgSize := n + alignUp + topicHeaderSize
	if c := frameAlign - (msgSize & (frameAlign - 1)); c < topicHeaderSize {
		alignUp += c
		msgSize += c
	}

	h := TopicHeader{
		Internal:   true,
		HasPadding: alignUp > 0,
		Topic:      topic,
		NumWords:   uint16((n+alignUp)/4) + 1,
		SeqNum:     seq,
	}
	var hdr [topicHeaderSize]byte
	encodeTopicHeader(hdr[:], h)
	dst = append(dst, hdr[:]...)
	dst = append(dst, chunk...)
	for i := 0; i < alignUp-1; i++ {
		dst = append(dst, 0xDE)
	}
	if alignUp > 0 {
		dst = append(dst, byte(alignUp))
	}

	fill := frameAlign - (msgSize & (frameAlign - 1)) - topicHeaderSize
	if fill >= 0 && fill < frameAlign-topicHeaderSize {
		fh := TopicHeader{
			Internal: true,
			Topic:    TopicAui4aAdv,
			NumWords: uint16(fill/4) + 1,
			SeqNum:   seq,
		}
		encodeTopicHeader(hdr[:], fh)
		dst = append(dst, hdr[:]...)
		dst = append(dst, make([]byte, fill)...)
	}
	return dst
}

// chunkPayload splits data at the per-frame ceiling. An empty payload still
// yields one empty chunk so header-only sends go out.
func chunkPayload(data []byte, max int) [][]byte {
	if max <= 0 {
		max = chunkMax
	}
	if len(data) == 0 {
		return [][]byte{nil}
	}
	var out [][]byte
	for len(data) > 0 {
		n := len(data)
		if n > max {
			n = max
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}
