package xrsp

import "encoding/binary"

// SegmentedHandler receives a fully reassembled multi-segment payload. The
// segment slices are reused for the next payload; copy anything retained.
type SegmentedHandler func(typeIdx uint32, segs [][]byte, recvNS int64)

type segState int

const (
	segMeta segState = iota
	segRead
)

// Segmented reassembles payloads that arrive split across topic packets. A
// META frame declares the payload type index and each segment's length in
// 8-byte words; subsequent packet bytes fill the segments in order. A single
// packet may carry the tail of one payload followed by the META of the next.
type Segmented struct {
	numSegs int
	limit   int
	handler SegmentedHandler

	state   segState
	typeIdx uint32
	reading int
	segs    [][]byte
	expect  []int
	dropped uint64
}

// NewSegmented builds a reassembler for payloads of numSegs segments (1 to
// 3) with a per-segment byte ceiling. Oversized declarations drop the whole
// payload and resynchronize at the next META.
func NewSegmented(numSegs, limit int, handler SegmentedHandler) *Segmented {
	if numSegs < 1 || numSegs > 3 {
		numSegs = 1
	}
	if limit <= 0 {
		limit = defaultMaxPayload
	}
	return &Segmented{
		numSegs: numSegs,
		limit:   limit,
		handler: handler,
		segs:    make([][]byte, numSegs),
		expect:  make([]int, numSegs),
	}
}

// Consume feeds one completed topic packet through the META/READ state
// machine, firing the handler each time the final segment completes. A
// packet sized exactly like a META frame forces META state, so a payload
// stranded mid-read by packet loss cannot swallow the next declaration.
func (s *Segmented) Consume(pkt *TopicPacket) {
	b := pkt.Payload
	if len(b) < 8 {
		return
	}
	if len(b) == 4*(s.numSegs+1) {
		s.state = segMeta
	}
	for len(b) > 0 {
		switch s.state {
		case segMeta:
			metaLen := 4 * (s.numSegs + 1)
			if len(b) < metaLen {
				s.dropped++
				return
			}
			s.typeIdx = binary.LittleEndian.Uint32(b)
			ok := true
			for i := 0; i < s.numSegs; i++ {
				n := int(binary.LittleEndian.Uint32(b[4*(i+1):])) * 8
				if n > s.limit {
					ok = false
					break
				}
				s.expect[i] = n
				s.segs[i] = s.segs[i][:0]
			}
			b = b[metaLen:]
			if !ok {
				s.dropped++
				return
			}
			s.reading = 0
			s.state = segRead
			s.advance(pkt.RecvNS)

		case segRead:
			need := s.expect[s.reading] - len(s.segs[s.reading])
			if need > len(b) {
				need = len(b)
			}
			s.segs[s.reading] = append(s.segs[s.reading], b[:need]...)
			b = b[need:]
			s.advance(pkt.RecvNS)
		}
	}
}

// advance steps past filled segments and fires the handler once the last
// one completes.
func (s *Segmented) advance(recvNS int64) {
	for s.reading < s.numSegs && len(s.segs[s.reading]) == s.expect[s.reading] {
		s.reading++
	}
	if s.reading == s.numSegs {
		if s.handler != nil {
			s.handler(s.typeIdx, s.segs, recvNS)
		}
		s.state = segMeta
	}
}

// reset discards any partial payload and resynchronizes at the next META.
func (s *Segmented) reset() {
	s.state = segMeta
	s.reading = 0
	s.typeIdx = 0
	for i := range s.segs {
		s.segs[i] = s.segs[i][:0]
		s.expect[i] = 0
	}
}

// Dropped counts payloads abandoned to malformed or oversized META frames.
func (s *Segmented) Dropped() uint64 { return s.dropped }
