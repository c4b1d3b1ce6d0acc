package payload

// Log levels on the logging topic.
const (
	LogLevelDebug uint32 = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogRecord is one diagnostic line emitted by the headset.
type LogRecord struct {
	Timestamp int64
	Level     uint32
	Message   string
}

func AppendLogRecord(b []byte, rec LogRecord) []byte {
	b = appendI64(b, rec.Timestamp)
	b = appendU32(b, rec.Level)
	b = appendU32(b, uint32(len(rec.Message)))
	return append(b, rec.Message...)
}

// DecodeLogRecords parses the packed record sequence of a logging packet.
// A truncated tail record ends the walk without discarding earlier ones.
func DecodeLogRecords(b []byte) []LogRecord {
	var out []LogRecord
	r := reader{b: b}
	for r.err == nil && r.off+16 <= len(r.b) {
		var rec LogRecord
		rec.Timestamp = r.i64()
		rec.Level = r.u32()
		n := int(r.u32())
		msg := r.need(n)
		if r.err != nil {
			break
		}
		rec.Message = string(msg)
		out = append(out, rec)
	}
	return out
}
