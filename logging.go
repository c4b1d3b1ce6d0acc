package xrsp

import "github.com/questlink/xrsp/payload"

func logLevelString(level uint32) string {
	switch level {
	case payload.LogLevelDebug:
		return "debug"
	case payload.LogLevelInfo:
		return "info"
	case payload.LogLevelWarn:
		return "warn"
	case payload.LogLevelError:
		return "error"
	default:
		return "?"
	}
}

// handleLogging re-logs diagnostic records the device emits on the logging
// topic.
func (h *Host) handleLogging(pkt *TopicPacket) {
	for _, rec := range payload.DecodeLogRecords(pkt.Payload) {
		h.logf("xrsp/device: [%s] %s", logLevelString(rec.Level), rec.Message)
	}
}
