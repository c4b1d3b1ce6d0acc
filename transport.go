package xrsp

import "time"

// Transport is a synchronous bulk pipe to the headset. Implementations
// return ErrTimeout when the bus is quiet and ErrNoDevice once the device
// drops off; the host polls through the former and reinitializes on the
// latter.
type Transport interface {
	BulkRead(buf []byte, timeout time.Duration) (int, error)
	BulkWrite(buf []byte, timeout time.Duration) (int, error)
	Close() error
}
