// Package stats provides a fixed-size sliding window of signed samples with
// running mean and standard deviation, used to smooth clock offset
// measurements.
package stats

import (
	"math/big"

	"github.com/ddirect/container/fifo"
	"golang.org/x/exp/constraints"
)

type Window[T constraints.Signed] struct {
	size    int
	samples fifo.Fifo[T]
	sum     big.Int
	sum2    big.Int
	t1      big.Int
	t2      big.Int
	t3      big.Int
}

// NewWindow builds a window retaining the most recent size samples.
func NewWindow[T constraints.Signed](size int) *Window[T] {
	if size < 1 {
		size = 1
	}
	return &Window[T]{size: size}
}

// Sample admits a new value, evicting the oldest once the window is full.
func (w *Window[T]) Sample(x T) {
	if w.samples.Len() >= w.size {
		if old, ok := w.samples.Dequeue(); ok {
			t := w.t1.SetInt64(int64(old))
			w.sum.Sub(&w.sum, t)
			w.sum2.Sub(&w.sum2, t.Mul(t, t))
		}
	}
	t := w.t1.SetInt64(int64(x))
	w.sum.Add(&w.sum, t)
	w.sum2.Add(&w.sum2, t.Mul(t, t))
	w.samples.Enqueue(x)
}

func (w *Window[T]) Count() int {
	return w.samples.Len()
}

func (w *Window[T]) Mean() T {
	n := w.samples.Len()
	if n < 1 {
		return 0
	}
	return T(w.t2.Div(&w.sum, w.t1.SetUint64(uint64(n))).Int64())
}

func (w *Window[T]) StdDev() T {
	n := uint64(w.samples.Len())
	if n < 2 {
		return 0
	}
	t1 := &w.t1
	t2 := &w.t2
	t3 := &w.t3

	t1.SetUint64(n)
	t2.Sub(t2.Mul(t1, &w.sum2), t3.Mul(&w.sum, &w.sum))
	t3.Mul(t1, t3.SetUint64(n-1))

	return T(t2.Div(t2, t3).Sqrt(t2).Uint64())
}

// Reset drops all samples.
func (w *Window[T]) Reset() {
	for {
		if _, ok := w.samples.Dequeue(); !ok {
			break
		}
	}
	w.sum.SetInt64(0)
	w.sum2.SetInt64(0)
}
