package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowMean(t *testing.T) {
	w := NewWindow[int64](4)
	assert.EqualValues(t, 0, w.Mean())

	for _, v := range []int64{1, 2, 3, 4} {
		w.Sample(v)
	}
	assert.Equal(t, 4, w.Count())
	assert.EqualValues(t, 2, w.Mean())

	// the oldest samples roll off
	w.Sample(5)
	w.Sample(6)
	assert.Equal(t, 4, w.Count())
	assert.EqualValues(t, 4, w.Mean()) // 3+4+5+6
}

func TestWindowStdDev(t *testing.T) {
	w := NewWindow[int64](8)
	assert.EqualValues(t, 0, w.StdDev())

	for _, v := range []int64{10, 10, 10, 10} {
		w.Sample(v)
	}
	assert.EqualValues(t, 0, w.StdDev())

	w.Reset()
	for _, v := range []int64{0, 0, 12, 12} {
		w.Sample(v)
	}
	// sample variance 48, stddev truncates to 6
	assert.EqualValues(t, 6, w.StdDev())
}

func TestWindowNegative(t *testing.T) {
	w := NewWindow[int64](4)
	w.Sample(-1000)
	w.Sample(-2000)
	assert.EqualValues(t, -1500, w.Mean())
}

func TestWindowReset(t *testing.T) {
	w := NewWindow[int64](4)
	w.Sample(5)
	w.Sample(7)
	w.Reset()
	assert.Zero(t, w.Count())
	assert.EqualValues(t, 0, w.Mean())

	w.Sample(9)
	assert.EqualValues(t, 9, w.Mean())
}
