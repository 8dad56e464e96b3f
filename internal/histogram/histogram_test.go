package histogram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogramAccumulate(t *testing.T) {
	l, err := NewLinear(0, 100, 10)
	require.NoError(t, err)

	h := New(l)

	for _, s := range []uint64{5, 15, 15, 99, 105} {
		h.Accumulate(s)
	}

	assert.Equal(t, uint64(5), h.Count())
	assert.Equal(t, uint64(5+15+15+99+105), h.Sum())

	values := h.SnapshotValues()
	assert.Equal(t, uint64(1), values[0])
	assert.Equal(t, uint64(2), values[10])

	// 99 and the clamped 105 both land in the last bucket.
	assert.Equal(t, uint64(2), values[90])
}

func TestHistogramCountMatchesBucketTotal(t *testing.T) {
	f, err := NewFunctional(2.0, 8.0)
	require.NoError(t, err)

	h := New(f)

	samples := []uint64{0, 1, 1, 2, 3, 100, 100, 100, 65536, 1 << 40}
	for _, s := range samples {
		h.Accumulate(s)
	}

	var total uint64
	for _, c := range h.SnapshotValues() {
		total += c
	}

	assert.Equal(t, h.Count(), total)
	assert.Equal(t, uint64(len(samples)), h.Count())
}

func TestHistogramSnapshotOmitsEmptyBuckets(t *testing.T) {
	l, err := NewLinear(0, 100, 10)
	require.NoError(t, err)

	h := New(l)
	h.Accumulate(5)

	values := h.SnapshotValues()
	assert.Len(t, values, 1)

	for _, c := range values {
		assert.Greater(t, c, uint64(0))
	}
}

func TestHistogramEmptySnapshot(t *testing.T) {
	e, err := NewExponential(1, 1000, 10)
	require.NoError(t, err)

	h := New(e)

	snap := h.Snapshot()
	assert.Empty(t, snap.Values)
	assert.Equal(t, uint64(0), snap.Sum)
	assert.Equal(t, uint64(0), snap.Count)
}

func TestHistogramSnapshotIsCopy(t *testing.T) {
	l, err := NewLinear(0, 100, 10)
	require.NoError(t, err)

	h := New(l)
	h.Accumulate(5)

	values := h.SnapshotValues()
	values[0] = 999

	assert.Equal(t, uint64(1), h.SnapshotValues()[0])
}

func TestValuesMarshalJSONSortsNumerically(t *testing.T) {
	v := Values{100: 3, 2: 1, 10: 2, 1: 7}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	// Numeric order, not lexical ("10" must not precede "2").
	assert.Equal(t, `{"1":7,"2":1,"10":2,"100":3}`, string(data))
}

func TestSnapshotMarshalJSON(t *testing.T) {
	f, err := NewFunctional(2.0, 8.0)
	require.NoError(t, err)

	h := New(f)
	h.Accumulate(1)
	h.Accumulate(1)

	data, err := json.Marshal(h.Snapshot())
	require.NoError(t, err)

	assert.JSONEq(t, `{"values":{"1":2},"sum":2,"count":2}`, string(data))
}

func TestSnapshotValuesRoundTripThroughBucketing(t *testing.T) {
	// Keys of the snapshot, looked up again through the strategy, must
	// reproduce the same bucket set.
	e, err := NewExponential(1, 100000, 20)
	require.NoError(t, err)

	h := New(e)
	for _, s := range []uint64{1, 5, 42, 1000, 99999, 200000} {
		h.Accumulate(s)
	}

	for key := range h.SnapshotValues() {
		assert.Equal(t, key, e.BucketLowerBound(e.BucketIndex(key)))
	}
}
