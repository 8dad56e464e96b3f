package histogram

import (
	"bytes"
	"sort"
	"strconv"
)

// Histogram owns one bucketing strategy and the running aggregate: sparse
// per-bucket counts keyed by bucket lower bound, the total sample count,
// and the running sum. A Histogram is built fresh per use and is not safe
// for concurrent mutation.
type Histogram struct {
	bucketing Bucketing
	values    map[uint64]uint64
	count     uint64
	sum       uint64
}

// New creates an empty Histogram over the given bucketing strategy.
func New(bucketing Bucketing) *Histogram {
	return &Histogram{
		bucketing: bucketing,
		values:    make(map[uint64]uint64),
	}
}

// Accumulate records a single sample. It never fails: the strategy clamps
// out-of-range samples into the nearest bucket.
func (h *Histogram) Accumulate(sample uint64) {
	key := h.bucketing.BucketLowerBound(h.bucketing.BucketIndex(sample))

	h.values[key]++
	h.count++
	h.sum += sample
}

// Count returns the total number of accumulated samples.
func (h *Histogram) Count() uint64 {
	return h.count
}

// Sum returns the running total of all accumulated samples.
func (h *Histogram) Sum() uint64 {
	return h.sum
}

// SnapshotValues returns the sparse bucket counts. Only buckets with a
// non-zero count are present.
func (h *Histogram) SnapshotValues() Values {
	out := make(Values, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}

	return out
}

// Snapshot returns the bucket counts together with sum and count, for
// consumers that need the mean and not just the shape.
func (h *Histogram) Snapshot() Snapshot {
	return Snapshot{
		Values: h.SnapshotValues(),
		Sum:    h.sum,
		Count:  h.count,
	}
}

// Values is a sparse mapping from bucket lower bound to sample count.
type Values map[uint64]uint64

// MarshalJSON emits keys in ascending numeric order so serialized
// snapshots are byte-stable. encoding/json's own map ordering is lexical,
// which would put "10" before "2".
func (v Values) MarshalJSON() ([]byte, error) {
	keys := make([]uint64, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		buf.WriteByte('"')
		buf.WriteString(strconv.FormatUint(k, 10))
		buf.WriteString(`":`)
		buf.WriteString(strconv.FormatUint(v[k], 10))
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Snapshot is an immutable capture of a histogram's aggregate state.
type Snapshot struct {
	Values Values `json:"values"`
	Sum    uint64 `json:"sum"`
	Count  uint64 `json:"count"`
}
