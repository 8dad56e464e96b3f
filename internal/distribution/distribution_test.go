package distribution

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/distributoor/internal/histogram"
)

func TestCustomLinear(t *testing.T) {
	out, err := Custom(0, 100, 10, 0, []uint64{5, 15, 15, 105})
	require.NoError(t, err)

	assert.Equal(t, `{"0":1,"10":2,"90":1}`, out)
}

func TestCustomExponential(t *testing.T) {
	values, err := CustomValues(1, 10000, 10, 1, []uint64{1, 1, 5000})
	require.NoError(t, err)

	var total uint64
	for _, c := range values {
		total += c
	}

	assert.Equal(t, uint64(3), total)
	assert.Equal(t, uint64(2), values[1])
}

func TestCustomEmptySamples(t *testing.T) {
	// Zero input samples is a valid call, distinct from a failure.
	out, err := Custom(0, 100, 10, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, `{}`, out)
}

func TestCustomInvalidHistogramType(t *testing.T) {
	_, err := Custom(0, 100, 10, 2, []uint64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Custom(0, 100, 10, -1, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCustomInvalidRange(t *testing.T) {
	_, err := Custom(100, 100, 10, 0, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Custom(0, 100, 0, 1, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTimingSnapshot(t *testing.T) {
	snap, err := TimingSnapshot(0, []uint64{10, 20, 20})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), snap.Count)
	assert.Equal(t, uint64(50), snap.Sum)

	var total uint64
	for _, c := range snap.Values {
		total += c
	}

	assert.Equal(t, snap.Count, total)
}

func TestTimingZeroPromotedToOne(t *testing.T) {
	zero, err := TimingSnapshot(0, []uint64{0})
	require.NoError(t, err)

	one, err := TimingSnapshot(0, []uint64{1})
	require.NoError(t, err)

	assert.Equal(t, one.Values, zero.Values)
	assert.Equal(t, uint64(1), zero.Sum)
}

func TestTimingClampsBeforeConversion(t *testing.T) {
	const tenMinutesNs = uint64(1000 * 1000 * 1000 * 60 * 10)

	// 700s in nanoseconds exceeds the ten minute ceiling.
	over, err := TimingSnapshot(0, []uint64{700_000_000_000})
	require.NoError(t, err)

	capped, err := TimingSnapshot(0, []uint64{tenMinutesNs})
	require.NoError(t, err)

	assert.Equal(t, capped.Values, over.Values)
	assert.Equal(t, tenMinutesNs, over.Sum)

	// In milliseconds the same raw value is under the ceiling and is
	// converted, not clamped: the cap is checked against the raw value.
	ms, err := TimingSnapshot(2, []uint64{700_000})
	require.NoError(t, err)
	assert.Equal(t, uint64(700_000)*1_000_000, ms.Sum)
}

func TestTimingCoarseUnitSaturates(t *testing.T) {
	// A huge sample in seconds is clamped to the raw ceiling, but the
	// conversion to nanoseconds still exceeds the uint64 range. It must
	// saturate into the top bucket, not wrap into a garbage one.
	snap, err := TimingSnapshot(3, []uint64{700_000_000_000})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), snap.Count)
	assert.Equal(t, uint64(math.MaxUint64), snap.Sum)
	assert.Equal(t, uint64(1), snap.Values[math.MaxUint64])
}

func TestTimingInvalidUnit(t *testing.T) {
	_, err := Timing(-1, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Timing(42, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMemorySnapshot(t *testing.T) {
	snap, err := MemorySnapshot(0, []uint64{1024, 1024})
	require.NoError(t, err)

	assert.Equal(t, uint64(2), snap.Count)
	assert.Equal(t, uint64(2048), snap.Sum)
}

func TestMemoryClampsAfterConversion(t *testing.T) {
	const oneTiB = uint64(1) << 40

	// 2 TiB of bytes is clamped to 1 TiB.
	over, err := MemorySnapshot(0, []uint64{1 << 41})
	require.NoError(t, err)
	assert.Equal(t, oneTiB, over.Sum)

	// 2048 GiB converts to 2 TiB, then clamps. The clamp applies to the
	// converted value, unlike timing.
	gb, err := MemorySnapshot(3, []uint64{2048})
	require.NoError(t, err)
	assert.Equal(t, oneTiB, gb.Sum)
	assert.Equal(t, over.Values, gb.Values)
}

func TestMemoryCoarseUnitSaturates(t *testing.T) {
	// 2^40 gigabytes wraps a uint64 byte count; the saturating
	// conversion still clamps down to the 1 TiB ceiling.
	snap, err := MemorySnapshot(3, []uint64{1 << 40})
	require.NoError(t, err)

	assert.Equal(t, uint64(1)<<40, snap.Sum)
	assert.Equal(t, uint64(1), snap.Count)
}

func TestMemoryInvalidUnit(t *testing.T) {
	_, err := Memory(99, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = Memory(-1, []uint64{1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTimingSerializedShape(t *testing.T) {
	out, err := Timing(0, []uint64{0, 0})
	require.NoError(t, err)

	var snap histogram.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))

	assert.Equal(t, uint64(2), snap.Count)
	assert.Equal(t, uint64(2), snap.Sum)
	assert.Equal(t, uint64(2), snap.Values[1])
}
