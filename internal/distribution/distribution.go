// Package distribution exposes the three sample-accumulation entry points:
// custom (linear or exponential), timing and memory. Each call builds a
// fresh histogram, feeds every sample through it and serializes the result.
package distribution

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethpandaops/distributoor/internal/histogram"
	"github.com/ethpandaops/distributoor/internal/units"
)

// ErrInvalidArgument marks caller errors: unknown discriminant codes and
// invalid strategy configuration. Detected before any sample is processed.
var ErrInvalidArgument = errors.New("invalid argument")

// Timing distribution parameters.
const (
	timingLogBase             = 2.0
	timingBucketsPerMagnitude = 8.0

	// maxSampleTime caps recorded durations at ten minutes in
	// nanoseconds, which retains at most 316 buckets. The cap is applied
	// to the raw sample before unit conversion, so the effective ceiling
	// scales with the unit: ~10 minutes for nanosecond input, ~6.94 days
	// for microseconds, ~19 years for milliseconds.
	maxSampleTime uint64 = 1000 * 1000 * 1000 * 60 * 10
)

// Memory distribution parameters.
const (
	memoryLogBase             = 2.0
	memoryBucketsPerMagnitude = 16.0

	// maxBytes caps recorded sizes at 1 terabyte, applied after unit
	// conversion, so the buckets are not completely unbounded.
	maxBytes uint64 = 1 << 40
)

// CustomValues accumulates samples into a linear or exponential histogram
// selected by histogramType and returns the sparse bucket counts. Samples
// are taken as-is; no unit conversion is performed.
func CustomValues(
	rangeMin, rangeMax uint32,
	bucketCount int,
	histogramType int32,
	samples []uint64,
) (histogram.Values, error) {
	typ, err := histogram.TypeFromCode(histogramType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	var bucketing histogram.Bucketing

	switch typ {
	case histogram.TypeLinear:
		bucketing, err = histogram.NewLinear(
			uint64(rangeMin), uint64(rangeMax), bucketCount,
		)
	case histogram.TypeExponential:
		bucketing, err = histogram.NewExponential(
			uint64(rangeMin), uint64(rangeMax), bucketCount,
		)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	hist := histogram.New(bucketing)
	for _, sample := range samples {
		hist.Accumulate(sample)
	}

	return hist.SnapshotValues(), nil
}

// Custom runs CustomValues and serializes the bucket counts as a JSON
// object with keys in ascending numeric order.
func Custom(
	rangeMin, rangeMax uint32,
	bucketCount int,
	histogramType int32,
	samples []uint64,
) (string, error) {
	values, err := CustomValues(rangeMin, rangeMax, bucketCount, histogramType, samples)
	if err != nil {
		return "", err
	}

	return marshal(values)
}

// TimingSnapshot accumulates timing samples, given in timeUnit, into a
// functional histogram over nanoseconds and returns the full snapshot.
//
// Each raw sample is clamped before conversion: zero is promoted to 1 to
// stay inside the logarithm's domain, and anything above maxSampleTime is
// pinned to it.
func TimingSnapshot(timeUnit int32, samples []uint64) (histogram.Snapshot, error) {
	unit, err := units.TimeUnitFromCode(timeUnit)
	if err != nil {
		return histogram.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	functional, err := histogram.NewFunctional(timingLogBase, timingBucketsPerMagnitude)
	if err != nil {
		return histogram.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	hist := histogram.New(functional)

	for _, sample := range samples {
		if sample == 0 {
			sample = 1
		} else if sample > maxSampleTime {
			sample = maxSampleTime
		}

		hist.Accumulate(unit.AsNanos(sample))
	}

	return hist.Snapshot(), nil
}

// Timing runs TimingSnapshot and serializes the result.
func Timing(timeUnit int32, samples []uint64) (string, error) {
	snap, err := TimingSnapshot(timeUnit, samples)
	if err != nil {
		return "", err
	}

	return marshal(snap)
}

// MemorySnapshot accumulates memory size samples, given in memoryUnit,
// into a functional histogram over bytes and returns the full snapshot.
//
// Conversion happens first; the converted byte value is then clamped to
// maxBytes. This is the opposite ordering to TimingSnapshot.
func MemorySnapshot(memoryUnit int32, samples []uint64) (histogram.Snapshot, error) {
	unit, err := units.MemoryUnitFromCode(memoryUnit)
	if err != nil {
		return histogram.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	functional, err := histogram.NewFunctional(memoryLogBase, memoryBucketsPerMagnitude)
	if err != nil {
		return histogram.Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	hist := histogram.New(functional)

	for _, sample := range samples {
		converted := unit.AsBytes(sample)
		if converted > maxBytes {
			converted = maxBytes
		}

		hist.Accumulate(converted)
	}

	return hist.Snapshot(), nil
}

// Memory runs MemorySnapshot and serializes the result.
func Memory(memoryUnit int32, samples []uint64) (string, error) {
	snap, err := MemorySnapshot(memoryUnit, samples)
	if err != nil {
		return "", err
	}

	return marshal(snap)
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	return string(data), nil
}
