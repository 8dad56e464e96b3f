package histogram

import (
	"fmt"
	"math"
	"sort"

	"github.com/ethpandaops/distributoor/internal/fpenv"
)

// Exponential buckets samples against a table of boundaries precomputed by
// geometric interpolation between rangeMin and rangeMax.
//
// Boundary generation takes equal steps in log space from max(rangeMin, 1)
// to rangeMax over bucketCount positions and rounds each to the nearest
// integer. A candidate that does not exceed the previous boundary is
// dropped, merging the two buckets; the table is therefore strictly
// increasing but may hold fewer than bucketCount entries for small ranges.
type Exponential struct {
	boundaries []uint64
}

// NewExponential creates an exponential bucketing over [rangeMin, rangeMax]
// with at most bucketCount buckets.
func NewExponential(rangeMin, rangeMax uint64, bucketCount int) (*Exponential, error) {
	if bucketCount <= 0 {
		return nil, fmt.Errorf("bucket_count must be positive, got %d", bucketCount)
	}

	if rangeMax <= rangeMin {
		return nil, fmt.Errorf(
			"range_max (%d) must be greater than range_min (%d)",
			rangeMax, rangeMin,
		)
	}

	return &Exponential{
		boundaries: exponentialBoundaries(rangeMin, rangeMax, bucketCount),
	}, nil
}

// exponentialBoundaries computes the boundary table. The log-space math
// must produce bit-identical results on every platform, so it runs with the
// floating-point environment pinned.
func exponentialBoundaries(rangeMin, rangeMax uint64, bucketCount int) []uint64 {
	fp := fpenv.Acquire()
	defer fp.Release()

	// A zero-width first bucket is meaningless.
	lo := rangeMin
	if lo == 0 {
		lo = 1
	}

	boundaries := make([]uint64, 1, bucketCount)
	boundaries[0] = lo

	if bucketCount == 1 {
		return boundaries
	}

	logLo := math.Log(float64(lo))
	logStep := (math.Log(float64(rangeMax)) - logLo) / float64(bucketCount-1)

	for i := 1; i < bucketCount; i++ {
		next := uint64(math.Round(math.Exp(logLo + float64(i)*logStep)))
		if next <= boundaries[len(boundaries)-1] {
			// Rounded onto the previous boundary; merge.
			continue
		}

		boundaries = append(boundaries, next)
	}

	return boundaries
}

// BucketIndex implements Bucketing. Samples below the first boundary map to
// bucket 0, samples at or above the last boundary to the final bucket.
func (e *Exponential) BucketIndex(sample uint64) uint64 {
	idx := sort.Search(len(e.boundaries), func(i int) bool {
		return e.boundaries[i] > sample
	})

	if idx == 0 {
		return 0
	}

	return uint64(idx - 1)
}

// BucketLowerBound implements Bucketing.
func (e *Exponential) BucketLowerBound(index uint64) uint64 {
	if index >= uint64(len(e.boundaries)) {
		index = uint64(len(e.boundaries)) - 1
	}

	return e.boundaries[index]
}

// Boundaries returns the precomputed boundary table.
func (e *Exponential) Boundaries() []uint64 {
	out := make([]uint64, len(e.boundaries))
	copy(out, e.boundaries)

	return out
}
