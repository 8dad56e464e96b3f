package histogram

import (
	"fmt"
	"math"

	"github.com/ethpandaops/distributoor/internal/fpenv"
)

// Functional buckets samples by formula instead of a precomputed table, so
// it has no upper range limit and no overflow bucket. Bucket density is
// bucketsPerMagnitude buckets per order of magnitude of logBase.
type Functional struct {
	logBase             float64
	bucketsPerMagnitude float64
}

// NewFunctional creates a functional bucketing.
func NewFunctional(logBase, bucketsPerMagnitude float64) (*Functional, error) {
	if logBase <= 1.0 {
		return nil, fmt.Errorf("log_base must be greater than 1.0, got %v", logBase)
	}

	if bucketsPerMagnitude <= 0 {
		return nil, fmt.Errorf(
			"buckets_per_magnitude must be positive, got %v",
			bucketsPerMagnitude,
		)
	}

	return &Functional{
		logBase:             logBase,
		bucketsPerMagnitude: bucketsPerMagnitude,
	}, nil
}

// BucketIndex implements Bucketing. A zero sample is a meaningful
// low-magnitude value, not an error; it is treated as 1 to stay inside the
// logarithm's domain.
func (f *Functional) BucketIndex(sample uint64) uint64 {
	fp := fpenv.Acquire()
	defer fp.Release()

	if sample == 0 {
		sample = 1
	}

	return uint64(f.bucketsPerMagnitude * math.Log(float64(sample)) / math.Log(f.logBase))
}

// BucketLowerBound implements Bucketing. The highest buckets hold
// saturated samples and can start at or beyond 2^64; their lower bound
// saturates to the maximum uint64 rather than overflowing the conversion.
func (f *Functional) BucketLowerBound(index uint64) uint64 {
	fp := fpenv.Acquire()
	defer fp.Release()

	bound := math.Ceil(math.Pow(f.logBase, float64(index)/f.bucketsPerMagnitude))
	if bound >= float64(math.MaxUint64) {
		return math.MaxUint64
	}

	return uint64(bound)
}
