package histogram

import "fmt"

// Linear partitions [rangeMin, rangeMax) into equal-width buckets.
// Samples below the range collapse into the first bucket, samples at or
// above rangeMax into the last; nothing is ever dropped.
type Linear struct {
	rangeMin    uint64
	rangeMax    uint64
	bucketCount uint64
	width       float64
}

// NewLinear creates a linear bucketing over [rangeMin, rangeMax) with
// bucketCount equal-width buckets.
func NewLinear(rangeMin, rangeMax uint64, bucketCount int) (*Linear, error) {
	if bucketCount <= 0 {
		return nil, fmt.Errorf("bucket_count must be positive, got %d", bucketCount)
	}

	if rangeMax <= rangeMin {
		return nil, fmt.Errorf(
			"range_max (%d) must be greater than range_min (%d)",
			rangeMax, rangeMin,
		)
	}

	return &Linear{
		rangeMin:    rangeMin,
		rangeMax:    rangeMax,
		bucketCount: uint64(bucketCount),
		width:       float64(rangeMax-rangeMin) / float64(bucketCount),
	}, nil
}

// BucketIndex implements Bucketing.
func (l *Linear) BucketIndex(sample uint64) uint64 {
	if sample < l.rangeMin {
		return 0
	}

	if sample >= l.rangeMax {
		return l.bucketCount - 1
	}

	idx := uint64(float64(sample-l.rangeMin) / l.width)
	if idx >= l.bucketCount {
		idx = l.bucketCount - 1
	}

	return idx
}

// BucketLowerBound implements Bucketing.
func (l *Linear) BucketLowerBound(index uint64) uint64 {
	if index >= l.bucketCount {
		index = l.bucketCount - 1
	}

	return l.rangeMin + uint64(float64(index)*l.width)
}
