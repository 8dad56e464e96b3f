// Package histogram accumulates raw numeric samples into a compact,
// serializable frequency distribution. Samples are assigned to buckets by a
// pluggable bucketing strategy; only non-empty buckets are kept, so a wide
// logarithmic range costs nothing until it is populated.
package histogram

import "fmt"

// Bucketing maps samples to buckets. A bucket is identified externally by
// its lower bound, which is the key used in snapshots.
type Bucketing interface {
	// BucketIndex returns the index of the bucket the sample falls into.
	// Strategies never reject a sample; out-of-range samples clamp into
	// the first or last bucket.
	BucketIndex(sample uint64) uint64

	// BucketLowerBound returns the lower bound of the bucket at index.
	BucketLowerBound(index uint64) uint64
}

// Type selects the bucketing strategy for custom distributions.
type Type int32

// Wire codes for custom distribution histogram types.
const (
	TypeLinear Type = iota
	TypeExponential
)

// TypeFromCode validates a raw histogram type code.
func TypeFromCode(code int32) (Type, error) {
	switch Type(code) {
	case TypeLinear, TypeExponential:
		return Type(code), nil
	default:
		return 0, fmt.Errorf("invalid histogram_type code: %d", code)
	}
}

func (t Type) String() string {
	switch t {
	case TypeLinear:
		return "linear"
	case TypeExponential:
		return "exponential"
	default:
		return fmt.Sprintf("histogram_type(%d)", int32(t))
	}
}
