// Package units maps wire-level unit codes to conversion factors.
package units

import (
	"fmt"
	"math"
)

// TimeUnit identifies the resolution of raw timing samples.
type TimeUnit int32

// Time unit codes as they appear on the wire.
const (
	TimeUnitNanosecond TimeUnit = iota
	TimeUnitMicrosecond
	TimeUnitMillisecond
	TimeUnitSecond
	TimeUnitMinute
	TimeUnitHour
	TimeUnitDay
)

// TimeUnitFromCode validates a raw time unit code.
func TimeUnitFromCode(code int32) (TimeUnit, error) {
	if code < int32(TimeUnitNanosecond) || code > int32(TimeUnitDay) {
		return 0, fmt.Errorf("invalid time_unit code: %d", code)
	}

	return TimeUnit(code), nil
}

// AsNanos converts a sample in this unit to nanoseconds. A conversion
// that would exceed the uint64 range saturates instead of wrapping.
func (u TimeUnit) AsNanos(sample uint64) uint64 {
	return mulSat(sample, u.nanosFactor())
}

func (u TimeUnit) nanosFactor() uint64 {
	switch u {
	case TimeUnitNanosecond:
		return 1
	case TimeUnitMicrosecond:
		return 1_000
	case TimeUnitMillisecond:
		return 1_000_000
	case TimeUnitSecond:
		return 1_000_000_000
	case TimeUnitMinute:
		return 1_000_000_000 * 60
	case TimeUnitHour:
		return 1_000_000_000 * 60 * 60
	case TimeUnitDay:
		return 1_000_000_000 * 60 * 60 * 24
	default:
		return 1
	}
}

func (u TimeUnit) String() string {
	switch u {
	case TimeUnitNanosecond:
		return "nanosecond"
	case TimeUnitMicrosecond:
		return "microsecond"
	case TimeUnitMillisecond:
		return "millisecond"
	case TimeUnitSecond:
		return "second"
	case TimeUnitMinute:
		return "minute"
	case TimeUnitHour:
		return "hour"
	case TimeUnitDay:
		return "day"
	default:
		return fmt.Sprintf("time_unit(%d)", int32(u))
	}
}

// MemoryUnit identifies the resolution of raw memory size samples.
type MemoryUnit int32

// Memory unit codes as they appear on the wire.
const (
	MemoryUnitByte MemoryUnit = iota
	MemoryUnitKilobyte
	MemoryUnitMegabyte
	MemoryUnitGigabyte
)

// MemoryUnitFromCode validates a raw memory unit code.
func MemoryUnitFromCode(code int32) (MemoryUnit, error) {
	if code < int32(MemoryUnitByte) || code > int32(MemoryUnitGigabyte) {
		return 0, fmt.Errorf("invalid memory_unit code: %d", code)
	}

	return MemoryUnit(code), nil
}

// AsBytes converts a sample in this unit to bytes, saturating like
// AsNanos.
func (u MemoryUnit) AsBytes(sample uint64) uint64 {
	return mulSat(sample, u.byteFactor())
}

func (u MemoryUnit) byteFactor() uint64 {
	switch u {
	case MemoryUnitByte:
		return 1
	case MemoryUnitKilobyte:
		return 1 << 10
	case MemoryUnitMegabyte:
		return 1 << 20
	case MemoryUnitGigabyte:
		return 1 << 30
	default:
		return 1
	}
}

// mulSat multiplies sample by a non-zero factor, saturating at the top of
// the uint64 range.
func mulSat(sample, factor uint64) uint64 {
	if sample > math.MaxUint64/factor {
		return math.MaxUint64
	}

	return sample * factor
}

func (u MemoryUnit) String() string {
	switch u {
	case MemoryUnitByte:
		return "byte"
	case MemoryUnitKilobyte:
		return "kilobyte"
	case MemoryUnitMegabyte:
		return "megabyte"
	case MemoryUnitGigabyte:
		return "gigabyte"
	default:
		return fmt.Sprintf("memory_unit(%d)", int32(u))
	}
}
