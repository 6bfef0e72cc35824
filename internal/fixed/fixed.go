// Package fixed holds the integer helpers the touch pipeline uses in place of
// floating point: absolute values, clamping, saturating adds and shift-based
// averaging.
package fixed

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Abs for signed integers. Abs(math.MinInt32) saturates to math.MaxInt32.
func Abs[T constraints.Signed](x T) T {
	if x >= 0 {
		return x
	}
	if -x < 0 {
		return ^x
	}
	return -x
}

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddSat32 returns a+b, saturating at the int32 limits.
func AddSat32(a, b int32) int32 {
	s := int64(a) + int64(b)
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	if s < math.MinInt32 {
		return math.MinInt32
	}
	return int32(s)
}

// DrainTo0 subtracts step from v and clamps the result at zero.
func DrainTo0(v, step int32) int32 {
	if v <= step {
		return 0
	}
	return v - step
}

// Avg returns total >> shift narrowed to uint16 (saturating).
func Avg(total uint32, shift uint8) uint16 {
	a := total >> shift
	if a > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(a)
}

// DivMod splits n into whole units of size d and the remainder.
// d == 0 is coerced to 1 to avoid division by zero.
func DivMod[T constraints.Unsigned](n, d T) (q, r T) {
	if d == 0 {
		d = 1
	}
	return n / d, n % d
}
