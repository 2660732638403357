// Package timeutil provides small clock-skew helpers shared by the handshake
// and discovery registry, where tolerances are expressed in whole seconds on
// the wire but computed from time.Duration internally.
package timeutil

import (
	"math"
	"time"
)

// SkewSecondsCeil rounds a duration up to whole seconds, clamping negatives to zero.
func SkewSecondsCeil(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := d / time.Second
	if d%time.Second != 0 {
		sec++
	}
	return int64(sec)
}

// NormalizeSkew rounds a skew duration up to the nearest whole second.
func NormalizeSkew(d time.Duration) time.Duration {
	return time.Duration(SkewSecondsCeil(d)) * time.Second
}

// AddSkewUnix adds a skew duration (in whole seconds) to a Unix timestamp,
// saturating at math.MaxInt64 instead of overflowing.
func AddSkewUnix(unixSeconds int64, skew time.Duration) int64 {
	add := SkewSecondsCeil(skew)
	if add == 0 {
		return unixSeconds
	}
	if unixSeconds > math.MaxInt64-add {
		return math.MaxInt64
	}
	return unixSeconds + add
}
