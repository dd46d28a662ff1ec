// Package mediatime implements presentation time as an integer tick count at
// a fixed timescale, so that comparisons across a long recording never drift.
package mediatime

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// Timescale is the number of ticks per second. 90 kHz is the MPEG
// presentation clock and divides evenly by the common frame rates.
const Timescale = 90000

// Time is a point or span on the presentation timeline, in 1/Timescale seconds.
type Time int64

// Zero is the start of the timeline.
const Zero Time = 0

// FromSeconds converts seconds to ticks, rounding to the nearest tick.
func FromSeconds(s float64) Time {
	return Time(math.Round(s * Timescale))
}

// Rescale converts value expressed in 1/timescale seconds to ticks. Inexact
// results are rounded away from zero. A non-positive timescale yields Zero.
func Rescale(value, timescale int64) Time {
	if timescale <= 0 {
		return Zero
	}
	if timescale == Timescale {
		return Time(value)
	}

	num := new(big.Int).Mul(big.NewInt(value), big.NewInt(Timescale))
	den := big.NewInt(timescale)
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		if num.Sign() > 0 {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return Time(q.Int64())
}

func (t Time) Add(u Time) Time { return t + u }
func (t Time) Sub(u Time) Time { return t - u }

// MulDiv returns t*num/den, truncated toward zero.
func (t Time) MulDiv(num, den int64) Time {
	if den == 0 {
		return Zero
	}
	v := new(big.Int).Mul(big.NewInt(int64(t)), big.NewInt(num))
	v.Quo(v, big.NewInt(den))
	return Time(v.Int64())
}

// Seconds returns t as floating point seconds. Use only for display and export.
func (t Time) Seconds() float64 {
	return float64(t) / Timescale
}

// Duration converts t to a time.Duration, truncated to the nanosecond.
func (t Time) Duration() time.Duration {
	return time.Duration(t.MulDiv(int64(time.Second), Timescale))
}

func (t Time) String() string {
	return fmt.Sprintf("%d/%d", int64(t), Timescale)
}

// NullTime is a Time that may be unset.
type NullTime struct {
	Time  Time
	Valid bool
}

// Some returns a set NullTime holding t.
func Some(t Time) NullTime {
	return NullTime{Time: t, Valid: true}
}

func (n NullTime) String() string {
	if !n.Valid {
		return "unset"
	}
	return n.Time.String()
}
