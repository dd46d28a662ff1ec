package sampler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
)

const (
	DefaultMaxDuration     = 4.0
	DefaultFramesPerSecond = 18

	// MaxFrameCount and MaxDurationSeconds bound any session regardless of
	// the operational Limits in force.
	MaxFrameCount      = 1 << 16
	MaxDurationSeconds = 24 * 60 * 60

	DefaultLimitFrames   = 300
	DefaultLimitDuration = 60.0
)

var (
	ErrInvalidConfig = errors.New("sampler: invalid configuration")
	ErrNotRecording  = errors.New("sampler: no samples captured")
)

// Config describes the clip a session records: FramesPerSecond samples per
// second of recorded time, for MaxDuration seconds.
type Config struct {
	MaxDuration     float64
	FramesPerSecond int
}

func DefaultConfig() Config {
	return Config{MaxDuration: DefaultMaxDuration, FramesPerSecond: DefaultFramesPerSecond}
}

// FrameCount is the number of samples a complete session captures.
func (c Config) FrameCount() int {
	return int(math.Round(float64(c.FramesPerSecond) * c.MaxDuration))
}

func (c Config) Validate() error {
	if c.MaxDuration <= 0 || math.IsNaN(c.MaxDuration) || math.IsInf(c.MaxDuration, 0) {
		return fmt.Errorf("%w: max duration %v must be positive", ErrInvalidConfig, c.MaxDuration)
	}
	if c.MaxDuration > MaxDurationSeconds {
		return fmt.Errorf("%w: max duration %v exceeds %d seconds", ErrInvalidConfig, c.MaxDuration, MaxDurationSeconds)
	}
	if c.FramesPerSecond <= 0 {
		return fmt.Errorf("%w: frames per second %d must be positive", ErrInvalidConfig, c.FramesPerSecond)
	}
	// Checked as a float so huge rates cannot overflow the int conversion.
	n := math.Round(float64(c.FramesPerSecond) * c.MaxDuration)
	if n < 1 {
		return fmt.Errorf("%w: %v seconds at %d fps yields no frames", ErrInvalidConfig, c.MaxDuration, c.FramesPerSecond)
	}
	if n > MaxFrameCount {
		return fmt.Errorf("%w: %v seconds at %d fps exceeds %d frames", ErrInvalidConfig, c.MaxDuration, c.FramesPerSecond, MaxFrameCount)
	}
	// Each sample interval must span at least one tick or time points repeat.
	if int64(mediatime.FromSeconds(c.MaxDuration)) < int64(n) {
		return fmt.Errorf("%w: %d fps is finer than the clock resolution", ErrInvalidConfig, c.FramesPerSecond)
	}
	return nil
}

// Limits caps the clips a deployment accepts. A zero field is unbounded.
type Limits struct {
	MaxFrames   int
	MaxDuration float64
}

func DefaultLimits() Limits {
	return Limits{MaxFrames: DefaultLimitFrames, MaxDuration: DefaultLimitDuration}
}

// ValidateWithin validates c and checks it against l.
func (c Config) ValidateWithin(l Limits) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if l.MaxDuration > 0 && c.MaxDuration > l.MaxDuration {
		return fmt.Errorf("%w: max duration %v exceeds limit %v", ErrInvalidConfig, c.MaxDuration, l.MaxDuration)
	}
	if l.MaxFrames > 0 && c.FrameCount() > l.MaxFrames {
		return fmt.Errorf("%w: %d frames exceeds limit %d", ErrInvalidConfig, c.FrameCount(), l.MaxFrames)
	}
	return nil
}

// FrameDelay is how long each sample is shown in the exported clip.
func (c Config) FrameDelay() time.Duration {
	if c.Validate() != nil {
		return 0
	}
	n := c.FrameCount()
	return mediatime.FromSeconds(c.MaxDuration).MulDiv(1, int64(n)).Duration()
}

// TimePoints returns the recorded-time offsets at which samples are due:
// FrameCount offsets spaced evenly over [0, MaxDuration).
func (c Config) TimePoints() ([]mediatime.Time, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := int64(c.FrameCount())
	total := mediatime.FromSeconds(c.MaxDuration)
	points := make([]mediatime.Time, n)
	for i := int64(0); i < n; i++ {
		points[i] = total.MulDiv(i, n)
	}
	return points, nil
}
