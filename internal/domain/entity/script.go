package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
)

var ErrInvalidScript = errors.New("invalid recording script")

// PauseWindow is a span of source time, in seconds from the first frame,
// during which recording is paused. End is exclusive.
type PauseWindow struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Script says when to press record and pause while replaying a source video.
type Script struct {
	StartAt float64
	Pauses  []PauseWindow
}

type Cue int

const (
	// CueWait: recording has not started yet.
	CueWait Cue = iota
	CueRecord
	CuePause
)

func (s Script) Validate() error {
	if !finite(s.StartAt) {
		return fmt.Errorf("%w: start_at %v is not a finite number", ErrInvalidScript, s.StartAt)
	}
	if s.StartAt < 0 {
		return fmt.Errorf("%w: start_at %v is negative", ErrInvalidScript, s.StartAt)
	}
	for i, p := range s.Pauses {
		if !finite(p.Start) || !finite(p.End) {
			return fmt.Errorf("%w: pause %d [%v, %v) is not finite", ErrInvalidScript, i, p.Start, p.End)
		}
		if p.Start < 0 || p.End <= p.Start {
			return fmt.Errorf("%w: pause %d [%v, %v) is empty or negative", ErrInvalidScript, i, p.Start, p.End)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type compiledWindow struct {
	start, end mediatime.Time
}

// CompiledScript answers Cue lookups on the media timeline.
type CompiledScript struct {
	startAt mediatime.Time
	pauses  []compiledWindow
}

// Compile converts the script to media time, sorted and with overlapping
// pauses merged.
func (s Script) Compile() (CompiledScript, error) {
	if err := s.Validate(); err != nil {
		return CompiledScript{}, err
	}

	windows := make([]compiledWindow, 0, len(s.Pauses))
	for _, p := range s.Pauses {
		windows = append(windows, compiledWindow{
			start: mediatime.FromSeconds(p.Start),
			end:   mediatime.FromSeconds(p.End),
		})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	merged := windows[:0]
	for _, w := range windows {
		if n := len(merged); n > 0 && w.start <= merged[n-1].end {
			if w.end > merged[n-1].end {
				merged[n-1].end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}

	return CompiledScript{startAt: mediatime.FromSeconds(s.StartAt), pauses: merged}, nil
}

// CueAt returns what the recorder should be doing at offset from the first frame.
func (c CompiledScript) CueAt(offset mediatime.Time) Cue {
	if offset < c.startAt {
		return CueWait
	}
	for _, w := range c.pauses {
		if offset < w.start {
			break
		}
		if offset < w.end {
			return CuePause
		}
	}
	return CueRecord
}
