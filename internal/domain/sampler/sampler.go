// Package sampler decides which frames of a live, timestamped video stream
// make it into a clip. A Sampler keeps a recording clock driven by frame
// presentation timestamps, takes the first frame at or after each evenly
// spaced target offset and excises paused intervals from recorded time.
//
// A Sampler is not safe for concurrent use. Frames must be fed from a single
// goroutine in presentation order.
package sampler

import (
	"image"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Action reports what OnFrame did with a frame.
type Action int

const (
	ActionNone Action = iota
	ActionCaptured
	ActionCompleted
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCaptured:
		return "captured"
	case ActionCompleted:
		return "completed"
	}
	return "unknown"
}

// Frame is a decoded video frame and its presentation timestamp.
type Frame struct {
	Image image.Image
	PTS   mediatime.Time
}

// Listener receives session events synchronously from OnFrame and Stop.
// Implementations that touch other goroutines must do their own hand-off.
type Listener interface {
	// SampleCaptured is called after every capture with the number of samples so far.
	SampleCaptured(count int)
	// SessionComplete hands over the captured frames and the recorded duration.
	SessionComplete(frames []image.Image, total mediatime.Time)
}

// Transform prepares a captured frame for the buffer, e.g. crop and orientation.
type Transform func(image.Image) image.Image

type Option func(*Sampler)

func WithTransform(t Transform) Option {
	return func(s *Sampler) {
		if t != nil {
			s.transform = t
		}
	}
}

type nopListener struct{}

func (nopListener) SampleCaptured(int)                             {}
func (nopListener) SessionComplete([]image.Image, mediatime.Time) {}

type Sampler struct {
	cfg       Config
	listener  Listener
	transform Transform

	state      State
	timePoints []mediatime.Time
	cursor     int
	origin     mediatime.NullTime
	elapsed    mediatime.NullTime
	paused     mediatime.Time
	frames     []image.Image
}

// New returns an idle Sampler. The configuration is validated up front so a
// bad clip length is reported before any frame arrives.
func New(cfg Config, listener Listener, opts ...Option) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if listener == nil {
		listener = nopListener{}
	}
	s := &Sampler{
		cfg:       cfg,
		listener:  listener,
		transform: func(img image.Image) image.Image { return img },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins a new session when idle and resumes a paused one. It is a
// no-op while recording.
func (s *Sampler) Start() error {
	switch s.state {
	case StateRecording:
		return nil
	case StatePaused:
		s.state = StateRecording
		return nil
	}

	points, err := s.cfg.TimePoints()
	if err != nil {
		return err
	}
	s.reset()
	s.timePoints = points
	s.frames = make([]image.Image, 0, len(points))
	s.state = StateRecording
	return nil
}

// Pause stops sampling but keeps the captured frames and the clock.
func (s *Sampler) Pause() {
	if s.state == StateRecording {
		s.state = StatePaused
	}
}

// Cancel drops the session without notifying the listener.
func (s *Sampler) Cancel() {
	s.reset()
}

// Stop ends the session early and delivers what was captured so far. It
// returns ErrNotRecording, and resets, when nothing has been captured.
func (s *Sampler) Stop() error {
	if len(s.frames) == 0 {
		s.reset()
		return ErrNotRecording
	}
	s.finish()
	return nil
}

// OnFrame advances the recording clock with one frame.
func (s *Sampler) OnFrame(img image.Image, pts mediatime.Time) Action {
	switch s.state {
	case StateRecording:
		return s.record(img, pts)
	case StatePaused:
		// Keep measuring the gap since the last recorded frame; it is folded
		// into the origin by the first frame after resume.
		if s.elapsed.Valid && s.origin.Valid {
			s.paused = pts.Sub(s.elapsed.Time).Sub(s.origin.Time)
		}
	}
	return ActionNone
}

func (s *Sampler) record(img image.Image, pts mediatime.Time) Action {
	if !s.origin.Valid {
		s.origin = mediatime.Some(pts)
	} else if s.paused > 0 {
		s.origin = mediatime.Some(s.origin.Time.Add(s.paused))
		s.paused = mediatime.Zero
	}

	elapsed := pts.Sub(s.origin.Time)
	s.elapsed = mediatime.Some(elapsed)

	if elapsed < s.timePoints[s.cursor] {
		return ActionNone
	}

	s.frames = append(s.frames, s.transform(img))
	s.listener.SampleCaptured(len(s.frames))

	if s.cursor == len(s.timePoints)-1 {
		s.finish()
		return ActionCompleted
	}
	s.cursor++
	return ActionCaptured
}

func (s *Sampler) finish() {
	frames := s.frames
	var total mediatime.Time
	if s.elapsed.Valid {
		total = s.elapsed.Time
	}
	s.reset()
	s.listener.SessionComplete(frames, total)
}

func (s *Sampler) reset() {
	s.state = StateIdle
	s.timePoints = nil
	s.cursor = 0
	s.origin = mediatime.NullTime{}
	s.elapsed = mediatime.NullTime{}
	s.paused = mediatime.Zero
	s.frames = nil
}

func (s *Sampler) Config() Config { return s.cfg }
func (s *Sampler) State() State   { return s.state }

// Cursor is the index of the next time point to be sampled.
func (s *Sampler) Cursor() int { return s.cursor }

// Captured is the number of frames in the buffer.
func (s *Sampler) Captured() int { return len(s.frames) }

func (s *Sampler) Origin() mediatime.NullTime  { return s.origin }
func (s *Sampler) Elapsed() mediatime.NullTime { return s.elapsed }

// PauseAccumulator is the paused time still to be removed from the clock.
func (s *Sampler) PauseAccumulator() mediatime.Time { return s.paused }

// TimePoints returns a copy of the active session's targets, nil when idle.
func (s *Sampler) TimePoints() []mediatime.Time {
	if s.timePoints == nil {
		return nil
	}
	out := make([]mediatime.Time, len(s.timePoints))
	copy(out, s.timePoints)
	return out
}
