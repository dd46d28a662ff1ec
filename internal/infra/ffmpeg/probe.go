package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var (
	ErrProbe         = errors.New("ffprobe failed")
	ErrNoVideoStream = fmt.Errorf("%w: no video stream", port.ErrUnsupportedVideo)
)

// ProbeFunc runs ffprobe and returns its JSON output.
type ProbeFunc func(fileName string, timeout time.Duration, kwargs ffmpeg.KwArgs) (string, error)

// ProbeResult is the stream geometry plus the presentation timestamp of
// every frame, in decode output order.
type ProbeResult struct {
	Info port.VideoInfo
	PTS  []mediatime.Time
}

// PTSAt returns the timestamp of frame i. Frames past the probed list are
// extrapolated with the last frame interval.
func (r *ProbeResult) PTSAt(i int) mediatime.Time {
	n := len(r.PTS)
	switch {
	case i < n:
		return r.PTS[i]
	case n == 0:
		return mediatime.Zero
	case n == 1:
		return r.PTS[0]
	}
	step := r.PTS[n-1].Sub(r.PTS[n-2])
	return r.PTS[n-1].Add(step * mediatime.Time(i-n+1))
}

type Prober struct {
	timeout time.Duration
	probe   ProbeFunc
}

func NewProber(timeout time.Duration) *Prober {
	return &Prober{timeout: timeout, probe: ffmpeg.ProbeWithTimeout}
}

func (p *Prober) Probe(ctx context.Context, videoPath string) (*ProbeResult, error) {
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := p.probe(videoPath, timeout, ffmpeg.KwArgs{
		"select_streams": "v:0",
		"show_frames":    "",
		"show_entries":   "stream=width,height,time_base,duration:format=duration:frame=pts,pkt_dts,best_effort_timestamp",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbe, err)
	}
	return parseProbe(raw)
}

type probeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		TimeBase string `json:"time_base"`
		Duration string `json:"duration"`
	} `json:"streams"`
	Frames []struct {
		PTS                 *int64 `json:"pts"`
		PktDTS              *int64 `json:"pkt_dts"`
		BestEffortTimestamp *int64 `json:"best_effort_timestamp"`
	} `json:"frames"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(raw string) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: parse output: %v", ErrProbe, err)
	}
	if len(out.Streams) == 0 {
		return nil, ErrNoVideoStream
	}
	stream := out.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", ErrProbe, stream.Width, stream.Height)
	}

	num, den, err := parseTimeBase(stream.TimeBase)
	if err != nil {
		return nil, err
	}

	pts := make([]mediatime.Time, 0, len(out.Frames))
	for i, f := range out.Frames {
		var ts *int64
		switch {
		case f.PTS != nil:
			ts = f.PTS
		case f.BestEffortTimestamp != nil:
			ts = f.BestEffortTimestamp
		case f.PktDTS != nil:
			ts = f.PktDTS
		}
		if ts == nil {
			// no timestamp at all; continue the cadence of the previous frames
			r := ProbeResult{PTS: pts}
			pts = append(pts, r.PTSAt(i))
			continue
		}
		pts = append(pts, mediatime.Rescale(*ts*num, den))
	}

	duration := parseSeconds(stream.Duration)
	if duration == 0 {
		duration = parseSeconds(out.Format.Duration)
	}

	return &ProbeResult{
		Info: port.VideoInfo{
			Width:      stream.Width,
			Height:     stream.Height,
			Duration:   duration,
			FrameCount: len(pts),
		},
		PTS: pts,
	}, nil
}

func parseTimeBase(s string) (int64, int64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid time base %q", ErrProbe, s)
	}
	num, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid time base %q", ErrProbe, s)
	}
	den, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid time base %q", ErrProbe, s)
	}
	return num, den, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
