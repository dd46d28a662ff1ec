package entity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGifJobLifecycle(t *testing.T) {
	job := NewGifJob("user-1", "user-1/clip.mp4", 1024, 4.0, 18, 2)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempt)

	job.MarkFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMessage)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.False(t, job.CanRetry())

	job.MarkCompleted("user-1/clip.gif", 72, 3.95, 2048, false)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMessage)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, 72, job.FrameCount)
}

func TestGifJobMessageDecoding(t *testing.T) {
	raw := `{
		"job_id": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		"user_id": "u",
		"video_key": "u/v.mp4",
		"max_duration_seconds": 2,
		"frames_per_second": 16,
		"start_at_seconds": 0.5,
		"pauses": [{"start": 1, "end": 2.5}],
		"device_orientation": "landscape-left",
		"mirror": false
	}`
	var msg GifJobMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, 2.0, msg.MaxDuration)
	assert.Equal(t, 16, msg.FramesPerSecond)
	assert.Equal(t, "landscape-left", msg.DeviceOrientation)
	assert.Empty(t, msg.Orientation)
	require.NotNil(t, msg.Mirror)
	assert.False(t, *msg.Mirror)
	assert.Equal(t, Script{StartAt: 0.5, Pauses: []PauseWindow{{Start: 1, End: 2.5}}}, msg.Script())
}

func TestScriptValidate(t *testing.T) {
	assert.NoError(t, Script{}.Validate())
	assert.ErrorIs(t, Script{StartAt: -1}.Validate(), ErrInvalidScript)
	assert.ErrorIs(t, Script{Pauses: []PauseWindow{{Start: 2, End: 2}}}.Validate(), ErrInvalidScript)
	assert.ErrorIs(t, Script{Pauses: []PauseWindow{{Start: -1, End: 2}}}.Validate(), ErrInvalidScript)
}

func TestScriptValidateRejectsNonFinite(t *testing.T) {
	for _, s := range []Script{
		{StartAt: math.NaN()},
		{StartAt: math.Inf(1)},
		{Pauses: []PauseWindow{{Start: math.NaN(), End: 5}}},
		{Pauses: []PauseWindow{{Start: 1, End: math.NaN()}}},
		{Pauses: []PauseWindow{{Start: 1, End: math.Inf(1)}}},
		{Pauses: []PauseWindow{{Start: math.Inf(-1), End: 2}}},
	} {
		assert.ErrorIs(t, s.Validate(), ErrInvalidScript, "%+v", s)
		_, err := s.Compile()
		assert.ErrorIs(t, err, ErrInvalidScript)
	}
}

func TestCompiledScriptCueAt(t *testing.T) {
	script := Script{
		StartAt: 1,
		Pauses: []PauseWindow{
			{Start: 5, End: 6},
			{Start: 2, End: 3},
			{Start: 2.5, End: 4},
		},
	}
	c, err := script.Compile()
	require.NoError(t, err)

	at := func(s float64) Cue { return c.CueAt(mediatime.FromSeconds(s)) }
	assert.Equal(t, CueWait, at(0))
	assert.Equal(t, CueWait, at(0.99))
	assert.Equal(t, CueRecord, at(1))
	assert.Equal(t, CueRecord, at(1.99))
	assert.Equal(t, CuePause, at(2))
	assert.Equal(t, CuePause, at(3.5))
	assert.Equal(t, CueRecord, at(4))
	assert.Equal(t, CuePause, at(5.5))
	assert.Equal(t, CueRecord, at(6))
	assert.Equal(t, CueRecord, at(100))
}

func TestCompileRejectsInvalidScript(t *testing.T) {
	_, err := Script{StartAt: -0.5}.Compile()
	assert.ErrorIs(t, err, ErrInvalidScript)
}
