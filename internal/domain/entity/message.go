package entity

import "github.com/google/uuid"

// GifJobMessage is the inbound message from the gif jobs queue. Zero clip
// settings fall back to the worker defaults.
type GifJobMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`

	MaxDuration     float64 `json:"max_duration_seconds,omitempty"`
	FramesPerSecond int     `json:"frames_per_second,omitempty"`

	StartAt float64       `json:"start_at_seconds,omitempty"`
	Pauses  []PauseWindow `json:"pauses,omitempty"`

	PreviewWidth  int    `json:"preview_width,omitempty"`
	PreviewHeight int    `json:"preview_height,omitempty"`
	Orientation   string `json:"orientation,omitempty"`
	// DeviceOrientation is how the camera was held; it is mapped to a video
	// orientation and cannot be combined with Orientation.
	DeviceOrientation string `json:"device_orientation,omitempty"`
	Mirror            *bool  `json:"mirror,omitempty"`
}

// Script returns the recording script carried by the message.
func (m GifJobMessage) Script() Script {
	return Script{StartAt: m.StartAt, Pauses: m.Pauses}
}

// GifStatusMessage is the outbound message published to the status queue.
type GifStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	GifKey       string    `json:"gif_key,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	GifSize      int64     `json:"gif_size,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
