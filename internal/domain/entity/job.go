package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// GifJob tracks one clip rendered from an uploaded video.
type GifJob struct {
	ID              uuid.UUID
	UserID          string
	VideoKey        string
	GifKey          string
	Status          JobStatus
	MaxDuration     float64
	FramesPerSecond int
	FrameCount      int
	FileSize        int64
	GifSize         int64
	ClipDuration    float64
	Partial         bool
	Attempt         int
	MaxAttempts     int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func NewGifJob(userID, videoKey string, fileSize int64, maxDuration float64, fps int, maxAttempts int) *GifJob {
	now := time.Now().UTC()
	return &GifJob{
		ID:              uuid.New(),
		UserID:          userID,
		VideoKey:        videoKey,
		FileSize:        fileSize,
		MaxDuration:     maxDuration,
		FramesPerSecond: fps,
		Status:          JobStatusPending,
		Attempt:         0,
		MaxAttempts:     maxAttempts,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (j *GifJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted records the uploaded clip. clipDuration is the recorded
// time covered by the samples, in seconds.
func (j *GifJob) MarkCompleted(gifKey string, frameCount int, clipDuration float64, gifSize int64, partial bool) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.GifKey = gifKey
	j.FrameCount = frameCount
	j.ClipDuration = clipDuration
	j.GifSize = gifSize
	j.Partial = partial
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *GifJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *GifJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
