package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/imaging"
	"github.com/fiapx/fiapx-gifclip-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrInvalidRequest marks job messages whose clip settings cannot be used.
var ErrInvalidRequest = errors.New("invalid gif request")

type CreateGifUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	renderer  *ClipRenderer
	archiver  port.FrameArchiver
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	tempDir   string
	maxRetry  int
	defaults  ClipRequest
	limits    sampler.Limits
	archive   bool
}

type CreateGifConfig struct {
	TempDir    string
	MaxRetries int
	// Defaults apply to every field a job message leaves unset.
	Defaults      ClipRequest
	ArchiveFrames bool
	// Limits bound what a job message may request.
	Limits sampler.Limits
}

func NewCreateGifUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	renderer *ClipRenderer,
	archiver port.FrameArchiver,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg CreateGifConfig,
) *CreateGifUseCase {
	return &CreateGifUseCase{
		repo:      repo,
		storage:   storage,
		renderer:  renderer,
		archiver:  archiver,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		tempDir:   cfg.TempDir,
		maxRetry:  cfg.MaxRetries,
		defaults:  cfg.Defaults,
		limits:    cfg.Limits,
		archive:   cfg.ArchiveFrames && archiver != nil,
	}
}

// Execute handles one raw job message. A nil return acks the message: either
// the clip was delivered or the failure is permanent and has been parked in
// the DLQ. Any error asks the consumer to retry.
func (uc *CreateGifUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "CreateGifUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.GifJobMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	req, reqErr := uc.clipRequest(msg)

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewGifJob(msg.UserID, msg.VideoKey, msg.FileSize,
			req.Sampler.MaxDuration, req.Sampler.FramesPerSecond, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if reqErr != nil {
		log.Warn("rejecting job with invalid clip settings", zap.Error(reqErr))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, reqErr.Error())
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	completed, err := uc.renderPipeline(ctx, job, msg, rawMsg, req, log)
	if err != nil || !completed {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

// clipRequest merges the message settings over the worker defaults. Zero
// values keep the default; anything else must be valid.
func (uc *CreateGifUseCase) clipRequest(msg entity.GifJobMessage) (ClipRequest, error) {
	req := uc.defaults
	if msg.MaxDuration != 0 {
		req.Sampler.MaxDuration = msg.MaxDuration
	}
	if msg.FramesPerSecond != 0 {
		req.Sampler.FramesPerSecond = msg.FramesPerSecond
	}
	req.Script = msg.Script()

	if msg.PreviewWidth != 0 || msg.PreviewHeight != 0 {
		if msg.PreviewWidth < 0 || msg.PreviewHeight < 0 {
			return req, fmt.Errorf("%w: negative preview size %dx%d", ErrInvalidRequest, msg.PreviewWidth, msg.PreviewHeight)
		}
		req.Correction.Preview = image.Rect(0, 0, msg.PreviewWidth, msg.PreviewHeight)
	}
	switch {
	case msg.Orientation != "" && msg.DeviceOrientation != "":
		return req, fmt.Errorf("%w: orientation and device_orientation are mutually exclusive", ErrInvalidRequest)
	case msg.Orientation != "":
		o, err := imaging.ParseOrientation(msg.Orientation)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.Correction.Orientation = o
	case msg.DeviceOrientation != "":
		d, err := imaging.ParseDeviceOrientation(msg.DeviceOrientation)
		if err != nil {
			return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.Correction.Orientation = imaging.VideoOrientationFor(d)
	}
	if msg.Mirror != nil {
		req.Correction.Mirror = *msg.Mirror
	}

	if err := req.Sampler.ValidateWithin(uc.limits); err != nil {
		return req, err
	}
	if err := req.Script.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// isPermanent reports whether retrying could never change the outcome.
func isPermanent(err error) bool {
	return errors.Is(err, sampler.ErrInvalidConfig) ||
		errors.Is(err, entity.ErrInvalidScript) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrClipTooShort) ||
		errors.Is(err, port.ErrUnsupportedVideo) ||
		errors.Is(err, port.ErrVideoNotFound)
}

func (uc *CreateGifUseCase) renderPipeline(
	ctx context.Context,
	job *entity.GifJob,
	msg entity.GifJobMessage,
	rawMsg []byte,
	req ClipRequest,
	log *zap.Logger,
) (bool, error) {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return false, fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fail := func(stage string, err error) (bool, error) {
		errMsg := stage + ": " + err.Error()
		if isPermanent(err) {
			log.Warn("permanent failure", zap.String("stage", stage), zap.Error(err))
			return false, uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
		}
		log.Error("stage failed", zap.String("stage", stage), zap.Error(err))
		return false, uc.handleRetryableFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath)
	spanDl.End()
	if err != nil {
		return fail("download_video", err)
	}
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	renderStart := time.Now()
	ctx3, spanRender := tracer.Start(ctx, "render_gif")
	gifPath := filepath.Join(workDir, "clip.gif")
	clip, err := uc.renderToFile(ctx3, videoPath, req, gifPath)
	if err != nil {
		spanRender.End()
		return fail("render_gif", err)
	}
	spanRender.SetAttributes(
		attribute.Int("clip.samples", len(clip.Frames)),
		attribute.Int("clip.decoded", clip.Decoded),
		attribute.Bool("clip.partial", clip.Partial),
	)
	spanRender.End()
	metrics.JobProcessingDuration.WithLabelValues("render").Observe(time.Since(renderStart).Seconds())

	var archivePath string
	if uc.archive {
		ctx4, spanZip := tracer.Start(ctx, "archive_frames")
		archivePath = filepath.Join(workDir, "frames.zip")
		err := uc.archiver.ArchiveFrames(ctx4, clip.Frames, archivePath)
		spanZip.End()
		if err != nil {
			return fail("archive_frames", err)
		}
	}

	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_gif")
	gifKey := fmt.Sprintf("%s/clip_%s.gif", msg.UserID, job.ID.String())
	gifSize, err := uploadFile(ctx5, gifPath, gifKey, uc.storage.UploadGif)
	if err == nil && archivePath != "" {
		archiveKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
		_, err = uploadFile(ctx5, archivePath, archiveKey, uc.storage.UploadArchive)
	}
	spanUp.End()
	if err != nil {
		return fail("upload_gif", err)
	}
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())
	metrics.GifSizeBytes.Observe(float64(gifSize))

	job.MarkCompleted(gifKey, len(clip.Frames), clip.Duration.Seconds(), gifSize, clip.Partial)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return false, fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", len(clip.Frames)),
		zap.Float64("duration_secs", clip.Duration.Seconds()),
		zap.Bool("partial", clip.Partial),
		zap.Int64("gif_size", gifSize),
		zap.String("gif_key", gifKey),
	)

	return true, nil
}

func (uc *CreateGifUseCase) renderToFile(ctx context.Context, videoPath string, req ClipRequest, gifPath string) (*Clip, error) {
	f, err := os.Create(gifPath)
	if err != nil {
		return nil, fmt.Errorf("create gif file: %w", err)
	}
	clip, err := uc.renderer.Render(ctx, videoPath, req, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close gif file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	return clip, nil
}

func uploadFile(
	ctx context.Context,
	path, key string,
	upload func(ctx context.Context, objectKey string, reader io.Reader, size int64) error,
) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if err := upload(ctx, key, f, stat.Size()); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (uc *CreateGifUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.GifJob,
	msg entity.GifJobMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *CreateGifUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.GifJob,
	msg entity.GifJobMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *CreateGifUseCase) publishStatus(ctx context.Context, job *entity.GifJob, log *zap.Logger) {
	statusMsg := entity.GifStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		GifKey:       job.GifKey,
		FrameCount:   job.FrameCount,
		Duration:     job.ClipDuration,
		GifSize:      job.GifSize,
		Partial:      job.Partial,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
