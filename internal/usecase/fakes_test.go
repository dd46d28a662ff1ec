package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"sync"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/mediatime"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/port"
	"github.com/fiapx/fiapx-gifclip-service/internal/domain/sampler"
	"github.com/google/uuid"
)

// 30 fps on the 90 kHz clock.
const frameStep = mediatime.Time(3000)

// fakeSource replays a synthetic stream through a single reused buffer, the
// way the ffmpeg decoder recycles pooled frames.
type fakeSource struct {
	width, height int
	frames        int
	err           error
	failAfter     int
	delivered     int
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{width: 64, height: 48, frames: frames}
}

func (s *fakeSource) Decode(ctx context.Context, videoPath string, fn port.FrameFunc) (*port.VideoInfo, error) {
	if s.err != nil && s.failAfter == 0 {
		return nil, s.err
	}
	info := &port.VideoInfo{
		Width:      s.width,
		Height:     s.height,
		Duration:   (mediatime.Time(s.frames) * frameStep).Seconds(),
		FrameCount: s.frames,
	}
	buf := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i := 0; i < s.frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.err != nil && i == s.failAfter {
			return nil, s.err
		}
		fill(buf, color.RGBA{R: uint8(i * 4), G: 128, B: 255 - uint8(i*4), A: 255})
		mark(buf)
		s.delivered++
		if err := fn(sampler.Frame{Image: buf, PTS: mediatime.Time(i) * frameStep}); err != nil {
			if errors.Is(err, port.ErrStopDecoding) {
				return info, nil
			}
			return nil, err
		}
	}
	return info, nil
}

func fill(img *image.RGBA, c color.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// mark paints a white block near the top-left corner, leaving pixel (0,0)
// alone, so rotations and flips are visible in the output.
func mark(img *image.RGBA) {
	for y := 4; y < 12; y++ {
		for x := 4; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
}

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.GifJob
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]entity.GifJob)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.GifJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.GifJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return errors.New("job not found")
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.GifJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return &job, nil
}

type fakeStorage struct {
	downloadErr error
	uploadErr   error
	downloads   []string
	uploads     map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploads: make(map[string][]byte)}
}

func (s *fakeStorage) DownloadVideo(_ context.Context, objectKey string, destPath string) error {
	s.downloads = append(s.downloads, objectKey)
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("not really a video"), 0644)
}

func (s *fakeStorage) UploadGif(_ context.Context, objectKey string, reader io.Reader, size int64) error {
	return s.put(objectKey, reader, size)
}

func (s *fakeStorage) UploadArchive(_ context.Context, objectKey string, reader io.Reader, size int64) error {
	return s.put(objectKey, reader, size)
}

func (s *fakeStorage) put(objectKey string, reader io.Reader, size int64) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, reader)
	if err != nil {
		return err
	}
	if n != size {
		return errors.New("size mismatch")
	}
	s.uploads[objectKey] = buf.Bytes()
	return nil
}

type fakeStatusPublisher struct {
	messages [][]byte
}

func (p *fakeStatusPublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.messages = append(p.messages, msg)
	return nil
}

type dlqEntry struct {
	body   []byte
	reason string
}

type fakeDLQ struct {
	entries []dlqEntry
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	d.entries = append(d.entries, dlqEntry{body: msg, reason: reason})
	return nil
}

type notification struct {
	email, jobID, videoKey, errMsg string
}

type fakeNotifier struct {
	sent []notification
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, jobID, videoKey, errorMsg string) error {
	n.sent = append(n.sent, notification{userEmail, jobID, videoKey, errorMsg})
	return nil
}
