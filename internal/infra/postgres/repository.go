package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("gif job not found")

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.GifJob) error {
	query := `
		INSERT INTO gif_jobs (
			id, user_id, video_key, gif_key, status, max_duration,
			frames_per_second, frame_count, file_size, gif_size,
			clip_duration, partial, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.GifKey, string(job.Status),
		job.MaxDuration, job.FramesPerSecond, job.FrameCount,
		job.FileSize, job.GifSize, job.ClipDuration, job.Partial,
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gif job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.GifJob) error {
	query := `
		UPDATE gif_jobs SET
			status=$2, gif_key=$3, frame_count=$4, gif_size=$5,
			clip_duration=$6, partial=$7, attempt=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.GifKey, job.FrameCount, job.GifSize,
		job.ClipDuration, job.Partial, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update gif job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update gif job %s: %w", job.ID, ErrJobNotFound)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.GifJob, error) {
	query := `
		SELECT id, user_id, video_key, gif_key, status, max_duration,
			frames_per_second, frame_count, file_size, gif_size,
			clip_duration, partial, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM gif_jobs WHERE id=$1`

	job := &entity.GifJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.GifKey, &status,
		&job.MaxDuration, &job.FramesPerSecond, &job.FrameCount,
		&job.FileSize, &job.GifSize, &job.ClipDuration, &job.Partial,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find gif job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
