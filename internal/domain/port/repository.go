package port

import (
	"context"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.GifJob) error
	Update(ctx context.Context, job *entity.GifJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.GifJob, error)
}
