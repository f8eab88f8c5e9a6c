package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// AttemptRepository определяет методы для работы с попытками
type AttemptRepository interface {
	// CreateIfAbsent создает попытку, опираясь на уникальный индекс (user_id, instance_id).
	// При гонке возвращает false, попытку нужно перечитать.
	CreateIfAbsent(ctx context.Context, attempt *entity.Attempt) (created bool, err error)
	GetByID(ctx context.Context, id uint) (*entity.Attempt, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*entity.Attempt, error)
	GetByUserAndInstance(ctx context.Context, userID, instanceID uint) (*entity.Attempt, error)
	ListByInstance(ctx context.Context, instanceID uint) ([]entity.Attempt, error)
	Update(ctx context.Context, attempt *entity.Attempt) error
}
