package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	// UpsertIdentity создает пользователя по discord_id или обновляет профиль и статус верификации
	UpsertIdentity(ctx context.Context, user *entity.User) (*entity.User, error)
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*entity.User, error)
	// UpdateProgress записывает xp и производный уровень одним UPDATE
	UpdateProgress(ctx context.Context, userID uint, xp int64, level int) error
	GetByIDs(ctx context.Context, ids []uint) ([]entity.User, error)
}
