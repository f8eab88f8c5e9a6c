package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// StreakRepository определяет методы для работы с сериями daily
type StreakRepository interface {
	// LockOrCreate возвращает серию под блокировкой, создавая пустую при отсутствии
	LockOrCreate(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error)
	Get(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error)
	Save(ctx context.Context, streak *entity.DailyStreak) error
}
