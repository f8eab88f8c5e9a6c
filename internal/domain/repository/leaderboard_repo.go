package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// LeaderboardKey — естественный ключ записи лидерборда
type LeaderboardKey struct {
	GameID     uint
	UserID     uint
	PeriodType string
	PeriodKey  string
}

// LeaderboardRow — запись лидерборда с данными пользователя для чтения
type LeaderboardRow struct {
	entity.LeaderboardEntry
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// LeaderboardRepository определяет методы для работы с агрегатами лидербордов
type LeaderboardRepository interface {
	// LockOrCreate возвращает запись под блокировкой FOR UPDATE, создавая пустую при отсутствии
	LockOrCreate(ctx context.Context, key LeaderboardKey) (*entity.LeaderboardEntry, error)
	Save(ctx context.Context, entry *entity.LeaderboardEntry) error
	// ListRanked возвращает страницу в порядке чтения и общее количество записей периода
	ListRanked(ctx context.Context, gameID uint, periodType, periodKey string, limit, offset int) ([]LeaderboardRow, int64, error)
	DeletePeriod(ctx context.Context, gameID uint, periodType, periodKey string) error
	CreateBatch(ctx context.Context, entries []entity.LeaderboardEntry) error
}
