package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StreakRepo реализует repository.StreakRepository
type StreakRepo struct {
	db *gorm.DB
}

// NewStreakRepo создает новый репозиторий серий
func NewStreakRepo(db *gorm.DB) *StreakRepo {
	return &StreakRepo{db: db}
}

// LockOrCreate вставляет пустую серию и берет ее под FOR UPDATE
func (r *StreakRepo) LockOrCreate(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error) {
	db := r.db.WithContext(ctx)
	empty := entity.DailyStreak{UserID: userID, GameID: gameID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&empty).Error; err != nil {
		return nil, err
	}

	var streak entity.DailyStreak
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&streak).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &streak, nil
}

// Get возвращает серию без блокировки
func (r *StreakRepo) Get(ctx context.Context, userID, gameID uint) (*entity.DailyStreak, error) {
	var streak entity.DailyStreak
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&streak).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &streak, nil
}

// Save сохраняет серию
func (r *StreakRepo) Save(ctx context.Context, streak *entity.DailyStreak) error {
	return r.db.WithContext(ctx).Save(streak).Error
}
