package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardRepo реализует repository.LeaderboardRepository
type LeaderboardRepo struct {
	db *gorm.DB
}

// NewLeaderboardRepo создает новый репозиторий лидербордов
func NewLeaderboardRepo(db *gorm.DB) *LeaderboardRepo {
	return &LeaderboardRepo{db: db}
}

// LockOrCreate вставляет пустую запись (ON CONFLICT DO NOTHING) и берет ее под FOR UPDATE.
// Конкурирующие учеты одного (game, user, period) выполняются строго по очереди.
func (r *LeaderboardRepo) LockOrCreate(ctx context.Context, key repository.LeaderboardKey) (*entity.LeaderboardEntry, error) {
	db := r.db.WithContext(ctx)

	empty := entity.LeaderboardEntry{
		GameID:        key.GameID,
		UserID:        key.UserID,
		PeriodType:    key.PeriodType,
		PeriodKey:     key.PeriodKey,
		BestTwoScores: entity.IntList{},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&empty).Error; err != nil {
		return nil, err
	}

	var entry entity.LeaderboardEntry
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("game_id = ? AND user_id = ? AND period_type = ? AND period_key = ?",
			key.GameID, key.UserID, key.PeriodType, key.PeriodKey).
		First(&entry).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &entry, nil
}

// Save сохраняет запись
func (r *LeaderboardRepo) Save(ctx context.Context, entry *entity.LeaderboardEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// ListRanked возвращает страницу периода в порядке чтения вместе с профилем пользователя
func (r *LeaderboardRepo) ListRanked(ctx context.Context, gameID uint, periodType, periodKey string, limit, offset int) ([]repository.LeaderboardRow, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	err := db.Model(&entity.LeaderboardEntry{}).
		Where("game_id = ? AND period_type = ? AND period_key = ? AND quizzes_played > 0", gameID, periodType, periodKey).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []repository.LeaderboardRow
	err = db.Table("leaderboard_entries AS le").
		Select("le.*, u.username, u.avatar_url").
		Joins("JOIN users u ON u.id = le.user_id").
		Where("le.game_id = ? AND le.period_type = ? AND le.period_key = ? AND le.quizzes_played > 0", gameID, periodType, periodKey).
		Order("le.total_points DESC, le.average_time_ms ASC, le.achieved_at ASC, le.user_id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// DeletePeriod удаляет все записи периода (используется при пересборке)
func (r *LeaderboardRepo) DeletePeriod(ctx context.Context, gameID uint, periodType, periodKey string) error {
	return r.db.WithContext(ctx).
		Where("game_id = ? AND period_type = ? AND period_key = ?", gameID, periodType, periodKey).
		Delete(&entity.LeaderboardEntry{}).Error
}

// CreateBatch вставляет пересобранные записи
func (r *LeaderboardRepo) CreateBatch(ctx context.Context, entries []entity.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&entries, 200).Error
}
