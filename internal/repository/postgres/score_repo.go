package postgres

import (
	"context"
	"time"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreRepo реализует repository.ScoreRepository
type ScoreRepo struct {
	db *gorm.DB
}

// NewScoreRepo создает новый репозиторий результатов
func NewScoreRepo(db *gorm.DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// Upsert выполняет INSERT ... ON CONFLICT (instance_id, user_id) DO UPDATE
// и перечитывает строку, чтобы вернуть rank и aggregated_at из БД
func (r *ScoreRepo) Upsert(ctx context.Context, score *entity.Score) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"points", "correct_count", "question_count", "total_time_ms", "updated_at",
		}),
	}).Create(score).Error
	if err != nil {
		return err
	}
	return db.Where("instance_id = ? AND user_id = ?", score.InstanceID, score.UserID).First(score).Error
}

// GetByInstanceAndUser возвращает результат пользователя в инстансе
func (r *ScoreRepo) GetByInstanceAndUser(ctx context.Context, instanceID, userID uint) (*entity.Score, error) {
	var score entity.Score
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND user_id = ?", instanceID, userID).
		First(&score).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &score, nil
}

// ListByInstance возвращает результаты инстанса в порядке ранга
func (r *ScoreRepo) ListByInstance(ctx context.Context, instanceID uint, forUpdate bool) ([]entity.Score, error) {
	var scores []entity.Score
	q := r.db.WithContext(ctx).Where("instance_id = ?", instanceID)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Order("points DESC, total_time_ms ASC, id ASC").Find(&scores).Error
	return scores, err
}

// UpdateRank точечно обновляет ранг
func (r *ScoreRepo) UpdateRank(ctx context.Context, scoreID uint, rank int) error {
	return r.db.WithContext(ctx).Model(&entity.Score{}).
		Where("id = ?", scoreID).
		UpdateColumn("rank", rank).Error
}

// ClaimAggregation — условный UPDATE ... WHERE aggregated_at IS NULL
func (r *ScoreRepo) ClaimAggregation(ctx context.Context, scoreID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Score{}).
		Where("id = ? AND aggregated_at IS NULL", scoreID).
		UpdateColumn("aggregated_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListPendingAggregation возвращает результаты инстанса, еще не учтенные в лидербордах
func (r *ScoreRepo) ListPendingAggregation(ctx context.Context, instanceID uint) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("instance_id = ? AND aggregated_at IS NULL", instanceID).
		Order("id").
		Find(&scores).Error
	return scores, err
}

// ListAggregatedBetween возвращает учтенные результаты за период, кроме тренировок
func (r *ScoreRepo) ListAggregatedBetween(ctx context.Context, gameID uint, from, to time.Time) ([]entity.Score, error) {
	var scores []entity.Score
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND mode <> ? AND aggregated_at >= ? AND aggregated_at < ?",
			gameID, entity.ModePractice, from, to).
		Order("aggregated_at, id").
		Find(&scores).Error
	return scores, err
}
