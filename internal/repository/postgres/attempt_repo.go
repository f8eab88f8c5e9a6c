package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// CreateIfAbsent вставляет попытку с ON CONFLICT DO NOTHING по idx_attempt_user_instance
func (r *AttemptRepo) CreateIfAbsent(ctx context.Context, attempt *entity.Attempt) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "instance_id"}},
			DoNothing: true,
		}).
		Create(attempt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByID возвращает попытку по ID
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

// GetByIDForUpdate возвращает попытку с блокировкой строки
func (r *AttemptRepo) GetByIDForUpdate(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

// GetByUserAndInstance возвращает попытку пользователя в инстансе
func (r *AttemptRepo) GetByUserAndInstance(ctx context.Context, userID, instanceID uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		First(&attempt).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &attempt, nil
}

// ListByInstance возвращает все попытки инстанса
func (r *AttemptRepo) ListByInstance(ctx context.Context, instanceID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).Order("id").Find(&attempts).Error
	return attempts, err
}

// Update сохраняет попытку
func (r *AttemptRepo) Update(ctx context.Context, attempt *entity.Attempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}
