package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
)

// XPTransactionRepo реализует repository.XPTransactionRepository
type XPTransactionRepo struct {
	db *gorm.DB
}

// NewXPTransactionRepo создает новый репозиторий журнала XP
func NewXPTransactionRepo(db *gorm.DB) *XPTransactionRepo {
	return &XPTransactionRepo{db: db}
}

// Create добавляет запись в журнал
func (r *XPTransactionRepo) Create(ctx context.Context, tx *entity.XPTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// ListByUser возвращает последние начисления пользователя
func (r *XPTransactionRepo) ListByUser(ctx context.Context, userID uint, limit int) ([]entity.XPTransaction, error) {
	var txs []entity.XPTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
