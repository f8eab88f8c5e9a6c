package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// XPTransactionRepository — журнал начислений XP, только добавление
type XPTransactionRepository interface {
	Create(ctx context.Context, tx *entity.XPTransaction) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]entity.XPTransaction, error)
}
