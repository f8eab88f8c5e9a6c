package repository

import (
	"context"
	"time"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// ScoreRepository определяет методы для работы с результатами
type ScoreRepository interface {
	// Upsert создает или обновляет результат по ключу (instance_id, user_id) и заполняет ID
	Upsert(ctx context.Context, score *entity.Score) error
	GetByInstanceAndUser(ctx context.Context, instanceID, userID uint) (*entity.Score, error)
	// ListByInstance возвращает результаты инстанса; forUpdate блокирует строки до конца транзакции
	ListByInstance(ctx context.Context, instanceID uint, forUpdate bool) ([]entity.Score, error)
	UpdateRank(ctx context.Context, scoreID uint, rank int) error
	// ClaimAggregation помечает результат как учтенный в лидербордах.
	// Возвращает false, если результат уже был учтен.
	ClaimAggregation(ctx context.Context, scoreID uint, at time.Time) (bool, error)
	ListPendingAggregation(ctx context.Context, instanceID uint) ([]entity.Score, error)
	// ListAggregatedBetween возвращает учтенные результаты игры за [from, to) в порядке учета
	ListAggregatedBetween(ctx context.Context, gameID uint, from, to time.Time) ([]entity.Score, error)
}
