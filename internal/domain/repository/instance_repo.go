package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// InstanceRepository определяет методы для работы с инстансами викторин
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.QuizInstance) error
	// CreateIfAbsent создает инстанс, если ключ (game, mode, bucket) свободен.
	// created == false означает, что инстанс уже создан другим запросом.
	CreateIfAbsent(ctx context.Context, instance *entity.QuizInstance) (created bool, err error)
	GetByID(ctx context.Context, id uint) (*entity.QuizInstance, error)
	// GetByIDForUpdate блокирует строку инстанса до конца транзакции
	GetByIDForUpdate(ctx context.Context, id uint) (*entity.QuizInstance, error)
	// GetByIDForShare берет разделяемую блокировку: запись ответов не мешает друг другу,
	// но смена статуса ждет их фиксации
	GetByIDForShare(ctx context.Context, id uint) (*entity.QuizInstance, error)
	GetByBucket(ctx context.Context, gameID uint, mode, bucketKey string) (*entity.QuizInstance, error)
	// FindCurrentLive возвращает ближайший live или scheduled инстанс режима live
	FindCurrentLive(ctx context.Context, gameID uint) (*entity.QuizInstance, error)
	ListByGame(ctx context.Context, gameID uint, limit, offset int) ([]entity.QuizInstance, int64, error)
	Update(ctx context.Context, instance *entity.QuizInstance) error
	// AdvanceQuestion атомарно увеличивает current_question у live инстанса.
	// Возвращает false, если инстанс не live или вопросы закончились.
	AdvanceQuestion(ctx context.Context, id uint) (bool, error)
}
