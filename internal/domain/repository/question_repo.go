package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	Create(ctx context.Context, question *entity.Question) error
	CreateBatch(ctx context.Context, questions []entity.Question) error
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error)
	// ListActiveByGame возвращает активный пул вопросов игры
	ListActiveByGame(ctx context.Context, gameID uint) ([]entity.Question, error)
	// IncrementUsage атомарно увеличивает times_used (и times_correct, если correct)
	IncrementUsage(ctx context.Context, questionID uint, correct bool) error
	// Deactivate мягко выключает вопрос, вопросы не удаляются
	Deactivate(ctx context.Context, id uint) error
}
