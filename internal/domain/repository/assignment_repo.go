package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// AssignmentRepository определяет методы для работы с назначениями вопросов
type AssignmentRepository interface {
	CreateBatch(ctx context.Context, assignments []entity.QuestionAssignment) error
	// GetByID возвращает назначение вместе с вопросом
	GetByID(ctx context.Context, id uint) (*entity.QuestionAssignment, error)
	// ListByInstance возвращает назначения в порядке position вместе с вопросами
	ListByInstance(ctx context.Context, instanceID uint) ([]entity.QuestionAssignment, error)
	CountByInstance(ctx context.Context, instanceID uint) (int, error)
}
