package repository

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
)

// ResponseRepository определяет методы для работы с ответами
type ResponseRepository interface {
	// CreateIfAbsent сохраняет ответ, опираясь на уникальный индекс (attempt_id, assignment_id).
	// created == false означает, что ответ на этот вопрос уже записан.
	CreateIfAbsent(ctx context.Context, response *entity.Response) (created bool, err error)
	GetByAttemptAndAssignment(ctx context.Context, attemptID, assignmentID uint) (*entity.Response, error)
	ListByAttempt(ctx context.Context, attemptID uint) ([]entity.Response, error)
	ListByInstance(ctx context.Context, instanceID uint) ([]entity.Response, error)
}
