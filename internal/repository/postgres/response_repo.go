package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResponseRepo реализует repository.ResponseRepository
type ResponseRepo struct {
	db *gorm.DB
}

// NewResponseRepo создает новый репозиторий ответов
func NewResponseRepo(db *gorm.DB) *ResponseRepo {
	return &ResponseRepo{db: db}
}

// CreateIfAbsent вставляет ответ с ON CONFLICT DO NOTHING по (attempt_id, assignment_id).
// Конкурирующая вставка ждет фиксации первой и ничего не пишет.
func (r *ResponseRepo) CreateIfAbsent(ctx context.Context, response *entity.Response) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "assignment_id"}},
			DoNothing: true,
		}).
		Create(response)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByAttemptAndAssignment возвращает ранее записанный ответ
func (r *ResponseRepo) GetByAttemptAndAssignment(ctx context.Context, attemptID, assignmentID uint) (*entity.Response, error) {
	var response entity.Response
	err := r.db.WithContext(ctx).
		Where("attempt_id = ? AND assignment_id = ?", attemptID, assignmentID).
		First(&response).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &response, nil
}

// ListByAttempt возвращает ответы попытки
func (r *ResponseRepo) ListByAttempt(ctx context.Context, attemptID uint) ([]entity.Response, error) {
	var responses []entity.Response
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("id").Find(&responses).Error
	return responses, err
}

// ListByInstance возвращает все ответы инстанса
func (r *ResponseRepo) ListByInstance(ctx context.Context, instanceID uint) ([]entity.Response, error) {
	var responses []entity.Response
	err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).Order("id").Find(&responses).Error
	return responses, err
}
