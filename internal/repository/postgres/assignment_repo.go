package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRepo реализует repository.AssignmentRepository
type AssignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo создает новый репозиторий назначений
func NewAssignmentRepo(db *gorm.DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// CreateBatch создает назначения; повтор вопроса или позиции дает ErrConflict
func (r *AssignmentRepo) CreateBatch(ctx context.Context, assignments []entity.QuestionAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&assignments).Error
	return mapUniqueViolation(err)
}

// GetByID возвращает назначение вместе с вопросом
func (r *AssignmentRepo) GetByID(ctx context.Context, id uint) (*entity.QuestionAssignment, error) {
	var assignment entity.QuestionAssignment
	if err := r.db.WithContext(ctx).Preload("Question").First(&assignment, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &assignment, nil
}

// ListByInstance возвращает назначения инстанса по порядку
func (r *AssignmentRepo) ListByInstance(ctx context.Context, instanceID uint) ([]entity.QuestionAssignment, error) {
	var assignments []entity.QuestionAssignment
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("instance_id = ?", instanceID).
		Order("position").
		Find(&assignments).Error
	return assignments, err
}

// CountByInstance возвращает количество назначенных вопросов
func (r *AssignmentRepo) CountByInstance(ctx context.Context, instanceID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.QuestionAssignment{}).
		Where("instance_id = ?", instanceID).
		Count(&count).Error
	return int(count), err
}
