package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// Create создает новый вопрос
func (r *QuestionRepo) Create(ctx context.Context, question *entity.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

// CreateBatch создает пакет вопросов
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&questions, 100).Error
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &question, nil
}

// GetByIDs возвращает вопросы по списку ID (порядок не гарантируется)
func (r *QuestionRepo) GetByIDs(ctx context.Context, ids []uint) ([]entity.Question, error) {
	var questions []entity.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

// ListActiveByGame возвращает активный пул вопросов игры
func (r *QuestionRepo) ListActiveByGame(ctx context.Context, gameID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("id").
		Find(&questions).Error
	return questions, err
}

// IncrementUsage атомарно увеличивает счетчики через gorm.Expr, без read-modify-write
func (r *QuestionRepo) IncrementUsage(ctx context.Context, questionID uint, correct bool) error {
	updates := map[string]interface{}{
		"times_used": gorm.Expr("times_used + 1"),
	}
	if correct {
		updates["times_correct"] = gorm.Expr("times_correct + 1")
	}
	return r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("id = ?", questionID).
		UpdateColumns(updates).Error
}

// Deactivate выключает вопрос
func (r *QuestionRepo) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&entity.Question{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
