package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepo реализует repository.InstanceRepository
type InstanceRepo struct {
	db *gorm.DB
}

// NewInstanceRepo создает новый репозиторий инстансов
func NewInstanceRepo(db *gorm.DB) *InstanceRepo {
	return &InstanceRepo{db: db}
}

// Create создает инстанс без назначений
func (r *InstanceRepo) Create(ctx context.Context, instance *entity.QuizInstance) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(instance).Error
}

// CreateIfAbsent вставляет инстанс с ON CONFLICT DO NOTHING по idx_instances_bucket
func (r *InstanceRepo) CreateIfAbsent(ctx context.Context, instance *entity.QuizInstance) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(instance)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetByID возвращает инстанс по ID
func (r *InstanceRepo) GetByID(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	var instance entity.QuizInstance
	if err := r.db.WithContext(ctx).First(&instance, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &instance, nil
}

// GetByIDForUpdate возвращает инстанс с блокировкой SELECT ... FOR UPDATE
func (r *InstanceRepo) GetByIDForUpdate(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	var instance entity.QuizInstance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&instance, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &instance, nil
}

// GetByIDForShare возвращает инстанс с блокировкой SELECT ... FOR SHARE
func (r *InstanceRepo) GetByIDForShare(ctx context.Context, id uint) (*entity.QuizInstance, error) {
	var instance entity.QuizInstance
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		First(&instance, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &instance, nil
}

// GetByBucket возвращает эфемерный инстанс по ключу окна
func (r *InstanceRepo) GetByBucket(ctx context.Context, gameID uint, mode, bucketKey string) (*entity.QuizInstance, error) {
	var instance entity.QuizInstance
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND mode = ? AND bucket_key = ?", gameID, mode, bucketKey).
		First(&instance).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &instance, nil
}

// FindCurrentLive возвращает идущую live-викторину, иначе ближайшую запланированную
func (r *InstanceRepo) FindCurrentLive(ctx context.Context, gameID uint) (*entity.QuizInstance, error) {
	var instance entity.QuizInstance
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND mode = ? AND status IN ?", gameID, entity.ModeLive,
			[]string{entity.InstanceStatusLive, entity.InstanceStatusScheduled}).
		Order("status = 'live' DESC, scheduled_at ASC").
		First(&instance).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &instance, nil
}

// ListByGame возвращает инстансы игры с пагинацией и общим количеством
func (r *InstanceRepo) ListByGame(ctx context.Context, gameID uint, limit, offset int) ([]entity.QuizInstance, int64, error) {
	var (
		instances []entity.QuizInstance
		total     int64
	)
	q := r.db.WithContext(ctx).Model(&entity.QuizInstance{}).Where("game_id = ?", gameID)
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Session(&gorm.Session{}).Order("id DESC").Limit(limit).Offset(offset).Find(&instances).Error
	return instances, total, err
}

// Update сохраняет инстанс целиком
func (r *InstanceRepo) Update(ctx context.Context, instance *entity.QuizInstance) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(instance).Error
}

// AdvanceQuestion атомарно увеличивает current_question, пока есть вопросы
func (r *InstanceRepo) AdvanceQuestion(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.QuizInstance{}).
		Where("id = ? AND status = ? AND current_question < question_count", id, entity.InstanceStatusLive).
		Update("current_question", gorm.Expr("current_question + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
