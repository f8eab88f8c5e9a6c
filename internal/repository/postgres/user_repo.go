package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// UpsertIdentity создает пользователя или обновляет данные, пришедшие от провайдера идентификации.
// xp, level и role не трогаются.
func (r *UserRepo) UpsertIdentity(ctx context.Context, user *entity.User) (*entity.User, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "avatar_url", "is_verified", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}

	var stored entity.User
	if err := db.Where("discord_id = ?", user.DiscordID).First(&stored).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &stored, nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

// GetByIDForUpdate возвращает пользователя с блокировкой строки
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &user, nil
}

// UpdateProgress записывает xp и уровень вместе
func (r *UserRepo) UpdateProgress(ctx context.Context, userID uint, xp int64, level int) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"xp":    xp,
			"level": level,
		}).Error
}

// GetByIDs возвращает пользователей по списку ID
func (r *UserRepo) GetByIDs(ctx context.Context, ids []uint) ([]entity.User, error) {
	var users []entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}
