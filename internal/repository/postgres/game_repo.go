package postgres

import (
	"context"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"gorm.io/gorm"
)

// GameRepo реализует repository.GameRepository
type GameRepo struct {
	db *gorm.DB
}

// NewGameRepo создает новый репозиторий игр
func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create создает игру; занятый slug дает ErrConflict
func (r *GameRepo) Create(ctx context.Context, game *entity.Game) error {
	return mapUniqueViolation(r.db.WithContext(ctx).Create(game).Error)
}

// GetByID возвращает игру по ID
func (r *GameRepo) GetByID(ctx context.Context, id uint) (*entity.Game, error) {
	var game entity.Game
	if err := r.db.WithContext(ctx).First(&game, id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &game, nil
}

// GetBySlug возвращает игру по slug
func (r *GameRepo) GetBySlug(ctx context.Context, slug string) (*entity.Game, error) {
	var game entity.Game
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&game).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &game, nil
}

// List возвращает все игры
func (r *GameRepo) List(ctx context.Context) ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.WithContext(ctx).Order("id").Find(&games).Error
	return games, err
}
