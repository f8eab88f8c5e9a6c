package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// IdentityInput — данные пользователя от внешнего провайдера идентификации
type IdentityInput struct {
	DiscordID string
	Username  string
	AvatarURL string
	Verified  bool
}

// UserService предоставляет методы для работы с пользователями
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService создает новый сервис пользователей
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// EnsureIdentity возвращает внутреннего пользователя для внешней идентичности,
// создавая его при первом входе. Профиль и статус верификации синхронизируются каждый раз.
func (s *UserService) EnsureIdentity(ctx context.Context, in IdentityInput) (*entity.User, error) {
	discordID := strings.TrimSpace(in.DiscordID)
	if discordID == "" {
		return nil, fmt.Errorf("%w: identity subject is empty", apperrors.ErrUnauthorized)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = "player-" + discordID
	}

	user, err := s.userRepo.UpsertIdentity(ctx, &entity.User{
		DiscordID:  discordID,
		Username:   username,
		AvatarURL:  in.AvatarURL,
		IsVerified: in.Verified,
	})
	if err != nil {
		log.Printf("[UserService] Ошибка синхронизации пользователя discord_id=%s: %v", discordID, err)
		return nil, err
	}
	return user, nil
}

// GetUser возвращает пользователя по ID
func (s *UserService) GetUser(ctx context.Context, userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
