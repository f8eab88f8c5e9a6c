package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

const recentXPTransactions = 20

// Progress — XP пользователя, производный уровень и последние начисления
type Progress struct {
	UserID uint                   `json:"user_id"`
	XP     int64                  `json:"xp"`
	Level  quizmanager.LevelInfo  `json:"level"`
	Recent []entity.XPTransaction `json:"recent"`
}

// XPService начисляет XP и считает уровень
type XPService struct {
	repos *repository.Repositories
	tx    repository.Transactor
}

// NewXPService создает новый сервис XP
func NewXPService(repos *repository.Repositories, tx repository.Transactor) *XPService {
	return &XPService{repos: repos, tx: tx}
}

// grant добавляет запись в журнал и обновляет xp и уровень пользователя в транзакции r.
// Строка пользователя блокируется, поэтому параллельные начисления не теряются.
func (s *XPService) grant(ctx context.Context, r *repository.Repositories, userID uint, amount int, reason, sourceType string, sourceID uint) (*entity.User, error) {
	user, err := r.Users.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	if amount == 0 {
		return user, nil
	}

	newXP := user.XP + int64(amount)
	if newXP < 0 {
		newXP = 0
	}
	level := quizmanager.LevelFor(newXP).Level

	if err := r.XP.Create(ctx, &entity.XPTransaction{
		UserID:     userID,
		Amount:     amount,
		Reason:     reason,
		SourceType: sourceType,
		SourceID:   sourceID,
	}); err != nil {
		return nil, fmt.Errorf("failed to append xp transaction: %w", err)
	}
	if err := r.Users.UpdateProgress(ctx, userID, newXP, level); err != nil {
		return nil, fmt.Errorf("failed to update user progress: %w", err)
	}

	if level > user.Level {
		log.Printf("[XPService] Пользователь %d достиг уровня %d (xp=%d)", userID, level, newXP)
	}
	user.XP = newXP
	user.Level = level
	return user, nil
}

// Grant — ручное начисление администратором в отдельной транзакции
func (s *XPService) Grant(ctx context.Context, userID uint, amount int, reason string) (*entity.User, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must not be zero", apperrors.ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", apperrors.ErrValidation)
	}

	var user *entity.User
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		user, err = s.grant(ctx, r, userID, amount, reason, entity.XPSourceAdmin, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetProgress возвращает уровень пользователя, вычисленный только из xp
func (s *XPService) GetProgress(ctx context.Context, userID uint) (*Progress, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repos.XP.ListByUser(ctx, userID, recentXPTransactions)
	if err != nil {
		return nil, err
	}
	return &Progress{
		UserID: user.ID,
		XP:     user.XP,
		Level:  quizmanager.LevelFor(user.XP),
		Recent: recent,
	}, nil
}

// Levels возвращает таблицу уровней
func (s *XPService) Levels() []quizmanager.LevelDef {
	return quizmanager.Levels()
}
