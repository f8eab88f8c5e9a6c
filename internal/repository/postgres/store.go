package postgres

import (
	"context"
	"errors"

	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Store собирает репозитории поверх одного *gorm.DB и реализует repository.Transactor
type Store struct {
	db *gorm.DB
}

// NewStore создает Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Repositories возвращает репозитории, работающие вне транзакции
func (s *Store) Repositories() *repository.Repositories {
	return newRepositories(s.db)
}

// WithinTx выполняет fn в транзакции; репозитории в r привязаны к ней
func (s *Store) WithinTx(ctx context.Context, fn func(r *repository.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Games:       NewGameRepo(db),
		Questions:   NewQuestionRepo(db),
		Instances:   NewInstanceRepo(db),
		Assignments: NewAssignmentRepo(db),
		Attempts:    NewAttemptRepo(db),
		Responses:   NewResponseRepo(db),
		Scores:      NewScoreRepo(db),
		Leaderboard: NewLeaderboardRepo(db),
		Users:       NewUserRepo(db),
		XP:          NewXPTransactionRepo(db),
		Streaks:     NewStreakRepo(db),
	}
}

// mapNotFound переводит gorm.ErrRecordNotFound в apperrors.ErrNotFound
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникального ограничения PostgreSQL (23505)
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}

// mapUniqueViolation переводит нарушение уникальности в apperrors.ErrConflict
func mapUniqueViolation(err error) error {
	if err != nil && isUniqueViolation(err) {
		return apperrors.ErrConflict
	}
	return err
}
