package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// QuestionInput — вопрос для загрузки в пул игры
type QuestionInput struct {
	Text         string
	Options      []string
	CorrectIndex int
	Difficulty   int
	Category     string
}

// GameService управляет играми и их пулами вопросов
type GameService struct {
	repos *repository.Repositories
}

// NewGameService создает новый сервис игр
func NewGameService(repos *repository.Repositories) *GameService {
	return &GameService{repos: repos}
}

// CreateGame регистрирует игру; slug уникален
func (s *GameService) CreateGame(ctx context.Context, slug, name string) (*entity.Game, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: slug must be 2-64 chars of a-z, 0-9 and '-'", apperrors.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}

	game := &entity.Game{Slug: slug, Name: name, IsActive: true}
	if err := s.repos.Games.Create(ctx, game); err != nil {
		return nil, err
	}
	log.Printf("[GameService] Создана игра %s (ID: %d)", slug, game.ID)
	return game, nil
}

// ListGames возвращает все игры
func (s *GameService) ListGames(ctx context.Context) ([]entity.Game, error) {
	return s.repos.Games.List(ctx)
}

// AddQuestions проверяет и добавляет вопросы в пул игры.
// Каждый вопрос должен иметь ровно 4 варианта и правильный индекс 0..3.
func (s *GameService) AddQuestions(ctx context.Context, gameSlug string, inputs []QuestionInput) ([]entity.Question, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: questions must not be empty", apperrors.ErrValidation)
	}
	game, err := s.repos.Games.GetBySlug(ctx, gameSlug)
	if err != nil {
		return nil, err
	}

	questions := make([]entity.Question, 0, len(inputs))
	for i, in := range inputs {
		q := entity.Question{
			GameID:       game.ID,
			Text:         strings.TrimSpace(in.Text),
			Options:      entity.StringArray(in.Options),
			CorrectIndex: in.CorrectIndex,
			Difficulty:   in.Difficulty,
			IsActive:     true,
		}
		if q.Difficulty <= 0 {
			q.Difficulty = 1
		}
		if c := strings.TrimSpace(in.Category); c != "" {
			q.Category = &c
		}
		if q.Text == "" {
			return nil, fmt.Errorf("%w: question #%d has no text", apperrors.ErrValidation, i+1)
		}
		if !q.IsWellFormed() {
			return nil, fmt.Errorf("%w: question #%d must have %d options and correct_index in 0..%d",
				apperrors.ErrValidation, i+1, entity.OptionsPerQuestion, entity.OptionsPerQuestion-1)
		}
		questions = append(questions, q)
	}

	if err := s.repos.Questions.CreateBatch(ctx, questions); err != nil {
		return nil, fmt.Errorf("failed to save questions: %w", err)
	}
	log.Printf("[GameService] В пул игры %s добавлено %d вопросов", game.Slug, len(questions))
	return questions, nil
}

// DeactivateQuestion выводит вопрос из пула; уже назначенные копии продолжают работать
func (s *GameService) DeactivateQuestion(ctx context.Context, questionID uint) error {
	if _, err := s.repos.Questions.GetByID(ctx, questionID); err != nil {
		return err
	}
	return s.repos.Questions.Deactivate(ctx, questionID)
}
