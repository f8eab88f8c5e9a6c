package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// ResponseInput — ответ клиента на вопрос
type ResponseInput struct {
	AssignmentID uint
	// SelectedIndex — позиция в показанном порядке, nil если время вышло
	SelectedIndex *int
	ElapsedMs     int64
}

// ResponseResult — результат проверки ответа
type ResponseResult struct {
	AttemptID             uint  `json:"attempt_id"`
	AssignmentID          uint  `json:"assignment_id"`
	Correct               bool  `json:"correct"`
	CorrectDisplayedIndex int   `json:"correct_displayed_index"`
	SelectedIndex         *int  `json:"selected_index"`
	ElapsedMs             int64 `json:"elapsed_ms"`
	// AlreadyAnswered: ответ был записан раньше, возвращен первый результат
	AlreadyAnswered bool `json:"already_answered"`
}

// CompletionResult — итог завершения попытки.
// Score равен nil для live-попытки без единого ответа.
type CompletionResult struct {
	Attempt    *entity.Attempt       `json:"attempt"`
	Score      *entity.Score         `json:"score"`
	XPEarned   int                   `json:"xp_earned"`
	NewTotalXP int64                 `json:"new_total_xp"`
	Level      quizmanager.LevelInfo `json:"level"`
	// AlreadyCompleted не сериализуется: повторное завершение возвращает тот же ответ
	AlreadyCompleted bool `json:"-"`
}

// AttemptService управляет попытками: старт, запись ответов, завершение
type AttemptService struct {
	repos   *repository.Repositories
	tx      repository.Transactor
	config  *quizmanager.Config
	clock   *quizmanager.PeriodClock
	scoring *ScoringService
}

// NewAttemptService создает новый сервис попыток
func NewAttemptService(
	repos *repository.Repositories,
	tx repository.Transactor,
	config *quizmanager.Config,
	clock *quizmanager.PeriodClock,
	scoring *ScoringService,
) *AttemptService {
	return &AttemptService{
		repos:   repos,
		tx:      tx,
		config:  config,
		clock:   clock,
		scoring: scoring,
	}
}

// StartAttempt создает попытку или возвращает существующую.
// Гонка параллельных стартов решается уникальным индексом (user_id, instance_id).
func (s *AttemptService) StartAttempt(ctx context.Context, userID, instanceID uint) (*entity.Attempt, error) {
	instance, err := s.repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !instance.PlayableBy(userID) {
		return nil, fmt.Errorf("%w: practice instance belongs to another user", apperrors.ErrForbidden)
	}

	existing, err := s.repos.Attempts.GetByUserAndInstance(ctx, userID, instanceID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if instance.Status != entity.InstanceStatusScheduled && instance.Status != entity.InstanceStatusLive {
		return nil, fmt.Errorf("%w (status %s)", ErrInstanceNotPlayable, instance.Status)
	}

	attempt := &entity.Attempt{
		UserID:        userID,
		InstanceID:    instance.ID,
		GameID:        instance.GameID,
		Mode:          instance.Mode,
		QuestionCount: instance.QuestionCount,
	}
	created, err := s.repos.Attempts.CreateIfAbsent(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	if !created {
		// Параллельный старт успел первым
		return s.repos.Attempts.GetByUserAndInstance(ctx, userID, instanceID)
	}

	log.Printf("[AttemptService] Пользователь %d начал попытку %d в инстансе %d (%s)", userID, attempt.ID, instance.ID, instance.Mode)
	return attempt, nil
}

// RecordResponse проверяет и записывает ответ.
// Повторный ответ на тот же вопрос возвращает первый результат и не трогает счетчики вопроса.
// Запись ответа и инкремент счетчиков выполняются в одной транзакции.
func (s *AttemptService) RecordResponse(ctx context.Context, userID, attemptID uint, in ResponseInput) (*ResponseResult, error) {
	var result *ResponseResult
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		attempt, err := r.Attempts.GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.UserID != userID {
			return ErrNotAttemptOwner
		}
		if attempt.IsCompleted() {
			return ErrAttemptCompleted
		}

		// FOR SHARE: перевод в completed/cancelled дождется фиксации этого ответа,
		// а ответ, пришедший после перевода, увидит новый статус
		instance, err := r.Instances.GetByIDForShare(ctx, attempt.InstanceID)
		if err != nil {
			return err
		}
		if !instance.IsLive() {
			return fmt.Errorf("%w (status %s)", ErrInstanceClosed, instance.Status)
		}

		assignment, err := r.Assignments.GetByID(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		if assignment.InstanceID != instance.ID || assignment.Question == nil {
			return ErrForeignAssignment
		}
		if instance.Mode == entity.ModeLive && assignment.Position > instance.CurrentQuestion {
			return ErrQuestionNotRevealed
		}

		prior, err := r.Responses.GetByAttemptAndAssignment(ctx, attempt.ID, assignment.ID)
		if err == nil {
			result, err = priorResult(prior, assignment)
			return err
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		elapsed := quizmanager.ClampElapsed(in.ElapsedMs, instance.TimeLimitMs)
		if s.config.LowTimeWarningMs > 0 && in.SelectedIndex != nil && elapsed < s.config.LowTimeWarningMs {
			log.Printf("[AttemptService] WARNING: подозрительно быстрый ответ %dms: user=%d attempt=%d assignment=%d",
				elapsed, userID, attempt.ID, assignment.ID)
		}

		correct, err := quizmanager.ResolveSelection(in.SelectedIndex, assignment.Permutation, assignment.Question.CorrectIndex)
		if err != nil {
			if errors.Is(err, apperrors.ErrIntegrity) {
				log.Printf("[AttemptService] CRITICAL: невозможно проверить ответ, assignment=%d: %v", assignment.ID, err)
			}
			return err
		}

		response := &entity.Response{
			AttemptID:     attempt.ID,
			AssignmentID:  assignment.ID,
			InstanceID:    instance.ID,
			UserID:        userID,
			QuestionID:    assignment.QuestionID,
			SelectedIndex: in.SelectedIndex,
			IsCorrect:     correct,
			ElapsedMs:     elapsed,
		}
		created, err := r.Responses.CreateIfAbsent(ctx, response)
		if err != nil {
			return fmt.Errorf("failed to save response: %w", err)
		}
		if !created {
			// Параллельная отправка записала ответ первой
			prior, err := r.Responses.GetByAttemptAndAssignment(ctx, attempt.ID, assignment.ID)
			if err != nil {
				return err
			}
			result, err = priorResult(prior, assignment)
			return err
		}

		if err := r.Questions.IncrementUsage(ctx, assignment.QuestionID, correct); err != nil {
			return fmt.Errorf("failed to update question usage: %w", err)
		}

		result, err = gradedResult(response, assignment, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func priorResult(prior *entity.Response, assignment *entity.QuestionAssignment) (*ResponseResult, error) {
	return gradedResult(prior, assignment, true)
}

func gradedResult(response *entity.Response, assignment *entity.QuestionAssignment, already bool) (*ResponseResult, error) {
	correctDisplayed, err := quizmanager.DisplayedIndexOf(assignment.Permutation, assignment.Question.CorrectIndex)
	if err != nil {
		return nil, err
	}
	return &ResponseResult{
		AttemptID:             response.AttemptID,
		AssignmentID:          response.AssignmentID,
		Correct:               response.IsCorrect,
		CorrectDisplayedIndex: correctDisplayed,
		SelectedIndex:         response.SelectedIndex,
		ElapsedMs:             response.ElapsedMs,
		AlreadyAnswered:       already,
	}, nil
}

// CompleteAttempt суммирует ответы, сохраняет Score и отметку завершения одной транзакцией.
// Для daily/flash/practice там же начисляется XP и (кроме practice) обновляются лидерборды;
// live учитывается пакетно при завершении викторины.
// Повторный вызов возвращает сохраненный итог.
func (s *AttemptService) CompleteAttempt(ctx context.Context, userID, attemptID uint) (*CompletionResult, error) {
	var (
		result   *CompletionResult
		instance *entity.QuizInstance
		folded   bool
	)
	now := s.clock.Now()

	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		attempt, err := r.Attempts.GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.UserID != userID {
			return ErrNotAttemptOwner
		}
		if attempt.IsCompleted() {
			result, err = s.storedCompletion(ctx, r, attempt)
			return err
		}

		instance, err = r.Instances.GetByID(ctx, attempt.InstanceID)
		if err != nil {
			return err
		}
		if instance.Status == entity.InstanceStatusCancelled {
			return fmt.Errorf("%w (status %s)", ErrInstanceClosed, instance.Status)
		}

		responses, err := r.Responses.ListByAttempt(ctx, attempt.ID)
		if err != nil {
			return err
		}
		in := quizmanager.TallyResponses(responses, instance.QuestionCount)

		// В live Score получают только ответившие; пустая попытка просто закрывается
		var score *entity.Score
		points := 0
		if instance.Mode != entity.ModeLive || len(responses) > 0 {
			if score, err = s.scoring.upsertScore(ctx, r, instance, userID, in); err != nil {
				return err
			}
			points = score.Points
		}

		var user *entity.User
		xp := 0
		if instance.IsEphemeral() {
			st, err := s.scoring.settle(ctx, r, instance, score, in, now)
			if err != nil {
				return err
			}
			xp, user = st.XP, st.User
			folded = st.Claimed && instance.CountsForLeaderboard()
		}
		if user == nil {
			if user, err = r.Users.GetByID(ctx, userID); err != nil {
				return err
			}
		}

		applyAttemptTotals(attempt, in, points, now)
		attempt.XPEarned = xp
		attempt.TotalXPAfter = user.XP
		if err := r.Attempts.Update(ctx, attempt); err != nil {
			return fmt.Errorf("failed to complete attempt: %w", err)
		}

		result = completionOf(attempt, score, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if folded {
		s.scoring.leaderboard.invalidate(ctx, instance.GameID, now)
	}
	if !result.AlreadyCompleted {
		log.Printf("[AttemptService] Попытка %d завершена: %d/%d, очки=%d, xp=%d",
			attemptID, result.Attempt.CorrectCount, result.Attempt.QuestionCount, result.Attempt.PointsEarned, result.XPEarned)
	}
	return result, nil
}

// storedCompletion собирает итог уже завершенной попытки без пересчета.
// XP и уровень берутся из попытки, а не из текущего профиля пользователя.
func (s *AttemptService) storedCompletion(ctx context.Context, r *repository.Repositories, attempt *entity.Attempt) (*CompletionResult, error) {
	score, err := r.Scores.GetByInstanceAndUser(ctx, attempt.InstanceID, attempt.UserID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound) && attempt.Mode == entity.ModeLive && attempt.AnsweredCount == 0:
		score = nil
	default:
		return nil, err
	}
	return completionOf(attempt, score, true), nil
}

func completionOf(attempt *entity.Attempt, score *entity.Score, already bool) *CompletionResult {
	return &CompletionResult{
		Attempt:          attempt,
		Score:            score,
		XPEarned:         attempt.XPEarned,
		NewTotalXP:       attempt.TotalXPAfter,
		Level:            quizmanager.LevelFor(attempt.TotalXPAfter),
		AlreadyCompleted: already,
	}
}
