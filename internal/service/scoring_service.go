package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// RankedScore — результат инстанса для выдачи и рассылки
type RankedScore struct {
	Rank         int    `json:"rank"`
	UserID       uint   `json:"user_id"`
	Username     string `json:"username"`
	Points       int    `json:"points"`
	CorrectCount int    `json:"correct_count"`
	TotalTimeMs  int64  `json:"total_time_ms"`
}

// settlement — итог однократного учета результата
type settlement struct {
	Claimed bool
	XP      int
	User    *entity.User
}

// ScoringService считает Score, ранги и учитывает результаты в лидербордах и XP
type ScoringService struct {
	repos       *repository.Repositories
	tx          repository.Transactor
	config      *quizmanager.Config
	clock       *quizmanager.PeriodClock
	leaderboard *LeaderboardService
	xp          *XPService
	broadcaster InstanceBroadcaster
}

// NewScoringService создает новый сервис подсчета результатов
func NewScoringService(
	repos *repository.Repositories,
	tx repository.Transactor,
	config *quizmanager.Config,
	clock *quizmanager.PeriodClock,
	leaderboard *LeaderboardService,
	xp *XPService,
	broadcaster InstanceBroadcaster,
) *ScoringService {
	return &ScoringService{
		repos:       repos,
		tx:          tx,
		config:      config,
		clock:       clock,
		leaderboard: leaderboard,
		xp:          xp,
		broadcaster: orNoop(broadcaster),
	}
}

// upsertScore — единственная реализация расчета Score.
// Повторный вызов обновляет ту же строку (instance_id, user_id), дубликатов не бывает.
func (s *ScoringService) upsertScore(ctx context.Context, r *repository.Repositories, instance *entity.QuizInstance, userID uint, in quizmanager.ScoreInput) (*entity.Score, error) {
	score := &entity.Score{
		InstanceID:    instance.ID,
		UserID:        userID,
		GameID:        instance.GameID,
		Mode:          instance.Mode,
		Points:        quizmanager.LivePoints(in.CorrectCount, instance.PointsPerCorrect),
		CorrectCount:  in.CorrectCount,
		QuestionCount: in.QuestionCount,
		TotalTimeMs:   in.TotalTimeMs,
	}
	if err := r.Scores.Upsert(ctx, score); err != nil {
		return nil, fmt.Errorf("failed to upsert score: %w", err)
	}
	return score, nil
}

// settle однократно учитывает результат: лидерборды (кроме practice) и XP.
// Метка aggregated_at захватывается условным UPDATE в той же транзакции,
// поэтому повторный вызов ничего не делает.
func (s *ScoringService) settle(ctx context.Context, r *repository.Repositories, instance *entity.QuizInstance, score *entity.Score, in quizmanager.ScoreInput, at time.Time) (settlement, error) {
	claimed, err := r.Scores.ClaimAggregation(ctx, score.ID, at)
	if err != nil {
		return settlement{}, fmt.Errorf("failed to claim score %d: %w", score.ID, err)
	}
	if !claimed {
		return settlement{}, nil
	}
	score.AggregatedAt = &at

	if instance.CountsForLeaderboard() {
		if err := s.leaderboard.fold(ctx, r, score, at); err != nil {
			return settlement{}, err
		}
	}

	xp, err := s.rewardXP(ctx, r, instance, score.UserID, in, at)
	if err != nil {
		return settlement{}, err
	}
	reason := fmt.Sprintf("%s quiz #%d: %d/%d correct", instance.Mode, instance.ID, in.CorrectCount, in.QuestionCount)
	user, err := s.xp.grant(ctx, r, score.UserID, xp, reason, entity.XPSourceScore, score.ID)
	if err != nil {
		return settlement{}, err
	}
	return settlement{Claimed: true, XP: xp, User: user}, nil
}

// rewardXP вычисляет XP по формуле режима
func (s *ScoringService) rewardXP(ctx context.Context, r *repository.Repositories, instance *entity.QuizInstance, userID uint, in quizmanager.ScoreInput, at time.Time) (int, error) {
	switch instance.Mode {
	case entity.ModePractice:
		return quizmanager.PracticeXP(in.CorrectCount, s.config.PracticeXPPerCorrect, s.config.PracticeBonus), nil
	case entity.ModeDaily:
		return s.dailyXP(ctx, r, instance, userID, in, at)
	case entity.ModeFlash:
		return quizmanager.FlashXP(instance.XPReward, instance.BonusXP, instance.BonusThresholdMs, in), nil
	default:
		return in.CorrectCount * s.config.LiveXPPerCorrect, nil
	}
}

// dailyXP обновляет серию при полном своевременном прохождении и применяет множитель серии
func (s *ScoringService) dailyXP(ctx context.Context, r *repository.Repositories, instance *entity.QuizInstance, userID uint, in quizmanager.ScoreInput, at time.Time) (int, error) {
	today := s.clock.DayKey(at)
	day := today
	if instance.BucketKey != nil {
		day = *instance.BucketKey
	}
	previousDay, err := s.clock.PreviousDayKey(day)
	if err != nil {
		return 0, err
	}

	streak, err := r.Streaks.LockOrCreate(ctx, userID, instance.GameID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock daily streak: %w", err)
	}

	current := quizmanager.ActiveStreak(streak, day, previousDay)
	if in.FullRun() && today == day {
		quizmanager.AdvanceStreak(streak, day, previousDay)
		if err := r.Streaks.Save(ctx, streak); err != nil {
			return 0, fmt.Errorf("failed to save daily streak: %w", err)
		}
		current = streak.CurrentStreak
	}

	return quizmanager.DailyXP(instance.XPReward, in.CorrectCount, s.config.DailyXPPerCorrect, current), nil
}

// settleInTx учитывает один результат в отдельной транзакции и записывает XP в попытку
func (s *ScoringService) settleInTx(ctx context.Context, instance *entity.QuizInstance, score entity.Score, at time.Time) error {
	return s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		attempt, err := r.Attempts.GetByUserAndInstance(ctx, score.UserID, instance.ID)
		if err != nil {
			return err
		}
		responses, err := r.Responses.ListByAttempt(ctx, attempt.ID)
		if err != nil {
			return err
		}
		in := quizmanager.TallyResponses(responses, instance.QuestionCount)

		st, err := s.settle(ctx, r, instance, &score, in, at)
		if err != nil || !st.Claimed {
			return err
		}
		attempt.XPEarned = st.XP
		attempt.TotalXPAfter = st.User.XP
		return r.Attempts.Update(ctx, attempt)
	})
}

// rerankWith — полный пересчет рангов инстанса по снимку, заблокированному FOR UPDATE
func (s *ScoringService) rerankWith(ctx context.Context, r *repository.Repositories, instanceID uint) ([]entity.Score, error) {
	scores, err := r.Scores.ListByInstance(ctx, instanceID, true)
	if err != nil {
		return nil, err
	}
	previous := make(map[uint]int, len(scores))
	for _, sc := range scores {
		previous[sc.ID] = sc.Rank
	}

	ranked := quizmanager.RankScores(scores)
	for _, sc := range ranked {
		if previous[sc.ID] == sc.Rank {
			continue
		}
		if err := r.Scores.UpdateRank(ctx, sc.ID, sc.Rank); err != nil {
			return nil, fmt.Errorf("failed to update rank of score %d: %w", sc.ID, err)
		}
	}
	return ranked, nil
}

// EnsureScored возвращает Score пользователя, досчитывая его, если он отсутствует.
// Досчет возможен для завершенной попытки и для завершенной live-викторины.
func (s *ScoringService) EnsureScored(ctx context.Context, userID, instanceID uint) (*entity.Score, error) {
	var result *entity.Score
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		instance, err := r.Instances.GetByID(ctx, instanceID)
		if err != nil {
			return err
		}

		existing, err := r.Scores.GetByInstanceAndUser(ctx, instanceID, userID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		attempt, err := r.Attempts.GetByUserAndInstance(ctx, userID, instanceID)
		if err != nil {
			return err
		}
		liveFinished := instance.Mode == entity.ModeLive && instance.Status == entity.InstanceStatusCompleted
		if !attempt.IsCompleted() && !liveFinished {
			return fmt.Errorf("%w: score is available after the attempt is completed", apperrors.ErrNotFound)
		}

		responses, err := r.Responses.ListByAttempt(ctx, attempt.ID)
		if err != nil {
			return err
		}
		if instance.Mode == entity.ModeLive && len(responses) == 0 {
			return fmt.Errorf("%w: no responses in live instance %d", apperrors.ErrNotFound, instanceID)
		}
		score, err := s.upsertScore(ctx, r, instance, userID, quizmanager.TallyResponses(responses, instance.QuestionCount))
		if err != nil {
			return err
		}
		log.Printf("[ScoringService] Восстановлен отсутствующий результат: instance=%d user=%d points=%d", instanceID, userID, score.Points)

		if instance.Mode == entity.ModeLive {
			ranked, err := s.rerankWith(ctx, r, instanceID)
			if err != nil {
				return err
			}
			for _, sc := range ranked {
				if sc.ID == score.ID {
					score.Rank = sc.Rank
				}
			}
		}
		result = score
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ScoreLiveInstance — пакетный подсчет завершенной live-викторины:
// Score для каждого, кто дал хотя бы один ответ, полный пересчет рангов,
// затем параллельный учет в лидербордах и XP.
func (s *ScoringService) ScoreLiveInstance(ctx context.Context, instance *entity.QuizInstance) ([]entity.Score, error) {
	at := s.clock.Now()

	var ranked []entity.Score
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		responses, err := r.Responses.ListByInstance(ctx, instance.ID)
		if err != nil {
			return err
		}
		attempts, err := r.Attempts.ListByInstance(ctx, instance.ID)
		if err != nil {
			return err
		}
		attemptByUser := make(map[uint]*entity.Attempt, len(attempts))
		for i := range attempts {
			attemptByUser[attempts[i].UserID] = &attempts[i]
		}

		for userID, userResponses := range quizmanager.GroupResponsesByUser(responses) {
			in := quizmanager.TallyResponses(userResponses, instance.QuestionCount)
			score, err := s.upsertScore(ctx, r, instance, userID, in)
			if err != nil {
				return err
			}
			if attempt, ok := attemptByUser[userID]; ok && !attempt.IsCompleted() {
				applyAttemptTotals(attempt, in, score.Points, at)
				if err := r.Attempts.Update(ctx, attempt); err != nil {
					return err
				}
			}
		}

		ranked, err = s.rerankWith(ctx, r, instance.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to score live instance %d: %w", instance.ID, err)
	}
	log.Printf("[ScoringService] Live-викторина %d: посчитано %d результатов", instance.ID, len(ranked))

	if err := s.settleAll(ctx, instance, ranked, at); err != nil {
		return ranked, err
	}

	if results, err := s.rankedView(ctx, ranked); err == nil {
		if err := s.broadcaster.BroadcastEventToInstance(instance.ID, EventInstanceResults, map[string]interface{}{
			"instance_id": instance.ID,
			"results":     results,
		}); err != nil {
			log.Printf("[ScoringService] Не удалось разослать результаты инстанса %d: %v", instance.ID, err)
		}
	}
	return ranked, nil
}

// settleAll учитывает результаты параллельно, не более LiveFoldConcurrency транзакций одновременно.
// Записи лидербордов разных пользователей независимы, поэтому блокировки не пересекаются.
func (s *ScoringService) settleAll(ctx context.Context, instance *entity.QuizInstance, scores []entity.Score, at time.Time) error {
	limit := s.config.LiveFoldConcurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, sc := range scores {
		sc := sc
		g.Go(func() error {
			if err := s.settleInTx(gctx, instance, sc, at); err != nil {
				return fmt.Errorf("settle score %d (user %d): %w", sc.ID, sc.UserID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if instance.CountsForLeaderboard() && len(scores) > 0 {
		s.leaderboard.invalidate(ctx, instance.GameID, at)
	}
	if err != nil {
		log.Printf("[ScoringService] Ошибка учета результатов инстанса %d, повтор через rerank: %v", instance.ID, err)
		return err
	}
	return nil
}

// Rerank пересчитывает ранги инстанса и доучитывает результаты, не попавшие в лидерборды
func (s *ScoringService) Rerank(ctx context.Context, instanceID uint) ([]entity.Score, error) {
	instance, err := s.repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var ranked []entity.Score
	err = s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		ranked, err = s.rerankWith(ctx, r, instanceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if instance.Mode == entity.ModeLive && instance.Status == entity.InstanceStatusCompleted {
		pending, err := s.repos.Scores.ListPendingAggregation(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			log.Printf("[ScoringService] Инстанс %d: доучет %d результатов", instanceID, len(pending))
			if err := s.settleAll(ctx, instance, pending, s.clock.Now()); err != nil {
				return ranked, err
			}
		}
	}
	return ranked, nil
}

// Results возвращает результаты инстанса в порядке ранга с именами пользователей.
// Для эфемерных режимов ранг вычисляется при чтении.
func (s *ScoringService) Results(ctx context.Context, instanceID uint) ([]RankedScore, error) {
	if _, err := s.repos.Instances.GetByID(ctx, instanceID); err != nil {
		return nil, err
	}
	scores, err := s.repos.Scores.ListByInstance(ctx, instanceID, false)
	if err != nil {
		return nil, err
	}
	return s.rankedView(ctx, quizmanager.RankScores(scores))
}

func (s *ScoringService) rankedView(ctx context.Context, ranked []entity.Score) ([]RankedScore, error) {
	ids := make([]uint, len(ranked))
	for i, sc := range ranked {
		ids[i] = sc.UserID
	}
	users, err := s.repos.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	view := make([]RankedScore, len(ranked))
	for i, sc := range ranked {
		view[i] = RankedScore{
			Rank:         sc.Rank,
			UserID:       sc.UserID,
			Username:     names[sc.UserID],
			Points:       sc.Points,
			CorrectCount: sc.CorrectCount,
			TotalTimeMs:  sc.TotalTimeMs,
		}
	}
	return view, nil
}

// applyAttemptTotals записывает агрегат ответов и отметку завершения в попытку
func applyAttemptTotals(attempt *entity.Attempt, in quizmanager.ScoreInput, points int, at time.Time) {
	attempt.CorrectCount = in.CorrectCount
	attempt.AnsweredCount = in.AnsweredCount
	attempt.QuestionCount = in.QuestionCount
	attempt.TotalTimeMs = in.TotalTimeMs
	attempt.PointsEarned = points
	attempt.CompletedAt = &at
}
