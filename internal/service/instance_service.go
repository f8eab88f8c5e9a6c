package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// Интервал опроса, пока другой узел генерирует инстанс окна
const generationPollInterval = 50 * time.Millisecond

// DisplayQuestion — вопрос в показанном порядке вариантов, без правильного ответа
type DisplayQuestion struct {
	AssignmentID uint     `json:"assignment_id"`
	Position     int      `json:"position"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	Difficulty   int      `json:"difficulty"`
	Category     *string  `json:"category,omitempty"`
}

// PlayableInstance — инстанс с доступными пользователю вопросами и его попыткой
type PlayableInstance struct {
	Instance  *entity.QuizInstance `json:"instance"`
	Questions []DisplayQuestion    `json:"questions"`
	Attempt   *entity.Attempt      `json:"attempt,omitempty"`
}

// CreateInstanceInput — параметры запланированной live-викторины
type CreateInstanceInput struct {
	GameSlug         string
	Title            string
	ScheduledAt      time.Time
	QuestionCount    int
	TimeLimitMs      int64
	PointsPerCorrect int
	PrizePool        int64
}

// InstanceService управляет жизненным циклом инстансов и генерацией эфемерных режимов
type InstanceService struct {
	repos       *repository.Repositories
	tx          repository.Transactor
	cache       repository.CacheRepository
	config      *quizmanager.Config
	clock       *quizmanager.PeriodClock
	rng         quizmanager.RandomSource
	scoring     *ScoringService
	broadcaster InstanceBroadcaster
}

// NewInstanceService создает новый сервис инстансов
func NewInstanceService(
	repos *repository.Repositories,
	tx repository.Transactor,
	cache repository.CacheRepository,
	config *quizmanager.Config,
	clock *quizmanager.PeriodClock,
	rng quizmanager.RandomSource,
	scoring *ScoringService,
	broadcaster InstanceBroadcaster,
) *InstanceService {
	if rng == nil {
		rng = quizmanager.DefaultRandom
	}
	return &InstanceService{
		repos:       repos,
		tx:          tx,
		cache:       cache,
		config:      config,
		clock:       clock,
		rng:         rng,
		scoring:     scoring,
		broadcaster: orNoop(broadcaster),
	}
}

// GetOrCreatePlayable возвращает инстанс режима, доступный пользователю сейчас.
// live: идущая или ближайшая запланированная викторина; daily/flash: инстанс текущего окна,
// созданный при первом обращении; practice: новый личный инстанс на каждый запрос.
func (s *InstanceService) GetOrCreatePlayable(ctx context.Context, userID uint, gameSlug, mode string) (*PlayableInstance, error) {
	if !entity.IsKnownMode(mode) {
		return nil, fmt.Errorf("%w: unknown mode %q", apperrors.ErrValidation, mode)
	}
	game, err := s.repos.Games.GetBySlug(ctx, gameSlug)
	if err != nil {
		return nil, err
	}
	if !game.IsActive {
		return nil, fmt.Errorf("%w: game %s is disabled", apperrors.ErrNotFound, gameSlug)
	}

	var instance *entity.QuizInstance
	switch mode {
	case entity.ModeLive:
		instance, err = s.repos.Instances.FindCurrentLive(ctx, game.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no live quiz is scheduled", apperrors.ErrNotFound)
		}
	case entity.ModePractice:
		owner := userID
		instance, err = s.generate(ctx, game, mode, nil, &owner)
	default:
		instance, err = s.getOrGenerate(ctx, game, mode)
	}
	if err != nil {
		return nil, err
	}
	return s.playableView(ctx, userID, instance)
}

// GetPlayable возвращает уже существующий инстанс по ID (повторное подключение клиента)
func (s *InstanceService) GetPlayable(ctx context.Context, userID, instanceID uint) (*PlayableInstance, error) {
	instance, err := s.repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !instance.PlayableBy(userID) {
		return nil, fmt.Errorf("%w: practice instance belongs to another user", apperrors.ErrForbidden)
	}
	return s.playableView(ctx, userID, instance)
}

// ListInstances возвращает инстансы игры, новые первыми, и их общее количество
func (s *InstanceService) ListInstances(ctx context.Context, gameSlug string, limit, offset int) ([]entity.QuizInstance, int64, error) {
	game, err := s.repos.Games.GetBySlug(ctx, gameSlug)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Instances.ListByGame(ctx, game.ID, limit, offset)
}

// getOrGenerate возвращает инстанс текущего окна daily/flash, создавая его при первом обращении.
// Блокировка SETNX снижает число параллельных генераций; окончательно дубликаты
// отсекает уникальный индекс (game_id, mode, bucket_key).
func (s *InstanceService) getOrGenerate(ctx context.Context, game *entity.Game, mode string) (*entity.QuizInstance, error) {
	bucketKey, ok := s.clock.BucketKey(mode, s.clock.Now())
	if !ok {
		return nil, fmt.Errorf("%w: mode %s has no time bucket", apperrors.ErrValidation, mode)
	}

	existing, err := s.repos.Instances.GetByBucket(ctx, game.ID, mode, bucketKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	lockKey := fmt.Sprintf("ggza:gen:%d:%s:%s", game.ID, mode, bucketKey)
	token := uuid.NewString()
	acquired, err := s.cache.SetNX(ctx, lockKey, token, s.config.GenerationLockTTL)
	if err != nil {
		log.Printf("[InstanceService] Блокировка генерации недоступна (%v), генерация без нее", err)
	} else if !acquired {
		if instance, err := s.waitForBucket(ctx, game.ID, mode, bucketKey); err == nil {
			return instance, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		log.Printf("[InstanceService] Не дождались генерации %s, генерируем сами", lockKey)
	} else {
		defer func() {
			if _, err := s.cache.DeleteIfEquals(context.Background(), lockKey, token); err != nil {
				log.Printf("[InstanceService] Не удалось снять блокировку %s: %v", lockKey, err)
			}
		}()
		// Инстанс мог появиться, пока брали блокировку
		if instance, err := s.repos.Instances.GetByBucket(ctx, game.ID, mode, bucketKey); err == nil {
			return instance, nil
		}
	}

	return s.generate(ctx, game, mode, &bucketKey, nil)
}

// waitForBucket ждет, пока держатель блокировки создаст инстанс, не дольше TTL блокировки
func (s *InstanceService) waitForBucket(ctx context.Context, gameID uint, mode, bucketKey string) (*entity.QuizInstance, error) {
	deadline := time.Now().Add(s.config.GenerationLockTTL)
	ticker := time.NewTicker(generationPollInterval)
	defer ticker.Stop()

	for {
		instance, err := s.repos.Instances.GetByBucket(ctx, gameID, mode, bucketKey)
		if err == nil || !errors.Is(err, apperrors.ErrNotFound) {
			return instance, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// generate выбирает вопросы из активного пула и создает инстанс с назначениями.
// Если пул меньше нужного, в инстанс попадают все доступные вопросы.
func (s *InstanceService) generate(ctx context.Context, game *entity.Game, mode string, bucketKey *string, ownerID *uint) (*entity.QuizInstance, error) {
	pool, err := s.repos.Questions.ListActiveByGame(ctx, game.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load question pool: %w", err)
	}
	wellFormed := pool[:0:0]
	for _, q := range pool {
		if q.IsWellFormed() {
			wellFormed = append(wellFormed, q)
		} else {
			log.Printf("[InstanceService] CRITICAL: вопрос %d поврежден (вариантов %d, правильный %d), пропущен",
				q.ID, len(q.Options), q.CorrectIndex)
		}
	}
	if len(wellFormed) == 0 {
		return nil, fmt.Errorf("%w: game %s has no active questions", apperrors.ErrUnavailable, game.Slug)
	}

	settings := s.config.ModeSettings(mode)
	picked := quizmanager.SelectQuestions(s.rng, wellFormed, settings.QuestionCount)
	if len(picked) < settings.QuestionCount {
		log.Printf("[InstanceService] В пуле игры %s только %d вопросов из %d нужных для %s",
			game.Slug, len(picked), settings.QuestionCount, mode)
	}

	now := s.clock.Now()
	instance := &entity.QuizInstance{
		GameID:           game.ID,
		Mode:             mode,
		BucketKey:        bucketKey,
		OwnerID:          ownerID,
		Title:            generatedTitle(game, mode, bucketKey),
		Status:           entity.InstanceStatusLive,
		ScheduledAt:      now,
		StartedAt:        &now,
		QuestionCount:    len(picked),
		TimeLimitMs:      settings.TimeLimitMs,
		PointsPerCorrect: s.config.PointsPerCorrect,
	}
	switch mode {
	case entity.ModeDaily:
		instance.XPReward = s.config.DailyXPReward
	case entity.ModeFlash:
		instance.XPReward = s.config.FlashXPReward
		instance.BonusXP = s.config.FlashBonusXP
		instance.BonusThresholdMs = s.config.FlashBonusThreshold
	}

	var result *entity.QuizInstance
	err = s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		if bucketKey != nil {
			created, err := r.Instances.CreateIfAbsent(ctx, instance)
			if err != nil {
				return fmt.Errorf("failed to create instance: %w", err)
			}
			if !created {
				// Параллельная генерация победила, берем ее инстанс
				result, err = r.Instances.GetByBucket(ctx, game.ID, mode, *bucketKey)
				return err
			}
		} else if err := r.Instances.Create(ctx, instance); err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}

		assignments := make([]entity.QuestionAssignment, len(picked))
		for i, q := range picked {
			assignments[i] = entity.QuestionAssignment{
				InstanceID:  instance.ID,
				QuestionID:  q.ID,
				Position:    i + 1,
				Permutation: entity.IntList(quizmanager.GeneratePermutation(s.rng, entity.OptionsPerQuestion)),
			}
		}
		if err := r.Assignments.CreateBatch(ctx, assignments); err != nil {
			return fmt.Errorf("failed to create assignments: %w", err)
		}
		result = instance
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result == instance {
		log.Printf("[InstanceService] Создан инстанс %d (%s) игры %s: %d вопросов", instance.ID, mode, game.Slug, len(picked))
	}
	return result, nil
}

func generatedTitle(game *entity.Game, mode string, bucketKey *string) string {
	if bucketKey != nil {
		return fmt.Sprintf("%s %s %s", game.Name, mode, *bucketKey)
	}
	return fmt.Sprintf("%s %s", game.Name, mode)
}

// playableView собирает вопросы в показанном порядке и попытку пользователя.
// В live видны только вопросы до текущего включительно.
func (s *InstanceService) playableView(ctx context.Context, userID uint, instance *entity.QuizInstance) (*PlayableInstance, error) {
	view := &PlayableInstance{Instance: instance, Questions: []DisplayQuestion{}}

	if instance.Status != entity.InstanceStatusScheduled {
		assignments, err := s.repos.Assignments.ListByInstance(ctx, instance.ID)
		if err != nil {
			return nil, err
		}
		for i := range assignments {
			a := &assignments[i]
			if instance.Mode == entity.ModeLive && a.Position > instance.CurrentQuestion {
				continue
			}
			q, err := displayQuestion(a)
			if err != nil {
				return nil, err
			}
			view.Questions = append(view.Questions, q)
		}
	}

	attempt, err := s.repos.Attempts.GetByUserAndInstance(ctx, userID, instance.ID)
	if err == nil {
		view.Attempt = attempt
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return view, nil
}

// displayQuestion применяет перестановку назначения к каноническим вариантам
func displayQuestion(a *entity.QuestionAssignment) (DisplayQuestion, error) {
	if a.Question == nil {
		return DisplayQuestion{}, fmt.Errorf("%w: assignment %d has no question", apperrors.ErrIntegrity, a.ID)
	}
	options, err := quizmanager.ApplyPermutation(a.Question.Options, a.Permutation)
	if err != nil {
		log.Printf("[InstanceService] CRITICAL: перестановка назначения %d повреждена: %v", a.ID, err)
		return DisplayQuestion{}, err
	}
	return DisplayQuestion{
		AssignmentID: a.ID,
		Position:     a.Position,
		Text:         a.Question.Text,
		Options:      options,
		Difficulty:   a.Question.Difficulty,
		Category:     a.Question.Category,
	}, nil
}

// CreateScheduled создает запланированную live-викторину без вопросов
func (s *InstanceService) CreateScheduled(ctx context.Context, in CreateInstanceInput) (*entity.QuizInstance, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if in.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", apperrors.ErrValidation)
	}
	game, err := s.repos.Games.GetBySlug(ctx, in.GameSlug)
	if err != nil {
		return nil, err
	}

	defaults := s.config.ModeSettings(entity.ModeLive)
	instance := &entity.QuizInstance{
		GameID:           game.ID,
		Mode:             entity.ModeLive,
		Title:            in.Title,
		Status:           entity.InstanceStatusScheduled,
		ScheduledAt:      in.ScheduledAt,
		QuestionCount:    in.QuestionCount,
		TimeLimitMs:      in.TimeLimitMs,
		PointsPerCorrect: in.PointsPerCorrect,
		PrizePool:        in.PrizePool,
	}
	if instance.QuestionCount <= 0 {
		instance.QuestionCount = defaults.QuestionCount
	}
	if instance.TimeLimitMs <= 0 {
		instance.TimeLimitMs = defaults.TimeLimitMs
	}
	if instance.PointsPerCorrect <= 0 {
		instance.PointsPerCorrect = s.config.PointsPerCorrect
	}

	if err := s.repos.Instances.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}
	log.Printf("[InstanceService] Запланирована викторина %d '%s' на %s", instance.ID, instance.Title, instance.ScheduledAt.Format(time.RFC3339))
	return instance, nil
}

// AttachQuestions назначает вопросы запланированной викторине, каждому со своей перестановкой.
// Возвращает общее количество назначенных вопросов.
func (s *InstanceService) AttachQuestions(ctx context.Context, instanceID uint, questionIDs []uint) (int, error) {
	if len(questionIDs) == 0 {
		return 0, fmt.Errorf("%w: question_ids must not be empty", apperrors.ErrValidation)
	}
	seen := make(map[uint]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		if _, dup := seen[id]; dup {
			return 0, fmt.Errorf("%w: question %d is listed twice", apperrors.ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	var total int
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		instance, err := r.Instances.GetByIDForUpdate(ctx, instanceID)
		if err != nil {
			return err
		}
		if instance.Status != entity.InstanceStatusScheduled {
			return fmt.Errorf("%w: questions can only be attached to a scheduled instance (status %s)",
				apperrors.ErrConflict, instance.Status)
		}

		questions, err := r.Questions.GetByIDs(ctx, questionIDs)
		if err != nil {
			return err
		}
		byID := make(map[uint]*entity.Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}

		assigned, err := r.Assignments.CountByInstance(ctx, instance.ID)
		if err != nil {
			return err
		}
		if assigned+len(questionIDs) > instance.QuestionCount {
			return fmt.Errorf("%w: instance takes %d questions, %d already assigned",
				apperrors.ErrValidation, instance.QuestionCount, assigned)
		}

		assignments := make([]entity.QuestionAssignment, 0, len(questionIDs))
		for i, id := range questionIDs {
			q, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: question %d", apperrors.ErrNotFound, id)
			}
			if q.GameID != instance.GameID {
				return fmt.Errorf("%w: question %d belongs to another game", apperrors.ErrValidation, id)
			}
			if !q.IsActive || !q.IsWellFormed() {
				return fmt.Errorf("%w: question %d is inactive or malformed", apperrors.ErrValidation, id)
			}
			assignments = append(assignments, entity.QuestionAssignment{
				InstanceID:  instance.ID,
				QuestionID:  q.ID,
				Position:    assigned + i + 1,
				Permutation: entity.IntList(quizmanager.GeneratePermutation(s.rng, entity.OptionsPerQuestion)),
			})
		}
		if err := r.Assignments.CreateBatch(ctx, assignments); err != nil {
			return fmt.Errorf("failed to attach questions: %w", err)
		}
		total = assigned + len(assignments)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[InstanceService] К инстансу %d назначено вопросов: %d", instanceID, total)
	return total, nil
}

// Transition переводит инстанс в новый статус по правилам
// scheduled → live → completed и scheduled → cancelled.
// Завершение live-викторины запускает пакетный подсчет результатов.
func (s *InstanceService) Transition(ctx context.Context, instanceID uint, target string) (*entity.QuizInstance, error) {
	now := s.clock.Now()

	var instance *entity.QuizInstance
	err := s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		var err error
		instance, err = r.Instances.GetByIDForUpdate(ctx, instanceID)
		if err != nil {
			return err
		}
		assigned, err := r.Assignments.CountByInstance(ctx, instance.ID)
		if err != nil {
			return err
		}
		if err := quizmanager.ValidateTransition(instance.Status, target, assigned, instance.QuestionCount); err != nil {
			return err
		}

		switch target {
		case entity.InstanceStatusLive:
			instance.StartedAt = &now
			if instance.Mode == entity.ModeLive && instance.CurrentQuestion == 0 {
				instance.CurrentQuestion = 1
			}
		case entity.InstanceStatusCompleted, entity.InstanceStatusCancelled:
			instance.EndedAt = &now
		}
		previous := instance.Status
		instance.Status = target
		if err := r.Instances.Update(ctx, instance); err != nil {
			return fmt.Errorf("failed to update instance status: %w", err)
		}
		log.Printf("[InstanceService] Инстанс %d: %s -> %s", instance.ID, previous, target)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.broadcaster.BroadcastEventToInstance(instance.ID, EventInstanceStatus, map[string]interface{}{
		"instance_id": instance.ID,
		"status":      instance.Status,
	}); err != nil {
		log.Printf("[InstanceService] Не удалось разослать статус инстанса %d: %v", instance.ID, err)
	}

	switch {
	case target == entity.InstanceStatusLive && instance.Mode == entity.ModeLive:
		s.broadcastQuestion(ctx, instance)
	case target == entity.InstanceStatusCompleted && instance.Mode == entity.ModeLive:
		if _, err := s.scoring.ScoreLiveInstance(ctx, instance); err != nil {
			// Статус уже зафиксирован; недосчитанное доучитывает Rerank
			log.Printf("[InstanceService] Подсчет результатов инстанса %d завершился с ошибкой: %v", instance.ID, err)
		}
	}
	return instance, nil
}

// Advance открывает следующий вопрос идущей live-викторины
func (s *InstanceService) Advance(ctx context.Context, instanceID uint) (*entity.QuizInstance, error) {
	advanced, err := s.repos.Instances.AdvanceQuestion(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to advance question: %w", err)
	}
	instance, err := s.repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if !advanced {
		if !instance.IsLive() {
			return nil, fmt.Errorf("%w (status %s)", ErrInstanceClosed, instance.Status)
		}
		return nil, ErrNoMoreQuestions
	}

	s.broadcastQuestion(ctx, instance)
	return instance, nil
}

// broadcastQuestion рассылает текущий вопрос live-викторины подписчикам
func (s *InstanceService) broadcastQuestion(ctx context.Context, instance *entity.QuizInstance) {
	assignments, err := s.repos.Assignments.ListByInstance(ctx, instance.ID)
	if err != nil {
		log.Printf("[InstanceService] Не удалось загрузить вопросы инстанса %d: %v", instance.ID, err)
		return
	}
	for i := range assignments {
		if assignments[i].Position != instance.CurrentQuestion {
			continue
		}
		q, err := displayQuestion(&assignments[i])
		if err != nil {
			return
		}
		if err := s.broadcaster.BroadcastEventToInstance(instance.ID, EventInstanceQuestion, map[string]interface{}{
			"instance_id":   instance.ID,
			"position":      q.Position,
			"total":         instance.QuestionCount,
			"time_limit_ms": instance.TimeLimitMs,
			"question":      q,
		}); err != nil {
			log.Printf("[InstanceService] Не удалось разослать вопрос %d инстанса %d: %v", q.Position, instance.ID, err)
		}
		return
	}
}
