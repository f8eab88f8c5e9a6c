package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/domain/repository"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

const (
	defaultLeaderboardPageSize = 50
	maxLeaderboardPageSize     = 100
	defaultLeaderboardCacheTTL = 30 * time.Second
)

// LeaderboardItem — строка лидерборда с вычисленным рангом
type LeaderboardItem struct {
	Rank          int     `json:"rank"`
	UserID        uint    `json:"user_id"`
	Username      string  `json:"username"`
	AvatarURL     string  `json:"avatar_url"`
	TotalPoints   int     `json:"total_points"`
	BestScore     int     `json:"best_score"`
	QuizzesPlayed int     `json:"quizzes_played"`
	BestTwoScores []int   `json:"best_two_scores"`
	AverageTimeMs float64 `json:"average_time_ms"`
}

// LeaderboardPage — страница лидерборда периода
type LeaderboardPage struct {
	GameID     uint              `json:"game_id"`
	PeriodType string            `json:"period_type"`
	PeriodKey  string            `json:"period_key"`
	Total      int64             `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
	Entries    []LeaderboardItem `json:"entries"`
}

// LeaderboardService ведет агрегаты "два лучших результата периода" и отдает страницы лидербордов
type LeaderboardService struct {
	repos       *repository.Repositories
	tx          repository.Transactor
	cache       repository.CacheRepository
	clock       *quizmanager.PeriodClock
	cacheTTL    time.Duration
	defaultSize int
	maxSize     int

	// loads склеивает одновременные промахи кеша по одной странице в один запрос к БД
	loads singleflight.Group
}

// NewLeaderboardService создает новый сервис лидербордов
func NewLeaderboardService(
	repos *repository.Repositories,
	tx repository.Transactor,
	cache repository.CacheRepository,
	clock *quizmanager.PeriodClock,
	cfg config.LeaderboardConfig,
) *LeaderboardService {
	s := &LeaderboardService{
		repos:       repos,
		tx:          tx,
		cache:       cache,
		clock:       clock,
		cacheTTL:    time.Duration(cfg.CacheTTLSec) * time.Second,
		defaultSize: cfg.DefaultPageSize,
		maxSize:     cfg.MaxPageSize,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultLeaderboardCacheTTL
	}
	if s.maxSize <= 0 {
		s.maxSize = maxLeaderboardPageSize
	}
	if s.defaultSize <= 0 || s.defaultSize > s.maxSize {
		s.defaultSize = defaultLeaderboardPageSize
	}
	return s
}

// fold учитывает результат во всех периодах (weekly, monthly, all_time) внутри транзакции r.
// Каждая запись читается под FOR UPDATE, поэтому параллельные учеты не теряют результат.
func (s *LeaderboardService) fold(ctx context.Context, r *repository.Repositories, score *entity.Score, at time.Time) error {
	for _, periodType := range entity.PeriodTypes {
		periodKey, err := s.clock.PeriodKey(periodType, at)
		if err != nil {
			return err
		}
		entry, err := r.Leaderboard.LockOrCreate(ctx, repository.LeaderboardKey{
			GameID:     score.GameID,
			UserID:     score.UserID,
			PeriodType: periodType,
			PeriodKey:  periodKey,
		})
		if err != nil {
			return fmt.Errorf("failed to lock leaderboard entry %s/%s: %w", periodType, periodKey, err)
		}
		quizmanager.FoldScore(entry, score.Points, score.TotalTimeMs, at)
		if err := r.Leaderboard.Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to save leaderboard entry %s/%s: %w", periodType, periodKey, err)
		}
	}
	return nil
}

// invalidate сдвигает версию кеша всех периодов, в которые попал момент at.
// Вызывается после фиксации транзакции.
func (s *LeaderboardService) invalidate(ctx context.Context, gameID uint, at time.Time) {
	for _, periodType := range entity.PeriodTypes {
		periodKey, err := s.clock.PeriodKey(periodType, at)
		if err != nil {
			continue
		}
		s.bumpVersion(ctx, gameID, periodType, periodKey)
	}
}

func (s *LeaderboardService) bumpVersion(ctx context.Context, gameID uint, periodType, periodKey string) {
	if _, err := s.cache.Increment(ctx, versionKey(gameID, periodType, periodKey)); err != nil {
		log.Printf("[LeaderboardService] Не удалось инвалидировать кеш %d/%s/%s: %v", gameID, periodType, periodKey, err)
	}
}

func versionKey(gameID uint, periodType, periodKey string) string {
	return fmt.Sprintf("ggza:lb:ver:%d:%s:%s", gameID, periodType, periodKey)
}

func pageKey(gameID uint, periodType, periodKey, version string, limit, offset int) string {
	return fmt.Sprintf("ggza:lb:page:%d:%s:%s:v%s:%d:%d", gameID, periodType, periodKey, version, limit, offset)
}

// resolvePeriod проверяет тип периода и подставляет текущий ключ, если он не задан
func (s *LeaderboardService) resolvePeriod(periodType, periodKey string) (string, error) {
	if !entity.IsKnownPeriodType(periodType) {
		return "", fmt.Errorf("%w: unknown period type %q", apperrors.ErrValidation, periodType)
	}
	if periodKey == "" {
		return s.clock.PeriodKey(periodType, s.clock.Now())
	}
	if err := quizmanager.ValidatePeriodKey(periodType, periodKey); err != nil {
		return "", err
	}
	return periodKey, nil
}

// GetLeaderboard возвращает страницу лидерборда игры за период.
// Ранг вычисляется при чтении: offset + позиция в порядке (очки ↓, среднее время ↑, момент достижения ↑).
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, gameSlug, periodType, periodKey string, limit, offset int) (*LeaderboardPage, error) {
	periodKey, err := s.resolvePeriod(periodType, periodKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultSize
	} else if limit > s.maxSize {
		limit = s.maxSize
	}
	if offset < 0 {
		offset = 0
	}

	game, err := s.repos.Games.GetBySlug(ctx, gameSlug)
	if err != nil {
		return nil, err
	}

	version, cacheable := s.currentVersion(ctx, game.ID, periodType, periodKey)
	cacheKey := pageKey(game.ID, periodType, periodKey, version, limit, offset)
	if cacheable {
		var cached LeaderboardPage
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[LeaderboardService] Ошибка чтения кеша %s: %v", cacheKey, err)
		}
	}

	loaded, err, _ := s.loads.Do(cacheKey, func() (interface{}, error) {
		return s.loadPage(ctx, game.ID, periodType, periodKey, limit, offset, cacheKey, cacheable)
	})
	if err != nil {
		return nil, err
	}
	return loaded.(*LeaderboardPage), nil
}

// loadPage читает страницу из БД и кладет ее в кеш
func (s *LeaderboardService) loadPage(ctx context.Context, gameID uint, periodType, periodKey string, limit, offset int, cacheKey string, cacheable bool) (*LeaderboardPage, error) {
	rows, total, err := s.repos.Leaderboard.ListRanked(ctx, gameID, periodType, periodKey, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	page := &LeaderboardPage{
		GameID:     gameID,
		PeriodType: periodType,
		PeriodKey:  periodKey,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		Entries:    make([]LeaderboardItem, len(rows)),
	}
	for i, row := range rows {
		page.Entries[i] = LeaderboardItem{
			Rank:          offset + i + 1,
			UserID:        row.UserID,
			Username:      row.Username,
			AvatarURL:     row.AvatarURL,
			TotalPoints:   row.TotalPoints,
			BestScore:     row.BestScore,
			QuizzesPlayed: row.QuizzesPlayed,
			BestTwoScores: []int(row.BestTwoScores),
			AverageTimeMs: row.AverageTimeMs,
		}
	}

	if cacheable {
		if err := s.cache.SetJSON(ctx, cacheKey, page, s.cacheTTL); err != nil {
			log.Printf("[LeaderboardService] Не удалось сохранить страницу в кеш: %v", err)
		}
	}
	return page, nil
}

// currentVersion возвращает версию кеша периода; при недоступном Redis кеш не используется
func (s *LeaderboardService) currentVersion(ctx context.Context, gameID uint, periodType, periodKey string) (string, bool) {
	version, err := s.cache.Get(ctx, versionKey(gameID, periodType, periodKey))
	if err == nil {
		return version, true
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return "0", true
	}
	log.Printf("[LeaderboardService] Redis недоступен, лидерборд читается из БД: %v", err)
	return "", false
}

// Rebuild пересобирает записи периода из уже учтенных результатов.
// Возвращает количество записей после пересборки.
func (s *LeaderboardService) Rebuild(ctx context.Context, gameSlug, periodType, periodKey string) (int, error) {
	if !entity.IsKnownPeriodType(periodType) {
		return 0, fmt.Errorf("%w: unknown period type %q", apperrors.ErrValidation, periodType)
	}
	from, to, err := s.clock.PeriodBounds(periodType, periodKey)
	if err != nil {
		return 0, err
	}
	game, err := s.repos.Games.GetBySlug(ctx, gameSlug)
	if err != nil {
		return 0, err
	}

	var count int
	err = s.tx.WithinTx(ctx, func(r *repository.Repositories) error {
		scores, err := r.Scores.ListAggregatedBetween(ctx, game.ID, from, to)
		if err != nil {
			return err
		}

		byUser := make(map[uint]*entity.LeaderboardEntry)
		for i := range scores {
			sc := &scores[i]
			if sc.AggregatedAt == nil {
				continue
			}
			entry, ok := byUser[sc.UserID]
			if !ok {
				entry = &entity.LeaderboardEntry{
					GameID:     game.ID,
					UserID:     sc.UserID,
					PeriodType: periodType,
					PeriodKey:  periodKey,
				}
				byUser[sc.UserID] = entry
			}
			quizmanager.FoldScore(entry, sc.Points, sc.TotalTimeMs, *sc.AggregatedAt)
		}

		entries := make([]entity.LeaderboardEntry, 0, len(byUser))
		for _, e := range byUser {
			entries = append(entries, *e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })

		if err := r.Leaderboard.DeletePeriod(ctx, game.ID, periodType, periodKey); err != nil {
			return err
		}
		if err := r.Leaderboard.CreateBatch(ctx, entries); err != nil {
			return err
		}
		count = len(entries)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}

	s.bumpVersion(ctx, game.ID, periodType, periodKey)
	log.Printf("[LeaderboardService] Лидерборд %s %s/%s пересобран: %d записей", gameSlug, periodType, periodKey, count)
	return count, nil
}
