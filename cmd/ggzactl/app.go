package main

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/ggza/trivia-core/internal/config"
	pgRepo "github.com/ggza/trivia-core/internal/repository/postgres"
	redisRepo "github.com/ggza/trivia-core/internal/repository/redis"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
	"github.com/ggza/trivia-core/pkg/database"
	"github.com/go-redis/redis/v8"
)

// app — сервисы без HTTP-слоя. События websocket из утилиты не рассылаются.
type app struct {
	db    *gorm.DB
	redis redis.UniversalClient

	instances   *service.InstanceService
	scoring     *service.ScoringService
	leaderboard *service.LeaderboardService
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), true)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		return nil, err
	}

	store := pgRepo.NewStore(db)
	repos := store.Repositories()
	quizConfig := quizmanager.NewConfig(cfg.Game)
	clock := quizmanager.NewPeriodClock(quizConfig.Location, nil)

	xp := service.NewXPService(repos, store)
	leaderboard := service.NewLeaderboardService(repos, store, cacheRepo, clock, cfg.Leaderboard)
	scoring := service.NewScoringService(repos, store, quizConfig, clock, leaderboard, xp, nil)
	instances := service.NewInstanceService(repos, store, cacheRepo, quizConfig, clock, nil, scoring, nil)

	return &app{
		db:          db,
		redis:       redisClient,
		instances:   instances,
		scoring:     scoring,
		leaderboard: leaderboard,
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		log.Printf("[ggzactl] Ошибка закрытия Redis: %v", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
