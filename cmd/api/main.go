package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/internal/handler"
	"github.com/ggza/trivia-core/internal/middleware"
	pgRepo "github.com/ggza/trivia-core/internal/repository/postgres"
	redisRepo "github.com/ggza/trivia-core/internal/repository/redis"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
	ws "github.com/ggza/trivia-core/internal/websocket"
	"github.com/ggza/trivia-core/pkg/auth"
	"github.com/ggza/trivia-core/pkg/database"
)

func main() {
	// .env необязателен: в проде переменные приходят из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Предупреждение: не удалось прочитать .env: %v", err)
	}

	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Репозитории
	store := pgRepo.NewStore(db)
	repos := store.Repositories()

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	verifier, err := auth.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		log.Printf("Failed to initialize TokenVerifier: %v", err)
		os.Exit(1)
	}

	quizConfig := quizmanager.NewConfig(cfg.Game)
	clock := quizmanager.NewPeriodClock(quizConfig.Location, nil)

	// Контекст жизненного цикла фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- WebSocket ---
	var pubSubProvider ws.PubSubProvider = ws.NoOpPubSub{}
	if cfg.WebSocket.Cluster.Enabled {
		log.Println("Инициализация Redis PubSub для кластеризации WebSocket...")
		redisProvider, errProv := ws.NewRedisPubSub(ctx, redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Кластеризация WS будет неактивна.", errProv)
		} else {
			pubSubProvider = redisProvider
		}
	}

	wsHub := ws.NewHub()
	relay := ws.NewClusterRelay(wsHub, cfg.WebSocket.Cluster, pubSubProvider)
	if err := relay.Start(ctx); err != nil {
		log.Printf("Ошибка запуска ретранслятора WebSocket: %v. События останутся локальными.", err)
	}
	wsManager := ws.NewManager(wsHub, relay)

	// Сервисы
	userService := service.NewUserService(repos.Users)
	xpService := service.NewXPService(repos, store)
	leaderboardService := service.NewLeaderboardService(repos, store, cacheRepo, clock, cfg.Leaderboard)
	scoringService := service.NewScoringService(repos, store, quizConfig, clock, leaderboardService, xpService, wsManager)
	attemptService := service.NewAttemptService(repos, store, quizConfig, clock, scoringService)
	instanceService := service.NewInstanceService(repos, store, cacheRepo, quizConfig, clock, nil, scoringService, wsManager)
	gameService := service.NewGameService(repos)
	exportService := service.NewExportService(scoringService, leaderboardService)

	// Обработчики
	playHandler := handler.NewPlayHandler(instanceService, attemptService, scoringService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, xpService)
	adminHandler := handler.NewAdminHandler(gameService, instanceService, scoringService, leaderboardService, xpService, exportService)
	wsHandler := handler.NewWSHandler(wsManager, instanceService, ws.ClientConfigFrom(cfg.WebSocket), cfg.Server.AllowedOrigins)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(verifier, userService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	if err := handler.RegisterValidators(); err != nil {
		log.Printf("Failed to register validators: %v", err)
		os.Exit(1)
	}

	router := gin.Default()

	// В production не доверяем прокси-заголовкам, в development доверяем localhost
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	allowedOrigins := cfg.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		// Публичные маршруты
		api.GET("/levels", leaderboardHandler.GetLevels)
		api.GET("/games/:game/leaderboard", leaderboardHandler.GetLeaderboard)

		// Прохождение викторин: только верифицированные пользователи
		play := api.Group("")
		play.Use(authMiddleware.RequireAuth(), authMiddleware.RequireVerified())
		{
			play.GET("/games/:game/play/:mode", playHandler.Play)
			play.GET("/me/progress", leaderboardHandler.GetMyProgress)

			instances := play.Group("/instances/:id")
			instances.Use(middleware.RequireID("id", middleware.ContextInstanceID))
			{
				instances.GET("", playHandler.GetInstance)
				instances.POST("/attempts", playHandler.StartAttempt)
				instances.GET("/my-score", playHandler.GetMyScore)
				instances.GET("/results", playHandler.GetResults)
			}

			attempts := play.Group("/attempts/:id")
			attempts.Use(middleware.RequireID("id", middleware.ContextAttemptID))
			{
				attempts.POST("/responses", rateLimiter.LimitByUser(middleware.ResponsesRateLimitConfig(cfg.RateLimit)), playHandler.SubmitResponse)
				attempts.POST("/complete", playHandler.CompleteAttempt)
			}
		}

		// Администрирование
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly(), rateLimiter.LimitByIP(middleware.AdminRateLimitConfig()))
		{
			admin.GET("/games", adminHandler.ListGames)
			admin.POST("/games", adminHandler.CreateGame)
			admin.POST("/games/:game/questions", adminHandler.AddQuestions)
			admin.GET("/games/:game/instances", adminHandler.ListInstances)
			admin.GET("/games/:game/leaderboard/export", adminHandler.ExportLeaderboard)
			admin.POST("/games/:game/leaderboard/rebuild", adminHandler.RebuildLeaderboard)

			admin.DELETE("/questions/:id", middleware.RequireID("id", middleware.ContextQuestionID), adminHandler.DeactivateQuestion)
			admin.POST("/users/:id/xp", middleware.RequireID("id", middleware.ContextTargetUserID), adminHandler.GrantXP)

			admin.POST("/instances", adminHandler.CreateInstance)
			adminInstances := admin.Group("/instances/:id")
			adminInstances.Use(middleware.RequireID("id", middleware.ContextInstanceID))
			{
				adminInstances.POST("/questions", adminHandler.AttachQuestions)
				adminInstances.PUT("/status", adminHandler.TransitionInstance)
				adminInstances.POST("/advance", adminHandler.AdvanceInstance)
				adminInstances.POST("/rerank", adminHandler.RerankInstance)
				adminInstances.GET("/export", adminHandler.ExportInstanceResults)
			}
		}
	}

	// WebSocket: токен передается в query-параметре token
	router.GET("/ws", authMiddleware.RequireAuth(), wsHandler.HandleConnection)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": wsHub.ClientCount(), "node": relay.NodeID()})
	})

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Ретранслятор закрывает pub/sub провайдер, затем закрываем клиентов
	cancel()
	relay.Stop()
	wsHub.Close()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}
