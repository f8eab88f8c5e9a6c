package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Game        GameConfig
	Leaderboard LeaderboardConfig
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	WebSocket   WebSocketConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Для 'single' используется первый адрес.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Адрес для режима 'single', если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
	PoolSize        int `mapstructure:"pool_size"`         // 0 — значение go-redis по умолчанию
	MinIdleConns    int `mapstructure:"min_idle_conns"`
	DialTimeoutMs   int `mapstructure:"dial_timeout_ms"`
}

// JWTConfig содержит настройки проверки токенов внешнего шлюза идентификации.
// Сервис токены не выпускает, только проверяет подпись и claims.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// ModeSettings — генерация и тайминги одного режима
type ModeSettings struct {
	QuestionCount int   `mapstructure:"question_count"`
	TimeLimitMs   int64 `mapstructure:"time_limit_ms"`
}

// GameConfig содержит настройки режимов и формул начисления.
// Нулевые значения заменяются значениями по умолчанию.
type GameConfig struct {
	Timezone string `mapstructure:"timezone"`

	Live     ModeSettings `mapstructure:"live"`
	Daily    ModeSettings `mapstructure:"daily"`
	Flash    ModeSettings `mapstructure:"flash"`
	Practice ModeSettings `mapstructure:"practice"`

	PointsPerCorrect      int   `mapstructure:"points_per_correct"`
	LiveXPPerCorrect      int   `mapstructure:"live_xp_per_correct"`
	PracticeXPPerCorrect  int   `mapstructure:"practice_xp_per_correct"`
	PracticeBonus         int   `mapstructure:"practice_bonus"`
	DailyXPReward         int   `mapstructure:"daily_xp_reward"`
	DailyXPPerCorrect     int   `mapstructure:"daily_xp_per_correct"`
	FlashXPReward         int   `mapstructure:"flash_xp_reward"`
	FlashBonusXP          int   `mapstructure:"flash_bonus_xp"`
	FlashBonusThresholdMs int64 `mapstructure:"flash_bonus_threshold_ms"`
	LowTimeWarningMs      int64 `mapstructure:"low_time_warning_ms"`

	GenerationLockTTLSec int `mapstructure:"generation_lock_ttl_sec"`
	LiveFoldConcurrency  int `mapstructure:"live_fold_concurrency"`
}

// LeaderboardConfig содержит настройки чтения лидербордов
type LeaderboardConfig struct {
	CacheTTLSec     int `mapstructure:"cache_ttl_sec"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// RateLimitConfig содержит лимиты на отправку ответов
type RateLimitConfig struct {
	ResponsesPerWindow int `mapstructure:"responses_per_window"`
	WindowSec          int `mapstructure:"window_sec"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	Buffers BuffersConfig
	Ping    PingConfig
	Cluster ClusterConfig
	Limits  LimitsConfig
}

// BuffersConfig содержит настройки буферов
type BuffersConfig struct {
	ClientSendBuffer int
	BroadcastBuffer  int
}

// PingConfig содержит настройки пингов
type PingConfig struct {
	Interval int
	Timeout  int
}

// ClusterConfig содержит настройки кластеризации
type ClusterConfig struct {
	Enabled    bool
	InstanceID string
	Channel    string
}

// LimitsConfig содержит настройки ограничений
type LimitsConfig struct {
	MaxMessageSize int
	WriteWait      int
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, без глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "migrations")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("game.timezone", "UTC")
	vip.SetDefault("leaderboard.cache_ttl_sec", 30)
	vip.SetDefault("leaderboard.default_page_size", 50)
	vip.SetDefault("leaderboard.max_page_size", 100)
	vip.SetDefault("rate_limit.responses_per_window", 30)
	vip.SetDefault("rate_limit.window_sec", 10)
	vip.SetDefault("websocket.buffers.clientsendbuffer", 64)
	vip.SetDefault("websocket.buffers.broadcastbuffer", 256)
	vip.SetDefault("websocket.ping.interval", 30)
	vip.SetDefault("websocket.ping.timeout", 60)
	vip.SetDefault("websocket.limits.maxmessagesize", 4096)
	vip.SetDefault("websocket.limits.writewait", 10)
	vip.SetDefault("websocket.cluster.channel", "ggza:ws:broadcast")

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.issuer", "JWT_ISSUER")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	vip.BindEnv("game.timezone", "GAME_TIMEZONE")

	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instanceid", "WEBSOCKET_CLUSTER_INSTANCE_ID")

	// 3. Файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит значения из файла и env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только в debug режиме)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Game Timezone: %s", cfg.Game.Timezone)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Websocket Cluster Enabled: %t", cfg.WebSocket.Cluster.Enabled)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if os.Getenv("GIN_MODE") == "release" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	if c.Leaderboard.MaxPageSize > 0 && c.Leaderboard.DefaultPageSize > c.Leaderboard.MaxPageSize {
		return fmt.Errorf("leaderboard default_page_size (%d) exceeds max_page_size (%d)",
			c.Leaderboard.DefaultPageSize, c.Leaderboard.MaxPageSize)
	}
	return nil
}
