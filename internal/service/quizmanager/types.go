package quizmanager

import (
	"log"
	"time"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/internal/domain/entity"
)

// Значения по умолчанию
const (
	DefaultPointsPerCorrect     = 10
	DefaultLiveXPPerCorrect     = 10
	DefaultPracticeXPPerCorrect = 5
	DefaultPracticeBonus        = 25
	DefaultDailyXPPerCorrect    = 10
	DefaultTimezone             = "UTC"
)

// ModeConfig — настройки генерации и таймингов одного режима
type ModeConfig struct {
	QuestionCount int   // Сколько вопросов выбирать при генерации
	TimeLimitMs   int64 // Лимит времени на вопрос, мс
}

// Config содержит настройки режимов, формул начисления и часового пояса периодов
type Config struct {
	// Location — единый часовой пояс для ключей периодов (день, час, неделя)
	Location *time.Location

	Live     ModeConfig
	Daily    ModeConfig
	Flash    ModeConfig
	Practice ModeConfig

	PointsPerCorrect     int
	LiveXPPerCorrect     int
	PracticeXPPerCorrect int
	PracticeBonus        int
	DailyXPReward        int
	DailyXPPerCorrect    int
	FlashXPReward        int
	FlashBonusXP         int
	FlashBonusThreshold  int64 // мс, средний ответ для бонуса

	// LowTimeWarningMs — время ответа ниже порога логируется как подозрительное
	LowTimeWarningMs int64

	GenerationLockTTL   time.Duration
	LiveFoldConcurrency int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Location:             time.UTC,
		Live:                 ModeConfig{QuestionCount: 10, TimeLimitMs: 15000},
		Daily:                ModeConfig{QuestionCount: 10, TimeLimitMs: 20000},
		Flash:                ModeConfig{QuestionCount: 5, TimeLimitMs: 10000},
		Practice:             ModeConfig{QuestionCount: 10, TimeLimitMs: 30000},
		PointsPerCorrect:     DefaultPointsPerCorrect,
		LiveXPPerCorrect:     DefaultLiveXPPerCorrect,
		PracticeXPPerCorrect: DefaultPracticeXPPerCorrect,
		PracticeBonus:        DefaultPracticeBonus,
		DailyXPReward:        100,
		DailyXPPerCorrect:    DefaultDailyXPPerCorrect,
		FlashXPReward:        50,
		FlashBonusXP:         25,
		FlashBonusThreshold:  3000,
		LowTimeWarningMs:     150,
		GenerationLockTTL:    10 * time.Second,
		LiveFoldConcurrency:  8,
	}
}

// NewConfig строит Config из секции game, подставляя значения по умолчанию для нулевых полей
func NewConfig(gc config.GameConfig) *Config {
	cfg := DefaultConfig()

	tz := gc.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("[QuizConfig] Неизвестный часовой пояс %q, используется UTC: %v", tz, err)
		loc = time.UTC
	}
	cfg.Location = loc

	overrideMode(&cfg.Live, gc.Live)
	overrideMode(&cfg.Daily, gc.Daily)
	overrideMode(&cfg.Flash, gc.Flash)
	overrideMode(&cfg.Practice, gc.Practice)

	setInt(&cfg.PointsPerCorrect, gc.PointsPerCorrect)
	setInt(&cfg.LiveXPPerCorrect, gc.LiveXPPerCorrect)
	setInt(&cfg.PracticeXPPerCorrect, gc.PracticeXPPerCorrect)
	setInt(&cfg.PracticeBonus, gc.PracticeBonus)
	setInt(&cfg.DailyXPReward, gc.DailyXPReward)
	setInt(&cfg.DailyXPPerCorrect, gc.DailyXPPerCorrect)
	setInt(&cfg.FlashXPReward, gc.FlashXPReward)
	setInt(&cfg.FlashBonusXP, gc.FlashBonusXP)
	setInt(&cfg.LiveFoldConcurrency, gc.LiveFoldConcurrency)
	if gc.FlashBonusThresholdMs > 0 {
		cfg.FlashBonusThreshold = gc.FlashBonusThresholdMs
	}
	if gc.LowTimeWarningMs > 0 {
		cfg.LowTimeWarningMs = gc.LowTimeWarningMs
	}
	if gc.GenerationLockTTLSec > 0 {
		cfg.GenerationLockTTL = time.Duration(gc.GenerationLockTTLSec) * time.Second
	}

	return cfg
}

// ModeSettings возвращает настройки режима
func (c *Config) ModeSettings(mode string) ModeConfig {
	switch mode {
	case entity.ModeDaily:
		return c.Daily
	case entity.ModeFlash:
		return c.Flash
	case entity.ModePractice:
		return c.Practice
	default:
		return c.Live
	}
}

func overrideMode(dst *ModeConfig, src config.ModeSettings) {
	if src.QuestionCount > 0 {
		dst.QuestionCount = src.QuestionCount
	}
	if src.TimeLimitMs > 0 {
		dst.TimeLimitMs = src.TimeLimitMs
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
