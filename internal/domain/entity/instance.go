package entity

import (
	"time"
)

// Константы статусов инстанса
const (
	InstanceStatusScheduled = "scheduled"
	InstanceStatusLive      = "live"
	InstanceStatusCompleted = "completed"
	InstanceStatusCancelled = "cancelled"
)

// Режимы игры
const (
	ModeLive     = "live"
	ModeDaily    = "daily"
	ModeFlash    = "flash"
	ModePractice = "practice"
)

// IsKnownMode проверяет, что режим поддерживается
func IsKnownMode(mode string) bool {
	switch mode {
	case ModeLive, ModeDaily, ModeFlash, ModePractice:
		return true
	}
	return false
}

// QuizInstance — играбельная единица: запланированная live-викторина
// или сгенерированный по запросу daily/flash/practice инстанс.
type QuizInstance struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	GameID uint   `gorm:"not null;uniqueIndex:idx_instances_bucket" json:"game_id"`
	Mode   string `gorm:"size:16;not null;uniqueIndex:idx_instances_bucket" json:"mode"`
	// BucketKey — ключ временного окна для daily/flash (YYYY-MM-DD, YYYY-MM-DDTHH).
	// NULL для live и practice, поэтому уникальность на них не распространяется.
	BucketKey *string `gorm:"size:32;uniqueIndex:idx_instances_bucket" json:"bucket_key,omitempty"`
	// OwnerID — владелец practice-инстанса, для остальных режимов NULL
	OwnerID          *uint      `gorm:"index" json:"owner_id,omitempty"`
	Title            string     `gorm:"size:100;not null;default:''" json:"title"`
	Status           string     `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	ScheduledAt      time.Time  `gorm:"not null;index" json:"scheduled_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	QuestionCount    int        `gorm:"not null;default:0" json:"question_count"`
	TimeLimitMs      int64      `gorm:"not null;default:15000" json:"time_limit_ms"`
	PointsPerCorrect int        `gorm:"not null;default:10" json:"points_per_correct"`
	PrizePool        int64      `gorm:"not null;default:0" json:"prize_pool"`
	XPReward         int        `gorm:"not null;default:0" json:"xp_reward"`
	BonusXP          int        `gorm:"not null;default:0" json:"bonus_xp"`
	BonusThresholdMs int64      `gorm:"not null;default:0" json:"bonus_threshold_ms"`
	CurrentQuestion  int        `gorm:"not null;default:0" json:"current_question"`

	Assignments []QuestionAssignment `gorm:"foreignKey:InstanceID" json:"assignments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (QuizInstance) TableName() string {
	return "quiz_instances"
}

// IsLive проверяет, идет ли инстанс
func (q *QuizInstance) IsLive() bool {
	return q.Status == InstanceStatusLive
}

// IsTerminal: completed и cancelled — конечные состояния
func (q *QuizInstance) IsTerminal() bool {
	return q.Status == InstanceStatusCompleted || q.Status == InstanceStatusCancelled
}

// PlayableBy: practice-инстанс доступен только владельцу, остальные всем
func (q *QuizInstance) PlayableBy(userID uint) bool {
	return q.OwnerID == nil || *q.OwnerID == userID
}

// CountsForLeaderboard: тренировки в лидерборды не попадают
func (q *QuizInstance) CountsForLeaderboard() bool {
	return q.Mode != ModePractice
}

// IsEphemeral: инстанс сгенерирован по запросу, а не запланирован администратором
func (q *QuizInstance) IsEphemeral() bool {
	return q.Mode != ModeLive
}
