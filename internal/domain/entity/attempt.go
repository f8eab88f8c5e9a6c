package entity

import "time"

// Attempt — один проход пользователя по одному инстансу.
// (user_id, instance_id) уникален; повторная тренировка получает новый practice-инстанс.
type Attempt struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;uniqueIndex:idx_attempt_user_instance" json:"user_id"`
	InstanceID    uint       `gorm:"not null;uniqueIndex:idx_attempt_user_instance;index" json:"instance_id"`
	GameID        uint       `gorm:"not null" json:"game_id"`
	Mode          string     `gorm:"size:16;not null" json:"mode"`
	CorrectCount  int        `gorm:"not null;default:0" json:"correct_count"`
	AnsweredCount int        `gorm:"not null;default:0" json:"answered_count"`
	QuestionCount int        `gorm:"not null;default:0" json:"question_count"`
	TotalTimeMs   int64      `gorm:"not null;default:0" json:"total_time_ms"`
	PointsEarned  int        `gorm:"not null;default:0" json:"points_earned"`
	XPEarned      int        `gorm:"not null;default:0" json:"xp_earned"`
	// TotalXPAfter — xp пользователя сразу после учета попытки, повторное завершение отдает его
	TotalXPAfter int64      `gorm:"column:total_xp_after;not null;default:0" json:"total_xp_after"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Attempt) TableName() string {
	return "attempts"
}

// IsCompleted проверяет, завершена ли попытка
func (a *Attempt) IsCompleted() bool {
	return a.CompletedAt != nil
}
