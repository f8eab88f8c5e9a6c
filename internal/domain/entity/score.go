package entity

import (
	"time"
)

// Score — итог завершенной попытки против инстанса, один на (instance, user).
// После создания меняется только rank.
type Score struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	InstanceID    uint   `gorm:"not null;uniqueIndex:idx_score_instance_user;index:idx_score_rank" json:"instance_id"`
	UserID        uint   `gorm:"not null;uniqueIndex:idx_score_instance_user" json:"user_id"`
	GameID        uint   `gorm:"not null" json:"game_id"`
	Mode          string `gorm:"size:16;not null" json:"mode"`
	Points        int    `gorm:"not null;default:0" json:"points"`
	CorrectCount  int    `gorm:"not null;default:0" json:"correct_count"`
	QuestionCount int    `gorm:"not null;default:0" json:"question_count"`
	TotalTimeMs   int64  `gorm:"not null;default:0" json:"total_time_ms"`
	Rank          int    `gorm:"not null;default:0;index:idx_score_rank" json:"rank"`
	// AggregatedAt — когда результат был учтен в лидербордах; защищает от повторного учета
	AggregatedAt *time.Time `json:"aggregated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Score) TableName() string {
	return "scores"
}
