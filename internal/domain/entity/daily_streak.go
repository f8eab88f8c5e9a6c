package entity

import "time"

// DailyStreak — серия ежедневных челленджей пользователя в игре
type DailyStreak struct {
	UserID        uint      `gorm:"primaryKey" json:"user_id"`
	GameID        uint      `gorm:"primaryKey" json:"game_id"`
	CurrentStreak int       `gorm:"not null;default:0" json:"current_streak"`
	BestStreak    int       `gorm:"not null;default:0" json:"best_streak"`
	LastDay       string    `gorm:"size:10;not null;default:''" json:"last_day"` // YYYY-MM-DD
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (DailyStreak) TableName() string {
	return "daily_streaks"
}
