package entity

import "time"

// Источники начисления XP
const (
	XPSourceScore = "score"
	XPSourceAdmin = "admin"
)

// XPTransaction — запись журнала начислений XP. Только добавление, без изменений.
type XPTransaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	Amount     int       `gorm:"not null" json:"amount"`
	Reason     string    `gorm:"size:100;not null" json:"reason"`
	SourceType string    `gorm:"size:32;not null" json:"source_type"`
	SourceID   uint      `gorm:"not null" json:"source_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (XPTransaction) TableName() string {
	return "xp_transactions"
}
