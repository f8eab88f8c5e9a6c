package entity

import (
	"time"
)

// Роли пользователя
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User — пользователь, аутентифицированный внешним провайдером (Discord).
// Level денормализован и всегда равен levelFor(XP).
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DiscordID  string    `gorm:"size:32;not null;uniqueIndex" json:"discord_id"`
	Username   string    `gorm:"size:50;not null" json:"username"`
	AvatarURL  string    `gorm:"size:255;not null;default:''" json:"avatar_url"`
	IsVerified bool      `gorm:"not null;default:false" json:"is_verified"`
	Role       string    `gorm:"size:20;not null;default:'user'" json:"-"`
	XP         int64     `gorm:"not null;default:0" json:"xp"`
	Level      int       `gorm:"not null;default:1" json:"level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// IsAdmin проверяет роль администратора
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
