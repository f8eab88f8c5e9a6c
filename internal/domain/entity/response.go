package entity

import "time"

// Response — ответ пользователя на один вопрос в рамках попытки.
// (attempt_id, assignment_id) уникален: повторная отправка возвращает первый результат.
type Response struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	AttemptID    uint `gorm:"not null;uniqueIndex:idx_response_attempt_assignment" json:"attempt_id"`
	AssignmentID uint `gorm:"not null;uniqueIndex:idx_response_attempt_assignment" json:"assignment_id"`
	InstanceID   uint `gorm:"not null;index" json:"instance_id"`
	UserID       uint `gorm:"not null;index" json:"user_id"`
	QuestionID   uint `gorm:"not null" json:"question_id"`
	// SelectedIndex — позиция в показанном порядке; nil означает "нет ответа"
	SelectedIndex *int      `json:"selected_index"`
	IsCorrect     bool      `gorm:"not null;default:false" json:"is_correct"`
	ElapsedMs     int64     `gorm:"not null;default:0" json:"elapsed_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Response) TableName() string {
	return "responses"
}
