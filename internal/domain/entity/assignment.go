package entity

import "time"

// QuestionAssignment привязывает вопрос к инстансу на определенной позиции
// и хранит перестановку вариантов для этого инстанса. Неизменяем после создания.
type QuestionAssignment struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	InstanceID uint `gorm:"not null;uniqueIndex:idx_assignment_position;uniqueIndex:idx_assignment_question" json:"instance_id"`
	QuestionID uint `gorm:"not null;uniqueIndex:idx_assignment_question" json:"question_id"`
	Position   int  `gorm:"not null;uniqueIndex:idx_assignment_position" json:"position"`
	// Permutation[i] — канонический индекс варианта, показанного на позиции i
	Permutation IntList   `gorm:"type:jsonb;not null" json:"-"`
	Question    *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (QuestionAssignment) TableName() string {
	return "question_assignments"
}
