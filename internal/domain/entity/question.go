package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// OptionsPerQuestion — каждый вопрос содержит ровно 4 варианта ответа
const OptionsPerQuestion = 4

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Question представляет вопрос из банка вопросов игры.
// Неизменяем, кроме счетчиков использования; не удаляется, а деактивируется.
type Question struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	GameID       uint        `gorm:"not null;index:idx_questions_pool" json:"game_id"`
	Text         string      `gorm:"size:500;not null" json:"text"`
	Options      StringArray `gorm:"type:jsonb;not null" json:"options"`
	CorrectIndex int         `gorm:"not null" json:"-"` // Индекс в каноническом порядке, скрыт от клиента
	Difficulty   int         `gorm:"not null;default:1" json:"difficulty"`
	Category     *string     `gorm:"size:64" json:"category,omitempty"`
	TimesUsed    int64       `gorm:"not null;default:0" json:"times_used"`
	TimesCorrect int64       `gorm:"not null;default:0" json:"times_correct"`
	IsActive     bool        `gorm:"not null;default:true;index:idx_questions_pool" json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// OptionsCount возвращает количество вариантов ответа
func (q *Question) OptionsCount() int {
	return len(q.Options)
}

// IsValidOption проверяет, является ли индекс допустимым
func (q *Question) IsValidOption(index int) bool {
	return index >= 0 && index < len(q.Options)
}

// IsWellFormed проверяет, что у вопроса ровно 4 варианта и корректный индекс ответа
func (q *Question) IsWellFormed() bool {
	return len(q.Options) == OptionsPerQuestion && q.IsValidOption(q.CorrectIndex)
}
