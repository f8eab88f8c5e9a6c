package entity

import "time"

// Типы периодов лидерборда
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAllTime = "all_time"
)

// PeriodTypes — все периоды, в которые попадает каждый новый результат
var PeriodTypes = []string{PeriodWeekly, PeriodMonthly, PeriodAllTime}

// IsKnownPeriodType проверяет тип периода
func IsKnownPeriodType(periodType string) bool {
	switch periodType {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// LeaderboardEntry — агрегат пользователя по игре за период.
// TotalPoints = сумма двух лучших результатов периода. Ранг не хранится.
type LeaderboardEntry struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	GameID        uint    `gorm:"not null;uniqueIndex:idx_leaderboard_key" json:"game_id"`
	UserID        uint    `gorm:"not null;uniqueIndex:idx_leaderboard_key" json:"user_id"`
	PeriodType    string  `gorm:"size:16;not null;uniqueIndex:idx_leaderboard_key" json:"period_type"`
	PeriodKey     string  `gorm:"size:16;not null;uniqueIndex:idx_leaderboard_key" json:"period_key"`
	TotalPoints   int     `gorm:"not null;default:0" json:"total_points"`
	BestScore     int     `gorm:"not null;default:0" json:"best_score"`
	QuizzesPlayed int     `gorm:"not null;default:0" json:"quizzes_played"`
	BestTwoScores IntList `gorm:"type:jsonb;not null" json:"best_two_scores"`
	AverageTimeMs float64 `gorm:"not null;default:0" json:"average_time_ms"`
	// AchievedAt — момент, когда TotalPoints достиг текущего значения (третий ключ сортировки)
	AchievedAt time.Time `gorm:"not null" json:"achieved_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}
