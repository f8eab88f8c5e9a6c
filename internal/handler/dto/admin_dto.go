package dto

import "time"

// CreateGameRequest тело POST /admin/games
type CreateGameRequest struct {
	Slug string `json:"slug" binding:"required,min=2,max=64"`
	Name string `json:"name" binding:"required,max=100"`
}

// QuestionRequest — вопрос в каноническом порядке вариантов
type QuestionRequest struct {
	Text         string   `json:"text" binding:"required,min=3,max=500"`
	Options      []string `json:"options" binding:"required,len=4,dive,required,max=200"`
	CorrectIndex int      `json:"correct_index" binding:"min=0,max=3"`
	Difficulty   int      `json:"difficulty" binding:"omitempty,min=1,max=5"`
	Category     string   `json:"category" binding:"omitempty,max=64"`
}

// AddQuestionsRequest пакет вопросов в пул игры
type AddQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}

// CreateInstanceRequest — запланированная live-викторина
type CreateInstanceRequest struct {
	Game             string    `json:"game" binding:"required"`
	Title            string    `json:"title" binding:"required,min=3,max=100"`
	ScheduledAt      time.Time `json:"scheduled_at" binding:"required"`
	QuestionCount    int       `json:"question_count" binding:"omitempty,min=1,max=50"`
	TimeLimitMs      int64     `json:"time_limit_ms" binding:"omitempty,min=1000,max=120000"`
	PointsPerCorrect int       `json:"points_per_correct" binding:"omitempty,min=1,max=1000"`
	PrizePool        int64     `json:"prize_pool" binding:"omitempty,min=0"`
}

// AttachQuestionsRequest вопросы пула для инстанса
type AttachQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" binding:"required,min=1,dive,required"`
}

// TransitionRequest целевой статус
type TransitionRequest struct {
	Status string `json:"status" binding:"required,oneof=scheduled live completed cancelled"`
}

// GrantXPRequest — ручное начисление или списание XP
type GrantXPRequest struct {
	Amount int    `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required,max=100"`
}

// RebuildLeaderboardRequest — пересборка периода лидерборда
type RebuildLeaderboardRequest struct {
	PeriodType string `json:"period_type" binding:"required,periodtype"`
	PeriodKey  string `json:"period_key" binding:"required,max=16"`
}

type ListInstancesQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}
