package dto

import (
	"time"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/handler/helper"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// PlayParams — параметры пути GET /games/:game/play/:mode
type PlayParams struct {
	Game string `uri:"game" binding:"required,min=2,max=64"`
	Mode string `uri:"mode" binding:"required,mode"`
}

// SubmitResponseRequest ответ на один вопрос.
// selected_index отсутствует или null, если время вышло без ответа.
type SubmitResponseRequest struct {
	AssignmentID  uint  `json:"assignment_id" binding:"required"`
	SelectedIndex *int  `json:"selected_index" binding:"omitempty,min=0,max=3"`
	ElapsedMs     int64 `json:"elapsed_ms"`
}

// LeaderboardQuery — параметры чтения лидерборда
type LeaderboardQuery struct {
	PeriodType string `form:"period_type" binding:"omitempty,periodtype"`
	PeriodKey  string `form:"period_key" binding:"omitempty,max=16"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

// QuestionResponse — вопрос в отображаемом порядке, без правильного ответа
type QuestionResponse struct {
	AssignmentID uint                    `json:"assignment_id"`
	Position     int                     `json:"position"`
	Text         string                  `json:"text"`
	Options      []helper.QuestionOption `json:"options"`
	Difficulty   int                     `json:"difficulty"`
	Category     *string                 `json:"category,omitempty"`
}

// InstanceResponse — инстанс в формате для клиента
type InstanceResponse struct {
	ID               uint       `json:"id"`
	GameID           uint       `json:"game_id"`
	Mode             string     `json:"mode"`
	BucketKey        *string    `json:"bucket_key,omitempty"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	QuestionCount    int        `json:"question_count"`
	TimeLimitMs      int64      `json:"time_limit_ms"`
	PointsPerCorrect int        `json:"points_per_correct"`
	PrizePool        int64      `json:"prize_pool,omitempty"`
	CurrentQuestion  int        `json:"current_question"`
}

type AttemptResponse struct {
	ID            uint       `json:"id"`
	InstanceID    uint       `json:"instance_id"`
	Mode          string     `json:"mode"`
	AnsweredCount int        `json:"answered_count"`
	QuestionCount int        `json:"question_count"`
	CorrectCount  int        `json:"correct_count"`
	PointsEarned  int        `json:"points_earned"`
	XPEarned      int        `json:"xp_earned"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// PlayableResponse — инстанс, вопросы и текущая попытка пользователя
type PlayableResponse struct {
	Instance  *InstanceResponse  `json:"instance"`
	Questions []QuestionResponse `json:"questions"`
	Attempt   *AttemptResponse   `json:"attempt,omitempty"`
}

// ScoreResponse — результат пользователя в инстансе
type ScoreResponse struct {
	InstanceID   uint   `json:"instance_id"`
	UserID       uint   `json:"user_id"`
	Mode         string `json:"mode"`
	Points       int    `json:"points"`
	CorrectCount int    `json:"correct_count"`
	TotalTimeMs  int64  `json:"total_time_ms"`
	// Rank 0 — ранг еще не назначен
	Rank int `json:"rank"`
}

// CompletionResponse итог завершения попытки
type CompletionResponse struct {
	Attempt    *AttemptResponse      `json:"attempt"`
	Score      *ScoreResponse        `json:"score,omitempty"`
	XPEarned   int                   `json:"xp_earned"`
	NewTotalXP int64                 `json:"new_total_xp"`
	Level      quizmanager.LevelInfo `json:"level"`
}

// NewInstanceResponse создает DTO для инстанса
func NewInstanceResponse(q *entity.QuizInstance) *InstanceResponse {
	if q == nil {
		return nil
	}
	return &InstanceResponse{
		ID:               q.ID,
		GameID:           q.GameID,
		Mode:             q.Mode,
		BucketKey:        q.BucketKey,
		Title:            q.Title,
		Status:           q.Status,
		ScheduledAt:      q.ScheduledAt,
		StartedAt:        q.StartedAt,
		EndedAt:          q.EndedAt,
		QuestionCount:    q.QuestionCount,
		TimeLimitMs:      q.TimeLimitMs,
		PointsPerCorrect: q.PointsPerCorrect,
		PrizePool:        q.PrizePool,
		CurrentQuestion:  q.CurrentQuestion,
	}
}

// NewAttemptResponse создает DTO для попытки
func NewAttemptResponse(a *entity.Attempt) *AttemptResponse {
	if a == nil {
		return nil
	}
	return &AttemptResponse{
		ID:            a.ID,
		InstanceID:    a.InstanceID,
		Mode:          a.Mode,
		AnsweredCount: a.AnsweredCount,
		QuestionCount: a.QuestionCount,
		CorrectCount:  a.CorrectCount,
		PointsEarned:  a.PointsEarned,
		XPEarned:      a.XPEarned,
		CompletedAt:   a.CompletedAt,
	}
}

// NewScoreResponse создает DTO для результата
func NewScoreResponse(s *entity.Score) *ScoreResponse {
	if s == nil {
		return nil
	}
	return &ScoreResponse{
		InstanceID:   s.InstanceID,
		UserID:       s.UserID,
		Mode:         s.Mode,
		Points:       s.Points,
		CorrectCount: s.CorrectCount,
		TotalTimeMs:  s.TotalTimeMs,
		Rank:         s.Rank,
	}
}

// NewPlayableResponse создает DTO для играбельного инстанса
func NewPlayableResponse(p *service.PlayableInstance) *PlayableResponse {
	questions := make([]QuestionResponse, len(p.Questions))
	for i, q := range p.Questions {
		questions[i] = QuestionResponse{
			AssignmentID: q.AssignmentID,
			Position:     q.Position,
			Text:         q.Text,
			Options:      helper.ConvertOptionsToObjects(q.Options),
			Difficulty:   q.Difficulty,
			Category:     q.Category,
		}
	}
	return &PlayableResponse{
		Instance:  NewInstanceResponse(p.Instance),
		Questions: questions,
		Attempt:   NewAttemptResponse(p.Attempt),
	}
}

// NewCompletionResponse создает DTO для итога попытки
func NewCompletionResponse(r *service.CompletionResult) *CompletionResponse {
	return &CompletionResponse{
		Attempt:    NewAttemptResponse(r.Attempt),
		Score:      NewScoreResponse(r.Score),
		XPEarned:   r.XPEarned,
		NewTotalXP: r.NewTotalXP,
		Level:      r.Level,
	}
}
