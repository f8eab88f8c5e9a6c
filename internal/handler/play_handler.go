package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ggza/trivia-core/internal/handler/dto"
	"github.com/ggza/trivia-core/internal/middleware"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service"
)

// PlayHandler обрабатывает прохождение викторин: выдачу инстанса, попытки, ответы и результаты
type PlayHandler struct {
	instanceService *service.InstanceService
	attemptService  *service.AttemptService
	scoringService  *service.ScoringService
}

// NewPlayHandler создает новый обработчик прохождения
func NewPlayHandler(
	instanceService *service.InstanceService,
	attemptService *service.AttemptService,
	scoringService *service.ScoringService,
) *PlayHandler {
	return &PlayHandler{
		instanceService: instanceService,
		attemptService:  attemptService,
		scoringService:  scoringService,
	}
}

// currentUserID достает ID пользователя, выставленный RequireAuth
func currentUserID(c *gin.Context) (uint, error) {
	raw, exists := c.Get(middleware.ContextUserID)
	if !exists {
		return 0, apperrors.ErrUnauthorized
	}
	userID, ok := raw.(uint)
	if !ok {
		return 0, errors.New("invalid user ID in context")
	}
	return userID, nil
}

// Play выдает играбельный инстанс игры в режиме, создавая daily/flash/practice по запросу
// GET /api/games/:game/play/:mode
func (h *PlayHandler) Play(c *gin.Context) {
	var params dto.PlayParams
	if err := c.ShouldBindUri(&params); err != nil {
		handleBindError(c, err)
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	playable, err := h.instanceService.GetOrCreatePlayable(c.Request.Context(), userID, params.Game, params.Mode)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPlayableResponse(playable))
}

// GetInstance возвращает инстанс с вопросами в порядке, показанном пользователю
// GET /api/instances/:id
func (h *PlayHandler) GetInstance(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	playable, err := h.instanceService.GetPlayable(c.Request.Context(), userID, instanceID)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPlayableResponse(playable))
}

// StartAttempt начинает (или возвращает существующую) попытку пользователя
// POST /api/instances/:id/attempts
func (h *PlayHandler) StartAttempt(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), userID, instanceID)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAttemptResponse(attempt))
}

// SubmitResponse принимает ответ на вопрос. Повторный ответ возвращает первоначальную оценку.
// POST /api/attempts/:id/responses
func (h *PlayHandler) SubmitResponse(c *gin.Context) {
	attemptID := middleware.PathID(c, middleware.ContextAttemptID)

	var req dto.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	result, err := h.attemptService.RecordResponse(c.Request.Context(), userID, attemptID, service.ResponseInput{
		AssignmentID:  req.AssignmentID,
		SelectedIndex: req.SelectedIndex,
		ElapsedMs:     req.ElapsedMs,
	})
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyAnswered {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// CompleteAttempt завершает попытку и возвращает итог с начисленным XP
// POST /api/attempts/:id/complete
func (h *PlayHandler) CompleteAttempt(c *gin.Context) {
	attemptID := middleware.PathID(c, middleware.ContextAttemptID)
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	result, err := h.attemptService.CompleteAttempt(c.Request.Context(), userID, attemptID)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCompletionResponse(result))
}

// GetMyScore возвращает результат пользователя, досчитывая его при необходимости
// GET /api/instances/:id/my-score
func (h *PlayHandler) GetMyScore(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}

	score, err := h.scoringService.EnsureScored(c.Request.Context(), userID, instanceID)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewScoreResponse(score))
}

// GetResults возвращает ранжированные результаты инстанса
// GET /api/instances/:id/results
func (h *PlayHandler) GetResults(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	results, err := h.scoringService.Results(c.Request.Context(), instanceID)
	if err != nil {
		handleServiceError(c, "PlayHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}
