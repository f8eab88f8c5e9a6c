package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/handler/dto"
	"github.com/ggza/trivia-core/internal/service"
)

// LeaderboardHandler обрабатывает лидерборды, таблицу уровней и прогресс пользователя
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	xpService          *service.XPService
}

// NewLeaderboardHandler создает новый обработчик лидербордов
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService, xpService *service.XPService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		xpService:          xpService,
	}
}

// GetLeaderboard возвращает страницу лидерборда игры.
// Без period_type отдается недельный, без period_key — текущий период.
// GET /api/games/:game/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	var query dto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		handleBindError(c, err)
		return
	}
	if query.PeriodType == "" {
		query.PeriodType = entity.PeriodWeekly
	}

	page, err := h.leaderboardService.GetLeaderboard(
		c.Request.Context(), c.Param("game"), query.PeriodType, query.PeriodKey, query.Limit, query.Offset,
	)
	if err != nil {
		handleServiceError(c, "LeaderboardHandler", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetLevels возвращает таблицу уровней
// GET /api/levels
func (h *LeaderboardHandler) GetLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.xpService.Levels()})
}

// GetMyProgress возвращает XP, уровень и последние начисления текущего пользователя
// GET /api/me/progress
func (h *LeaderboardHandler) GetMyProgress(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "LeaderboardHandler", err)
		return
	}

	progress, err := h.xpService.GetProgress(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, "LeaderboardHandler", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
