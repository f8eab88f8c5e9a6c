package handler

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/handler/dto"
	"github.com/ggza/trivia-core/internal/middleware"
	"github.com/ggza/trivia-core/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler обрабатывает административные операции: игры, пул вопросов, live-инстансы,
// пересчет рангов, выгрузки и ручные начисления XP
type AdminHandler struct {
	gameService        *service.GameService
	instanceService    *service.InstanceService
	scoringService     *service.ScoringService
	leaderboardService *service.LeaderboardService
	xpService          *service.XPService
	exportService      *service.ExportService
}

// NewAdminHandler создает новый административный обработчик
func NewAdminHandler(
	gameService *service.GameService,
	instanceService *service.InstanceService,
	scoringService *service.ScoringService,
	leaderboardService *service.LeaderboardService,
	xpService *service.XPService,
	exportService *service.ExportService,
) *AdminHandler {
	return &AdminHandler{
		gameService:        gameService,
		instanceService:    instanceService,
		scoringService:     scoringService,
		leaderboardService: leaderboardService,
		xpService:          xpService,
		exportService:      exportService,
	}
}

// ListGames возвращает все игры
// GET /api/admin/games
func (h *AdminHandler) ListGames(c *gin.Context) {
	games, err := h.gameService.ListGames(c.Request.Context())
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games, "total": len(games)})
}

// CreateGame создает игру
// POST /api/admin/games
func (h *AdminHandler) CreateGame(c *gin.Context) {
	var req dto.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	game, err := h.gameService.CreateGame(c.Request.Context(), req.Slug, req.Name)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

// AddQuestions добавляет пакет вопросов в пул игры
// POST /api/admin/games/:game/questions
func (h *AdminHandler) AddQuestions(c *gin.Context) {
	var req dto.AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	inputs := make([]service.QuestionInput, len(req.Questions))
	for i, q := range req.Questions {
		inputs[i] = service.QuestionInput{
			Text:         q.Text,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Difficulty:   q.Difficulty,
			Category:     q.Category,
		}
	}

	questions, err := h.gameService.AddQuestions(c.Request.Context(), c.Param("game"), inputs)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": len(questions), "questions": questions})
}

// DeactivateQuestion выводит вопрос из пула
// DELETE /api/admin/questions/:id
func (h *AdminHandler) DeactivateQuestion(c *gin.Context) {
	questionID := middleware.PathID(c, middleware.ContextQuestionID)

	if err := h.gameService.DeactivateQuestion(c.Request.Context(), questionID); err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListInstances возвращает инстансы игры всех режимов
// GET /api/admin/games/:game/instances
func (h *AdminHandler) ListInstances(c *gin.Context) {
	var query dto.ListInstancesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		handleBindError(c, err)
		return
	}

	instances, total, err := h.instanceService.ListInstances(c.Request.Context(), c.Param("game"), query.Limit, query.Offset)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	items := make([]*dto.InstanceResponse, len(instances))
	for i := range instances {
		items[i] = dto.NewInstanceResponse(&instances[i])
	}
	c.JSON(http.StatusOK, gin.H{"instances": items, "total": total})
}

// CreateInstance создает запланированную live-викторину
// POST /api/admin/instances
func (h *AdminHandler) CreateInstance(c *gin.Context) {
	var req dto.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	instance, err := h.instanceService.CreateScheduled(c.Request.Context(), service.CreateInstanceInput{
		GameSlug:         req.Game,
		Title:            req.Title,
		ScheduledAt:      req.ScheduledAt,
		QuestionCount:    req.QuestionCount,
		TimeLimitMs:      req.TimeLimitMs,
		PointsPerCorrect: req.PointsPerCorrect,
		PrizePool:        req.PrizePool,
	})
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewInstanceResponse(instance))
}

// AttachQuestions назначает вопросы пула запланированному инстансу
// POST /api/admin/instances/:id/questions
func (h *AdminHandler) AttachQuestions(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	var req dto.AttachQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	attached, err := h.instanceService.AttachQuestions(c.Request.Context(), instanceID, req.QuestionIDs)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "attached": attached})
}

// TransitionInstance переводит инстанс в новый статус
// PUT /api/admin/instances/:id/status
func (h *AdminHandler) TransitionInstance(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	instance, err := h.instanceService.Transition(c.Request.Context(), instanceID, req.Status)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewInstanceResponse(instance))
}

// AdvanceInstance открывает следующий вопрос идущей live-викторины
// POST /api/admin/instances/:id/advance
func (h *AdminHandler) AdvanceInstance(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	instance, err := h.instanceService.Advance(c.Request.Context(), instanceID)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewInstanceResponse(instance))
}

// RerankInstance пересчитывает ранги и доучитывает неучтенные результаты
// POST /api/admin/instances/:id/rerank
func (h *AdminHandler) RerankInstance(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	ranked, err := h.scoringService.Rerank(c.Request.Context(), instanceID)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "ranked": len(ranked)})
}

// ExportInstanceResults выгружает результаты инстанса в XLSX
// GET /api/admin/instances/:id/export
func (h *AdminHandler) ExportInstanceResults(c *gin.Context) {
	instanceID := middleware.PathID(c, middleware.ContextInstanceID)

	var buf bytes.Buffer
	if err := h.exportService.WriteInstanceResults(c.Request.Context(), instanceID, &buf); err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}

	filename := fmt.Sprintf("instance_%d_results_%s", instanceID, time.Now().Format("2006-01-02"))
	writeXLSX(c, filename, &buf)
}

// ExportLeaderboard выгружает лидерборд периода в XLSX
// GET /api/admin/games/:game/leaderboard/export
func (h *AdminHandler) ExportLeaderboard(c *gin.Context) {
	var query dto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		handleBindError(c, err)
		return
	}
	if query.PeriodType == "" {
		query.PeriodType = entity.PeriodWeekly
	}
	game := c.Param("game")

	var buf bytes.Buffer
	if err := h.exportService.WriteLeaderboard(c.Request.Context(), game, query.PeriodType, query.PeriodKey, &buf); err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}

	filename := fmt.Sprintf("%s_leaderboard_%s_%s", game, query.PeriodType, time.Now().Format("2006-01-02"))
	writeXLSX(c, filename, &buf)
}

func writeXLSX(c *gin.Context, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// RebuildLeaderboard пересобирает период лидерборда из учтенных результатов
// POST /api/admin/games/:game/leaderboard/rebuild
func (h *AdminHandler) RebuildLeaderboard(c *gin.Context) {
	var req dto.RebuildLeaderboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	count, err := h.leaderboardService.Rebuild(c.Request.Context(), c.Param("game"), req.PeriodType, req.PeriodKey)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	log.Printf("[AdminHandler] Лидерборд %s %s/%s пересобран: %d записей", c.Param("game"), req.PeriodType, req.PeriodKey, count)
	c.JSON(http.StatusOK, gin.H{"entries": count})
}

// GrantXP начисляет или списывает XP пользователю
// POST /api/admin/users/:id/xp
func (h *AdminHandler) GrantXP(c *gin.Context) {
	userID := middleware.PathID(c, middleware.ContextTargetUserID)

	var req dto.GrantXPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	user, err := h.xpService.Grant(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		handleServiceError(c, "AdminHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "xp": user.XP, "level": user.Level})
}
