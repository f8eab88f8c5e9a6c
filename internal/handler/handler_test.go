package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggza/trivia-core/internal/middleware"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// newTestRouter собирает роутер с обработчиками без сервисов:
// проверяются только пути, которые отвечают до обращения к сервису
func newTestRouter(userID uint) *gin.Engine {
	play := &PlayHandler{}
	leaderboard := &LeaderboardHandler{}
	admin := &AdminHandler{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	r.GET("/games/:game/play/:mode", play.Play)
	r.POST("/attempts/:id/responses", middleware.RequireID("id", middleware.ContextAttemptID), play.SubmitResponse)
	r.GET("/games/:game/leaderboard", leaderboard.GetLeaderboard)
	r.POST("/admin/games", admin.CreateGame)
	r.POST("/admin/games/:game/questions", admin.AddQuestions)
	r.POST("/admin/instances", admin.CreateInstance)
	r.PUT("/admin/instances/:id/status", middleware.RequireID("id", middleware.ContextInstanceID), admin.TransitionInstance)
	r.POST("/admin/instances/:id/questions", middleware.RequireID("id", middleware.ContextInstanceID), admin.AttachQuestions)
	r.POST("/admin/users/:id/xp", middleware.RequireID("id", middleware.ContextTargetUserID), admin.GrantXP)
	return r
}

func doRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

func TestRequestValidation(t *testing.T) {
	r := newTestRouter(7)

	tests := []struct {
		name      string
		method    string
		path      string
		body      interface{}
		wantField string
	}{
		{"неизвестный режим", http.MethodGet, "/games/trivia/play/weekly", nil, "Mode"},
		{"неизвестный тип периода", http.MethodGet, "/games/trivia/leaderboard?period_type=daily", nil, "PeriodType"},
		{"limit за пределами", http.MethodGet, "/games/trivia/leaderboard?limit=1000", nil, "Limit"},
		{"ответ без assignment_id", http.MethodPost, "/attempts/1/responses", map[string]interface{}{"selected_index": 1}, "AssignmentID"},
		{"индекс варианта вне 0..3", http.MethodPost, "/attempts/1/responses", map[string]interface{}{"assignment_id": 3, "selected_index": 4}, "SelectedIndex"},
		{"игра без slug", http.MethodPost, "/admin/games", map[string]string{"name": "Trivia"}, "Slug"},
		{"три варианта ответа", http.MethodPost, "/admin/games/trivia/questions", map[string]interface{}{
			"questions": []map[string]interface{}{{"text": "Capital?", "options": []string{"a", "b", "c"}, "correct_index": 0}},
		}, "Options"},
		{"инстанс без названия", http.MethodPost, "/admin/instances", map[string]interface{}{
			"game": "trivia", "scheduled_at": "2024-02-14T12:00:00Z",
		}, "Title"},
		{"неизвестный статус", http.MethodPut, "/admin/instances/1/status", map[string]string{"status": "paused"}, "Status"},
		{"пустой список вопросов", http.MethodPost, "/admin/instances/1/questions", map[string]interface{}{"question_ids": []uint{}}, "QuestionIDs"},
		{"начисление без причины", http.MethodPost, "/admin/users/1/xp", map[string]int{"amount": 10}, "Reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := parseJSONResponse(t, w)
			fields, ok := resp["fields"].(map[string]interface{})
			require.True(t, ok, "Ожидается перечень полей: %s", w.Body.String())
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestRequestValidation_MalformedBody(t *testing.T) {
	r := newTestRouter(7)
	req := httptest.NewRequest(http.MethodPost, "/attempts/1/responses", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseJSONResponse(t, w)
	assert.NotContains(t, resp, "fields")
}

func TestSubmitResponse_InvalidAttemptID(t *testing.T) {
	r := newTestRouter(7)
	w := doRequest(r, http.MethodPost, "/attempts/abc/responses", map[string]int{"assignment_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitResponse_Unauthenticated(t *testing.T) {
	r := newTestRouter(0)
	w := doRequest(r, http.MethodPost, "/attempts/1/responses", map[string]interface{}{"assignment_id": 3, "selected_index": 1, "elapsed_ms": 1200})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("%w: game trivia", apperrors.ErrNotFound), http.StatusNotFound},
		{"attempt completed", service.ErrAttemptCompleted, http.StatusConflict},
		{"instance closed", service.ErrInstanceClosed, http.StatusConflict},
		{"foreign assignment", service.ErrForeignAssignment, http.StatusUnprocessableEntity},
		{"not owner", service.ErrNotAttemptOwner, http.StatusForbidden},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"empty pool", fmt.Errorf("%w: no active questions", apperrors.ErrUnavailable), http.StatusServiceUnavailable},
		{"integrity", fmt.Errorf("%w: bad permutation", apperrors.ErrIntegrity), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			handleServiceError(c, "Test", tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	handleServiceError(c, "Test", fmt.Errorf("%w: permutation [0 0 1 2]", apperrors.ErrIntegrity))

	resp := parseJSONResponse(t, w)
	assert.Equal(t, "integrity", resp["error_type"])
	assert.NotContains(t, resp["error"], "permutation")
}

func TestHandleServiceError_Transition(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	err := fmt.Errorf("failed to transition: %w", quizmanager.ValidateTransition("scheduled", "live", 3, 10))
	handleServiceError(c, "Test", err)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := parseJSONResponse(t, w)
	assert.NotEmpty(t, resp["reason"])
	assert.Equal(t, float64(7), resp["missing_questions"])
}
