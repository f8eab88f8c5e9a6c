package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
)

// Ключи контекста для идентификаторов из пути
const (
	ContextInstanceID   = "instance_id"
	ContextAttemptID    = "attempt_id"
	ContextQuestionID   = "question_id"
	ContextTargetUserID = "target_user_id"
)

// parseID разбирает положительный идентификатор строки БД
func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid id", apperrors.ErrValidation, raw)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: id must be positive", apperrors.ErrValidation)
	}
	return uint(id), nil
}

// RequireID проверяет параметр пути paramName и кладет его в контекст под contextKey.
// Некорректный идентификатор отклоняется с 400 до вызова обработчика.
func RequireID(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param(paramName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      fmt.Sprintf("invalid %s: %v", paramName, err),
				"error_type": "validation",
			})
			return
		}
		c.Set(contextKey, id)
		c.Next()
	}
}

// PathID возвращает идентификатор, сохраненный RequireID.
// Паникует, если маршрут зарегистрирован без RequireID: это ошибка сборки роутера.
func PathID(c *gin.Context, contextKey string) uint {
	return c.MustGet(contextKey).(uint)
}
