package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service/quizmanager"
)

// handleServiceError переводит ошибки сервисов в HTTP-ответ
func handleServiceError(c *gin.Context, component string, err error) {
	var transitionErr *quizmanager.TransitionError
	switch {
	case errors.As(err, &transitionErr):
		body := gin.H{"error": transitionErr.Error(), "reason": transitionErr.Reason}
		if transitionErr.MissingQuestions > 0 {
			body["missing_questions"] = transitionErr.MissingQuestions
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "error_type": "no_content"})
	case errors.Is(err, apperrors.ErrIntegrity):
		log.Printf("CRITICAL: [%s] Нарушение целостности данных: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Data integrity error", "error_type": "integrity"})
	default:
		log.Printf("ERROR: Internal server error in %s: %v", component, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// handleBindError отвечает 400 с перечнем полей, не прошедших проверку
func handleBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			fields[fe.Field()] = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		} else {
			fields[fe.Field()] = fe.Tag()
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": fields})
}
