package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ggza/trivia-core/internal/domain/entity"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/pkg/auth"
)

// Ключи контекста gin, которые выставляет RequireAuth
const (
	ContextUserID     = "user_id"
	ContextDiscordID  = "discord_id"
	ContextIsAdmin    = "is_admin"
	ContextIsVerified = "is_verified"
)

// IdentityResolver сопоставляет внешнюю идентичность внутреннему пользователю
type IdentityResolver interface {
	EnsureIdentity(ctx context.Context, in service.IdentityInput) (*entity.User, error)
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	verifier *auth.TokenVerifier
	users    IdentityResolver
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(verifier *auth.TokenVerifier, users IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		users:    users,
	}
}

// tokenFromRequest извлекает токен из заголовка Authorization или из query-параметра token (для WebSocket)
func tokenFromRequest(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, ""
		}
		return "", "token_missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "token_format"
	}
	return parts[1], ""
}

// RequireAuth проверяет токен шлюза и выставляет внутренний ID пользователя в контекст
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := tokenFromRequest(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": problem})
			return
		}

		claims, err := m.verifier.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}

		user, err := m.users.EnsureIdentity(c.Request.Context(), service.IdentityInput{
			DiscordID: claims.Subject,
			Username:  claims.Username,
			AvatarURL: claims.Avatar,
			Verified:  claims.Verified,
		})
		if err != nil {
			log.Printf("[AuthMiddleware] Не удалось сопоставить пользователя discord_id=%s: %v", claims.Subject, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextDiscordID, user.DiscordID)
		c.Set(ContextIsAdmin, claims.IsAdmin() || user.IsAdmin())
		c.Set(ContextIsVerified, user.IsVerified)
		c.Next()
	}
}

// RequireVerified пропускает только пользователей, подтвердивших участие на сервере Discord.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextIsVerified) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Verified membership required", "error_type": "not_verified"})
			return
		}
		c.Next()
	}
}

// AdminOnly проверяет, является ли пользователь администратором
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !c.GetBool(ContextIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required"})
			return
		}
		c.Next()
	}
}
