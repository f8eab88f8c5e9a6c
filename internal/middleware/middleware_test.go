package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ggza/trivia-core/internal/domain/entity"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockIdentityResolver мок для IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) EnsureIdentity(ctx context.Context, in service.IdentityInput) (*entity.User, error) {
	args := m.Called(ctx, in)
	if u := args.Get(0); u != nil {
		return u.(*entity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func newVerifier(t *testing.T) *auth.TokenVerifier {
	t.Helper()
	v, err := auth.NewTokenVerifier("test-secret", "")
	require.NoError(t, err)
	return v
}

func issue(t *testing.T, v *auth.TokenVerifier, claims auth.IdentityClaims) string {
	t.Helper()
	token, err := v.Issue(claims, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	verifier := newVerifier(t)
	resolver := new(MockIdentityResolver)
	resolver.On("EnsureIdentity", mock.Anything, service.IdentityInput{DiscordID: "42", Username: "alice", Verified: true}).
		Return(&entity.User{ID: 7, DiscordID: "42", Username: "alice", IsVerified: true, Role: entity.RoleUser}, nil)

	m := NewAuthMiddleware(verifier, resolver)
	router := gin.New()
	router.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetUint(ContextUserID),
			"admin":    c.GetBool(ContextIsAdmin),
			"verified": c.GetBool(ContextIsVerified),
		})
	})

	t.Run("валидный токен", func(t *testing.T) {
		token := issue(t, verifier, auth.IdentityClaims{Username: "alice", Verified: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":7,"admin":false,"verified":true}`, w.Body.String())
	})

	t.Run("токен в query", func(t *testing.T) {
		token := issue(t, verifier, auth.IdentityClaims{Username: "alice", Verified: true, RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("без токена", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token_missing")
	})

	t.Run("неверный формат заголовка", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "token_format")
	})

	t.Run("чужая подпись", func(t *testing.T) {
		other, err := auth.NewTokenVerifier("other", "")
		require.NoError(t, err)
		token := issue(t, other, auth.IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}})
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_Gates(t *testing.T) {
	verifier := newVerifier(t)
	resolver := new(MockIdentityResolver)
	resolver.On("EnsureIdentity", mock.Anything, mock.MatchedBy(func(in service.IdentityInput) bool { return in.DiscordID == "1" })).
		Return(&entity.User{ID: 1, DiscordID: "1", IsVerified: false}, nil)
	resolver.On("EnsureIdentity", mock.Anything, mock.MatchedBy(func(in service.IdentityInput) bool { return in.DiscordID == "2" })).
		Return(&entity.User{ID: 2, DiscordID: "2", IsVerified: true}, nil)

	m := NewAuthMiddleware(verifier, resolver)
	router := gin.New()
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	router.GET("/play", m.RequireAuth(), m.RequireVerified(), ok)
	router.GET("/admin", m.RequireAuth(), m.AdminOnly(), ok)

	do := func(path, subject, role string) int {
		token := issue(t, verifier, auth.IdentityClaims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: subject}})
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, do("/play", "1", ""), "Неверифицированный пользователь не играет в зачетные режимы")
	assert.Equal(t, http.StatusNoContent, do("/play", "2", ""))
	assert.Equal(t, http.StatusForbidden, do("/admin", "2", auth.RoleUser))
	assert.Equal(t, http.StatusNoContent, do("/admin", "2", auth.RoleAdmin), "Роль администратора приходит из токена")
}

func TestRequireID(t *testing.T) {
	router := gin.New()
	router.GET("/items/:id", RequireID("id", ContextInstanceID), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": PathID(c, ContextInstanceID)})
	})

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := do("/items/15")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":15}`, w.Body.String())

	for _, bad := range []string{"/items/abc", "/items/0", "/items/-3", "/items/99999999999"} {
		w := do(bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, "Идентификатор %s должен быть отклонен", bad)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "validation", body["error_type"], bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = parseID("0")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = parseID("")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRateLimiter_LimitByUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client)
	cfg := RateLimitConfig{MaxRequests: 2, Window: time.Minute, KeyPrefix: "test:rl"}

	router := gin.New()
	router.POST("/answer", func(c *gin.Context) {
		c.Set(ContextUserID, uint(5))
		c.Next()
	}, limiter.LimitByUser(cfg), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/answer", nil))
		codes = append(codes, w.Code)
		if i == 2 {
			assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	ttl := mr.TTL("test:rl:user:5:/answer")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "У счетчика должно быть окно")

	mr.FastForward(time.Minute + time.Second)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/answer", nil))
	assert.Equal(t, http.StatusNoContent, w.Code, "После окна счетчик сбрасывается")
}

func TestRateLimiter_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	router := gin.New()
	router.GET("/x", NewRateLimiter(client).LimitByIP(RateLimitConfig{MaxRequests: 1, Window: time.Minute, KeyPrefix: "t"}),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusNoContent, w.Code, "При недоступном Redis запросы пропускаются")
	}
}
