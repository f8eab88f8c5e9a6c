package auth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Роли, которые выставляет шлюз идентификации
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Ошибки проверки токена
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenSignature = errors.New("signature is invalid")
	ErrTokenInvalid   = errors.New("invalid token")
)

// IdentityClaims — claims токена, выпущенного шлюзом Discord.
// Subject содержит Discord ID пользователя.
type IdentityClaims struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin сообщает, выдана ли роль администратора
func (c *IdentityClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// TokenVerifier проверяет HMAC-подпись и claims внешних токенов.
// Сервис токены не хранит и не отзывает.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier создает верификатор. issuer может быть пустым, тогда издатель не проверяется.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required for TokenVerifier")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// ParseToken проверяет токен и возвращает claims
func (v *TokenVerifier) ParseToken(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				log.Printf("[JWT] Токен истек для пользователя %s", claims.Subject)
				return nil, ErrTokenExpired
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				log.Printf("[JWT] Неверная подпись токена для пользователя %s", claims.Subject)
				return nil, ErrTokenSignature
			}
		}
		log.Printf("[JWT] Ошибка при разборе токена: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject is empty", ErrTokenInvalid)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		log.Printf("[JWT] Неожиданный издатель токена: %q", claims.Issuer)
		return nil, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}
	return claims, nil
}

// Issue подписывает токен тем же секретом. Используется ggzactl для локальной отладки и тестами.
func (v *TokenVerifier) Issue(claims IdentityClaims, ttl time.Duration) (string, error) {
	now := v.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
