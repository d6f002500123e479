// auth.go — JWT middleware аутентификации godrive.
// Валидирует подпись Bearer-токена через JWKS (RS256), извлекает subject
// и помещает идентификатор пользователя в контекст запроса. Ролей в
// токене нет: права на ресурсы вычисляет сервис доступа по графу grant-ов.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/godrive/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUserID — UUID аутентифицированного пользователя в контексте запроса.
const ContextKeyUserID contextKey = "user_id"

// UserID извлекает идентификатор пользователя из контекста запроса.
// Пустая строка — запрос не прошёл аутентификацию.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyUserID).(string)
	return id
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
	leeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из внешнего IdP.
// jwksURL — URL JWKS endpoint.
// refreshInterval — интервал фонового обновления ключей.
// leeway — допустимое отклонение времени при проверке exp/nbf.
func NewJWTAuth(
	jwksURL string,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:   k,
		logger: logger.With(slog.String("component", "jwt_auth")),
		leeway: leeway,
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовым keyfunc.
// Используется в тестах со статическим JWKS.
func NewJWTAuthWithKeyfunc(k keyfunc.Keyfunc, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:   k,
		logger: logger.With(slog.String("component", "jwt_auth")),
		leeway: leeway,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256) и помещает
// subject токена в контекст запроса.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(parts[1], &claims, j.jwks.Keyfunc,
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithLeeway(j.leeway),
			)
			if err != nil || !token.Valid {
				j.logger.Warn("невалидный JWT",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", fmt.Sprintf("%v", err)),
				)
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}
			if claims.Subject == "" {
				apierrors.Unauthorized(w, "Токен без subject")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DevAuth — middleware режима разработки: идентификатор пользователя
// берётся из заголовка X-User-ID без проверки подписи.
// Включается только при пустом GD_JWT_JWKS_URL.
func DevAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок X-User-ID")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
