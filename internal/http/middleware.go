package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"erp-access/internal/domain"
	"erp-access/internal/service"
	"erp-access/internal/token"
)

type contextKey string

const scopeContextKey contextKey = "tenant-scope"

// ScopeFromContext 取出请求上下文里的 TenantScope（经过 AuthMiddleware 的请求必有）
func ScopeFromContext(ctx context.Context) *domain.TenantScope {
	scope, _ := ctx.Value(scopeContextKey).(*domain.TenantScope)
	return scope
}

// AuthMiddleware 认证 + scope 解析中间件
// 顺序：Bearer token 校验 -> userID -> scope 解析 -> 注入 context
// token 只携带 uid，公司/角色上下文每次重新解析（短 TTL 缓存兜底）
type AuthMiddleware struct {
	tokens *token.Manager
	access service.AccessService
	logger *zap.Logger
}

func NewAuthMiddleware(tokens *token.Manager, access service.AccessService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, access: access, logger: logger}
}

// Wrap 给 handler 套上认证门禁
func (m *AuthMiddleware) Wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, Fail("missing token"))
			return
		}

		claims, err := m.tokens.Verify(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				// 过期用专用错误码，前端拦截器据此跳登录页
				writeJSON(w, http.StatusUnauthorized, FailTokenExpired())
				return
			}
			m.logger.Warn("Token verification failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeJSON(w, http.StatusUnauthorized, Fail("invalid token"))
			return
		}

		// 多公司用户经 X-Company-Id 切换视角
		companyHint := parseInt64Ptr(r.Header.Get("X-Company-Id"))

		// 签发时间进缓存键：重新登录的请求不会命中旧令牌的 scope 缓存
		var issuedAt time.Time
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}

		scope, err := m.access.ResolveScope(r.Context(), claims.UserID, issuedAt, companyHint)
		if err != nil {
			writeDomainError(w, m.logger, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), scopeContextKey, scope)
		h(w, r.WithContext(ctx))
	}
}

// RequireLevel 等级门禁包装：先认证，再要求最低角色等级
func (m *AuthMiddleware) RequireLevel(required int, h http.HandlerFunc) http.HandlerFunc {
	return m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		scope := ScopeFromContext(r.Context())
		if err := service.RequireLevel(scope, required); err != nil {
			m.logger.Warn("Request denied: insufficient role level",
				zap.String("path", r.URL.Path),
				zap.Int("required", required),
				zap.Int("caller_level", scope.RoleLevel),
				zap.Int64("user_id", scope.UserID),
			)
			writeJSON(w, http.StatusForbidden, Fail("forbidden"))
			return
		}
		h(w, r)
	})
}

// writeDomainError 领域错误到 HTTP 状态码的统一映射
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, Fail("forbidden"))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	case errors.Is(err, domain.ErrFetch):
		logger.Error("Upstream data fetch failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, Fail("fetch error"))
	default:
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail(err.Error()))
	}
}
