// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const (
	// SessionCookieName はセッショントークンを保持するHttpOnly Cookieの名前。
	SessionCookieName = "cloack_session"
	// RoleCookieName はロールのヒントを保持するCookieの名前。
	// スクリプトから読めるため、認可の根拠には使わない。
	RoleCookieName = "cloack_role"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var identityContextKey = contextKey("identity")

// IdentityResolver はセッショントークンから認証主体を解決する。
// 無効なトークンの場合はnil, nilを返す。
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (model.Identity, error)
}

// NewSessionMiddleware はCookieのセッショントークンを解決し、認証主体をコンテキストに注入する。
// セッションがなくても拒否はしない。拒否はRequireIdentity/RequireRoleが行う。
func NewSessionMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ident, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if ident == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), ident)))
		})
	}
}

// RequireIdentity は認証済みでないリクエストに401を返す。
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole は指定ロール以外のリクエストを拒否する。
// 未認証は401、ロール不一致は403。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !slices.Contains(roles, ident.Role()) {
				slog.Warn("role requirement not met",
					slog.String("user_id", ident.Base().ID),
					slog.String("role", string(ident.Role())),
					slog.String("path", logPath(r)),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken はリクエストのセッションCookieの値を返す。存在しない場合は空文字列。
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IdentityFromContext はリクエストコンテキストから認証主体を取得する。
// セッションミドルウェアで解決できた場合のみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(model.Identity)
	return ident, ok && ident != nil
}

// ContextWithIdentity はコンテキストに認証主体を注入し、リクエストログにも反映する。
func ContextWithIdentity(ctx context.Context, ident model.Identity) context.Context {
	annotateRequest(ctx, ident)
	return context.WithValue(ctx, identityContextKey, ident)
}
