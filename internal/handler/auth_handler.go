package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/auth"
	"github.com/zebramusic/cloackroom-app-sub001/internal/middleware"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	RegisterStaff(ctx context.Context, in auth.RegisterInput) (*model.Staff, error)
	RequestReset(ctx context.Context, email string, role model.Role) error
	ConfirmReset(ctx context.Context, token, newPassword string) error
}

// AuthHandlerConfig はセッションCookieの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool // BASE_URLがhttpsの場合にtrue
}

// AuthHandler はログイン・ログアウト・登録・パスワード再設定のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{service: service, config: config}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
	Type     string `json:"type"`
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequestRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Login は資格情報を検証し、セッションCookieとロールCookieを設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, ok := model.ParseRole(req.Type)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("type must be staff or admin."))
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
		Role:     role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookies(w, result.Session.Token, result.Identity.Role(), result.TTL)
	writeJSON(w, http.StatusOK, toIdentityResponse(result.Identity))
}

// Logout はセッションを破棄してCookieを削除する。
// フォーム送信の場合はログインページへリダイレクトする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}
	h.clearSessionCookies(w)

	if isFormPost(r) {
		http.Redirect(w, r, "/private/login", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Me は現在の認証主体を返す。未認証の場合もuser:nullで200を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toIdentityResponse(ident)})
}

// Register はスタッフの自己登録を行う。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	staff, err := h.service.RegisterStaff(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentityResponse(staff))
}

// RequestReset はパスワード再設定リンクを発行する。
// アカウントの有無にかかわらず同じ応答を返す。
// POST /api/auth/reset/request
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var role model.Role
	if req.Type != "" {
		parsed, ok := model.ParseRole(req.Type)
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("type must be staff or admin."))
			return
		}
		role = parsed
	}

	if err := h.service.RequestReset(r.Context(), req.Email, role); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// ConfirmReset は再設定トークンでパスワードを上書きする。
// POST /api/auth/reset/confirm, POST /api/auth/reset/perform
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// setSessionCookies はセッションCookie（HttpOnly）とロールCookie（スクリプトから参照可）を設定する。
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, token string, role model.Role, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	http.SetCookie(w, h.cookie(middleware.SessionCookieName, token, maxAge, true))
	http.SetCookie(w, h.cookie(middleware.RoleCookieName, string(role), maxAge, false))
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(middleware.SessionCookieName, "", -1, true))
	http.SetCookie(w, h.cookie(middleware.RoleCookieName, "", -1, false))
}

func (h *AuthHandler) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func isFormPost(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
