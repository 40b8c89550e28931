package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// RoleGateConfig は/private配下のページに対する境界判定の設定。
// パスは末尾のスラッシュを除いた形で比較する。
type RoleGateConfig struct {
	// Prefix はゲートの対象となるパスの接頭辞。
	Prefix string
	// LoginPath は未ログイン時のリダイレクト先。
	LoginPath string
	// NotAllowedPath はロール不足時の書き換え先。
	NotAllowedPath string
	// PublicPaths、PublicPrefixes はCookieの有無に関係なく通過させるパス。
	PublicPaths    []string
	PublicPrefixes []string
	// StaffPaths はスタッフが到達できるパス。各パスの配下も含む。
	StaffPaths []string
}

// DefaultRoleGateConfig は標準のページ構成に対応する設定を返す。
func DefaultRoleGateConfig() RoleGateConfig {
	return RoleGateConfig{
		Prefix:         "/private",
		LoginPath:      "/private/login",
		NotAllowedPath: "/private/not-allowed",
		PublicPaths:    []string{"/private/login", "/private/reset"},
		PublicPrefixes: []string{"/private/reset/"},
		StaffPaths:     []string{"/private/handover", "/private/handovers"},
	}
}

// NewRoleGate はCookieだけで判定できる範囲のページ認可を行うミドルウェアを返す。
// ロールCookieはヒントにすぎないため、ここで通過したリクエストもハンドラー側で
// セッションを再検証する。ゲートはセッションストアを参照しない。
//
// chiのルーティング前に評価されるよう、トップレベルのルーターにUseで登録する。
func NewRoleGate(cfg RoleGateConfig, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := normalizePath(r.URL.Path)
			if !cfg.covers(path) {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.isPublic(path) {
				mc.RecordGateDecision(metrics.GateAllow)
				next.ServeHTTP(w, r)
				return
			}

			if SessionToken(r) == "" {
				mc.RecordGateDecision(metrics.GateRedirect)
				target := cfg.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}

			if roleHint(r) == model.RoleStaff && !cfg.staffMayReach(path) {
				mc.RecordGateDecision(metrics.GateRewrite)
				slog.Debug("role gate rewrite",
					slog.String("path", path),
					slog.String("role", string(model.RoleStaff)),
				)
				next.ServeHTTP(w, rewritePath(r, cfg.NotAllowedPath))
				return
			}

			mc.RecordGateDecision(metrics.GateAllow)
			next.ServeHTTP(w, r)
		})
	}
}

func (c RoleGateConfig) covers(path string) bool {
	return path == c.Prefix || strings.HasPrefix(path, c.Prefix+"/")
}

func (c RoleGateConfig) isPublic(path string) bool {
	for _, p := range c.PublicPaths {
		if path == p {
			return true
		}
	}
	for _, p := range c.PublicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// staffMayReach はスタッフの到達可能パスかを判定する。
// ホーム（Prefix自体）と書き換え先のページは常に含む。
func (c RoleGateConfig) staffMayReach(path string) bool {
	if path == c.Prefix || path == c.NotAllowedPath {
		return true
	}
	for _, p := range c.StaffPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func roleHint(r *http.Request) model.Role {
	cookie, err := r.Cookie(RoleCookieName)
	if err != nil {
		return ""
	}
	role, ok := model.ParseRole(cookie.Value)
	if !ok || cookie.Value == "" {
		return ""
	}
	return role
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

// rewritePath はURLのパスだけを差し替えたリクエストを返す。リダイレクトはしない。
func rewritePath(r *http.Request, path string) *http.Request {
	r2 := r.Clone(r.Context())
	r2.URL.Path = path
	r2.URL.RawPath = ""
	r2.URL.RawQuery = ""
	return r2
}
