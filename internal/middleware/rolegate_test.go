package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
)

// gateRequest はCookieを付けたリクエストを組み立てる。roleが空の場合はロールCookieを付けない。
func gateRequest(path string, withSession bool, role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withSession {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	}
	if role != "" {
		req.AddCookie(&http.Cookie{Name: RoleCookieName, Value: role})
	}
	return req
}

// newGatedRouter はゲートをトップレベルに登録し、到達したパスを本文に書き出すルーターを返す。
func newGatedRouter(mc metrics.MetricsCollector) http.Handler {
	r := chi.NewRouter()
	r.Use(NewRoleGate(DefaultRoleGateConfig(), mc))

	echo := func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("reached " + r.URL.Path))
	}
	r.Get("/private", echo)
	r.Get("/private/login", echo)
	r.Get("/private/reset", echo)
	r.Get("/private/reset/{token}", echo)
	r.Get("/private/handover", echo)
	r.Get("/private/handovers", echo)
	r.Get("/private/handovers/{id}", echo)
	r.Get("/private/admin", echo)
	r.Get("/private/admin/staff", echo)
	r.Get("/private/events", echo)
	r.Get("/private/not-allowed", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("not allowed"))
	})
	r.Get("/api/events", echo)
	return r
}

func TestRoleGate_PublicPathsBypass(t *testing.T) {
	router := newGatedRouter(nil)

	for _, path := range []string{"/private/login", "/private/reset", "/private/reset/rst.st_1.abc"} {
		for _, withSession := range []bool{false, true} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, gateRequest(path, withSession, "staff"))
			if w.Code != http.StatusOK || w.Body.String() != "reached "+path {
				t.Errorf("%s (session=%v): status=%d body=%q", path, withSession, w.Code, w.Body.String())
			}
		}
	}
}

func TestRoleGate_NoSessionRedirectsToLogin(t *testing.T) {
	router := newGatedRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gateRequest("/private/admin/staff?tab=all", false, "admin"))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if loc.Path != "/private/login" {
		t.Errorf("redirect path = %q", loc.Path)
	}
	if next := loc.Query().Get("next"); next != "/private/admin/staff?tab=all" {
		t.Errorf("next = %q", next)
	}
}

// TestRoleGate_StaffAndAdminOnSamePath は同一パスでもロールCookieにより結果が変わることを検証する。
func TestRoleGate_StaffAndAdminOnSamePath(t *testing.T) {
	mc := &recordingMetrics{}
	router := newGatedRouter(mc)

	staff := httptest.NewRecorder()
	router.ServeHTTP(staff, gateRequest("/private/admin", true, "staff"))
	if staff.Code != http.StatusForbidden || staff.Body.String() != "not allowed" {
		t.Errorf("staff: status=%d body=%q", staff.Code, staff.Body.String())
	}

	admin := httptest.NewRecorder()
	router.ServeHTTP(admin, gateRequest("/private/admin", true, "admin"))
	if admin.Code != http.StatusOK || admin.Body.String() != "reached /private/admin" {
		t.Errorf("admin: status=%d body=%q", admin.Code, admin.Body.String())
	}

	if len(mc.decisions) != 2 || mc.decisions[0] != metrics.GateRewrite || mc.decisions[1] != metrics.GateAllow {
		t.Errorf("decisions = %v", mc.decisions)
	}
}

func TestRoleGate_StaffAllowList(t *testing.T) {
	router := newGatedRouter(nil)

	tests := []struct {
		path    string
		reached bool
	}{
		{"/private", true},
		{"/private/handover", true},
		{"/private/handovers", true},
		{"/private/handovers/h_1", true},
		{"/private/admin/staff", false},
		{"/private/events", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, gateRequest(tt.path, true, "staff"))
			got := w.Code == http.StatusOK
			if got != tt.reached {
				t.Errorf("reached = %v (status=%d body=%q), want %v", got, w.Code, w.Body.String(), tt.reached)
			}
		})
	}
}

// TestRoleGate_MissingRoleHintDefersToHandlers はロールCookieがない場合にハンドラーの判定へ委ねることを検証する。
func TestRoleGate_MissingRoleHintDefersToHandlers(t *testing.T) {
	router := newGatedRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gateRequest("/private/admin", true, ""))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRoleGate_IgnoresOtherPrefixes(t *testing.T) {
	mc := &recordingMetrics{}
	router := newGatedRouter(mc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, gateRequest("/api/events", false, ""))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(mc.decisions) != 0 {
		t.Errorf("gate should not decide outside /private: %v", mc.decisions)
	}
}
