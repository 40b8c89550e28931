package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// TestMiddlewareChain_APIGroup はLogging → CORS → Session → RateLimit → RequireRole の
// 組み合わせがchi.Routerで期待どおりに動作することを検証する。
func TestMiddlewareChain_APIGroup(t *testing.T) {
	var logBuf bytes.Buffer
	rl := NewRateLimiter(testLimiterConfig(10, 10))
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(newJSONLogger(&logBuf), nil))
	r.Route("/api", func(r chi.Router) {
		r.Use(NewCORSMiddleware("http://localhost:3000"))
		r.Use(NewSessionMiddleware(sessionResolver(map[string]model.Identity{
			"staff-token": testStaff(),
			"admin-token": testAdmin(),
		})))
		r.Use(rl.GeneralMiddleware())
		r.With(RequireRole(model.RoleAdmin)).Get("/admin/staff", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	tests := []struct {
		name   string
		method string
		token  string
		want   int
	}{
		{"preflight", http.MethodOptions, "", http.StatusNoContent},
		{"anonymous", http.MethodGet, "", http.StatusUnauthorized},
		{"staff", http.MethodGet, "staff-token", http.StatusForbidden},
		{"admin", http.MethodGet, "admin-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/admin/staff", nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.token})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
