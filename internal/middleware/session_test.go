package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	resolveFn func(ctx context.Context, token string) (model.Identity, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, token string) (model.Identity, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, token)
	}
	return nil, nil
}

func testStaff() *model.Staff {
	return &model.Staff{Account: model.Account{ID: "st_1", FullName: "Sam"}, IsAuthorized: true}
}

func testAdmin() *model.Admin {
	return &model.Admin{Account: model.Account{ID: "ad_1", FullName: "Ada"}}
}

func resolverFor(token string, ident model.Identity) *mockResolver {
	return &mockResolver{
		resolveFn: func(ctx context.Context, got string) (model.Identity, error) {
			if got == token {
				return ident, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsIdentity(t *testing.T) {
	mw := NewSessionMiddleware(resolverFor("tok", testStaff()))

	var captured model.Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured == nil || captured.Base().ID != "st_1" || captured.Role() != model.RoleStaff {
		t.Errorf("identity = %+v", captured)
	}
}

func TestSessionMiddleware_NoCookie_PassesAnonymous(t *testing.T) {
	resolver := &mockResolver{}
	mw := NewSessionMiddleware(resolver)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("expected no identity in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/test", nil))

	if !called {
		t.Error("handler should have been called")
	}
	if resolver.calls != 0 {
		t.Errorf("resolver called %d times without cookie", resolver.calls)
	}
}

func TestSessionMiddleware_StaleCookie_PassesAnonymous(t *testing.T) {
	mw := NewSessionMiddleware(resolverFor("tok", testStaff()))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("expected no identity for unknown token")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestSessionMiddleware_ResolverError_Returns500(t *testing.T) {
	mw := NewSessionMiddleware(&mockResolver{
		resolveFn: func(ctx context.Context, token string) (model.Identity, error) {
			return nil, errors.New("db down")
		},
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestRequireIdentity(t *testing.T) {
	handler := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req = req.WithContext(ContextWithIdentity(req.Context(), testStaff()))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("authenticated status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name  string
		ident model.Identity
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"staff", testStaff(), http.StatusForbidden},
		{"admin", testAdmin(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/admin/staff/st_1", nil)
			if tt.ident != nil {
				req = req.WithContext(ContextWithIdentity(req.Context(), tt.ident))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// sessionResolver はトークンと主体の対応表から解決するモックを返す。
func sessionResolver(byToken map[string]model.Identity) *mockResolver {
	return &mockResolver{
		resolveFn: func(ctx context.Context, token string) (model.Identity, error) {
			return byToken[token], nil
		},
	}
}
