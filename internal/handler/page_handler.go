package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/auth"
	"github.com/zebramusic/cloackroom-app-sub001/internal/event"
	"github.com/zebramusic/cloackroom-app-sub001/internal/handover"
	"github.com/zebramusic/cloackroom-app-sub001/internal/middleware"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/web"
)

const (
	loginPath     = "/private/login"
	homePath      = "/private"
	maxFormBytes  = 64 << 10
	genericFailed = "Something went wrong. Please try again."
)

// PageDeps は/private配下のページハンドラーの依存関係。
type PageDeps struct {
	Auth      AuthServiceInterface
	Events    EventServiceInterface
	Handovers HandoverServiceInterface
	Accounts  AccountServiceInterface
	Renderer  *web.Renderer
	Cookies   AuthHandlerConfig
	Now       func() time.Time
}

// PageHandler はブラウザ向けのHTMLページを提供する。
// Role Gateを通過したリクエストも、ここで解決済みの認証主体を改めて確認する。
type PageHandler struct {
	auth      AuthServiceInterface
	events    EventServiceInterface
	handovers HandoverServiceInterface
	accounts  AccountServiceInterface
	renderer  *web.Renderer
	session   *AuthHandler
	now       func() time.Time
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(deps PageDeps) *PageHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &PageHandler{
		auth:      deps.Auth,
		events:    deps.Events,
		handovers: deps.Handovers,
		accounts:  deps.Accounts,
		renderer:  deps.Renderer,
		session:   NewAuthHandler(deps.Auth, deps.Cookies),
		now:       now,
	}
}

// LoginPage はログインフォームを表示する。ログイン済みの場合は遷移先へリダイレクトする。
// GET /private/login
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if _, ok := middleware.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageLogin, web.PageData{
		Title:     "Sign in",
		Next:      next,
		LoginRole: string(model.RoleStaff),
	})
}

// Login はフォームからログインし、Cookieを設定して遷移先へリダイレクトする。
// POST /private/login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	data := web.PageData{
		Title:     "Sign in",
		Next:      safeNext(r.PostFormValue("next")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		LoginRole: r.PostFormValue("type"),
	}

	role, ok := model.ParseRole(data.LoginRole)
	if !ok {
		data.Error = "Choose staff or admin."
		h.renderer.Render(w, http.StatusBadRequest, web.PageLogin, data)
		return
	}
	data.LoginRole = string(role)

	result, err := h.auth.Login(r.Context(), auth.LoginInput{
		Email:    data.Email,
		Password: r.PostFormValue("password"),
		Remember: r.PostFormValue("remember") == "true",
		Role:     role,
	})
	if err != nil {
		h.renderError(w, web.PageLogin, data, err)
		return
	}

	h.session.setSessionCookies(w, result.Session.Token, result.Identity.Role(), result.TTL)
	http.Redirect(w, r, data.Next, http.StatusSeeOther)
}

// ResetRequestPage は再設定リンクの申請フォームを表示する。
// GET /private/reset
func (h *PageHandler) ResetRequestPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageResetRequest, web.PageData{Title: "Reset password"})
}

// ResetRequest は再設定リンクを発行する。アカウントの有無は表示に出さない。
// POST /private/reset
func (h *PageHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	data := web.PageData{Title: "Reset password", Email: strings.TrimSpace(r.PostFormValue("email"))}

	var role model.Role
	if t := r.PostFormValue("type"); t != "" {
		parsed, ok := model.ParseRole(t)
		if !ok {
			data.Error = "Choose staff or admin."
			h.renderer.Render(w, http.StatusBadRequest, web.PageResetRequest, data)
			return
		}
		role = parsed
	}

	if err := h.auth.RequestReset(r.Context(), data.Email, role); err != nil {
		h.renderError(w, web.PageResetRequest, data, err)
		return
	}
	data.Notice = "If an account exists for that email, a reset link has been sent."
	h.renderer.Render(w, http.StatusOK, web.PageResetRequest, data)
}

// ResetConfirmPage は新しいパスワードの入力フォームを表示する。
// GET /private/reset/{token}
func (h *PageHandler) ResetConfirmPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageResetConfirm, web.PageData{
		Title: "Choose a new password",
		Token: chi.URLParam(r, "token"),
	})
}

// ResetConfirm はトークンを消費してパスワードを更新し、ログインフォームを表示する。
// POST /private/reset/{token}
func (h *PageHandler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	token := chi.URLParam(r, "token")

	if err := h.auth.ConfirmReset(r.Context(), token, r.PostFormValue("password")); err != nil {
		h.renderError(w, web.PageResetConfirm, web.PageData{Title: "Choose a new password", Token: token}, err)
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageLogin, web.PageData{
		Title:     "Sign in",
		Next:      homePath,
		LoginRole: string(model.RoleStaff),
		Notice:    "Your password has been updated. Sign in with the new password.",
	})
}

// Home は割り当てイベントの状態または稼働中のイベントを表示する。
// GET /private
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	data := web.PageData{Title: "Home", Identity: ident}

	if st, isStaff := ident.(*model.Staff); isStaff {
		data.Staff = st
		if st.AuthorizedEventID != "" {
			ev, err := h.findEvent(r, st.AuthorizedEventID)
			if err != nil {
				h.renderError(w, web.PageHome, data, err)
				return
			}
			data.Event = ev
			data.EventActive = ev != nil && event.IsActive(ev, h.now().UnixMilli())
		}
	} else {
		active, err := h.events.Active(r.Context())
		if err != nil {
			h.renderError(w, web.PageHome, data, err)
			return
		}
		data.Events = active
	}
	h.renderer.Render(w, http.StatusOK, web.PageHome, data)
}

// CapturePage は受付フォームを表示する。
// GET /private/handover
func (h *PageHandler) CapturePage(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	data, err := h.captureData(r, ident)
	if err != nil {
		h.renderError(w, web.PageCapture, data, err)
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageCapture, data)
}

// Capture はフォームから受付記録を作成し、詳細ページへリダイレクトする。
// POST /private/handover
func (h *PageHandler) Capture(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	if !parseForm(w, r) {
		return
	}
	form := web.HandoverForm{
		TicketCode:   r.PostFormValue("ticketCode"),
		ClientName:   r.PostFormValue("clientName"),
		ClientPhone:  r.PostFormValue("clientPhone"),
		Notes:        r.PostFormValue("notes"),
		PhotoURLs:    r.PostFormValue("photoUrls"),
		SignatureURL: r.PostFormValue("signatureUrl"),
	}

	created, err := h.handovers.Create(r.Context(), ident, handover.CreateInput{
		TicketCode:   form.TicketCode,
		ClientName:   form.ClientName,
		ClientPhone:  form.ClientPhone,
		Notes:        form.Notes,
		PhotoURLs:    splitLines(form.PhotoURLs),
		SignatureURL: form.SignatureURL,
		EventID:      r.PostFormValue("eventId"),
	})
	if err != nil {
		data, loadErr := h.captureData(r, ident)
		if loadErr != nil {
			slog.Error("failed to load capture page", slog.String("error", loadErr.Error()))
		}
		data.Form = form
		h.renderError(w, web.PageCapture, data, err)
		return
	}
	http.Redirect(w, r, "/private/handovers/"+url.PathEscape(created.ID), http.StatusSeeOther)
}

// HandoversPage は受付記録の一覧を表示する。
// GET /private/handovers?eventId=
func (h *PageHandler) HandoversPage(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	data := web.PageData{Title: "Handovers", Identity: ident}

	list, err := h.handovers.List(r.Context(), ident, r.URL.Query().Get("eventId"))
	if err != nil {
		h.renderError(w, web.PageHandovers, data, err)
		return
	}
	data.Handovers = list
	h.renderer.Render(w, http.StatusOK, web.PageHandovers, data)
}

// HandoverPage は受付記録の詳細を表示する。
// GET /private/handovers/{id}
func (h *PageHandler) HandoverPage(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	data := web.PageData{Title: "Handover", Identity: ident}

	found, err := h.handovers.Get(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, web.PageHandover, data, err)
		return
	}
	data.Handover = found
	h.renderer.Render(w, http.StatusOK, web.PageHandover, data)
}

// PrintHandover は印刷回数を加算して詳細ページへ戻る。
// POST /private/handovers/{id}/print
func (h *PageHandler) PrintHandover(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if _, err := h.handovers.Print(r.Context(), ident, id); err != nil {
		data := web.PageData{Title: "Handover", Identity: ident}
		if found, getErr := h.handovers.Get(r.Context(), ident, id); getErr == nil {
			data.Handover = found
		}
		h.renderError(w, web.PageHandover, data, err)
		return
	}
	http.Redirect(w, r, "/private/handovers/"+url.PathEscape(id), http.StatusSeeOther)
}

// AdminPage はイベントとアカウントの一覧を表示する。管理者以外には403を返す。
// GET /private/admin
func (h *PageHandler) AdminPage(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.pageIdentity(w, r)
	if !ok {
		return
	}
	if ident.Role() != model.RoleAdmin {
		h.renderNotAllowed(w, ident)
		return
	}
	data := web.PageData{Title: "Administration", Identity: ident}

	events, err := h.events.List(r.Context())
	if err != nil {
		h.renderError(w, web.PageAdmin, data, err)
		return
	}
	staff, err := h.accounts.ListStaff(r.Context())
	if err != nil {
		h.renderError(w, web.PageAdmin, data, err)
		return
	}
	admins, err := h.accounts.ListAdmins(r.Context())
	if err != nil {
		h.renderError(w, web.PageAdmin, data, err)
		return
	}

	data.Events = events
	data.StaffList = staff
	data.Admins = admins
	h.renderer.Render(w, http.StatusOK, web.PageAdmin, data)
}

// NotAllowed はRole Gateの書き換え先。常に403で描画する。
// GET /private/not-allowed
func (h *PageHandler) NotAllowed(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFromContext(r.Context())
	h.renderNotAllowed(w, ident)
}

func (h *PageHandler) renderNotAllowed(w http.ResponseWriter, ident model.Identity) {
	h.renderer.Render(w, http.StatusForbidden, web.PageNotAllowed, web.PageData{
		Title:    "Not allowed",
		Identity: ident,
	})
}

// pageIdentity は認証主体を返す。Cookieが無効な場合はログインページへリダイレクトする。
func (h *PageHandler) pageIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.session.clearSessionCookies(w)
		http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return nil, false
	}
	return ident, true
}

// captureData は受付フォームの表示データを組み立てる。管理者にはイベントの選択肢を渡す。
func (h *PageHandler) captureData(r *http.Request, ident model.Identity) (web.PageData, error) {
	data := web.PageData{Title: "New handover", Identity: ident}
	if ident.Role() != model.RoleAdmin {
		return data, nil
	}
	events, err := h.events.List(r.Context())
	if err != nil {
		return data, err
	}
	data.Events = events
	return data, nil
}

// findEvent はイベントを取得する。存在しない場合はnil, nilを返す。
func (h *PageHandler) findEvent(r *http.Request, id string) (*model.Event, error) {
	ev, err := h.events.Get(r.Context(), id)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEventNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

// renderError はエラーをページ内のメッセージとして描画する。
func (h *PageHandler) renderError(w http.ResponseWriter, page string, data web.PageData, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("page request failed", slog.String("page", page), slog.String("error", err.Error()))
		data.Error = genericFailed
		h.renderer.Render(w, http.StatusInternalServerError, page, data)
		return
	}

	data.Error = apiErr.Message
	if apiErr.Hint != "" {
		data.Error += " " + apiErr.Action
	}
	h.renderer.Render(w, mapAPIErrorToHTTPStatus(apiErr), page, data)
}

// safeNext はログイン後の遷移先を/private配下の相対パスに限定する。
func safeNext(next string) string {
	if next == "" || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return homePath
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return homePath
	}
	if u.Path != homePath && !strings.HasPrefix(u.Path, homePath+"/") {
		return homePath
	}
	if u.Path == loginPath {
		return homePath
	}
	return u.RequestURI()
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// splitLines は改行区切りの入力を空行を除いたスライスにする。
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
