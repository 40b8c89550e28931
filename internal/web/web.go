// Package web は/private配下のページを描画する埋め込みHTMLテンプレートを提供する。
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名
const (
	PageLogin        = "login"
	PageResetRequest = "reset_request"
	PageResetConfirm = "reset_confirm"
	PageHome         = "home"
	PageCapture      = "capture"
	PageHandovers    = "handovers"
	PageHandover     = "handover"
	PageAdmin        = "admin"
	PageNotAllowed   = "not_allowed"
)

var pageNames = []string{
	PageLogin, PageResetRequest, PageResetConfirm, PageHome, PageCapture,
	PageHandovers, PageHandover, PageAdmin, PageNotAllowed,
}

// PageData はテンプレートに渡す値。ページごとに必要なフィールドだけを埋める。
type PageData struct {
	Title    string
	Identity model.Identity
	IsAdmin  bool
	Error    string
	Notice   string

	// ログイン・再設定フォーム
	Next      string
	Email     string
	LoginRole string
	Token     string

	// ホーム
	Staff       *model.Staff
	Event       *model.Event
	EventActive bool

	Events    []*model.Event
	Handovers []*model.Handover
	Handover  *model.Handover
	StaffList []*model.Staff
	Admins    []*model.Admin
	Form      HandoverForm
}

// HandoverForm は受付フォームの再表示用の入力値。
type HandoverForm struct {
	TicketCode   string
	ClientName   string
	ClientPhone  string
	Notes        string
	PhotoURLs    string
	SignatureURL string
}

var funcs = template.FuncMap{
	"ms": formatMillis,
	"msp": func(v *int64) string {
		if v == nil {
			return ""
		}
		return formatMillis(*v)
	},
}

func formatMillis(v int64) string {
	return time.UnixMilli(v).UTC().Format("2006-01-02 15:04 UTC")
}

// Renderer はページ単位に組み立てたテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("テンプレートの解析に失敗しました (%s): %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render はページを描画する。描画に失敗した場合は何も書き込まずに500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := r.pages[page]
	if !ok {
		slog.Error("unknown page template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if data.Identity != nil {
		data.IsAdmin = data.Identity.Role() == model.RoleAdmin
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
