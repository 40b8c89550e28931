package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/handover"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// HandoverServiceInterface は受付記録ハンドラーが必要とするサービスインターフェース。
type HandoverServiceInterface interface {
	Create(ctx context.Context, actor model.Identity, in handover.CreateInput) (*model.Handover, error)
	List(ctx context.Context, actor model.Identity, eventID string) ([]*model.Handover, error)
	Get(ctx context.Context, actor model.Identity, id string) (*model.Handover, error)
	Print(ctx context.Context, actor model.Identity, id string) (*model.Handover, error)
}

// HandoverHandler は受付記録のHTTPハンドラー。
type HandoverHandler struct {
	service HandoverServiceInterface
}

// NewHandoverHandler はHandoverHandlerを生成する。
func NewHandoverHandler(service HandoverServiceInterface) *HandoverHandler {
	return &HandoverHandler{service: service}
}

type createHandoverRequest struct {
	TicketCode   string   `json:"ticketCode"`
	ClientName   string   `json:"clientName"`
	ClientPhone  string   `json:"clientPhone"`
	Notes        string   `json:"notes"`
	PhotoURLs    []string `json:"photoUrls"`
	SignatureURL string   `json:"signatureUrl"`
	EventID      string   `json:"eventId"`
}

// CreateHandover は受付記録を作成する。
// POST /api/handovers
func (h *HandoverHandler) CreateHandover(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req createHandoverRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), actor, handover.CreateInput{
		TicketCode:   req.TicketCode,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		Notes:        req.Notes,
		PhotoURLs:    req.PhotoURLs,
		SignatureURL: req.SignatureURL,
		EventID:      req.EventID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHandoverResponse(created))
}

// ListHandovers は受付記録一覧を返す。
// GET /api/handovers?eventId=
func (h *HandoverHandler) ListHandovers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), actor, r.URL.Query().Get("eventId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHandoverResponses(list))
}

// GetHandover は受付記録を返す。
// GET /api/handovers/{id}
func (h *HandoverHandler) GetHandover(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHandoverResponse(found))
}

// PrintHandover は印刷回数を加算する。
// POST /api/handovers/{id}/print
func (h *HandoverHandler) PrintHandover(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	printed, err := h.service.Print(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHandoverResponse(printed))
}
