package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/event"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	List(ctx context.Context) ([]*model.Event, error)
	Active(ctx context.Context) ([]*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	Create(ctx context.Context, in event.CreateInput) (*model.Event, error)
	Update(ctx context.Context, id string, in event.UpdateInput) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// EventHandler はイベント管理のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

type createEventRequest struct {
	Name     string `json:"name"`
	StartsAt int64  `json:"startsAt"`
	EndsAt   int64  `json:"endsAt"`
}

type updateEventRequest struct {
	Name     *string `json:"name"`
	StartsAt *int64  `json:"startsAt"`
	EndsAt   *int64  `json:"endsAt"`
}

// ListEvents はイベント一覧を返す。
// GET /api/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(list))
}

// ListActiveEvents は現在稼働中のイベント一覧を返す。
// GET /api/events/active
func (h *EventHandler) ListActiveEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Active(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(list))
}

// GetEvent はイベント詳細を返す。
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// CreateEvent はイベントを作成する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := h.service.Create(r.Context(), event.CreateInput{
		Name:     req.Name,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

// UpdateEvent はイベントを部分更新する。
// PATCH /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), event.UpdateInput{
		Name:     req.Name,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(ev))
}

// DeleteEvent はイベントを削除する。
// DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
