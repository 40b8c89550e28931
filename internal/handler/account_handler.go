package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zebramusic/cloackroom-app-sub001/internal/account"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// AccountServiceInterface はアカウント管理ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	ListStaff(ctx context.Context) ([]*model.Staff, error)
	GetStaff(ctx context.Context, id string) (*model.Staff, error)
	CreateStaff(ctx context.Context, in account.StaffInput) (*model.Staff, error)
	UpdateStaff(ctx context.Context, id string, patch account.StaffPatch) (*model.Staff, error)
	DeleteStaff(ctx context.Context, id string) error

	ListAdmins(ctx context.Context) ([]*model.Admin, error)
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
	CreateAdmin(ctx context.Context, in account.AdminInput) (*model.Admin, error)
	UpdateAdmin(ctx context.Context, id string, patch account.AdminPatch) (*model.Admin, error)
	DeleteAdmin(ctx context.Context, actorID, id string) error
}

// AccountHandler は管理者向けのスタッフ・管理者アカウント管理ハンドラー。
// ルーター側でRequireRole(admin)を適用する。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

type createStaffRequest struct {
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	IsAuthorized      *bool  `json:"isAuthorized"`
	AuthorizedEventID string `json:"authorizedEventId"`
}

type updateStaffRequest struct {
	FullName          *string `json:"fullName"`
	Email             *string `json:"email"`
	Password          *string `json:"password"`
	IsAuthorized      *bool   `json:"isAuthorized"`
	AuthorizedEventID *string `json:"authorizedEventId"`
}

type createAdminRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateAdminRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// ListStaff はスタッフ一覧を返す。
// GET /api/admin/staff
func (h *AccountHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListStaff(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponses(list))
}

// GetStaff はスタッフ詳細を返す。
// GET /api/admin/staff/{id}
func (h *AccountHandler) GetStaff(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.GetStaff(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(st))
}

// CreateStaff はスタッフを作成する。
// POST /api/admin/staff
func (h *AccountHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.CreateStaff(r.Context(), account.StaffInput{
		FullName:          req.FullName,
		Email:             req.Email,
		Password:          req.Password,
		IsAuthorized:      req.IsAuthorized,
		AuthorizedEventID: req.AuthorizedEventID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentityResponse(st))
}

// UpdateStaff はスタッフを部分更新する。
// PATCH /api/admin/staff/{id}
func (h *AccountHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	var req updateStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.service.UpdateStaff(r.Context(), chi.URLParam(r, "id"), account.StaffPatch{
		FullName:          req.FullName,
		Email:             req.Email,
		Password:          req.Password,
		IsAuthorized:      req.IsAuthorized,
		AuthorizedEventID: req.AuthorizedEventID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(st))
}

// DeleteStaff はスタッフを削除する。
// DELETE /api/admin/staff/{id}
func (h *AccountHandler) DeleteStaff(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStaff(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAdmins は管理者一覧を返す。
// GET /api/admin/admins
func (h *AccountHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAdmins(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminResponses(list))
}

// GetAdmin は管理者詳細を返す。
// GET /api/admin/admins/{id}
func (h *AccountHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(a))
}

// CreateAdmin は管理者を作成する。
// POST /api/admin/admins
func (h *AccountHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.service.CreateAdmin(r.Context(), account.AdminInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentityResponse(a))
}

// UpdateAdmin は管理者を部分更新する。
// PATCH /api/admin/admins/{id}
func (h *AccountHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	var req updateAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.service.UpdateAdmin(r.Context(), chi.URLParam(r, "id"), account.AdminPatch{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(a))
}

// DeleteAdmin は管理者を削除する。自分自身は削除できない。
// DELETE /api/admin/admins/{id}
func (h *AccountHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAdmin(r.Context(), actor.Base().ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
