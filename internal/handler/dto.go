package handler

import "github.com/zebramusic/cloackroom-app-sub001/internal/model"

// identityResponse は認証主体のAPIレスポンス。パスワードダイジェストは含めない。
type identityResponse struct {
	ID                string  `json:"id"`
	FullName          string  `json:"fullName"`
	Email             string  `json:"email"`
	Type              string  `json:"type"`
	CreatedAt         int64   `json:"createdAt"`
	IsAuthorized      *bool   `json:"isAuthorized,omitempty"`
	AuthorizedEventID *string `json:"authorizedEventId,omitempty"`
}

func toIdentityResponse(ident model.Identity) identityResponse {
	base := ident.Base()
	resp := identityResponse{
		ID:        base.ID,
		FullName:  base.FullName,
		Email:     base.Email,
		Type:      string(ident.Role()),
		CreatedAt: base.CreatedAt,
	}
	if st, ok := ident.(*model.Staff); ok {
		authorized := st.IsAuthorized
		eventID := st.AuthorizedEventID
		resp.IsAuthorized = &authorized
		resp.AuthorizedEventID = &eventID
	}
	return resp
}

func toStaffResponses(list []*model.Staff) []identityResponse {
	out := make([]identityResponse, 0, len(list))
	for _, st := range list {
		out = append(out, toIdentityResponse(st))
	}
	return out
}

func toAdminResponses(list []*model.Admin) []identityResponse {
	out := make([]identityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toIdentityResponse(a))
	}
	return out
}

// eventResponse はイベントのAPIレスポンス。
type eventResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartsAt  int64  `json:"startsAt"`
	EndsAt    int64  `json:"endsAt"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt *int64 `json:"updatedAt,omitempty"`
}

func toEventResponse(ev *model.Event) eventResponse {
	return eventResponse{
		ID:        ev.ID,
		Name:      ev.Name,
		StartsAt:  ev.StartsAt,
		EndsAt:    ev.EndsAt,
		CreatedAt: ev.CreatedAt,
		UpdatedAt: ev.UpdatedAt,
	}
}

func toEventResponses(list []*model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(list))
	for _, ev := range list {
		out = append(out, toEventResponse(ev))
	}
	return out
}

// handoverResponse は受付記録のAPIレスポンス。
type handoverResponse struct {
	ID           string   `json:"id"`
	TicketCode   string   `json:"ticketCode"`
	ClientName   string   `json:"clientName"`
	ClientPhone  string   `json:"clientPhone,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	PhotoURLs    []string `json:"photoUrls"`
	SignatureURL string   `json:"signatureUrl,omitempty"`
	StaffID      string   `json:"staffId"`
	StaffName    string   `json:"staffName"`
	EventID      string   `json:"eventId,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
	PrintedAt    *int64   `json:"printedAt,omitempty"`
	PrintCount   int      `json:"printCount"`
}

func toHandoverResponse(h *model.Handover) handoverResponse {
	photos := h.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return handoverResponse{
		ID:           h.ID,
		TicketCode:   h.TicketCode,
		ClientName:   h.ClientName,
		ClientPhone:  h.ClientPhone,
		Notes:        h.Notes,
		PhotoURLs:    photos,
		SignatureURL: h.SignatureURL,
		StaffID:      h.StaffID,
		StaffName:    h.StaffName,
		EventID:      h.EventID,
		CreatedAt:    h.CreatedAt,
		PrintedAt:    h.PrintedAt,
		PrintCount:   h.PrintCount,
	}
}

func toHandoverResponses(list []*model.Handover) []handoverResponse {
	out := make([]handoverResponse, 0, len(list))
	for _, h := range list {
		out = append(out, toHandoverResponse(h))
	}
	return out
}
