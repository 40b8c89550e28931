// Package handover はクロークの受付記録（預かり票）の作成・参照・印刷を提供する。
// スタッフの操作は割り当てられたイベントの稼働時間内に限られる。
package handover

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zebramusic/cloackroom-app-sub001/internal/event"
	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

const (
	maxPhotos    = 10
	listLimit    = 200
	maxFieldSize = 2000

	// 保存先カラムの長さ
	maxTicketCodeLength  = 64
	maxClientNameLength  = 255
	maxClientPhoneLength = 64
)

// Sanitizer は自由入力をプレーンテキストに整える。
type Sanitizer interface {
	Clean(s string) string
}

// CreateInput は受付記録作成の入力。
type CreateInput struct {
	TicketCode   string
	ClientName   string
	ClientPhone  string
	Notes        string
	PhotoURLs    []string
	SignatureURL string
	EventID      string
}

// Service は受付記録のサービス層。
type Service struct {
	handoverRepo repository.HandoverRepository
	eventRepo    repository.EventRepository
	sanitizer    Sanitizer
	metrics      metrics.MetricsCollector
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	handoverRepo repository.HandoverRepository,
	eventRepo repository.EventRepository,
	sanitizer Sanitizer,
	mc metrics.MetricsCollector,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		handoverRepo: handoverRepo,
		eventRepo:    eventRepo,
		sanitizer:    sanitizer,
		metrics:      mc,
		now:          now,
	}
}

// Create は受付記録を作成する。
// スタッフは割り当てイベントが稼働中の場合のみ作成でき、記録はそのイベントに紐づく。
func (s *Service) Create(ctx context.Context, actor model.Identity, in CreateInput) (*model.Handover, error) {
	h := &model.Handover{
		ID:           uuid.New().String(),
		TicketCode:   s.clean(in.TicketCode),
		ClientName:   s.clean(in.ClientName),
		ClientPhone:  s.clean(in.ClientPhone),
		Notes:        s.clean(in.Notes),
		SignatureURL: strings.TrimSpace(in.SignatureURL),
		StaffID:      actor.Base().ID,
		StaffName:    actor.Base().FullName,
		CreatedAt:    s.now().UnixMilli(),
	}
	for _, u := range in.PhotoURLs {
		if u = strings.TrimSpace(u); u != "" {
			h.PhotoURLs = append(h.PhotoURLs, u)
		}
	}
	if err := validate(h); err != nil {
		return nil, err
	}

	requested := strings.TrimSpace(in.EventID)
	switch a := actor.(type) {
	case *model.Staff:
		ev, err := s.authorizeStaff(ctx, a)
		if err != nil {
			return nil, err
		}
		if requested != "" && requested != ev.ID {
			return nil, model.NewForbiddenError()
		}
		h.EventID = ev.ID
	case *model.Admin:
		if requested != "" {
			ev, err := s.eventRepo.FindByID(ctx, requested)
			if err != nil {
				return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
			}
			if ev == nil {
				return nil, model.NewEventNotFoundError(requested)
			}
		}
		h.EventID = requested
	}

	if err := s.handoverRepo.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("受付記録の作成に失敗しました: %w", err)
	}

	s.metrics.RecordHandoverCreated()
	slog.Info("handover created",
		slog.String("handover_id", h.ID),
		slog.String("user_id", h.StaffID),
		slog.String("event_id", h.EventID),
	)
	return h, nil
}

// List は受付記録一覧を返す。スタッフは割り当てイベントの記録のみ参照できる。
func (s *Service) List(ctx context.Context, actor model.Identity, eventID string) ([]*model.Handover, error) {
	filter := model.HandoverFilter{EventID: strings.TrimSpace(eventID), Limit: listLimit}

	if st, ok := actor.(*model.Staff); ok {
		if st.AuthorizedEventID == "" {
			return nil, model.NewNoAuthorizedEventError()
		}
		if filter.EventID != "" && filter.EventID != st.AuthorizedEventID {
			return nil, model.NewForbiddenError()
		}
		filter.EventID = st.AuthorizedEventID
	}

	list, err := s.handoverRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("受付記録一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// Get は受付記録を返す。スタッフが割り当てイベント外の記録を参照した場合は未検出として扱う。
func (s *Service) Get(ctx context.Context, actor model.Identity, id string) (*model.Handover, error) {
	h, err := s.handoverRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("受付記録の取得に失敗しました: %w", err)
	}
	if h == nil || !visibleTo(actor, h) {
		return nil, model.NewHandoverNotFoundError(id)
	}
	return h, nil
}

// Print は印刷回数を加算する。スタッフは割り当てイベントが稼働中の場合のみ印刷できる。
func (s *Service) Print(ctx context.Context, actor model.Identity, id string) (*model.Handover, error) {
	h, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if st, ok := actor.(*model.Staff); ok {
		if _, err := s.authorizeStaff(ctx, st); err != nil {
			return nil, err
		}
	}

	printed, err := s.handoverRepo.MarkPrinted(ctx, h.ID, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("印刷記録の更新に失敗しました: %w", err)
	}
	if printed == nil {
		return nil, model.NewHandoverNotFoundError(id)
	}

	s.metrics.RecordHandoverPrinted()
	slog.Info("handover printed",
		slog.String("handover_id", printed.ID),
		slog.String("user_id", actor.Base().ID),
		slog.Int("print_count", printed.PrintCount),
	)
	return printed, nil
}

// authorizeStaff はスタッフが現在受付操作を行えるかを判定し、割り当てイベントを返す。
// 割り当てイベントが存在しない場合は拒否する。
func (s *Service) authorizeStaff(ctx context.Context, st *model.Staff) (*model.Event, error) {
	if !st.IsAuthorized {
		return nil, model.NewStaffNotAuthorizedError()
	}
	if st.AuthorizedEventID == "" {
		return nil, model.NewNoAuthorizedEventError()
	}

	ev, err := s.eventRepo.FindByID(ctx, st.AuthorizedEventID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if ev == nil {
		slog.Warn("assigned event not found",
			slog.String("user_id", st.ID),
			slog.String("event_id", st.AuthorizedEventID),
		)
		return nil, model.NewNoAuthorizedEventError()
	}
	if !event.IsActive(ev, s.now().UnixMilli()) {
		return nil, model.NewEventNotActiveError()
	}
	return ev, nil
}

func visibleTo(actor model.Identity, h *model.Handover) bool {
	switch a := actor.(type) {
	case *model.Admin:
		return true
	case *model.Staff:
		return a.AuthorizedEventID != "" && h.EventID == a.AuthorizedEventID
	default:
		return false
	}
}

func (s *Service) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.Clean(v)
}

func validate(h *model.Handover) error {
	if h.TicketCode == "" {
		return model.NewValidationError("ticketCode is required.")
	}
	if h.ClientName == "" {
		return model.NewValidationError("clientName is required.")
	}
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"ticketCode", h.TicketCode, maxTicketCodeLength},
		{"clientName", h.ClientName, maxClientNameLength},
		{"clientPhone", h.ClientPhone, maxClientPhoneLength},
		{"notes", h.Notes, maxFieldSize},
		{"signatureUrl", h.SignatureURL, maxFieldSize},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return model.NewValidationError(fmt.Sprintf("%s must be at most %d characters.", f.name, f.max))
		}
	}
	if len(h.PhotoURLs) > maxPhotos {
		return model.NewValidationError(fmt.Sprintf("at most %d photos are allowed.", maxPhotos))
	}
	for _, u := range h.PhotoURLs {
		if utf8.RuneCountInString(u) > maxFieldSize {
			return model.NewValidationError(fmt.Sprintf("photoUrls entries must be at most %d characters.", maxFieldSize))
		}
		if !isAssetURL(u) {
			return model.NewValidationError("photoUrls must be http(s) URLs.")
		}
	}
	if h.SignatureURL != "" && !isAssetURL(h.SignatureURL) {
		return model.NewValidationError("signatureUrl must be an http(s) URL.")
	}
	return nil
}

// isAssetURL は画像アセットのURLとして受け付けられる形式かを判定する。
func isAssetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}
