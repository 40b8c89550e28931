package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

// maxNameLength はイベント名の最大文字数。
const maxNameLength = 255

// Sanitizer はイベント名をプレーンテキストに整える。
type Sanitizer interface {
	Clean(s string) string
}

// CreateInput はイベント作成の入力。
type CreateInput struct {
	Name     string
	StartsAt int64
	EndsAt   int64
}

// UpdateInput はイベント更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name     *string
	StartsAt *int64
	EndsAt   *int64
}

// Service はイベント管理のサービス層。
type Service struct {
	repo      repository.EventRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。nowがnilの場合はtime.Nowを使う。
func NewService(repo repository.EventRepository, sanitizer Sanitizer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, sanitizer: sanitizer, now: now}
}

// List は開始時刻の降順でイベント一覧を返す。
func (s *Service) List(ctx context.Context) ([]*model.Event, error) {
	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	return events, nil
}

// Active は現在稼働中のイベントを返す。
func (s *Service) Active(ctx context.Context) ([]*model.Event, error) {
	events, err := s.repo.ListActiveAt(ctx, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("稼働中イベントの取得に失敗しました: %w", err)
	}
	return events, nil
}

// Get は指定IDのイベントを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if ev == nil {
		return nil, model.NewEventNotFoundError(id)
	}
	return ev, nil
}

// Create はイベントを作成する。検証に失敗した場合は何も保存しない。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Event, error) {
	ev := &model.Event{
		ID:        uuid.New().String(),
		Name:      s.clean(in.Name),
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := validate(ev); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}

	slog.Info("event created", slog.String("event_id", ev.ID), slog.String("name", ev.Name))
	return ev, nil
}

// Update はイベントを部分更新する。updatedAtを現在時刻に設定する。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		ev.Name = s.clean(*in.Name)
	}
	if in.StartsAt != nil {
		ev.StartsAt = *in.StartsAt
	}
	if in.EndsAt != nil {
		ev.EndsAt = *in.EndsAt
	}
	if err := validate(ev); err != nil {
		return nil, err
	}

	now := s.now().UnixMilli()
	ev.UpdatedAt = &now

	if err := s.repo.Update(ctx, ev); err != nil {
		return nil, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}

	slog.Info("event updated", slog.String("event_id", ev.ID))
	return ev, nil
}

// Delete はイベントを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewEventNotFoundError(id)
	}
	slog.Info("event deleted", slog.String("event_id", id))
	return nil
}

func (s *Service) clean(name string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(name)
	}
	return s.sanitizer.Clean(name)
}

func validate(ev *model.Event) error {
	if ev.Name == "" {
		return model.NewValidationError("name is required.")
	}
	if utf8.RuneCountInString(ev.Name) > maxNameLength {
		return model.NewValidationError(fmt.Sprintf("name must be at most %d characters.", maxNameLength))
	}
	if ev.StartsAt <= 0 || ev.EndsAt <= 0 {
		return model.NewValidationError("startsAt and endsAt must be positive epoch milliseconds.")
	}
	if ev.EndsAt < ev.StartsAt {
		return model.NewInvalidEventRangeError()
	}
	return nil
}
