// Package account は管理者によるスタッフ・管理者アカウントの管理を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zebramusic/cloackroom-app-sub001/internal/auth"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

// Sanitizer は氏名をプレーンテキストに整える。
type Sanitizer interface {
	Clean(s string) string
}

// StaffInput はスタッフ作成の入力。
type StaffInput struct {
	FullName          string
	Email             string
	Password          string
	IsAuthorized      *bool // nilの場合はtrue
	AuthorizedEventID string
}

// StaffPatch はスタッフ更新の入力。nilのフィールドは変更しない。
// AuthorizedEventIDに空文字列を指定すると割り当てを解除する。
type StaffPatch struct {
	FullName          *string
	Email             *string
	Password          *string
	IsAuthorized      *bool
	AuthorizedEventID *string
}

// AdminInput は管理者作成の入力。
type AdminInput struct {
	FullName string
	Email    string
	Password string
}

// AdminPatch は管理者更新の入力。
type AdminPatch struct {
	FullName *string
	Email    *string
	Password *string
}

// Service はアカウント管理のサービス層。
type Service struct {
	staffRepo   repository.StaffRepository
	adminRepo   repository.AdminRepository
	sessionRepo repository.SessionRepository
	eventRepo   repository.EventRepository
	hasher      *auth.Hasher
	sanitizer   Sanitizer
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repos *repository.Repositories, hasher *auth.Hasher, sanitizer Sanitizer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		staffRepo:   repos.Staff,
		adminRepo:   repos.Admins,
		sessionRepo: repos.Sessions,
		eventRepo:   repos.Events,
		hasher:      hasher,
		sanitizer:   sanitizer,
		now:         now,
	}
}

// --- staff ---

// ListStaff はスタッフ一覧を返す。
func (s *Service) ListStaff(ctx context.Context) ([]*model.Staff, error) {
	list, err := s.staffRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("スタッフ一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// GetStaff は指定IDのスタッフを返す。
func (s *Service) GetStaff(ctx context.Context, id string) (*model.Staff, error) {
	st, err := s.staffRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("スタッフの取得に失敗しました: %w", err)
	}
	if st == nil {
		return nil, model.NewStaffNotFoundError(id)
	}
	return st, nil
}

// CreateStaff はスタッフを作成する。
func (s *Service) CreateStaff(ctx context.Context, in StaffInput) (*model.Staff, error) {
	acct, err := s.newAccount(in.FullName, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	eventID := strings.TrimSpace(in.AuthorizedEventID)
	if err := s.ensureEventExists(ctx, eventID); err != nil {
		return nil, err
	}

	st := &model.Staff{
		Account:           *acct,
		IsAuthorized:      in.IsAuthorized == nil || *in.IsAuthorized,
		AuthorizedEventID: eventID,
	}
	if err := s.staffRepo.Create(ctx, st); err != nil {
		return nil, translateCreateError(err, "スタッフ")
	}

	slog.Info("staff created", slog.String("user_id", st.ID), slog.Bool("authorized", st.IsAuthorized))
	return st, nil
}

// UpdateStaff はスタッフを部分更新する。
// パスワード変更または利用許可の取り消し時は既存セッションを破棄する。
func (s *Service) UpdateStaff(ctx context.Context, id string, patch StaffPatch) (*model.Staff, error) {
	st, err := s.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.applyAccountPatch(&st.Account, patch.FullName, patch.Email); err != nil {
		return nil, err
	}
	revoke := false
	if patch.IsAuthorized != nil {
		if st.IsAuthorized && !*patch.IsAuthorized {
			revoke = true
		}
		st.IsAuthorized = *patch.IsAuthorized
	}
	if patch.AuthorizedEventID != nil {
		eventID := strings.TrimSpace(*patch.AuthorizedEventID)
		if err := s.ensureEventExists(ctx, eventID); err != nil {
			return nil, err
		}
		st.AuthorizedEventID = eventID
	}

	digest, err := s.hashPatchPassword(patch.Password)
	if err != nil {
		return nil, err
	}

	if err := s.staffRepo.Update(ctx, st); err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("スタッフの更新に失敗しました: %w", err)
	}
	if digest != "" {
		if err := s.staffRepo.UpdatePasswordHash(ctx, st.ID, digest); err != nil {
			return nil, fmt.Errorf("スタッフのパスワード更新に失敗しました: %w", err)
		}
		st.PasswordHash = digest
		revoke = true
	}
	if revoke {
		s.revokeSessions(ctx, st.ID, model.RoleStaff)
	}

	slog.Info("staff updated", slog.String("user_id", st.ID))
	return st, nil
}

// DeleteStaff はスタッフを削除し、そのセッションを破棄する。
func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	ok, err := s.staffRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("スタッフの削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewStaffNotFoundError(id)
	}
	s.revokeSessions(ctx, id, model.RoleStaff)
	slog.Info("staff deleted", slog.String("user_id", id))
	return nil
}

// --- admins ---

// ListAdmins は管理者一覧を返す。
func (s *Service) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	list, err := s.adminRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("管理者一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// GetAdmin は指定IDの管理者を返す。
func (s *Service) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	a, err := s.adminRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("管理者の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAdminNotFoundError(id)
	}
	return a, nil
}

// CreateAdmin は管理者を作成する。
func (s *Service) CreateAdmin(ctx context.Context, in AdminInput) (*model.Admin, error) {
	acct, err := s.newAccount(in.FullName, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	a := &model.Admin{Account: *acct}
	if err := s.adminRepo.Create(ctx, a); err != nil {
		return nil, translateCreateError(err, "管理者")
	}

	slog.Info("admin created", slog.String("user_id", a.ID))
	return a, nil
}

// UpdateAdmin は管理者を部分更新する。
func (s *Service) UpdateAdmin(ctx context.Context, id string, patch AdminPatch) (*model.Admin, error) {
	a, err := s.GetAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyAccountPatch(&a.Account, patch.FullName, patch.Email); err != nil {
		return nil, err
	}
	digest, err := s.hashPatchPassword(patch.Password)
	if err != nil {
		return nil, err
	}

	if err := s.adminRepo.Update(ctx, a); err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("管理者の更新に失敗しました: %w", err)
	}
	if digest != "" {
		if err := s.adminRepo.UpdatePasswordHash(ctx, a.ID, digest); err != nil {
			return nil, fmt.Errorf("管理者のパスワード更新に失敗しました: %w", err)
		}
		a.PasswordHash = digest
		s.revokeSessions(ctx, a.ID, model.RoleAdmin)
	}

	slog.Info("admin updated", slog.String("user_id", a.ID))
	return a, nil
}

// DeleteAdmin は管理者を削除する。自分自身は削除できない。
func (s *Service) DeleteAdmin(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return model.NewCannotDeleteSelfError()
	}
	ok, err := s.adminRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("管理者の削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewAdminNotFoundError(id)
	}
	s.revokeSessions(ctx, id, model.RoleAdmin)
	slog.Info("admin deleted", slog.String("user_id", id), slog.String("deleted_by", actorID))
	return nil
}

// --- helpers ---

func (s *Service) newAccount(fullName, email, password string) (*model.Account, error) {
	name := s.clean(fullName)
	if err := auth.ValidateFullName(name); err != nil {
		return nil, err
	}
	email = auth.NormalizeEmail(email)
	if err := auth.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	return &model.Account{
		ID:           uuid.New().String(),
		FullName:     name,
		Email:        email,
		PasswordHash: digest,
		CreatedAt:    s.now().UnixMilli(),
	}, nil
}

func (s *Service) applyAccountPatch(acct *model.Account, fullName, email *string) error {
	if fullName != nil {
		name := s.clean(*fullName)
		if err := auth.ValidateFullName(name); err != nil {
			return err
		}
		acct.FullName = name
	}
	if email != nil {
		normalized := auth.NormalizeEmail(*email)
		if err := auth.ValidateEmail(normalized); err != nil {
			return err
		}
		acct.Email = normalized
	}
	return nil
}

// hashPatchPassword は変更用パスワードを検証してダイジェストを返す。未指定なら空文字列。
func (s *Service) hashPatchPassword(password *string) (string, error) {
	if password == nil {
		return "", nil
	}
	if err := auth.ValidatePassword(*password); err != nil {
		return "", err
	}
	digest, err := s.hasher.Hash(*password)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}
	return digest, nil
}

func (s *Service) ensureEventExists(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	ev, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if ev == nil {
		return model.NewEventNotFoundError(eventID)
	}
	return nil
}

func (s *Service) revokeSessions(ctx context.Context, ownerID string, role model.Role) {
	if err := s.sessionRepo.DeleteByOwner(ctx, ownerID, role); err != nil {
		slog.Warn("failed to revoke sessions",
			slog.String("user_id", ownerID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.Clean(v)
}

func translateCreateError(err error, kind string) error {
	if errors.Is(err, model.ErrDuplicateEmail) {
		return model.NewDuplicateEmailError()
	}
	return fmt.Errorf("%sの作成に失敗しました: %w", kind, err)
}
