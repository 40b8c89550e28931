// Package auth はパスワード認証、セッション管理、パスワード再設定を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
	"github.com/zebramusic/cloackroom-app-sub001/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// 氏名とメールアドレスの最大文字数。保存先カラムの長さに合わせる。
const (
	MaxNameLength  = 255
	MaxEmailLength = 255
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionTTL  time.Duration // 既定のセッション有効期間
	RememberTTL time.Duration // remember指定時のセッション有効期間
	ResetTTL    time.Duration // 再設定トークンの有効期間
	BaseURL     string        // 再設定リンクの生成に使う
}

// Sanitizer は表示名などの自由入力をプレーンテキストに整える。
type Sanitizer interface {
	Clean(s string) string
}

type trimSanitizer struct{}

func (trimSanitizer) Clean(s string) string { return strings.TrimSpace(s) }

// Deps は認証サービスの依存関係。
type Deps struct {
	Repos     *repository.Repositories
	Hasher    *Hasher
	Notifier  Notifier
	Sanitizer Sanitizer
	Metrics   metrics.MetricsCollector
	// Now は現在時刻を返す。nilの場合はtime.Now。
	Now func() time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	staffRepo   repository.StaffRepository
	adminRepo   repository.AdminRepository
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	hasher      *Hasher
	notifier    Notifier
	sanitizer   Sanitizer
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps Deps, config ServiceConfig) *Service {
	s := &Service{
		staffRepo:   deps.Repos.Staff,
		adminRepo:   deps.Repos.Admins,
		sessionRepo: deps.Repos.Sessions,
		resetRepo:   deps.Repos.PasswordResets,
		hasher:      deps.Hasher,
		notifier:    deps.Notifier,
		sanitizer:   deps.Sanitizer,
		metrics:     deps.Metrics,
		config:      config,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.sanitizer == nil {
		s.sanitizer = trimSanitizer{}
	}
	return s
}

// LoginInput はログイン要求。
type LoginInput struct {
	Email    string
	Password string
	Remember bool
	Role     model.Role
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Identity model.Identity
	Session  *model.Session
	TTL      time.Duration
}

// Login は資格情報を検証し、セッションを発行する。
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewValidationError("email and password are required.")
	}
	role := in.Role
	if role == "" {
		role = model.RoleStaff
	}

	ident, err := s.findByEmail(ctx, role, email)
	if err != nil {
		return nil, err
	}

	if ident == nil {
		// 別ロールで登録されている場合はその旨をヒントとして返す
		other, err := s.findByEmail(ctx, role.Other(), email)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordLogin(string(role), metrics.LoginInvalid)
		if other != nil {
			return nil, model.NewInvalidCredentialsError(role.Other())
		}
		return nil, model.NewInvalidCredentialsError("")
	}

	base := ident.Base()
	if !s.hasher.Verify(in.Password, base.PasswordHash) {
		s.metrics.RecordLogin(string(role), metrics.LoginInvalid)
		slog.Info("login rejected",
			slog.String("user_id", base.ID),
			slog.String("role", string(role)),
		)
		return nil, model.NewInvalidCredentialsError("")
	}

	if staff, ok := ident.(*model.Staff); ok && !staff.IsAuthorized {
		s.metrics.RecordLogin(string(role), metrics.LoginNotAuthorized)
		return nil, model.NewStaffNotAuthorizedError()
	}

	if s.hasher.NeedsRehash(base.PasswordHash) {
		s.upgradeDigest(ctx, ident, in.Password)
	}

	ttl := s.config.SessionTTL
	if in.Remember {
		ttl = s.config.RememberTTL
	}

	session, err := s.createSession(ctx, base.ID, role, ttl)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLogin(string(role), metrics.LoginSuccess)
	slog.Info("user logged in",
		slog.String("user_id", base.ID),
		slog.String("role", string(role)),
		slog.Bool("remember", in.Remember),
	)

	return &LoginResult{Identity: ident, Session: session, TTL: ttl}, nil
}

// upgradeDigest は旧方式のダイジェストを現在の方式で置き換える。
// 失敗してもログインは継続する。
func (s *Service) upgradeDigest(ctx context.Context, ident model.Identity, plain string) {
	base := ident.Base()
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		slog.Warn("failed to rehash password", slog.String("user_id", base.ID), slog.String("error", err.Error()))
		return
	}

	switch ident.(type) {
	case *model.Staff:
		err = s.staffRepo.UpdatePasswordHash(ctx, base.ID, digest)
	case *model.Admin:
		err = s.adminRepo.UpdatePasswordHash(ctx, base.ID, digest)
	}
	if err != nil {
		slog.Warn("failed to store rehashed password", slog.String("user_id", base.ID), slog.String("error", err.Error()))
		return
	}
	base.PasswordHash = digest
	slog.Info("password digest upgraded", slog.String("user_id", base.ID), slog.String("role", string(ident.Role())))
}

// Logout はセッションを破棄する。存在しないトークンでもエラーにしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.metrics.RecordLogout()
	slog.Info("user logged out")
	return nil
}

// Resolve はセッショントークンから現在の主体を取得する。
// トークンが空・未登録・期限切れの場合、主体が削除済みの場合、
// スタッフの利用許可が取り消された場合はnilを返す。
func (s *Service) Resolve(ctx context.Context, token string) (model.Identity, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || !session.IsValidAt(s.nowMs()) {
		return nil, nil
	}

	ident, err := s.findByID(ctx, session.UserType, session.StaffID)
	if err != nil || ident == nil {
		return nil, err
	}
	if staff, ok := ident.(*model.Staff); ok && !staff.IsAuthorized {
		return nil, nil
	}
	return ident, nil
}

// RegisterInput はスタッフの自己登録要求。
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// RegisterStaff はスタッフアカウントを作成する。自己登録されたスタッフは利用許可済みとなる。
func (s *Service) RegisterStaff(ctx context.Context, in RegisterInput) (*model.Staff, error) {
	name := s.sanitizer.Clean(in.FullName)
	email := NormalizeEmail(in.Email)
	if err := ValidateFullName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := &model.Staff{
		Account: model.Account{
			ID:           uuid.New().String(),
			FullName:     name,
			Email:        email,
			PasswordHash: digest,
			CreatedAt:    s.nowMs(),
		},
		IsAuthorized: true,
	}

	if err := s.staffRepo.Create(ctx, staff); err != nil {
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}

	slog.Info("staff registered", slog.String("user_id", staff.ID))
	return staff, nil
}

// RevokeSessions は主体の全セッションを破棄する。
func (s *Service) RevokeSessions(ctx context.Context, ownerID string, role model.Role) error {
	if err := s.sessionRepo.DeleteByOwner(ctx, ownerID, role); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, ownerID string, role model.Role, ttl time.Duration) (*model.Session, error) {
	now := s.nowMs()
	session := &model.Session{
		Token:     GenerateToken(ownerID),
		StaffID:   ownerID,
		UserType:  role,
		CreatedAt: now,
		ExpiresAt: now + ttl.Milliseconds(),
	}

	if err := s.sessionRepo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

func (s *Service) findByEmail(ctx context.Context, role model.Role, email string) (model.Identity, error) {
	switch role {
	case model.RoleAdmin:
		a, err := s.adminRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find admin: %w", err)
		}
		if a == nil {
			return nil, nil
		}
		return a, nil
	default:
		st, err := s.staffRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find staff: %w", err)
		}
		if st == nil {
			return nil, nil
		}
		return st, nil
	}
}

func (s *Service) findByID(ctx context.Context, role model.Role, id string) (model.Identity, error) {
	switch role {
	case model.RoleAdmin:
		a, err := s.adminRepo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find admin: %w", err)
		}
		if a == nil {
			return nil, nil
		}
		return a, nil
	case model.RoleStaff:
		st, err := s.staffRepo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find staff: %w", err)
		}
		if st == nil {
			return nil, nil
		}
		return st, nil
	default:
		return nil, nil
	}
}

func (s *Service) nowMs() int64 {
	return s.now().UnixMilli()
}

// NormalizeEmail は前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail は正規化済みメールアドレスの形式を検証する。
func ValidateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("email is required.")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return model.NewValidationError(fmt.Sprintf("email must be at most %d characters.", MaxEmailLength))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("email is not a valid address.")
	}
	return nil
}

// ValidateFullName は整形済みの氏名を検証する。
func ValidateFullName(name string) error {
	if name == "" {
		return model.NewValidationError("fullName is required.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return model.NewValidationError(fmt.Sprintf("fullName must be at most %d characters.", MaxNameLength))
	}
	return nil
}

// ValidatePassword はパスワードの最小要件を検証する。
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return model.NewValidationError(fmt.Sprintf("password must be at least %d characters.", MinPasswordLength))
	}
	return nil
}
