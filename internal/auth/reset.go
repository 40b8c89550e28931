package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// ResetNotice はパスワード再設定リンクの通知内容。
type ResetNotice struct {
	Email     string
	FullName  string
	Role      model.Role
	Link      string
	ExpiresAt time.Time
}

// Notifier は再設定リンクを利用者に届ける。
type Notifier interface {
	SendPasswordReset(ctx context.Context, notice ResetNotice) error
}

type nopNotifier struct{}

func (nopNotifier) SendPasswordReset(context.Context, ResetNotice) error { return nil }

// RequestReset は再設定トークンを発行し通知する。
// 該当するアカウントが存在しない場合もエラーにしない。
// roleが空の場合はスタッフ、管理者の順に検索する。
func (s *Service) RequestReset(ctx context.Context, email string, role model.Role) error {
	email = NormalizeEmail(email)
	if email == "" {
		return model.NewValidationError("email is required.")
	}

	roles := []model.Role{role}
	if role == "" {
		roles = []model.Role{model.RoleStaff, model.RoleAdmin}
	}

	var ident model.Identity
	for _, r := range roles {
		found, err := s.findByEmail(ctx, r, email)
		if err != nil {
			return err
		}
		if found != nil {
			ident = found
			break
		}
	}
	if ident == nil {
		slog.Info("password reset requested for unknown email")
		return nil
	}

	base := ident.Base()
	now := s.now()
	expiresAt := now.Add(s.config.ResetTTL)
	token := &model.PasswordResetToken{
		Token:     GenerateResetToken(base.ID),
		StaffID:   base.ID,
		UserType:  ident.Role(),
		CreatedAt: now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	}
	if err := s.resetRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	s.metrics.RecordResetIssued()

	notice := ResetNotice{
		Email:     base.Email,
		FullName:  base.FullName,
		Role:      ident.Role(),
		Link:      s.ResetLink(token.Token),
		ExpiresAt: expiresAt,
	}
	if err := s.notifier.SendPasswordReset(ctx, notice); err != nil {
		slog.Error("failed to deliver password reset link",
			slog.String("user_id", base.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("password reset issued",
		slog.String("user_id", base.ID),
		slog.String("role", string(ident.Role())),
	)
	return nil
}

// ConfirmReset は再設定トークンを使用してパスワードを上書きする。
// トークンの使用済み化は1回の条件付き更新で行い、同じトークンの2回目以降は失敗する。
// 成功時は対象主体の既存セッションをすべて破棄する。
func (s *Service) ConfirmReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if !IsResetToken(token) {
		s.metrics.RecordResetRedeemed(false)
		return model.NewInvalidResetTokenError()
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	consumed, err := s.resetRepo.ConsumeIfValid(ctx, token, s.nowMs())
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if consumed == nil {
		s.metrics.RecordResetRedeemed(false)
		return model.NewInvalidResetTokenError()
	}

	switch consumed.UserType {
	case model.RoleAdmin:
		err = s.adminRepo.UpdatePasswordHash(ctx, consumed.StaffID, digest)
	default:
		err = s.staffRepo.UpdatePasswordHash(ctx, consumed.StaffID, digest)
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.RevokeSessions(ctx, consumed.StaffID, consumed.UserType); err != nil {
		slog.Warn("failed to revoke sessions after password reset",
			slog.String("user_id", consumed.StaffID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordResetRedeemed(true)
	slog.Info("password reset redeemed",
		slog.String("user_id", consumed.StaffID),
		slog.String("role", string(consumed.UserType)),
	)
	return nil
}

// ResetLink は再設定トークンから利用者向けのURLを組み立てる。
func (s *Service) ResetLink(token string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + "/private/reset/" + token
}
