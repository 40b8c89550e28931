// Package repository はデータ永続化のインターフェースを定義する。
// PostgreSQL実装とインメモリ実装の2系統を提供し、起動時にどちらかを注入する。
package repository

import (
	"context"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// StaffRepository はスタッフアカウントの永続化インターフェース。
type StaffRepository interface {
	// FindByID は指定IDのスタッフを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Staff, error)
	// FindByEmail は正規化済みメールアドレスでスタッフを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Staff, error)
	// List は作成日時の降順でスタッフ一覧を返す。
	List(ctx context.Context) ([]*model.Staff, error)
	// Create はスタッフを作成する。メールアドレスが重複する場合はmodel.ErrDuplicateEmailを返す。
	Create(ctx context.Context, staff *model.Staff) error
	// Update はパスワード以外のフィールドを更新する。
	// メールアドレスが重複する場合はmodel.ErrDuplicateEmailを返す。
	Update(ctx context.Context, staff *model.Staff) error
	// UpdatePasswordHash はパスワードダイジェストのみを上書きする。
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// Delete は指定IDのスタッフを削除する。存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// AdminRepository は管理者アカウントの永続化インターフェース。
type AdminRepository interface {
	FindByID(ctx context.Context, id string) (*model.Admin, error)
	FindByEmail(ctx context.Context, email string) (*model.Admin, error)
	List(ctx context.Context) ([]*model.Admin, error)
	Create(ctx context.Context, admin *model.Admin) error
	Update(ctx context.Context, admin *model.Admin) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Upsert はトークンをキーにセッションを作成または上書きする。
	Upsert(ctx context.Context, session *model.Session) error
	// FindByToken は指定トークンのセッションを取得する。
	// 期限切れかどうかは判定せず、レコードがあればそのまま返す。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	// DeleteByToken は指定トークンのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByToken(ctx context.Context, token string) error
	// DeleteByOwner は指定主体の全セッションを削除する。
	DeleteByOwner(ctx context.Context, ownerID string, role model.Role) error
	// DeleteExpired はexpiresAt <= nowMsのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, nowMs int64) (int64, error)
}

// PasswordResetRepository はパスワード再設定トークンの永続化インターフェース。
type PasswordResetRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.PasswordResetToken) error
	// FindByToken はトークンを取得する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	// ConsumeIfValid は未使用かつ期限内のトークンを原子的に使用済みにする。
	// 条件を満たさない場合はnilを返す。二重使用を防ぐ唯一の経路。
	ConsumeIfValid(ctx context.Context, token string, nowMs int64) (*model.PasswordResetToken, error)
	// DeleteStale は使用済みまたは期限切れのトークンを削除し、削除件数を返す。
	DeleteStale(ctx context.Context, nowMs int64) (int64, error)
}

// EventRepository はイベントの永続化インターフェース。
type EventRepository interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
	// List は開始時刻の降順でイベント一覧を返す。
	List(ctx context.Context) ([]*model.Event, error)
	// ListActiveAt はstartsAt <= nowMs <= endsAtのイベントを返す。
	ListActiveAt(ctx context.Context, nowMs int64) ([]*model.Event, error)
	Create(ctx context.Context, event *model.Event) error
	Update(ctx context.Context, event *model.Event) error
	// Delete は指定IDのイベントを削除する。存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// HandoverRepository は受付記録の永続化インターフェース。
type HandoverRepository interface {
	FindByID(ctx context.Context, id string) (*model.Handover, error)
	// List は作成日時の降順で受付記録を返す。空のフィルタ項目は条件に含めない。
	List(ctx context.Context, filter model.HandoverFilter) ([]*model.Handover, error)
	Create(ctx context.Context, handover *model.Handover) error
	// MarkPrinted は印刷回数を1増やしprintedAtを更新した結果を返す。見つからない場合はnilを返す。
	MarkPrinted(ctx context.Context, id string, atMs int64) (*model.Handover, error)
}

// Repositories はアプリケーションが利用する全リポジトリの束。
type Repositories struct {
	Staff          StaffRepository
	Admins         AdminRepository
	Sessions       SessionRepository
	PasswordResets PasswordResetRepository
	Events         EventRepository
	Handovers      HandoverRepository
}
