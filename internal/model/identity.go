// Package model はドメインモデルを定義する。
package model

// Role は認証主体の種別を表す。
type Role string

const (
	// RoleStaff はクロークで受付を行うスタッフ。
	RoleStaff Role = "staff"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列をRoleに変換する。空文字列はRoleStaffとして扱う。
func ParseRole(s string) (Role, bool) {
	switch s {
	case "", string(RoleStaff):
		return RoleStaff, true
	case string(RoleAdmin):
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Other はもう一方のロールを返す。
func (r Role) Other() Role {
	if r == RoleAdmin {
		return RoleStaff
	}
	return RoleAdmin
}

// Account はStaffとAdminに共通するアカウント情報。
// IDはアプリケーションが採番する値で、ストア内部の主キーとは別物。
type Account struct {
	ID           string
	FullName     string
	Email        string // 小文字に正規化済み
	PasswordHash string // クライアントには返さない
	CreatedAt    int64  // epoch ms
}

// Staff はスタッフアカウントを表す。
type Staff struct {
	Account
	IsAuthorized      bool
	AuthorizedEventID string // 空文字列は未割り当て
}

// Admin は管理者アカウントを表す。
type Admin struct {
	Account
}

// Identity はStaffまたはAdminのいずれかを表す直和型。
// 実装はこのパッケージ内の*Staffと*Adminに限られる。
type Identity interface {
	Role() Role
	Base() *Account
	identity()
}

// Role はRoleStaffを返す。
func (s *Staff) Role() Role { return RoleStaff }

// Base は共通アカウント情報を返す。
func (s *Staff) Base() *Account { return &s.Account }

func (s *Staff) identity() {}

// Role はRoleAdminを返す。
func (a *Admin) Role() Role { return RoleAdmin }

// Base は共通アカウント情報を返す。
func (a *Admin) Base() *Account { return &a.Account }

func (a *Admin) identity() {}

var (
	_ Identity = (*Staff)(nil)
	_ Identity = (*Admin)(nil)
)
