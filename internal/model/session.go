package model

// Session はログインセッションを表す。
// StaffIDはロールに関わらず所有者のIDを保持する。
type Session struct {
	Token     string
	StaffID   string
	UserType  Role
	CreatedAt int64 // epoch ms
	ExpiresAt int64 // epoch ms
}

// IsValidAt はnowMs時点でセッションが有効かどうかを返す。
// expiresAtちょうどの時刻はすでに無効とする。
func (s *Session) IsValidAt(nowMs int64) bool {
	return s.ExpiresAt > nowMs
}

// PasswordResetToken はパスワード再設定トークンを表す。
type PasswordResetToken struct {
	Token     string
	StaffID   string
	UserType  Role
	CreatedAt int64
	ExpiresAt int64
	Used      bool
}

// IsRedeemableAt はnowMs時点でトークンが未使用かつ期限内かどうかを返す。
func (t *PasswordResetToken) IsRedeemableAt(nowMs int64) bool {
	return !t.Used && t.ExpiresAt > nowMs
}
