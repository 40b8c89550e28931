// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateEmail は同一コレクション内でメールアドレスが重複した場合にリポジトリが返す。
var ErrDuplicateEmail = errors.New("duplicate email")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, event, handover, account, system
	Action   string // ユーザー向け対処方法
	Hint     string // 任意。ログイン失敗時に別ロールでの登録を示す
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeStaffNotAuthorized = "STAFF_NOT_AUTHORIZED"
	ErrCodeNoAuthorizedEvent  = "NO_AUTHORIZED_EVENT"
	ErrCodeEventNotActive     = "EVENT_NOT_ACTIVE"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	ErrCodeInvalidEventRange  = "INVALID_EVENT_RANGE"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeStaffNotFound      = "STAFF_NOT_FOUND"
	ErrCodeAdminNotFound      = "ADMIN_NOT_FOUND"
	ErrCodeHandoverNotFound   = "HANDOVER_NOT_FOUND"
	ErrCodeCannotDeleteSelf   = "CANNOT_DELETE_SELF"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Correct the highlighted fields and try again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// hintが空でない場合、そのロールで同じメールアドレスが登録されていることを示す。
func NewInvalidCredentialsError(hint Role) *APIError {
	e := &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password.",
		Category: "auth",
		Action:   "Check your email and password.",
	}
	if hint != "" {
		e.Hint = string(hint)
		e.Action = fmt.Sprintf("This email is registered as %s. Sign in with that account type.", hint)
	}
	return e
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "You are not allowed to perform this action.",
		Category: "auth",
		Action:   "Ask an administrator for access.",
	}
}

// NewStaffNotAuthorizedError は利用が許可されていないスタッフのエラーを生成する。
func NewStaffNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeStaffNotAuthorized,
		Message:  "This staff account is not authorized.",
		Category: "auth",
		Action:   "Ask an administrator to authorize your account.",
	}
}

// NewNoAuthorizedEventError はイベント未割り当てのスタッフのエラーを生成する。
func NewNoAuthorizedEventError() *APIError {
	return &APIError{
		Code:     ErrCodeNoAuthorizedEvent,
		Message:  "No event is assigned to this staff account.",
		Category: "handover",
		Action:   "Ask an administrator to assign you to an event.",
	}
}

// NewEventNotActiveError は割り当てイベントが稼働時間外のエラーを生成する。
func NewEventNotActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeEventNotActive,
		Message:  "Your assigned event is not active right now.",
		Category: "handover",
		Action:   "Handovers can only be created or printed while the event is running.",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "An account with this email already exists.",
		Category: "account",
		Action:   "Use a different email or reset the password of the existing account.",
	}
}

// NewInvalidResetTokenError は無効・期限切れ・使用済みの再設定トークンのエラーを生成する。
func NewInvalidResetTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResetToken,
		Message:  "The reset link is invalid or has expired.",
		Category: "auth",
		Action:   "Request a new password reset link.",
	}
}

// NewInvalidEventRangeError はイベントの終了時刻が開始時刻より前の場合のエラーを生成する。
func NewInvalidEventRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEventRange,
		Message:  "endsAt must not be before startsAt.",
		Category: "validation",
		Action:   "Check the event start and end times.",
	}
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("Event not found: %s", id),
		Category: "event",
		Action:   "Check the event ID.",
	}
}

// NewStaffNotFoundError はスタッフ未検出エラーを生成する。
func NewStaffNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeStaffNotFound,
		Message:  fmt.Sprintf("Staff not found: %s", id),
		Category: "account",
		Action:   "Check the staff ID.",
	}
}

// NewAdminNotFoundError は管理者未検出エラーを生成する。
func NewAdminNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeAdminNotFound,
		Message:  fmt.Sprintf("Admin not found: %s", id),
		Category: "account",
		Action:   "Check the admin ID.",
	}
}

// NewHandoverNotFoundError は受付記録未検出エラーを生成する。
func NewHandoverNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeHandoverNotFound,
		Message:  fmt.Sprintf("Handover not found: %s", id),
		Category: "handover",
		Action:   "Check the handover ID.",
	}
}

// NewCannotDeleteSelfError は自分自身の管理者アカウント削除を拒否するエラーを生成する。
func NewCannotDeleteSelfError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotDeleteSelf,
		Message:  "You cannot delete your own admin account.",
		Category: "account",
		Action:   "Ask another administrator to remove this account.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the time given in Retry-After.",
	}
}

// NewInternalError は内部エラーの統一レスポンスを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
