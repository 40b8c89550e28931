package auth

import (
	"strings"

	"github.com/segmentio/ksuid"
)

const resetTokenPrefix = "rst."

// GenerateToken は所有者IDとKSUIDを連結したトークンを生成する。
// KSUIDは秒精度のタイムスタンプと128bitの暗号論的乱数からなる。
func GenerateToken(ownerID string) string {
	return ownerID + "." + ksuid.New().String()
}

// GenerateResetToken はパスワード再設定用のトークンを生成する。
func GenerateResetToken(ownerID string) string {
	return resetTokenPrefix + GenerateToken(ownerID)
}

// IsResetToken はtokenが再設定トークンの形式かどうかを返す。
func IsResetToken(token string) bool {
	return strings.HasPrefix(token, resetTokenPrefix) && len(token) > len(resetTokenPrefix)
}
