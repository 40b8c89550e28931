// Package event はイベントの管理と稼働時間の判定を提供する。
package event

import "github.com/zebramusic/cloackroom-app-sub001/internal/model"

// IsActive はnowMs時点でイベントが稼働中かどうかを返す。開始・終了の両端を含む。
func IsActive(ev *model.Event, nowMs int64) bool {
	if ev == nil {
		return false
	}
	return nowMs >= ev.StartsAt && nowMs <= ev.EndsAt
}
