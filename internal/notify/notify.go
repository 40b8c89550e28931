// Package notify はパスワード再設定リンクを利用者に届ける通知手段を提供する。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/zebramusic/cloackroom-app-sub001/internal/auth"
)

// maxErrorBody はWebhookのエラー応答から読み取る最大バイト数。
const maxErrorBody = 1 << 10

// resetPayload はWebhookへ送信するJSON本文。
type resetPayload struct {
	Type      string `json:"type"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	Link      string `json:"link"`
	ExpiresAt int64  `json:"expiresAt"`
}

// WebhookNotifier は再設定リンクをJSONで外部エンドポイントにPOSTする。
// メール送信サービスなどの前段に置くことを想定する。
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier はWebhookNotifierを生成する。
// clientには通常security.OutboundGuardが生成したクライアントを渡す。
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client}
}

// SendPasswordReset は再設定通知を送信する。2xx以外の応答はエラーとする。
func (n *WebhookNotifier) SendPasswordReset(ctx context.Context, notice auth.ResetNotice) error {
	body, err := json.Marshal(resetPayload{
		Type:      "password_reset",
		Email:     notice.Email,
		FullName:  notice.FullName,
		Role:      string(notice.Role),
		Link:      notice.Link,
		ExpiresAt: notice.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("通知本文の生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("通知リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("通知の送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogNotifier は送信先が設定されていない場合に発行をログへ記録する。
// showLinkがtrueの場合のみリンク自体をDEBUGで出力する（ローカル開発用）。
type LogNotifier struct {
	logger   *slog.Logger
	showLink bool
}

// NewLogNotifier はLogNotifierを生成する。loggerがnilの場合はslog.Default()を使う。
func NewLogNotifier(logger *slog.Logger, showLink bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, showLink: showLink}
}

// SendPasswordReset は発行の事実をログに記録する。
func (n *LogNotifier) SendPasswordReset(ctx context.Context, notice auth.ResetNotice) error {
	n.logger.InfoContext(ctx, "password reset link issued",
		slog.String("role", string(notice.Role)),
		slog.Time("expires_at", notice.ExpiresAt),
	)
	if n.showLink {
		n.logger.DebugContext(ctx, "password reset link",
			slog.String("email", notice.Email),
			slog.String("link", notice.Link),
		)
	}
	return nil
}

var (
	_ auth.Notifier = (*WebhookNotifier)(nil)
	_ auth.Notifier = (*LogNotifier)(nil)
)
