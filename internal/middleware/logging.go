package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zebramusic/cloackroom-app-sub001/internal/metrics"
	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

var requestInfoContextKey = contextKey("request_info")

// resetPathPrefix 以降のパスセグメントは再設定トークンそのもの。
const resetPathPrefix = "/private/reset/"

// logPath はログに記録するパスを返す。再設定トークンは伏せる。
func logPath(r *http.Request) string {
	p := r.URL.Path
	if strings.HasPrefix(p, resetPathPrefix) && len(p) > len(resetPathPrefix) {
		return resetPathPrefix + ":token"
	}
	return p
}

// requestInfo は内側のミドルウェアが解決した情報をロギングミドルウェアへ戻すための入れ物。
type requestInfo struct {
	userID string
	role   model.Role
}

func annotateRequest(ctx context.Context, ident model.Identity) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = ident.Base().ID
		info.role = ident.Role()
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストごとにhttp_requestログを1件出力し、メトリクスを記録する。
// ログにはmethod、path、status、duration_ms、認証済みの場合はuser_idとroleを含む。
// mcがnilの場合はメトリクスを記録しない。
func NewLoggingMiddleware(logger *slog.Logger, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info))

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			mc.RecordHTTPStatus(rec.statusCode)
			mc.RecordRequestLatency(duration)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", logPath(r)),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}
			if info.userID != "" {
				args = append(args,
					slog.String("user_id", info.userID),
					slog.String("role", string(info.role)),
				)
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
