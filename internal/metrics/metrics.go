// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果ラベル
const (
	LoginSuccess       = "success"
	LoginInvalid       = "invalid"
	LoginNotAuthorized = "not_authorized"
)

// Role Gateの判定ラベル
const (
	GateAllow    = "allow"
	GateRedirect = "redirect"
	GateRewrite  = "rewrite"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(role, result string)
	RecordLogout()
	RecordResetIssued()
	RecordResetRedeemed(ok bool)
	RecordHandoverCreated()
	RecordHandoverPrinted()
	RecordGateDecision(decision string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCleanup(kind string, removed int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	logouts         prometheus.Counter
	resetsIssued    prometheus.Counter
	resetsRedeemed  *prometheus.CounterVec
	handovers       prometheus.Counter
	handoverPrints  prometheus.Counter
	gateDecisions   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	cleanupRemovals *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloakroom_logins_total",
			Help: "ロール・結果別のログイン試行数",
		}, []string{"role", "result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloakroom_logouts_total",
			Help: "ログアウトの合計数",
		}),
		resetsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloakroom_password_resets_issued_total",
			Help: "発行したパスワード再設定トークンの合計数",
		}),
		resetsRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloakroom_password_resets_redeemed_total",
			Help: "パスワード再設定トークンの使用試行数",
		}, []string{"result"}),
		handovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloakroom_handovers_created_total",
			Help: "作成された受付記録の合計数",
		}),
		handoverPrints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloakroom_handover_prints_total",
			Help: "受付記録の印刷回数の合計",
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloakroom_role_gate_decisions_total",
			Help: "Role Gateの判定別リクエスト数",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloakroom_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cloakroom_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cloakroom_cleanup_removed_total",
			Help: "クリーンアップで削除したレコード数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.logins,
		c.logouts,
		c.resetsIssued,
		c.resetsRedeemed,
		c.handovers,
		c.handoverPrints,
		c.gateDecisions,
		c.httpStatus,
		c.requestLatency,
		c.cleanupRemovals,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(role, result string) {
	c.logins.WithLabelValues(role, result).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordResetIssued は再設定トークンの発行を記録する。
func (c *Collector) RecordResetIssued() {
	c.resetsIssued.Inc()
}

// RecordResetRedeemed は再設定トークンの使用結果を記録する。
func (c *Collector) RecordResetRedeemed(ok bool) {
	result := "rejected"
	if ok {
		result = "redeemed"
	}
	c.resetsRedeemed.WithLabelValues(result).Inc()
}

// RecordHandoverCreated は受付記録の作成を記録する。
func (c *Collector) RecordHandoverCreated() {
	c.handovers.Inc()
}

// RecordHandoverPrinted は受付記録の印刷を記録する。
func (c *Collector) RecordHandoverPrinted() {
	c.handoverPrints.Inc()
}

// RecordGateDecision はRole Gateの判定を記録する。
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCleanup はクリーンアップでの削除件数を記録する。
func (c *Collector) RecordCleanup(kind string, removed int64) {
	c.cleanupRemovals.WithLabelValues(kind).Add(float64(removed))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string, string) {}
func (Nop) RecordLogout() {}
func (Nop) RecordResetIssued() {}
func (Nop) RecordResetRedeemed(bool) {}
func (Nop) RecordHandoverCreated() {}
func (Nop) RecordHandoverPrinted() {}
func (Nop) RecordGateDecision(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}
func (Nop) RecordCleanup(string, int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
