package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は管理者が設定した外部URL（パスワード再設定通知のWebhookなど）へ
// 送信する際のSSRF対策を提供する。
type OutboundGuard struct {
	ports []int
}

var webhookSchemes = []string{"http", "https"}

// deniedPrefixes は送信先として拒否するアドレス範囲。
// ホスト名で指定された送信先は、safeurlがDNS解決後のIPで同じ検証を行う。
var deniedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータを含む
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// NewOutboundGuard はOutboundGuardを生成する。portsが空の場合は80と443のみ許可する。
func NewOutboundGuard(ports ...int) *OutboundGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &OutboundGuard{ports: ports}
}

// NewClient はSSRF防止付きのHTTPクライアントを生成する。
// 接続時にDialerのControlフックで解決後のIPを検証するため、DNS再バインディングも防げる。
func (g *OutboundGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(webhookSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は送信先URLを設定読み込み時に静的に検証する。
func (g *OutboundGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(webhookSchemes, scheme) {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if port := parsed.Port(); port != "" && !g.portAllowed(port) {
		return fmt.Errorf("disallowed port: %s", port)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isDeniedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}

	lower := strings.ToLower(strings.TrimSuffix(host, "."))
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func (g *OutboundGuard) portAllowed(port string) bool {
	for _, p := range g.ports {
		if fmt.Sprint(p) == port {
			return true
		}
	}
	return false
}

func isDeniedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range deniedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
