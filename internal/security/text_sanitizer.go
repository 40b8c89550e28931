// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述（受付メモ、氏名など）からマークアップを除去し、
// プレーンテキストとして保存できる形に整える。
// 出力時はhtml/templateがエスケープするため、ここではタグの除去のみを担う。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxCleanPasses は実体参照の多重エンコードを剥がす回数の上限。
const maxCleanPasses = 4

// TextSanitizer は自由入力をプレーンテキストに変換する。
// bluemondayのStrictPolicyは全タグを除去し、script/styleの中身も捨てる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、実体参照を元の文字に戻して前後の空白を取り除く。
// 戻した結果に再びタグが現れなくなるまで繰り返すため、&lt;img&gt; のように
// エンコードされたマークアップも除去される。
// bluemondayのPolicyは並行利用に安全。
func (s *TextSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	for range maxCleanPasses {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	// 上限まで変化し続ける入力は山括弧を落としてタグとして解釈されないようにする
	return strings.TrimSpace(angleBrackets.Replace(text))
}

var angleBrackets = strings.NewReplacer("<", "", ">", "")
