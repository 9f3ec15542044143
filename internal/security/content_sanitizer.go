// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はコンテンツ本文（AI生成の投稿文、電子書籍の章、
// ブログフィードからインポートした記事）を保存前にサニタイズする。
// SSRFGuard はプロジェクトに登録されたURLへのアクセスを公開ネットワークに限定する。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/postflow/internal/model"
)

// ContentSanitizer はコンテンツ本文のサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// Sanitize は電子書籍の章向けにHTMLをサニタイズする。
	// 許可タグ: h2, h3, h4, p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
	// imgのsrcはhttpsのみ。aにはtarget="_blank"とrel="noopener noreferrer"を付与する。
	Sanitize(rawHTML string) string

	// PlainText はSNS投稿向けに全タグを除去したテキストを返す。
	PlainText(rawHTML string) string

	// ForKind はコンテンツ種別に応じたサニタイズを行う。
	ForKind(kind model.ContentKind, raw string) string
}

// contentSanitizer はContentSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type contentSanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, styleは許可リストにないため除去される。on*属性も同様
	p.AllowElements(
		"h2", "h3", "h4",
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		rich:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は電子書籍の章向けにHTMLをサニタイズする。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// PlainText はSNS投稿向けに全タグを除去したテキストを返す。
// 結果はHTMLエスケープされた状態で、前後の空白は取り除く。
func (s *contentSanitizer) PlainText(rawHTML string) string {
	return strings.TrimSpace(s.strict.Sanitize(rawHTML))
}

// ForKind はコンテンツ種別に応じたサニタイズを行う。
// 電子書籍はリッチHTML、投稿はプレーンテキストとして扱う。
func (s *contentSanitizer) ForKind(kind model.ContentKind, raw string) string {
	if kind == model.ContentKindEbook {
		return s.Sanitize(raw)
	}
	return s.PlainText(raw)
}
