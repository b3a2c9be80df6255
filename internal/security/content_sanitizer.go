// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer はチャットにHTMLとして送信するテキストをサニタイズする。
// 管理者が設定した文面はチャットで表示できる装飾タグのみを通過させ、
// 顧客が入力した住所や時刻などの自由記述はタグを除去してエスケープする。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はチャット送信用テキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は管理者が設定した文面をサニタイズする。
	// 許可タグ（b, strong, i, em, u, s, code, pre, a）のみを通過させる。
	// aタグのhref属性はhttpsスキームのみ許可される。
	Sanitize(rawHTML string) string

	// Escape は顧客の入力をプレーンテキストとして埋め込めるよう、
	// 全てのタグを除去して特殊文字をエスケープする。
	Escape(userText string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	markup *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// チャットのHTML表示で使える装飾タグのみ許可する
	p.AllowElements("b", "strong", "i", "em", "u", "s", "code", "pre")

	// aタグはhttpsの絶対URLのみ
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		markup: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize は管理者が設定した文面をサニタイズする。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.markup.Sanitize(rawHTML)
}

// Escape は顧客の入力から全てのタグを除去してエスケープする。
func (s *contentSanitizer) Escape(userText string) string {
	return s.strict.Sanitize(userText)
}
