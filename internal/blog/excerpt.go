package blog

import (
	"strings"

	"golang.org/x/net/html"
)

// excerptMaxRunes は自動生成するexcerptの最大文字数。
const excerptMaxRunes = 150

// excerptFromHTML はHTMLコンテンツからプレーンテキストを抽出し、
// 先頭excerptMaxRunesルーンのexcerptを生成する。
// script/style内のテキストは無視し、連続する空白は1つにまとめる。
// 切り詰めが発生した場合は末尾に"..."を付与する。
func excerptFromHTML(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))

	var b strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return truncateRunes(collapseWhitespace(b.String()), excerptMaxRunes)

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if isNonContentTag(string(tn)) {
				skipDepth++
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if isNonContentTag(string(tn)) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.Write(tokenizer.Text())
			b.WriteByte(' ')

			// 必要量を大きく超えたら打ち切る
			if len(b.String()) > excerptMaxRunes*4 {
				return truncateRunes(collapseWhitespace(b.String()), excerptMaxRunes)
			}
		}
	}
}

// isNonContentTag は本文テキストとして扱わないタグかを判定する。
func isNonContentTag(tagName string) bool {
	return tagName == "script" || tagName == "style"
}

// collapseWhitespace は連続する空白文字を1つのスペースにまとめ、前後をトリムする。
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes は文字列をルーン単位でmaxに切り詰める。
// 切り詰めが発生した場合は"..."を付与する。
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
