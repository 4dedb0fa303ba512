package blog

import (
	"strings"
	"testing"
)

func TestExcerptFromHTML_PlainText(t *testing.T) {
	got := excerptFromHTML("<h1>見出し</h1><p>最初の段落。</p>")
	if got != "見出し 最初の段落。" {
		t.Errorf("excerptFromHTML = %q", got)
	}
}

func TestExcerptFromHTML_CollapsesWhitespace(t *testing.T) {
	got := excerptFromHTML("<p>a\n\n   b</p>\n<p>c</p>")
	if got != "a b c" {
		t.Errorf("excerptFromHTML = %q, want %q", got, "a b c")
	}
}

func TestExcerptFromHTML_SkipsScriptAndStyle(t *testing.T) {
	got := excerptFromHTML(`<p>text</p><script>var x = 1;</script><style>p{}</style>`)
	if strings.Contains(got, "var x") || strings.Contains(got, "p{}") {
		t.Errorf("script/style content should be excluded: %q", got)
	}
	if got != "text" {
		t.Errorf("excerptFromHTML = %q, want %q", got, "text")
	}
}

func TestExcerptFromHTML_Truncates(t *testing.T) {
	long := strings.Repeat("あ", excerptMaxRunes*2)
	got := excerptFromHTML("<p>" + long + "</p>")

	runes := []rune(got)
	if len(runes) != excerptMaxRunes+3 {
		t.Errorf("excerpt length = %d runes, want %d", len(runes), excerptMaxRunes+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated excerpt should end with ellipsis: %q", got)
	}
}

func TestExcerptFromHTML_ShortContentNotTruncated(t *testing.T) {
	got := excerptFromHTML("<p>short</p>")
	if strings.HasSuffix(got, "...") {
		t.Errorf("short content should not be truncated: %q", got)
	}
}

func TestExcerptFromHTML_Empty(t *testing.T) {
	if got := excerptFromHTML(""); got != "" {
		t.Errorf("excerptFromHTML(\"\") = %q, want empty", got)
	}
}
