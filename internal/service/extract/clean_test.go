// Package extract 文本归一化单元测试
package extract

import (
	"strings"
	"testing"
)

// ========== CleanText 测试 ==========

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	got := CleanText("hello   world\n\n\tfoo")

	if got != "hello world foo" {
		t.Errorf("CleanText() = %q, want 'hello world foo'", got)
	}
}

func TestCleanText_CamelCaseBoundary(t *testing.T) {
	// PDF 版面常见的词粘连
	got := CleanText("revenueGrowth")

	if got != "revenue Growth" {
		t.Errorf("CleanText() = %q, want 'revenue Growth'", got)
	}
}

func TestCleanText_WordDigitBoundary(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"page12", "page 12"},
		{"12pages", "12 pages"},
		{"Q3report2024", "Q 3 report 2024"},
	}
	for _, c := range cases {
		if got := CleanText(c.in); got != c.want {
			t.Errorf("CleanText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanText_StripsNonPrintable(t *testing.T) {
	got := CleanText("hello\x00\x01world")

	if strings.ContainsRune(got, 0) {
		t.Errorf("CleanText() kept NUL byte: %q", got)
	}
	if got != "hello world" {
		t.Errorf("CleanText() = %q, want 'hello world'", got)
	}
}

func TestCleanText_KeepsUnicode(t *testing.T) {
	got := CleanText("财务报告 2024")

	if !strings.Contains(got, "财务报告") {
		t.Errorf("CleanText() dropped unicode text: %q", got)
	}
}

func TestCleanText_Empty(t *testing.T) {
	if got := CleanText(""); got != "" {
		t.Errorf("CleanText(\"\") = %q, want empty", got)
	}
}

func TestCleanText_TrimsResult(t *testing.T) {
	if got := CleanText("  padded  "); got != "padded" {
		t.Errorf("CleanText() = %q, want 'padded'", got)
	}
}
