package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	multiSpaceRe    = regexp.MustCompile(`\s+`)
	camelBoundaryRe = regexp.MustCompile(`([a-z])([A-Z])`)
	wordDigitRe     = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitWordRe     = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// CleanText 归一化提取出的文档文本
// 折叠空白、剔除不可打印字符，并修复 PDF 版面常见的粘连：
// camelCase 边界和字母数字相接处补空格
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return ' '
	}, text)

	cleaned = camelBoundaryRe.ReplaceAllString(cleaned, "$1 $2")
	cleaned = wordDigitRe.ReplaceAllString(cleaned, "$1 $2")
	cleaned = digitWordRe.ReplaceAllString(cleaned, "$1 $2")
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")

	return strings.TrimSpace(cleaned)
}
