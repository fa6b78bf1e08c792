package extract

import (
	"unicode"
)

// 质量阈值
const (
	garbledRatioThreshold = 0.30 // 非字母数字占比
	digitRatioThreshold   = 0.80 // 数字占比，疑似扫描件
	repeatRunThreshold    = 10   // 连续重复字符
	minTextLength         = 50
)

// AssessQuality 评估提取文本的质量
// 只降低置信度、产生提示，从不阻断入库
func AssessQuality(text string) (confidence string, warnings []string) {
	if len(text) < minTextLength {
		warnings = append(warnings, "very little text extracted")
	}

	var nonWord, digits int
	total := 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			nonWord++
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}

	if total > 0 {
		if float64(nonWord)/float64(total) > garbledRatioThreshold {
			warnings = append(warnings, "text may be garbled (many special characters)")
		}
		if float64(digits)/float64(total) > digitRatioThreshold {
			warnings = append(warnings, "mostly numbers (might be a scanned document)")
		}
	}

	if hasRepeatedRun(text, repeatRunThreshold) {
		warnings = append(warnings, "repeated characters detected (possible OCR issue)")
	}

	switch {
	case len(warnings) == 0:
		return "high", nil
	case len(warnings) > 2:
		return "low", warnings
	default:
		return "medium", warnings
	}
}

// hasRepeatedRun 是否存在超过 n 次的同字符连续重复
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run > n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
