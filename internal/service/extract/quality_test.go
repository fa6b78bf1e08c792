package extract

import (
	"strings"
	"testing"
)

// ========== AssessQuality 测试 ==========

func TestAssessQuality_CleanText(t *testing.T) {
	text := strings.Repeat("This is a perfectly normal sentence about quarterly revenue. ", 5)

	confidence, warnings := AssessQuality(text)

	if confidence != "high" {
		t.Errorf("confidence = %q, want high", confidence)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
}

func TestAssessQuality_ShortText(t *testing.T) {
	confidence, warnings := AssessQuality("tiny")

	if confidence == "high" {
		t.Error("very short text should not be high confidence")
	}
	if len(warnings) == 0 {
		t.Error("very short text should produce a warning")
	}
}

func TestAssessQuality_GarbledText(t *testing.T) {
	// 特殊字符占比远超阈值
	text := strings.Repeat("@#$%^&*()!~ ab ", 10)

	confidence, warnings := AssessQuality(text)

	if confidence == "high" {
		t.Errorf("confidence = %q, garbled text should be degraded", confidence)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "garbled") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want garbled warning", warnings)
	}
}

func TestAssessQuality_MostlyDigits(t *testing.T) {
	text := strings.Repeat("1234567890", 20)

	_, warnings := AssessQuality(text)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "numbers") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want mostly-numbers warning", warnings)
	}
}

func TestAssessQuality_RepeatedRun(t *testing.T) {
	text := "normal prefix text here " + strings.Repeat("x", 30) + " normal suffix text here"

	_, warnings := AssessQuality(text)

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "repeated") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want repeated-characters warning", warnings)
	}
}

func TestAssessQuality_LowConfidence(t *testing.T) {
	// 同时触发短文本、乱码、重复字符
	text := "@#$%" + strings.Repeat("!", 15)

	confidence, warnings := AssessQuality(text)

	if confidence != "low" {
		t.Errorf("confidence = %q, want low (warnings: %v)", confidence, warnings)
	}
}

// ========== hasRepeatedRun 测试 ==========

func TestHasRepeatedRun(t *testing.T) {
	if hasRepeatedRun("abcabcabc", 5) {
		t.Error("no run longer than 5 expected")
	}
	if !hasRepeatedRun(strings.Repeat("z", 12), 10) {
		t.Error("run of 12 should exceed threshold 10")
	}
}
