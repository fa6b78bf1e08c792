// Package security 提供入库前的文件安全校验：
// 类型嗅探、按套餐限制大小、可疑内容检测、文件名净化
// 任何校验失败都发生在写入任何记录之前
package security

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// 账户套餐
const (
	PlanFree       = "FREE"
	PlanPro        = "PRO"
	PlanEnterprise = "ENTERPRISE"
)

// 按套餐的单文件大小上限（字节）
var maxFileSizes = map[string]int64{
	PlanFree:       10 * 1024 * 1024,
	PlanPro:        50 * 1024 * 1024,
	PlanEnterprise: 100 * 1024 * 1024,
}

// magicRule 魔数匹配规则
type magicRule struct {
	offset int
	bytes  []byte
}

// typeSpec 文件类型定义
type typeSpec struct {
	name       string
	mimeTypes  []string
	extensions []string
	magic      []magicRule
}

var secureFileTypes = []typeSpec{
	{
		name:       "PDF",
		mimeTypes:  []string{"application/pdf"},
		extensions: []string{"pdf"},
		magic:      []magicRule{{0, []byte("%PDF-")}},
	},
	{
		name:       "DOC",
		mimeTypes:  []string{"application/msword"},
		extensions: []string{"doc"},
		magic:      []magicRule{{0, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}}},
	},
	{
		name:       "DOCX",
		mimeTypes:  []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		extensions: []string{"docx"},
		magic:      []magicRule{{0, []byte("PK")}}, // DOCX 是 ZIP 容器
	},
	{
		name:       "TEXT",
		mimeTypes:  []string{"text/plain", "text/markdown", "text/csv", "message/rfc822"},
		extensions: []string{"txt", "md", "csv", "eml"},
	},
	{
		name:       "JSON",
		mimeTypes:  []string{"application/json"},
		extensions: []string{"json"},
	},
	{
		name:       "HTML",
		mimeTypes:  []string{"text/html"},
		extensions: []string{"html", "htm"},
	},
}

// 可执行文件魔数，一律拒绝
var executableSignatures = [][]byte{
	{'M', 'Z'},                // PE
	{0x7F, 'E', 'L', 'F'},     // ELF
	{0xCF, 0xFA, 0xED, 0xFE}, // Mach-O
}

// 文本内容中的可疑模式（潜在注入载荷）
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)onerror\s*=`),
	regexp.MustCompile(`(?i)%3cscript`),
}

// Verdict 校验通过的结果
type Verdict struct {
	FileType      string   // 探测到的类型名（PDF/DOC/DOCX/TEXT/JSON/HTML）
	SanitizedName string   // 净化后的安全文件名
	Warnings      []string // 不阻断的提示
}

// ValidationError 校验失败，聚合全部问题
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("file validation failed: %s", strings.Join(e.Errors, "; "))
}

// Gate 文件安全门
type Gate struct{}

// NewGate 创建安全门
func NewGate() *Gate {
	return &Gate{}
}

// Validate 校验原始字节、声明类型与文件名
// 拒绝必须发生在任何持久化之前
func (g *Gate) Validate(data []byte, fileName, declaredMIME, plan string) (*Verdict, error) {
	var errs []string
	verdict := &Verdict{}

	// 1. 文件名净化，阻断路径穿越
	sanitized := SanitizeFileName(fileName)
	verdict.SanitizedName = sanitized
	if sanitized != fileName {
		verdict.Warnings = append(verdict.Warnings, "file name was sanitized")
	}

	// 2. 大小限制
	maxSize, ok := maxFileSizes[plan]
	if !ok {
		maxSize = maxFileSizes[PlanFree]
	}
	if int64(len(data)) > maxSize {
		errs = append(errs, fmt.Sprintf("file too large: %.1fMB, maximum %dMB for %s plan",
			float64(len(data))/1024/1024, maxSize/1024/1024, plan))
		return nil, &ValidationError{Errors: errs}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Errors: []string{"file is empty"}}
	}

	// 3. 可执行文件直接拒绝
	for _, sig := range executableSignatures {
		if len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig) {
			return nil, &ValidationError{Errors: []string{"executable content is not allowed"}}
		}
	}

	// 4. 按内容探测真实类型，不信任声明的 MIME
	spec := detectType(data, sanitized)
	if spec == nil {
		return nil, &ValidationError{Errors: []string{"unknown or unsupported file type"}}
	}
	verdict.FileType = spec.name

	// 5. 声明 MIME 与内容不一致仅告警
	if declaredMIME != "" && !contains(spec.mimeTypes, declaredMIME) {
		verdict.Warnings = append(verdict.Warnings,
			fmt.Sprintf("declared MIME type %q does not match detected type %s", declaredMIME, spec.name))
	}

	// 6. 扩展名必须与探测类型一致
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(sanitized)), ".")
	if ext != "" && !contains(spec.extensions, ext) {
		errs = append(errs, fmt.Sprintf("file extension .%s does not match detected type %s", ext, spec.name))
	}

	// 7. 文本类内容的可疑模式扫描
	if spec.name == "TEXT" || spec.name == "JSON" || spec.name == "HTML" {
		if bytes.IndexByte(data, 0) >= 0 {
			errs = append(errs, "binary content in text file")
		} else if spec.name != "HTML" {
			for _, pattern := range suspiciousPatterns {
				if pattern.Match(data) {
					errs = append(errs, "suspicious script content detected")
					break
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return verdict, nil
}

// SanitizeFileName 去掉目录成分与危险字符
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ', r == '(', r == ')':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." {
		out = "unnamed"
	}
	return out
}

// detectType 先按魔数、再按扩展名探测类型
func detectType(data []byte, fileName string) *typeSpec {
	for i := range secureFileTypes {
		spec := &secureFileTypes[i]
		for _, rule := range spec.magic {
			end := rule.offset + len(rule.bytes)
			if len(data) >= end && bytes.Equal(data[rule.offset:end], rule.bytes) {
				// PK 容器要求 docx 扩展名，避免任意 ZIP 混入
				if spec.name == "DOCX" && !strings.HasSuffix(strings.ToLower(fileName), ".docx") {
					continue
				}
				return spec
			}
		}
	}

	// 无魔数的文本类按扩展名识别
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	for i := range secureFileTypes {
		spec := &secureFileTypes[i]
		if len(spec.magic) == 0 && contains(spec.extensions, ext) {
			return spec
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
