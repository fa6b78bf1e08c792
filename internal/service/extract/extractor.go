// Package extract 提供文档与邮件的文本提取和归一化流水线
// 直接使用 eino/eino-ext 解析器组件，避免冗余封装
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/docx"
	"github.com/cloudwego/eino-ext/components/document/parser/html"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// 提取错误分类
var (
	// ErrUnsupportedFormat 不支持的文件格式
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed 解析失败
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrPromotionalEmail 营销邮件，在持久化之前丢弃
	ErrPromotionalEmail = errors.New("promotional email discarded")
	// ErrEmptyContent 提取结果为空
	ErrEmptyContent = errors.New("no content extracted")
)

// Result 提取结果
type Result struct {
	Text       string
	PageCount  int
	Length     int
	Confidence string   // high/medium/low，仅供参考，不阻断入库
	Warnings   []string // 质量提示
}

// Extractor 文本提取器
type Extractor struct{}

// NewExtractor 创建提取器
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract 把原始字节按声明类型转成归一化文本
// 邮件走独立清洗路径，文档走解析器 + 版面修复
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName, mimeType string) (*Result, error) {
	if IsEmailType(fileName, mimeType) {
		return e.extractEmail(data)
	}

	text, pageCount, err := e.extractDocument(ctx, data, fileName, mimeType)
	if err != nil {
		return nil, err
	}

	text = CleanText(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, fileName)
	}

	result := &Result{
		Text:      text,
		PageCount: pageCount,
		Length:    len(text),
	}
	result.Confidence, result.Warnings = AssessQuality(text)
	return result, nil
}

// extractDocument 文档路径
func (e *Extractor) extractDocument(ctx context.Context, data []byte, fileName, mimeType string) (string, int, error) {
	switch mimeType {
	case "text/plain", "text/markdown", "text/csv":
		return string(data), 1, nil

	case "application/json":
		// 重新缩进以便下游阅读，解析失败时保留原文
		var v interface{}
		if err := json.Unmarshal(data, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				return string(pretty), 1, nil
			}
		}
		return string(data), 1, nil

	case "application/pdf":
		return e.parseWithEino(ctx, data, fileName, "pdf")

	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return e.parseWithEino(ctx, data, fileName, "docx")

	case "text/html":
		return e.parseWithEino(ctx, data, fileName, "html")
	}

	// MIME 未声明时退回扩展名
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".csv":
		return string(data), 1, nil
	case ".json":
		return e.extractDocument(ctx, data, fileName, "application/json")
	case ".pdf":
		return e.parseWithEino(ctx, data, fileName, "pdf")
	case ".doc", ".docx":
		return e.parseWithEino(ctx, data, fileName, "docx")
	case ".html", ".htm":
		return e.parseWithEino(ctx, data, fileName, "html")
	}

	return "", 0, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, fileName, mimeType)
}

// parseWithEino 用 eino-ext 解析器解析并拼接文本
func (e *Extractor) parseWithEino(ctx context.Context, data []byte, fileName, kind string) (string, int, error) {
	fileParser, err := e.newParser(ctx, kind)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	docs, err := fileParser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrExtractionFailed, fileName, err)
	}
	if len(docs) == 0 {
		return "", 0, fmt.Errorf("%w: %s", ErrEmptyContent, fileName)
	}

	return joinDocuments(docs), len(docs), nil
}

// newParser 创建解析器
func (e *Extractor) newParser(ctx context.Context, kind string) (einoparser.Parser, error) {
	switch kind {
	case "pdf":
		// 按页输出，页数即文档数
		return pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	case "docx":
		return docx.NewDocxParser(ctx, &docx.Config{
			ToSections:      false,
			IncludeComments: false,
			IncludeHeaders:  true,
			IncludeFooters:  false,
			IncludeTables:   true,
		})
	case "html":
		// 使用 body 选择器提取正文内容
		bodySelector := "body"
		return html.NewParser(ctx, &html.Config{
			Selector: &bodySelector,
		})
	default:
		return nil, fmt.Errorf("no parser for %s", kind)
	}
}

// joinDocuments 拼接解析出的文档片段
func joinDocuments(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			parts = append(parts, d.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// IsEmailType 是否走邮件清洗路径
func IsEmailType(fileName, mimeType string) bool {
	if mimeType == "message/rfc822" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(fileName), ".eml")
}
