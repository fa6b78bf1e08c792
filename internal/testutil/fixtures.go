// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"fmt"
)

// Context 返回测试用的 context.Background()
func Context() context.Context {
	return context.Background()
}

// CanceledContext 返回已取消的 context
func CanceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// TextFileBytes 构造一份可通过安全校验的文本文件内容
func TextFileBytes(body string) []byte {
	return []byte(body)
}

// PDFBytes 构造带 PDF 魔数的字节（仅用于类型探测，不是合法 PDF）
func PDFBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\nfake\nendobj")
}

// ExecutableBytes 构造带 ELF 魔数的字节
func ExecutableBytes() []byte {
	return []byte{0x7F, 'E', 'L', 'F', 0x02, 0x01}
}

// EmailBytes 构造合成邮件格式的字节
func EmailBytes(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nDate: Mon, 02 Jan 2006 15:04:05 -0700\n\n%s",
		from, to, subject, body))
}
