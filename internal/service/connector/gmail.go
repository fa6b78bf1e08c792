package connector

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/executa/knowledge-engine/internal/config"
	"github.com/executa/knowledge-engine/internal/model"
)

// Gmail 通过 Gmail API 同步邮件，每封邮件合成一个 .eml 文本文件
type Gmail struct {
	cfg         config.GoogleConfig
	maxMessages int
	daysBack    int
}

// NewGmail 创建 Gmail 连接器
func NewGmail(cfg config.GoogleConfig, maxMessages, daysBack int) *Gmail {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	if daysBack <= 0 {
		daysBack = 90
	}
	return &Gmail{cfg: cfg, maxMessages: maxMessages, daysBack: daysBack}
}

// Provider 提供方名称
func (g *Gmail) Provider() string {
	return model.ProviderGmail
}

func (g *Gmail) service(ctx context.Context, creds Credentials) (*gmail.Service, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(googleTokenSource(creds)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// ListFiles 列举时间窗口内的邮件，排除聊天、草稿、垃圾邮件和回收站
func (g *Gmail) ListFiles(ctx context.Context, creds Credentials, filter Filter) ([]RemoteFile, error) {
	svc, err := g.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	daysBack := g.daysBack
	if filter.DaysBack > 0 {
		daysBack = filter.DaysBack
	}
	after := time.Now().AddDate(0, 0, -daysBack).Format("2006/01/02")
	query := fmt.Sprintf("after:%s -in:chat -in:draft -in:spam -in:trash", after)

	maxResults := int64(g.maxMessages)
	if filter.MaxFiles > 0 && int64(filter.MaxFiles) < maxResults {
		maxResults = int64(filter.MaxFiles)
	}

	list, err := svc.Users.Messages.List("me").Q(query).MaxResults(maxResults).Context(ctx).Do()
	if err != nil {
		return nil, g.wrapError("list messages", err)
	}

	var files []RemoteFile
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "Date").
			Context(ctx).Do()
		if err != nil {
			// 单封邮件取元信息失败不中断列举
			continue
		}

		subject := headerValue(msg.Payload, "Subject")
		if subject == "" {
			subject = "no-subject"
		}
		f := RemoteFile{
			ID:           ref.Id,
			Name:         emailFileName(subject, ref.Id),
			Size:         int64(msg.SizeEstimate),
			MimeType:     "message/rfc822",
			LastModified: time.UnixMilli(msg.InternalDate),
		}
		if filter.MaxFileSize > 0 && f.Size > filter.MaxFileSize {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// Download 拉取完整邮件并合成头部 + 正文的文本
func (g *Gmail) Download(ctx context.Context, creds Credentials, id string) (*FileContent, error) {
	svc, err := g.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, g.wrapError("get message", err)
	}

	subject := headerValue(msg.Payload, "Subject")
	if subject == "" {
		subject = "no-subject"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", headerValue(msg.Payload, "From"))
	fmt.Fprintf(&b, "To: %s\n", headerValue(msg.Payload, "To"))
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Date: %s\n", headerValue(msg.Payload, "Date"))
	b.WriteString("\n")
	b.WriteString(messageBody(msg.Payload))

	return &FileContent{
		Data:     []byte(b.String()),
		Name:     emailFileName(subject, id),
		MimeType: "message/rfc822",
	}, nil
}

// Refresh 刷新过期凭证
func (g *Gmail) Refresh(ctx context.Context, creds Credentials) (*Credentials, error) {
	return googleRefresh(ctx, g.Provider(), g.cfg, creds)
}

func (g *Gmail) wrapError(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return &AuthError{Provider: g.Provider(), Err: err}
		}
	}
	if strings.Contains(err.Error(), "oauth2") {
		return &AuthError{Provider: g.Provider(), Err: err}
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}

// headerValue 取指定邮件头的值
func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// messageBody 递归查找正文，text/plain 优先于 text/html
func messageBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if text := findBodyPart(payload, "text/plain"); text != "" {
		return text
	}
	return findBodyPart(payload, "text/html")
}

func findBodyPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, child := range part.Parts {
		if text := findBodyPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// emailFileName 由主题合成稳定的 .eml 文件名
func emailFileName(subject, id string) string {
	var b strings.Builder
	for _, r := range subject {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if len(name) > 60 {
		name = name[:60]
	}
	if name == "" {
		name = "email"
	}
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s.eml", name, suffix)
}
