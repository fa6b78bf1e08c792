package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// 邮件正文截断上限
const maxEmailBodyLength = 2000

// 营销邮件关键词（主题或正文）
var promotionalKeywords = []string{
	"newsletter", "unsubscribe", "promotional", "marketing", "deals",
	"offer", "sale", "discount", "coupon", "spam", "advertisement",
	"notification", "alert", "update", "news", "digest",
}

// 营销邮件发件人模式
var promotionalSenders = []string{
	"noreply@", "no-reply@", "donotreply@", "marketing@", "newsletter@",
	"notifications@", "updates@", "news@",
}

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	urlRe         = regexp.MustCompile(`https?://\S+`)
)

// 邮件套话，清洗时移除
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)click here`),
	regexp.MustCompile(`(?i)view in browser`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)terms of service`),
}

// EmailMessage 从同步字节中解析出的邮件
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Date    string
	Body    string
}

// extractEmail 邮件路径：解析、营销过滤、清洗、截断
// 营销邮件返回 ErrPromotionalEmail，绝不落库
func (e *Extractor) extractEmail(data []byte) (*Result, error) {
	msg := ParseEmail(string(data))

	if IsPromotionalEmail(msg) {
		return nil, fmt.Errorf("%w: %s", ErrPromotionalEmail, msg.Subject)
	}

	body := CleanEmailContent(msg.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty email body", ErrEmptyContent)
	}

	var b strings.Builder
	if msg.From != "" {
		fmt.Fprintf(&b, "From: %s\n", msg.From)
	}
	if msg.To != "" {
		fmt.Fprintf(&b, "To: %s\n", msg.To)
	}
	if msg.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	}
	if msg.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", msg.Date)
	}
	b.WriteString("\n")
	b.WriteString(body)

	text := b.String()
	result := &Result{
		Text:      text,
		PageCount: 1,
		Length:    len(text),
	}
	result.Confidence, result.Warnings = AssessQuality(body)
	return result, nil
}

// ParseEmail 解析头部块与正文，头部块以空行结束
func ParseEmail(raw string) *EmailMessage {
	msg := &EmailMessage{}
	lines := strings.Split(raw, "\n")

	var body strings.Builder
	inBody := false
	for _, line := range lines {
		if inBody {
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(trimmed, "From:"):
			msg.From = strings.TrimSpace(strings.TrimPrefix(trimmed, "From:"))
		case strings.HasPrefix(trimmed, "To:"):
			msg.To = strings.TrimSpace(strings.TrimPrefix(trimmed, "To:"))
		case strings.HasPrefix(trimmed, "Subject:"):
			msg.Subject = strings.TrimSpace(strings.TrimPrefix(trimmed, "Subject:"))
		case strings.HasPrefix(trimmed, "Date:"):
			msg.Date = strings.TrimSpace(strings.TrimPrefix(trimmed, "Date:"))
		case strings.TrimSpace(trimmed) == "":
			inBody = true
		default:
			// 头部块中无法识别的行视为正文开始
			inBody = true
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	msg.Body = strings.TrimSpace(body.String())
	return msg
}

// IsPromotionalEmail 发件人模式或关键词命中即判定为营销邮件
func IsPromotionalEmail(msg *EmailMessage) bool {
	from := strings.ToLower(msg.From)
	for _, pattern := range promotionalSenders {
		if strings.Contains(from, pattern) {
			return true
		}
	}

	subject := strings.ToLower(msg.Subject)
	content := strings.ToLower(msg.Body)
	for _, keyword := range promotionalKeywords {
		if strings.Contains(subject, keyword) || strings.Contains(content, keyword) {
			return true
		}
	}
	return false
}

// CleanEmailContent 清洗邮件正文：
// 去 HTML/script/style、URL 置换、套话剔除、空白折叠、定长截断
func CleanEmailContent(content string) string {
	if content == "" {
		return ""
	}

	cleaned := scriptBlockRe.ReplaceAllString(content, " ")
	cleaned = styleBlockRe.ReplaceAllString(cleaned, " ")
	cleaned = htmlTagRe.ReplaceAllString(cleaned, " ")
	cleaned = urlRe.ReplaceAllString(cleaned, "[URL]")

	for _, re := range boilerplateRes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > maxEmailBodyLength {
		// 截断点回退到字符边界，避免劈开多字节字符
		cut := maxEmailBodyLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut] + "..."
	}
	return cleaned
}
