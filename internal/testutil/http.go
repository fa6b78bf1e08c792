package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"
)

// RewriteTransport 把所有请求改写到测试服务器
// 用于把外部数据源 API 调用重定向到 httptest 服务器
type RewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := *req
	u := *req.URL
	u.Scheme = t.base.Scheme
	u.Host = t.base.Host
	cloned.URL = &u
	return t.next.RoundTrip(&cloned)
}

// NewTestClient 创建把请求重定向到测试服务器的 HTTP 客户端
func NewTestClient(ts *httptest.Server) *http.Client {
	u, _ := url.Parse(ts.URL)
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &RewriteTransport{
			base: u,
			next: http.DefaultTransport,
		},
	}
}
