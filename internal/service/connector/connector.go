// Package connector 对接外部数据源：列举、下载、令牌刷新
// 认证类失败让整次同步失败，单文件失败由调用方逐项隔离
package connector

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/executa/knowledge-engine/internal/config"
)

// Credentials 调用外部数据源所需的凭证
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// RemoteFile 远端文件的元信息，供增量比对
type RemoteFile struct {
	ID           string
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time
}

// FileContent 下载得到的文件内容
type FileContent struct {
	Data     []byte
	Name     string
	MimeType string
}

// Filter 列举时的筛选条件
type Filter struct {
	IncludeExtensions     []string // 为空则不限
	ExcludeExtensions     []string
	MaxFileSize           int64    // 0 表示不限
	FolderPrefixes        []string // 仅 Dropbox：限定目录前缀
	ExcludeFolderPrefixes []string // 仅 Dropbox：排除目录前缀
	MaxFiles              int      // 0 表示不限
	DaysBack              int      // 仅 Gmail：只取最近 N 天
}

// Connector 外部数据源连接器
type Connector interface {
	// Provider 对应 model 中的提供方常量
	Provider() string
	// ListFiles 列举可同步的远端文件
	ListFiles(ctx context.Context, creds Credentials, filter Filter) ([]RemoteFile, error)
	// Download 按远端 ID 下载文件内容
	Download(ctx context.Context, creds Credentials, id string) (*FileContent, error)
	// Refresh 刷新过期凭证，无需刷新时返回 nil, nil
	Refresh(ctx context.Context, creds Credentials) (*Credentials, error)
}

// AuthError 认证失败，调用方应让整次同步失败而非逐项跳过
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Registry 按提供方名称查找连接器
type Registry struct {
	connectors map[string]Connector
}

// NewRegistry 创建连接器注册表
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{connectors: make(map[string]Connector)}
	r.Register(NewDropbox(cfg.Providers.Dropbox))
	r.Register(NewGoogleDrive(cfg.Providers.Google))
	r.Register(NewGmail(cfg.Providers.Google, cfg.Limits.GmailMaxMessages, cfg.Limits.GmailDaysBack))
	return r
}

// Register 注册连接器，同名覆盖
func (r *Registry) Register(c Connector) {
	if r.connectors == nil {
		r.connectors = make(map[string]Connector)
	}
	r.connectors[c.Provider()] = c
}

// Get 按提供方名称获取连接器
func (r *Registry) Get(provider string) (Connector, error) {
	c, ok := r.connectors[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	return c, nil
}

// needsRefresh 凭证是否已过期（提前 5 分钟判定）
func needsRefresh(creds Credentials) bool {
	if creds.RefreshToken == "" || creds.ExpiresAt == nil {
		return false
	}
	return time.Now().After(creds.ExpiresAt.Add(-5 * time.Minute))
}

// matchesFilter 文件是否满足筛选条件，排除规则先于包含规则
func matchesFilter(f RemoteFile, filter Filter) bool {
	if filter.MaxFileSize > 0 && f.Size > filter.MaxFileSize {
		return false
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")

	for _, excluded := range filter.ExcludeExtensions {
		if ext != "" && ext == strings.ToLower(strings.TrimPrefix(excluded, ".")) {
			return false
		}
	}

	if len(filter.IncludeExtensions) > 0 {
		found := false
		for _, allowed := range filter.IncludeExtensions {
			if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
