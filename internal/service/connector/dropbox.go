package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/executa/knowledge-engine/internal/config"
	"github.com/executa/knowledge-engine/internal/model"
)

const (
	dropboxAPIBase     = "https://api.dropboxapi.com/2"
	dropboxContentBase = "https://content.dropboxapi.com/2"
	dropboxTokenURL    = "https://api.dropbox.com/oauth2/token"
)

// Dropbox 通过 HTTP API 对接 Dropbox
type Dropbox struct {
	cfg    config.DropboxConfig
	client *http.Client
}

// NewDropbox 创建 Dropbox 连接器
func NewDropbox(cfg config.DropboxConfig) *Dropbox {
	return NewDropboxWithClient(cfg, &http.Client{Timeout: 60 * time.Second})
}

// NewDropboxWithClient 用指定的 HTTP 客户端创建 Dropbox 连接器
func NewDropboxWithClient(cfg config.DropboxConfig, client *http.Client) *Dropbox {
	return &Dropbox{cfg: cfg, client: client}
}

// Provider 提供方名称
func (d *Dropbox) Provider() string {
	return model.ProviderDropbox
}

type dropboxEntry struct {
	Tag            string    `json:".tag"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PathLower      string    `json:"path_lower"`
	Size           int64     `json:"size"`
	ServerModified time.Time `json:"server_modified"`
}

type dropboxListResponse struct {
	Entries []dropboxEntry `json:"entries"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

// ListFiles 递归列举全部文件，带游标翻页
func (d *Dropbox) ListFiles(ctx context.Context, creds Credentials, filter Filter) ([]RemoteFile, error) {
	var files []RemoteFile

	body := map[string]interface{}{
		"path":      "",
		"recursive": true,
		"limit":     500,
	}

	cursor := ""
	for {
		endpoint := dropboxAPIBase + "/files/list_folder"
		payload := body
		if cursor != "" {
			endpoint = dropboxAPIBase + "/files/list_folder/continue"
			payload = map[string]interface{}{"cursor": cursor}
		}

		var result dropboxListResponse
		if err := d.postJSON(ctx, endpoint, creds.AccessToken, payload, &result); err != nil {
			return nil, err
		}

		for _, entry := range result.Entries {
			if entry.Tag != "file" {
				continue
			}
			if !matchesPrefix(entry.PathLower, filter.FolderPrefixes) {
				continue
			}
			if hasAnyPrefix(entry.PathLower, filter.ExcludeFolderPrefixes) {
				continue
			}
			f := RemoteFile{
				ID:           entry.PathLower,
				Name:         entry.Name,
				Size:         entry.Size,
				MimeType:     mimeByName(entry.Name),
				LastModified: entry.ServerModified,
			}
			if !matchesFilter(f, filter) {
				continue
			}
			files = append(files, f)
			if filter.MaxFiles > 0 && len(files) >= filter.MaxFiles {
				return files, nil
			}
		}

		if !result.HasMore {
			break
		}
		cursor = result.Cursor
	}
	return files, nil
}

// Download 下载单个文件，id 为 path_lower
func (d *Dropbox) Download(ctx context.Context, creds Credentials, id string) (*FileContent, error) {
	arg, err := json.Marshal(map[string]string{"path": id})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentBase+"/files/download", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Provider: d.Provider(), Err: fmt.Errorf("download returned %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("dropbox download failed (%d): %s", resp.StatusCode, msg)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox download read: %w", err)
	}

	name := id
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		name = id[idx+1:]
	}
	return &FileContent{Data: data, Name: name, MimeType: mimeByName(name)}, nil
}

type dropboxTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresh 用 refresh token 换取新的 access token
func (d *Dropbox) Refresh(ctx context.Context, creds Credentials) (*Credentials, error) {
	if !needsRefresh(creds) {
		return nil, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", d.cfg.AppKey)
	form.Set("client_secret", d.cfg.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &AuthError{Provider: d.Provider(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &AuthError{Provider: d.Provider(), Err: fmt.Errorf("token refresh failed (%d): %s", resp.StatusCode, msg)}
	}

	var token dropboxTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &AuthError{Provider: d.Provider(), Err: fmt.Errorf("decode token response: %w", err)}
	}

	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

// postJSON 发送 JSON 请求并解析响应，401 映射为 AuthError
func (d *Dropbox) postJSON(ctx context.Context, endpoint, accessToken string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{Provider: d.Provider(), Err: fmt.Errorf("list returned %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("dropbox request failed (%d): %s", resp.StatusCode, msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// matchesPrefix 路径是否落在指定目录前缀下，前缀为空则全部通过
func matchesPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	return hasAnyPrefix(path, prefixes)
}

// hasAnyPrefix 路径是否落在任一目录前缀下，前缀为空则不命中
func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// mimeByName 按扩展名推断 MIME 类型
func mimeByName(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(strings.ToLower(name), ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(strings.ToLower(name), ".doc"):
		return "application/msword"
	case strings.HasSuffix(strings.ToLower(name), ".md"):
		return "text/markdown"
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return "text/csv"
	case strings.HasSuffix(strings.ToLower(name), ".json"):
		return "application/json"
	case strings.HasSuffix(strings.ToLower(name), ".html"), strings.HasSuffix(strings.ToLower(name), ".htm"):
		return "text/html"
	case strings.HasSuffix(strings.ToLower(name), ".eml"):
		return "message/rfc822"
	default:
		return "text/plain"
	}
}
