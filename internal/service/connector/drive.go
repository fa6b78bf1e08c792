package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/executa/knowledge-engine/internal/config"
	"github.com/executa/knowledge-engine/internal/model"
)

// 可同步的 Drive 文件类型查询，Google Workspace 原生文档不在其列
const driveQuery = "trashed = false and (" +
	"mimeType = 'application/pdf' or " +
	"mimeType = 'application/msword' or " +
	"mimeType = 'application/vnd.openxmlformats-officedocument.wordprocessingml.document' or " +
	"mimeType = 'text/plain' or " +
	"mimeType = 'text/markdown' or " +
	"mimeType = 'text/csv' or " +
	"mimeType = 'text/html' or " +
	"mimeType = 'application/json')"

// GoogleDrive 通过 Drive API v3 对接 Google Drive
type GoogleDrive struct {
	cfg config.GoogleConfig
}

// NewGoogleDrive 创建 Google Drive 连接器
func NewGoogleDrive(cfg config.GoogleConfig) *GoogleDrive {
	return &GoogleDrive{cfg: cfg}
}

// Provider 提供方名称
func (g *GoogleDrive) Provider() string {
	return model.ProviderGoogleDrive
}

func (g *GoogleDrive) service(ctx context.Context, creds Credentials) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(googleTokenSource(creds)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// ListFiles 列举可同步文件，带翻页
func (g *GoogleDrive) ListFiles(ctx context.Context, creds Credentials, filter Filter) ([]RemoteFile, error) {
	svc, err := g.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	var files []RemoteFile
	pageToken := ""
	for {
		call := svc.Files.List().
			Q(driveQuery).
			Fields("nextPageToken, files(id, name, size, mimeType, modifiedTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			return nil, g.wrapError("list files", err)
		}

		for _, f := range result.Files {
			modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
			rf := RemoteFile{
				ID:           f.Id,
				Name:         f.Name,
				Size:         f.Size,
				MimeType:     f.MimeType,
				LastModified: modified,
			}
			if !matchesFilter(rf, filter) {
				continue
			}
			files = append(files, rf)
			if filter.MaxFiles > 0 && len(files) >= filter.MaxFiles {
				return files, nil
			}
		}

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}
	return files, nil
}

// Download 下载单个文件
func (g *GoogleDrive) Download(ctx context.Context, creds Credentials, id string) (*FileContent, error) {
	svc, err := g.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	meta, err := svc.Files.Get(id).Fields("name, mimeType").Context(ctx).Do()
	if err != nil {
		return nil, g.wrapError("get file metadata", err)
	}

	resp, err := svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, g.wrapError("download file", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read drive file %s: %w", id, err)
	}

	return &FileContent{Data: data, Name: meta.Name, MimeType: meta.MimeType}, nil
}

// Refresh 刷新过期凭证
func (g *GoogleDrive) Refresh(ctx context.Context, creds Credentials) (*Credentials, error) {
	return googleRefresh(ctx, g.Provider(), g.cfg, creds)
}

// wrapError 把 401/403 映射为 AuthError
func (g *GoogleDrive) wrapError(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return &AuthError{Provider: g.Provider(), Err: err}
		}
	}
	if strings.Contains(err.Error(), "oauth2") {
		return &AuthError{Provider: g.Provider(), Err: err}
	}
	return fmt.Errorf("drive %s: %w", op, err)
}
