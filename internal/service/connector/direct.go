package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/executa/knowledge-engine/internal/model"
)

// StagedFile 内存中待摄取的文件
type StagedFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Direct 内存连接器，承载直接上传的批次
// 上传批次走和外部数据源相同的同步路径
type Direct struct {
	files []StagedFile
}

// NewDirect 创建直传连接器
func NewDirect(files []StagedFile) *Direct {
	return &Direct{files: files}
}

// Provider 提供方名称
func (d *Direct) Provider() string {
	return model.ProviderUpload
}

// ListFiles 列举暂存文件，ID 为批次内序号
func (d *Direct) ListFiles(_ context.Context, _ Credentials, filter Filter) ([]RemoteFile, error) {
	now := time.Now()
	var files []RemoteFile
	for i, f := range d.files {
		rf := RemoteFile{
			ID:           fmt.Sprintf("%d", i),
			Name:         f.Name,
			Size:         int64(len(f.Data)),
			MimeType:     f.MimeType,
			LastModified: now,
		}
		if !matchesFilter(rf, filter) {
			continue
		}
		files = append(files, rf)
	}
	return files, nil
}

// Download 按序号取出暂存文件
func (d *Direct) Download(_ context.Context, _ Credentials, id string) (*FileContent, error) {
	var idx int
	if _, err := fmt.Sscanf(id, "%d", &idx); err != nil || idx < 0 || idx >= len(d.files) {
		return nil, fmt.Errorf("staged file not found: %s", id)
	}
	f := d.files[idx]
	return &FileContent{Data: f.Data, Name: f.Name, MimeType: f.MimeType}, nil
}

// Refresh 直传无凭证可刷新
func (d *Direct) Refresh(_ context.Context, _ Credentials) (*Credentials, error) {
	return nil, nil
}
