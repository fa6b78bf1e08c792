// Package storage 提供知识文件原始字节的对象存储层
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/executa/knowledge-engine/internal/config"
)

// Locator 对象定位符（bucket + key）
type Locator struct {
	Bucket string
	Key    string
}

// Storage 文件存储接口
type Storage interface {
	// Put 保存文件，返回对象定位符
	Put(ctx context.Context, req *PutRequest) (Locator, error)
	// Get 获取文件内容
	Get(ctx context.Context, loc Locator) (io.ReadCloser, error)
	// Delete 删除对象
	Delete(ctx context.Context, loc Locator) error
}

// PutRequest 保存文件请求
type PutRequest struct {
	AccountID   string
	ContentType string
	Checksum    string
	Size        int64
	Reader      io.Reader
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
)

// NewFromConfig 根据配置创建存储服务
func NewFromConfig(cfg *config.StorageConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.BasePath, cfg.Bucket)
	case StorageTypeMinIO:
		if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
			return nil, fmt.Errorf("missing required MinIO config")
		}
		return NewMinIOStorage(&MinIOConfig{
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			BucketName: cfg.Bucket,
			UseSSL:     cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// objectKey 生成对象键: {accountID}/{checksum}
// 键只由内容哈希决定，同一内容在任何文件名下都落到同一对象
func objectKey(accountID, checksum string) string {
	return fmt.Sprintf("%s/%s", accountID, checksum)
}
