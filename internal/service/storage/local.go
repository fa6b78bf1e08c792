package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage 本地文件存储，bucket 映射为根目录下的子目录
type LocalStorage struct {
	basePath string
	bucket   string
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath, bucket string) (*LocalStorage, error) {
	// 确保基础路径存在
	if err := os.MkdirAll(filepath.Join(basePath, bucket), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		bucket:   bucket,
	}, nil
}

// Put 保存文件到本地
func (s *LocalStorage) Put(ctx context.Context, req *PutRequest) (Locator, error) {
	key := objectKey(req.AccountID, req.Checksum)
	fullPath := filepath.Join(s.basePath, s.bucket, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return Locator{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return Locator{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, req.Reader); err != nil {
		return Locator{}, fmt.Errorf("failed to write file: %w", err)
	}

	return Locator{Bucket: s.bucket, Key: key}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, loc.Bucket, loc.Key)
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete 删除本地文件
func (s *LocalStorage) Delete(ctx context.Context, loc Locator) error {
	fullPath := filepath.Join(s.basePath, loc.Bucket, loc.Key)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
