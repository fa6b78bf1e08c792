package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/model"
)

// Checksum 计算内容哈希（sha256 十六进制）
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// fileStore Resolve 所需的最小仓储能力
type fileStore interface {
	FindByChecksum(accountID, checksum string) (*model.KnowledgeFile, error)
	CreateIfAbsent(file *model.KnowledgeFile) (bool, error)
}

// Addressor 按内容哈希把字节解析到账户内唯一的文件记录
type Addressor struct {
	files fileStore
}

// NewAddressor 创建内容寻址器
func NewAddressor(files fileStore) *Addressor {
	return &Addressor{files: files}
}

// FileMeta 新建文件记录所需的元信息
type FileMeta struct {
	OriginalName  string
	FileType      string
	MimeType      string
	Size          int64
	Source        string
	SourceItemID  string
	SessionID     string
	StorageBucket string
	StorageKey    string
}

// Resolve 按 (account, checksum) 解析到文件记录
// 命中已有记录时返回 (记录, false)；否则原子插入 PENDING 新记录并返回 (记录, true)
// 两个并发写入者竞争同一内容时恰好一方插入成功，败方改为读取幸存记录
func (a *Addressor) Resolve(accountID, checksum string, meta FileMeta) (*model.KnowledgeFile, bool, error) {
	existing, err := a.files.FindByChecksum(accountID, checksum)
	if err != nil {
		return nil, false, fmt.Errorf("lookup by checksum: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	file := &model.KnowledgeFile{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Checksum:      checksum,
		OriginalName:  meta.OriginalName,
		FileType:      meta.FileType,
		MimeType:      meta.MimeType,
		FileSize:      meta.Size,
		Status:        model.FileStatusPending,
		Source:        meta.Source,
		SourceItemID:  meta.SourceItemID,
		SessionID:     meta.SessionID,
		StorageBucket: meta.StorageBucket,
		StorageKey:    meta.StorageKey,
	}

	created, err := a.files.CreateIfAbsent(file)
	if err != nil {
		return nil, false, fmt.Errorf("create file record: %w", err)
	}
	if created {
		return file, true, nil
	}

	// 竞争失败，读取幸存记录
	survivor, err := a.files.FindByChecksum(accountID, checksum)
	if err != nil {
		return nil, false, fmt.Errorf("reread after conflict: %w", err)
	}
	if survivor == nil {
		return nil, false, fmt.Errorf("file record vanished after insert conflict: %s", checksum)
	}
	return survivor, false, nil
}
