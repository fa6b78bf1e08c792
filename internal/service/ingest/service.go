// Package ingest 实现知识文件摄取：
// 内容寻址去重、直接上传、引用计数解除关联、失败重试
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service/extract"
	"github.com/executa/knowledge-engine/internal/service/security"
	"github.com/executa/knowledge-engine/internal/service/storage"
)

// 摄取错误
var (
	// ErrFileNotFound 文件不存在或不属于该账户
	ErrFileNotFound = errors.New("file not found")
	// ErrNotRetryable 只有 ERROR 状态的文件可以重试
	ErrNotRetryable = errors.New("only failed files can be retried")
	// ErrTooManyFiles 单批次文件数超限
	ErrTooManyFiles = errors.New("too many files in one batch")
)

// Service 摄取服务
type Service struct {
	repos        *repository.Repositories
	store        storage.Storage
	gate         *security.Gate
	extractor    *extract.Extractor
	addressor    *Addressor
	maxPerUpload int
}

// NewService 创建摄取服务
func NewService(repos *repository.Repositories, store storage.Storage, maxPerUpload int) *Service {
	if maxPerUpload <= 0 {
		maxPerUpload = 20
	}
	return &Service{
		repos:        repos,
		store:        store,
		gate:         security.NewGate(),
		extractor:    extract.NewExtractor(),
		addressor:    NewAddressor(repos.File),
		maxPerUpload: maxPerUpload,
	}
}

// Item 待摄取的一份内容
type Item struct {
	Name     string
	MimeType string
	Data     []byte
}

// Origin 内容的来源信息
type Origin struct {
	Source       string
	SourceItemID string
	SessionID    string
}

// IngestOne 摄取单份内容：校验、内容寻址、落存储、提取、落库
// 返回 (文件记录, 是否新建, 错误)：
//   - 命中已有内容时返回 (已有记录, false, nil)，不产生任何写入
//   - 营销邮件在任何持久化之前拒绝，返回包装 extract.ErrPromotionalEmail 的错误
//   - 提取失败时记录保留为 ERROR 状态（可重试），返回 (记录, true, 错误)
func (s *Service) IngestOne(ctx context.Context, accountID, plan string, item Item, origin Origin) (*model.KnowledgeFile, bool, error) {
	verdict, err := s.gate.Validate(item.Data, item.Name, item.MimeType, plan)
	if err != nil {
		return nil, false, err
	}

	// 营销邮件过滤发生在持久化之前
	if extract.IsEmailType(verdict.SanitizedName, item.MimeType) {
		msg := extract.ParseEmail(string(item.Data))
		if extract.IsPromotionalEmail(msg) {
			return nil, false, fmt.Errorf("%w: %s", extract.ErrPromotionalEmail, msg.Subject)
		}
	}

	checksum := Checksum(item.Data)

	existing, err := s.repos.File.FindByChecksum(accountID, checksum)
	if err != nil {
		return nil, false, fmt.Errorf("lookup by checksum: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	// 对象键由内容哈希决定，竞争双方写同一对象，先落存储是安全的
	loc, err := s.store.Put(ctx, &storage.PutRequest{
		AccountID:   accountID,
		ContentType: item.MimeType,
		Checksum:    checksum,
		Size:        int64(len(item.Data)),
		Reader:      bytes.NewReader(item.Data),
	})
	if err != nil {
		return nil, false, fmt.Errorf("store file: %w", err)
	}

	file, created, err := s.addressor.Resolve(accountID, checksum, FileMeta{
		OriginalName:  verdict.SanitizedName,
		FileType:      verdict.FileType,
		MimeType:      item.MimeType,
		Size:          int64(len(item.Data)),
		Source:        origin.Source,
		SourceItemID:  origin.SourceItemID,
		SessionID:     origin.SessionID,
		StorageBucket: loc.Bucket,
		StorageKey:    loc.Key,
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return file, false, nil
	}

	if err := s.process(ctx, file.ID, item.Data, verdict.SanitizedName, item.MimeType); err != nil {
		errored, getErr := s.repos.File.GetByID(file.ID)
		if getErr != nil {
			return file, true, err
		}
		return errored, true, err
	}

	processed, err := s.repos.File.GetByID(file.ID)
	if err != nil {
		return file, true, nil
	}
	return processed, true, nil
}

// process 走提取流水线并落盘终态，失败的文件不保留任何部分文本
func (s *Service) process(ctx context.Context, fileID string, data []byte, fileName, mimeType string) error {
	if err := s.repos.File.MarkProcessing(fileID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	result, err := s.extractor.Extract(ctx, data, fileName, mimeType)
	if err != nil {
		if markErr := s.repos.File.MarkError(fileID, err.Error()); markErr != nil {
			log.Printf("mark error failed for file %s: %v", fileID, markErr)
		}
		return err
	}

	return s.repos.File.MarkProcessed(fileID, result.Text, result.PageCount, result.Confidence)
}

// UploadResult 一次直传批次的结果
type UploadResult struct {
	Session  *model.ProcessingSession `json:"session"`
	Outcomes []FileOutcome            `json:"files"`
}

// FileOutcome 批次内单个文件的结果
type FileOutcome struct {
	Name      string               `json:"name"`
	File      *model.KnowledgeFile `json:"file,omitempty"`
	Duplicate bool                 `json:"duplicate"`
	Skipped   bool                 `json:"skipped"`
	Error     string               `json:"error,omitempty"`
}

// UploadDirect 直接上传批次，单文件失败只影响自己
// assistantID 非空时把成功的文件关联到该助手
func (s *Service) UploadDirect(ctx context.Context, accountID, assistantID, plan, sessionName string, items []Item) (*UploadResult, error) {
	if len(items) == 0 {
		return nil, errors.New("no files provided")
	}
	if len(items) > s.maxPerUpload {
		return nil, fmt.Errorf("%w: %d files, maximum %d", ErrTooManyFiles, len(items), s.maxPerUpload)
	}

	session := &model.ProcessingSession{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		SessionName: sessionName,
		Status:      model.SessionStatusPending,
	}
	if err := s.repos.Session.Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.repos.Session.Start(session.ID, len(items)); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	outcomes := make([]FileOutcome, 0, len(items))
	processed, errored := 0, 0

	for _, item := range items {
		// 取消时提前收尾，已处理的部分照常完结会话
		if ctx.Err() != nil {
			break
		}

		outcome := FileOutcome{Name: item.Name}
		file, created, err := s.IngestOne(ctx, accountID, plan, item, Origin{
			Source:    model.SourceUpload,
			SessionID: session.ID,
		})

		switch {
		case err != nil && errors.Is(err, extract.ErrPromotionalEmail):
			outcome.Skipped = true
			outcome.Error = err.Error()
		case err != nil && file == nil:
			// 校验失败，什么都没写入
			errored++
			outcome.Error = err.Error()
			if incErr := s.repos.Session.IncrementError(session.ID); incErr != nil {
				log.Printf("increment error count failed for session %s: %v", session.ID, incErr)
			}
		case err != nil:
			// 提取失败，记录保留为 ERROR 可重试
			errored++
			outcome.File = file
			outcome.Error = err.Error()
			if incErr := s.repos.Session.IncrementError(session.ID); incErr != nil {
				log.Printf("increment error count failed for session %s: %v", session.ID, incErr)
			}
		default:
			processed++
			outcome.File = file
			outcome.Duplicate = !created
			if incErr := s.repos.Session.IncrementProcessed(session.ID); incErr != nil {
				log.Printf("increment processed count failed for session %s: %v", session.ID, incErr)
			}
			if assistantID != "" {
				if linkErr := s.repos.Link.CreateLink(assistantID, file.ID); linkErr != nil {
					log.Printf("link file %s to assistant %s failed: %v", file.ID, assistantID, linkErr)
				}
			}
		}
		outcomes = append(outcomes, outcome)
	}

	if err := s.repos.Session.Complete(session.ID, processed, errored); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	final, err := s.repos.Session.GetByID(session.ID)
	if err != nil {
		return nil, err
	}
	return &UploadResult{Session: final, Outcomes: outcomes}, nil
}

// UnlinkResult 解除关联的结果
type UnlinkResult struct {
	DeletedCompletely bool  `json:"deleted_completely"`
	RemainingLinks    int64 `json:"remaining_links"`
}

// UnlinkFile 把文件从助手上解除关联
// 最后一个引用消失时硬删除记录，随后尽力清理存储对象；
// 存储清理失败只记日志，不回滚已裁定的删除
func (s *Service) UnlinkFile(ctx context.Context, assistantID, fileID string) (*UnlinkResult, error) {
	result, err := s.repos.Link.RemoveLink(assistantID, fileID)
	if err != nil {
		return nil, err
	}

	if result.DeletedFile != nil {
		loc := storage.Locator{
			Bucket: result.DeletedFile.StorageBucket,
			Key:    result.DeletedFile.StorageKey,
		}
		if loc.Key != "" {
			if delErr := s.store.Delete(ctx, loc); delErr != nil {
				log.Printf("storage cleanup failed for file %s (%s/%s): %v",
					fileID, loc.Bucket, loc.Key, delErr)
			}
		}
	}

	return &UnlinkResult{
		DeletedCompletely: result.DeletedFile != nil,
		RemainingLinks:    result.RemainingLinks,
	}, nil
}

// RetryFile 重新提取 ERROR 状态的文件，从存储中取回原始字节
func (s *Service) RetryFile(ctx context.Context, accountID, fileID string) (*model.KnowledgeFile, error) {
	file, err := s.GetFile(accountID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != model.FileStatusError {
		return nil, fmt.Errorf("%w: file %s is %s", ErrNotRetryable, fileID, file.Status)
	}

	reader, err := s.store.Get(ctx, storage.Locator{Bucket: file.StorageBucket, Key: file.StorageKey})
	if err != nil {
		return nil, fmt.Errorf("fetch stored file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}

	if err := s.process(ctx, file.ID, data, file.OriginalName, file.MimeType); err != nil {
		errored, getErr := s.repos.File.GetByID(file.ID)
		if getErr != nil {
			return nil, err
		}
		return errored, err
	}
	return s.repos.File.GetByID(file.ID)
}

// GetFile 获取账户内的文件，越权访问视同不存在
func (s *Service) GetFile(accountID, fileID string) (*model.KnowledgeFile, error) {
	file, err := s.repos.File.GetByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if file.AccountID != accountID {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return file, nil
}

// ListFiles 分页列出账户内的文件
func (s *Service) ListFiles(accountID string, page, pageSize int) ([]*model.KnowledgeFile, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repos.File.ListByAccount(accountID, (page-1)*pageSize, pageSize)
}

// ListAssistantFiles 列出助手已关联的文件，越权的助手查询返回空集
func (s *Service) ListAssistantFiles(accountID, assistantID string) ([]*model.KnowledgeFile, error) {
	files, err := s.repos.File.ListByAssistant(assistantID)
	if err != nil {
		return nil, err
	}
	owned := make([]*model.KnowledgeFile, 0, len(files))
	for _, f := range files {
		if f.AccountID == accountID {
			owned = append(owned, f)
		}
	}
	return owned, nil
}

// GetSession 获取账户内的处理会话
func (s *Service) GetSession(accountID, sessionID string) (*model.ProcessingSession, error) {
	session, err := s.repos.Session.GetByID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if session.AccountID != accountID {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return session, nil
}
