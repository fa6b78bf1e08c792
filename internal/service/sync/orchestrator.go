package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service/connector"
	"github.com/executa/knowledge-engine/internal/service/extract"
	"github.com/executa/knowledge-engine/internal/service/ingest"
)

// 同步错误
var (
	// ErrNotConnected 账户未连接该数据源
	ErrNotConnected = errors.New("source not connected")
	// ErrSyncInProgress 同一 (账户, 提供方) 已有同步在执行
	ErrSyncInProgress = errors.New("sync already in progress")
)

// 同步互斥锁的持有时长
const syncLockTTL = 10 * time.Minute

// Options 编排器限制与列举筛选
type Options struct {
	MaxFilesPerSync       int
	MaxFileSizeSync       int64
	IncludeExtensions     []string
	ExcludeExtensions     []string
	FolderPrefixes        []string
	ExcludeFolderPrefixes []string
}

// Orchestrator 同步编排器
// 认证和列举失败让整次同步失败；单文件失败只影响该文件
type Orchestrator struct {
	repos    *repository.Repositories
	registry *connector.Registry
	ingestor *ingest.Service
	locker   *redis.Client // 可为 nil，单实例部署不需要分布式锁
	opts     Options
}

// NewOrchestrator 创建同步编排器
func NewOrchestrator(repos *repository.Repositories, registry *connector.Registry, ingestor *ingest.Service, locker *redis.Client, opts Options) *Orchestrator {
	if opts.MaxFilesPerSync <= 0 {
		opts.MaxFilesPerSync = 10
	}
	return &Orchestrator{
		repos:    repos,
		registry: registry,
		ingestor: ingestor,
		locker:   locker,
		opts:     opts,
	}
}

// Result 一次同步的统计
type Result struct {
	Provider     string   `json:"provider"`
	TotalFiles   int      `json:"total_files"`
	SyncedFiles  int      `json:"synced_files"`
	SkippedFiles int      `json:"skipped_files"`
	ErrorFiles   int      `json:"error_files"`
	Errors       []string `json:"errors,omitempty"`
}

// SyncFromSource 从外部数据源同步到助手
// 流程：取连接、刷新凭证、列举、差量计划、逐项下载摄取并关联
func (o *Orchestrator) SyncFromSource(ctx context.Context, accountID, assistantID, provider, plan string) (*Result, error) {
	conn, err := o.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	connection, err := o.repos.Connection.GetActive(accountID, provider)
	if err != nil {
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if connection == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, provider)
	}

	if o.locker != nil {
		unlock, err := o.acquireLock(ctx, accountID, provider)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	creds := connector.Credentials{
		AccessToken:  connection.AccessToken,
		RefreshToken: connection.RefreshToken,
		ExpiresAt:    connection.ExpiresAt,
	}

	// 凭证刷新最多一次，失败直接让同步失败
	refreshed, err := conn.Refresh(ctx, creds)
	if err != nil {
		return nil, err
	}
	if refreshed != nil {
		creds = *refreshed
		expiresAt := time.Now().Add(time.Hour)
		if refreshed.ExpiresAt != nil {
			expiresAt = *refreshed.ExpiresAt
		}
		if err := o.repos.Connection.UpdateTokens(connection.ID, refreshed.AccessToken, expiresAt); err != nil {
			return nil, fmt.Errorf("persist refreshed tokens: %w", err)
		}
	}

	remote, err := conn.ListFiles(ctx, creds, connector.Filter{
		MaxFileSize:           o.opts.MaxFileSizeSync,
		MaxFiles:              o.opts.MaxFilesPerSync,
		IncludeExtensions:     o.opts.IncludeExtensions,
		ExcludeExtensions:     o.opts.ExcludeExtensions,
		FolderPrefixes:        o.opts.FolderPrefixes,
		ExcludeFolderPrefixes: o.opts.ExcludeFolderPrefixes,
	})
	if err != nil {
		return nil, err
	}

	locals, err := o.repos.File.ListBySource(accountID, provider)
	if err != nil {
		return nil, fmt.Errorf("list local files: %w", err)
	}
	localProjections := make([]LocalFile, 0, len(locals))
	for _, f := range locals {
		localProjections = append(localProjections, LocalFile{
			Name:      f.OriginalName,
			Size:      f.FileSize,
			UpdatedAt: f.UpdatedAt,
		})
	}

	diff := BuildPlan(remote, localProjections)

	result := &Result{
		Provider:     provider,
		TotalFiles:   len(remote),
		SkippedFiles: len(diff.ToSkip),
	}

	// 跳过的文件如果已入库，仍要确保关联存在（重跑同步是幂等的）
	for _, rf := range diff.ToSkip {
		o.ensureLinked(assistantID, rf, locals)
	}

	for _, rf := range diff.ToFetch {
		// 取消时提前收尾，已入库的部分照常计入统计；LastSyncAt 不更新
		if ctx.Err() != nil {
			return result, nil
		}

		content, err := conn.Download(ctx, creds, rf.ID)
		if err != nil {
			var authErr *connector.AuthError
			if errors.As(err, &authErr) {
				return nil, err
			}
			result.ErrorFiles++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rf.Name, err))
			continue
		}

		file, _, err := o.ingestor.IngestOne(ctx, accountID, plan, ingest.Item{
			Name:     content.Name,
			MimeType: content.MimeType,
			Data:     content.Data,
		}, ingest.Origin{
			Source:       provider,
			SourceItemID: rf.ID,
		})

		switch {
		case err != nil && errors.Is(err, extract.ErrPromotionalEmail):
			result.SkippedFiles++
		case err != nil:
			result.ErrorFiles++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rf.Name, err))
		default:
			result.SyncedFiles++
			if linkErr := o.repos.Link.CreateLink(assistantID, file.ID); linkErr != nil {
				log.Printf("link file %s to assistant %s failed: %v", file.ID, assistantID, linkErr)
			}
		}
	}

	if err := o.repos.Connection.TouchLastSync(connection.ID); err != nil {
		log.Printf("touch last sync failed for connection %s: %v", connection.ID, err)
	}
	return result, nil
}

// ensureLinked 为跳过的远端文件补建助手关联
func (o *Orchestrator) ensureLinked(assistantID string, rf connector.RemoteFile, files []*model.KnowledgeFile) {
	for _, f := range files {
		if f.SourceItemID == rf.ID || (f.OriginalName == rf.Name && f.FileSize == rf.Size) {
			if linkErr := o.repos.Link.CreateLink(assistantID, f.ID); linkErr != nil {
				log.Printf("link skipped file %s to assistant %s failed: %v", f.ID, assistantID, linkErr)
			}
			return
		}
	}
}

// acquireLock 获取 (账户, 提供方) 级别的同步互斥锁
func (o *Orchestrator) acquireLock(ctx context.Context, accountID, provider string) (func(), error) {
	key := fmt.Sprintf("sync:lock:%s:%s", accountID, provider)
	ok, err := o.locker.SetNX(ctx, key, time.Now().Unix(), syncLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrSyncInProgress, accountID, provider)
	}
	return func() {
		if err := o.locker.Del(context.Background(), key).Err(); err != nil {
			log.Printf("release sync lock %s failed: %v", key, err)
		}
	}, nil
}
