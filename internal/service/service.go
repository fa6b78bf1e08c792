// Package service 组装全部业务服务
package service

import (
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/executa/knowledge-engine/internal/config"
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service/connector"
	"github.com/executa/knowledge-engine/internal/service/ingest"
	"github.com/executa/knowledge-engine/internal/service/storage"
	syncsvc "github.com/executa/knowledge-engine/internal/service/sync"
)

// Services 服务集合
type Services struct {
	Ingest     *ingest.Service
	Sync       *syncsvc.Orchestrator
	Storage    storage.Storage
	Connectors *connector.Registry

	Config *config.Config
}

// NewServices 创建所有服务
func NewServices(repos *repository.Repositories, cfg *config.Config) (*Services, error) {
	store, err := storage.NewFromConfig(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	registry := connector.NewRegistry(cfg)
	ingestor := ingest.NewService(repos, store, cfg.Limits.MaxFilesPerUpload)

	// Redis 仅用于同步互斥锁，未启用时退化为无锁单实例模式
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Printf("redis sync lock enabled at %s", cfg.Redis.GetAddr())
	}

	orchestrator := syncsvc.NewOrchestrator(repos, registry, ingestor, redisClient, syncsvc.Options{
		MaxFilesPerSync:       cfg.Limits.MaxFilesPerSync,
		MaxFileSizeSync:       cfg.Limits.MaxFileSizeSync,
		IncludeExtensions:     cfg.Limits.SyncIncludeExtensions,
		ExcludeExtensions:     cfg.Limits.SyncExcludeExtensions,
		FolderPrefixes:        cfg.Limits.SyncFolderPrefixes,
		ExcludeFolderPrefixes: cfg.Limits.SyncExcludeFolderPrefixes,
	})

	return &Services{
		Ingest:     ingestor,
		Sync:       orchestrator,
		Storage:    store,
		Connectors: registry,
		Config:     cfg,
	}, nil
}
