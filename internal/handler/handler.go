package handler

import (
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	File *FileHandler
	Sync *SyncHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, repos *repository.Repositories) *Handlers {
	return &Handlers{
		File: NewFileHandler(svc.Ingest),
		Sync: NewSyncHandler(svc.Sync, svc.Ingest, repos.Connection),
	}
}
